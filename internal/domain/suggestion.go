package domain

type SuggestionState int

const (
	SuggestionPending SuggestionState = iota
	SuggestionApproved
	SuggestionRejected
)

// Suggestion is a track proposed by a non-host user, awaiting a host
// decision. A suggestion transitions exactly once.
type Suggestion struct {
	ID           string          `json:"id"`
	FromUserID   string          `json:"fromUserId"`
	FromUsername string          `json:"fromUsername"`
	Track        TrackInfo       `json:"track"`
	State        SuggestionState `json:"state"`
}

// Resolve moves a pending suggestion to its final state.
func (s *Suggestion) Resolve(approved bool) error {
	if s.State != SuggestionPending {
		return ErrSuggestionResolved
	}
	if approved {
		s.State = SuggestionApproved
	} else {
		s.State = SuggestionRejected
	}
	return nil
}
