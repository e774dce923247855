package playback

import "time"

// barrierTimeout is posted by the barrier timer; seq guards against a
// stale timer firing after the barrier it belonged to was replaced.
type barrierTimeout struct {
	seq uint64
}

// barrier tracks which listeners still have to report BUFFER_COMPLETE
// before a freshly selected track may start.
type barrier struct {
	trackID string
	seq     uint64
	waiting map[string]struct{}
	timer   *time.Timer
}

func newBarrier(trackID string, seq uint64, waitingFor []string) *barrier {
	waiting := make(map[string]struct{}, len(waitingFor))
	for _, id := range waitingFor {
		waiting[id] = struct{}{}
	}
	return &barrier{
		trackID: trackID,
		seq:     seq,
		waiting: waiting,
	}
}

func (b *barrier) ack(userID string) {
	delete(b.waiting, userID)
}

func (b *barrier) done() bool {
	return len(b.waiting) == 0
}

func (b *barrier) remaining() []string {
	ids := make([]string, 0, len(b.waiting))
	for id := range b.waiting {
		ids = append(ids, id)
	}
	return ids
}

func (b *barrier) cancel() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}
