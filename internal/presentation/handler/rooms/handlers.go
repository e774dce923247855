package rooms

import (
	"errors"
	"net/http"

	"github.com/auxroom/auxroom/internal/domain"
	"github.com/auxroom/auxroom/internal/infrastructure/json"
	"github.com/auxroom/auxroom/internal/infrastructure/ws"
	"github.com/auxroom/auxroom/internal/playback"
	"go.uber.org/zap"
)

type Handler struct {
	coordinator *playback.Coordinator
	hub         *ws.Hub
	log         *zap.SugaredLogger
}

func NewHandler(coordinator *playback.Coordinator, hub *ws.Hub, logger *zap.SugaredLogger) *Handler {
	return &Handler{
		coordinator: coordinator,
		hub:         hub,
		log:         logger,
	}
}

// CreateRoomHandler opens a room out of band. The caller gets a session
// token and attaches over the websocket endpoint with RECONNECT; the
// disconnect grace period bounds how long the room waits for them.
func (h *Handler) CreateRoomHandler(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := json.Read(r, &req); err != nil {
		json.WriteValidationError(w, err)
		return
	}

	host, err := domain.NewUser(req.Username)
	if err != nil {
		json.WriteValidationError(w, err)
		return
	}

	created, err := h.coordinator.CreateRoomDetached(r.Context(), host)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRoomAlreadyExists):
			json.WriteError(w, http.StatusConflict, "room code collision, try again")
		default:
			h.log.Errorw("create room failed", "error", err)
			json.WriteInternalError(w)
		}
		return
	}

	json.Write(w, http.StatusCreated, createRoomResponse{
		RoomCode:     created.RoomCode,
		UserID:       created.UserID,
		SessionToken: created.SessionToken,
		CreatedAt:    created.CreatedAt,
	})
}

// AttachHandler upgrades to the websocket protocol. All room traffic
// after the upgrade rides envelope frames.
func (h *Handler) AttachHandler(w http.ResponseWriter, r *http.Request) {
	h.hub.Serve(w, r)
}
