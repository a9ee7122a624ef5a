package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"quiznight-service/internal/app"
	"quiznight-service/internal/domain"
)

// RoomsHandler serves the pre-websocket REST surface: creating a room and
// checking that a code resolves before the player dials in.
type RoomsHandler struct {
	service *app.GameService
}

func NewRoomsHandler(service *app.GameService) *RoomsHandler {
	return &RoomsHandler{service: service}
}

type createRoomRequest struct {
	HostName string `json:"host_name"`
}

// CreateRoom handles POST /api/rooms.
func (h *RoomsHandler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	info, err := h.service.CreateRoom(r.Context(), req.HostName)
	if err != nil {
		if errors.Is(err, domain.ErrNameInvalid) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Error().Err(err).Msg("create room failed")
		writeError(w, http.StatusInternalServerError, "could not create room")
		return
	}

	writeJSON(w, http.StatusCreated, info)
}

// GetRoom handles GET /api/rooms/{roomID}; the path segment accepts the room
// id or the short code.
func (h *RoomsHandler) GetRoom(w http.ResponseWriter, r *http.Request) {
	info, err := h.service.LookupRoom(r.PathValue("roomID"))
	if err != nil {
		writeError(w, http.StatusNotFound, "room not found")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("write response failed")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
