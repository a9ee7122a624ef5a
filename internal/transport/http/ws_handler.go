package http

import (
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"quiznight-service/internal/app"
)

// closeRoomNotFound matches the close code the original clients expect when
// connecting to a dead room.
const closeRoomNotFound = 4004

// errLeft signals an explicit leave; the reader loop stops without treating
// it as a protocol error.
var errLeft = errors.New("player left")

type WSHandler struct {
	service  *app.GameService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.GameService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// inboundMessage is the flat frame both roles send; unused fields stay zero.
type inboundMessage struct {
	Type     string `json:"type"`
	Category string `json:"category,omitempty"`
	PlayerID string `json:"player_id,omitempty"`
	Points   int    `json:"points,omitempty"`
	Score    *int   `json:"score,omitempty"`
	Seconds  int    `json:"seconds,omitempty"`
	Answer   string `json:"answer,omitempty"`
}

type errorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ServeHost handles /ws/host/{roomID}: upgrades, attaches the host sink and
// routes host control messages into the room.
func (h *WSHandler) ServeHost(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("roomID")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	room, err := h.service.Room(roomID)
	if err != nil {
		closeWithCode(conn, closeRoomNotFound, "room not found")
		return
	}

	updates, cancel := room.AttachHost()
	defer cancel()

	h.pump(conn, updates, func(msg inboundMessage) error {
		return hostDispatch(room, msg)
	})
}

// ServePlayer handles /ws/player/{roomID}/{playerName}: joins (or
// re-admits) the player, attaches their sink and routes gameplay messages.
func (h *WSHandler) ServePlayer(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("roomID")
	playerName := r.PathValue("playerName")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	room, err := h.service.Room(roomID)
	if err != nil {
		closeWithCode(conn, closeRoomNotFound, "room not found")
		return
	}

	player, updates, cancel, err := room.AttachPlayer(playerName)
	if err != nil {
		_ = conn.WriteJSON(errorMessage{Type: "error", Message: err.Error()})
		return
	}
	defer cancel()

	h.pump(conn, updates, func(msg inboundMessage) error {
		return playerDispatch(room, player.ID, msg)
	})
}

func hostDispatch(room *app.Room, msg inboundMessage) error {
	switch msg.Type {
	case "select_category":
		return room.SelectCategory(msg.Category)
	case "start_question":
		return room.StartQuestion()
	case "stop_question":
		return room.StopQuestion()
	case "reveal_answer":
		return room.RevealAnswer()
	case "next_question":
		return room.NextQuestion()
	case "award_points":
		return room.AwardPoints(msg.PlayerID, msg.Points)
	case "adjust_score":
		score := 0
		if msg.Score != nil {
			score = *msg.Score
		}
		return room.AdjustScore(msg.PlayerID, score)
	case "set_timer":
		return room.SetTimer(msg.Seconds)
	case "start_mini_game":
		return room.StartMiniGame()
	case "end_mini_game":
		return room.EndMiniGame()
	case "kick_player":
		return room.KickPlayer(msg.PlayerID)
	case "end_game":
		return room.EndGame()
	default:
		return errors.New("unsupported message type")
	}
}

func playerDispatch(room *app.Room, playerID string, msg inboundMessage) error {
	switch msg.Type {
	case "submit_answer":
		return room.SubmitAnswer(playerID, msg.Answer)
	case "buzz":
		return room.Buzz(playerID)
	case "leave":
		_ = room.LeavePlayer(playerID)
		return errLeft
	default:
		return errors.New("unsupported message type")
	}
}

// pump wires one websocket to one room sink: a writer goroutine drains the
// send channel, a forwarder moves room events onto it, and the calling
// goroutine reads inbound frames until the connection drops or the player
// leaves. Rejections go back to this sender only.
func (h *WSHandler) pump(conn *websocket.Conn, updates <-chan app.Event, dispatch func(inboundMessage) error) {
	send := make(chan any, 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Debug().Err(err).Msg("ws write error")
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case ev, ok := <-updates:
				if !ok {
					// Room closed this sink (kick cleanup, GC, shutdown).
					conn.Close()
					return
				}
				select {
				case send <- ev:
				case <-closeSignals:
					return
				}
				if _, kicked := ev.(app.Kicked); kicked {
					conn.Close()
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if err := dispatch(inbound); err != nil {
			if errors.Is(err, errLeft) {
				break
			}
			select {
			case send <- errorMessage{Type: "error", Message: err.Error()}:
			default:
			}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

func closeWithCode(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
}
