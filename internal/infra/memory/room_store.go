package memory

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"quiznight-service/internal/app"
	"quiznight-service/internal/domain"
)

const (
	codeLength    = 6
	codeAlphabet  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	sweepInterval = 30 * time.Second
)

// RoomStore is the in-memory implementation of app.RoomRegistry. Rooms left
// without any attached connection past the idle TTL are garbage-collected by
// the sweeper to bound memory.
type RoomStore struct {
	clock        clockwork.Clock
	idleTTL      time.Duration
	timerSeconds int

	mu     sync.RWMutex
	rooms  map[string]*app.Room
	byCode map[string]string
}

func NewRoomStore(clock clockwork.Clock, idleTTL time.Duration, timerSeconds int) *RoomStore {
	return &RoomStore{
		clock:        clock,
		idleTTL:      idleTTL,
		timerSeconds: timerSeconds,
		rooms:        make(map[string]*app.Room),
		byCode:       make(map[string]string),
	}
}

func (s *RoomStore) Create(hostName string, bank domain.QuestionBank) (*app.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	code, err := s.uniqueCodeLocked()
	if err != nil {
		return nil, err
	}

	room := app.NewRoom(uuid.NewString(), code, hostName, bank, s.timerSeconds, s.clock)
	s.rooms[room.ID()] = room
	s.byCode[code] = room.ID()
	return room, nil
}

func (s *RoomStore) Get(roomID string) (*app.Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[roomID]
	return room, ok
}

func (s *RoomStore) ResolveByCode(code string) (*app.Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byCode[strings.ToUpper(code)]
	if !ok {
		return nil, false
	}
	room, ok := s.rooms[id]
	return room, ok
}

// Remove drops a room and closes its sinks.
func (s *RoomStore) Remove(roomID string) {
	s.mu.Lock()
	room, ok := s.rooms[roomID]
	if ok {
		delete(s.rooms, roomID)
		delete(s.byCode, room.Code())
	}
	s.mu.Unlock()
	if ok {
		room.Close()
	}
}

// Sweep removes rooms with no attached connections for at least the idle
// TTL; returns how many were collected.
func (s *RoomStore) Sweep() int {
	now := s.clock.Now()

	s.mu.RLock()
	var expired []*app.Room
	for _, room := range s.rooms {
		if room.Expired(now, s.idleTTL) {
			expired = append(expired, room)
		}
	}
	s.mu.RUnlock()

	for _, room := range expired {
		s.Remove(room.ID())
		log.Info().Str("room_id", room.ID()).Str("room_code", room.Code()).Msg("idle room swept")
	}
	return len(expired)
}

// StartSweeper runs Sweep on an interval until the context is cancelled.
func (s *RoomStore) StartSweeper(ctx context.Context) {
	go func() {
		ticker := s.clock.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				s.Sweep()
			}
		}
	}()
}

// uniqueCodeLocked draws random codes until one does not collide with an
// open room.
func (s *RoomStore) uniqueCodeLocked() (string, error) {
	for attempt := 0; attempt < 100; attempt++ {
		code, err := randomCode(codeLength)
		if err != nil {
			return "", err
		}
		if _, taken := s.byCode[code]; !taken {
			return code, nil
		}
	}
	return "", fmt.Errorf("room code space exhausted")
}

// randomCode samples uniformly from the code alphabet, rejecting bytes that
// would bias the distribution.
func randomCode(n int) (string, error) {
	limit := byte(255 - (256 % len(codeAlphabet)))

	out := make([]byte, 0, n)
	buf := make([]byte, n*2)
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("generate room code: %w", err)
		}
		for _, b := range buf {
			if b <= limit {
				out = append(out, codeAlphabet[int(b)%len(codeAlphabet)])
				if len(out) == n {
					return string(out), nil
				}
			}
		}
	}
	return string(out), nil
}
