package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"quiznight-service/internal/app"
	"quiznight-service/internal/domain"
	"quiznight-service/internal/infra/memory"
)

// RoomStore is a Redis-aware implementation of app.RoomRegistry.
// Notes:
//   - Rooms themselves stay in process memory; the broadcast fan-out and the
//     per-room state machine are single-instance by design.
//   - Redis holds best-effort liveness markers (code -> room id), useful for
//     dashboards and as a seam for a future cross-instance join flow.
type RoomStore struct {
	inner  *memory.RoomStore
	client *redis.Client
	ttl    time.Duration
}

func NewRoomStore(inner *memory.RoomStore, client *redis.Client, ttl time.Duration) *RoomStore {
	return &RoomStore{inner: inner, client: client, ttl: ttl}
}

func (s *RoomStore) Create(hostName string, bank domain.QuestionBank) (*app.Room, error) {
	room, err := s.inner.Create(hostName, bank)
	if err != nil {
		return nil, err
	}
	// best-effort liveness marker
	_ = s.client.Set(context.Background(), s.key(room.Code()), room.ID(), s.ttl).Err()
	return room, nil
}

func (s *RoomStore) Get(roomID string) (*app.Room, bool) {
	return s.inner.Get(roomID)
}

func (s *RoomStore) ResolveByCode(code string) (*app.Room, bool) {
	return s.inner.ResolveByCode(code)
}

func (s *RoomStore) Remove(roomID string) {
	if room, ok := s.inner.Get(roomID); ok {
		_ = s.client.Del(context.Background(), s.key(room.Code())).Err()
	}
	s.inner.Remove(roomID)
}

// Sweep clears markers for any rooms the in-memory sweeper collects.
func (s *RoomStore) Sweep() int {
	return s.inner.Sweep()
}

// StartSweeper runs the in-memory sweeper; markers expire via their TTL.
func (s *RoomStore) StartSweeper(ctx context.Context) {
	s.inner.StartSweeper(ctx)
}

func (s *RoomStore) key(code string) string {
	return "room:session:" + code
}
