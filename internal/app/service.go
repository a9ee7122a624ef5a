package app

import (
	"context"
	"strings"

	"quiznight-service/internal/domain"
)

// RoomRegistry stores live rooms (in-memory, optionally with Redis liveness
// markers). It is the only process-wide mutable structure; implementations
// must be safe under concurrent access.
type RoomRegistry interface {
	Create(hostName string, bank domain.QuestionBank) (*Room, error)
	Get(roomID string) (*Room, bool)
	ResolveByCode(code string) (*Room, bool)
}

// BankRepository loads question-bank content (from cache/backing store).
type BankRepository interface {
	GetBank(ctx context.Context, bankID string) (domain.QuestionBank, error)
}

// GameService contains the room-management use cases. Everything after a
// connection attaches goes through the Room directly.
type GameService struct {
	rooms  RoomRegistry
	banks  BankRepository
	bankID string
}

func NewGameService(rooms RoomRegistry, banks BankRepository, bankID string) *GameService {
	return &GameService{rooms: rooms, banks: banks, bankID: bankID}
}

// CreateRoom loads the configured question bank and opens a new room for the
// given host. A bank load failure rejects creation but never affects rooms
// that already exist.
func (s *GameService) CreateRoom(ctx context.Context, hostName string) (domain.RoomInfo, error) {
	hostName = strings.TrimSpace(hostName)
	if hostName == "" {
		return domain.RoomInfo{}, domain.ErrNameInvalid
	}

	bank, err := s.banks.GetBank(ctx, s.bankID)
	if err != nil {
		return domain.RoomInfo{}, err
	}

	room, err := s.rooms.Create(hostName, bank)
	if err != nil {
		return domain.RoomInfo{}, err
	}
	return room.Info(), nil
}

// Room resolves a room by id, falling back to the human-entry code.
func (s *GameService) Room(idOrCode string) (*Room, error) {
	if room, ok := s.rooms.Get(idOrCode); ok {
		return room, nil
	}
	if room, ok := s.rooms.ResolveByCode(idOrCode); ok {
		return room, nil
	}
	return nil, domain.ErrRoomNotFound
}

// LookupRoom serves the join flow's existence check.
func (s *GameService) LookupRoom(idOrCode string) (domain.RoomInfo, error) {
	room, err := s.Room(idOrCode)
	if err != nil {
		return domain.RoomInfo{}, err
	}
	return room.Info(), nil
}
