package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"quiznight-service/internal/app"
	"quiznight-service/internal/domain"
	"quiznight-service/internal/infra/memory"
)

func newTestService(clock clockwork.Clock) *app.GameService {
	store := memory.NewRoomStore(clock, 2*time.Hour, 30)
	banks := memory.NewBankRepository(memory.NewStaticBankLoader(map[string]domain.QuestionBank{
		"bank-1": {
			ID: "bank-1",
			Categories: []domain.Category{
				{
					Name: "Geography",
					Questions: []domain.Question{
						{
							ID:      "q1",
							Prompt:  "Which is a capital city?",
							Options: []string{"Sydney", "Canberra", "Melbourne"},
							Answer:  "Canberra",
							Points:  15,
						},
					},
				},
			},
		},
	}), 5*time.Minute)
	return app.NewGameService(store, banks, "bank-1")
}

func TestCreateRoomReturnsJoinableCode(t *testing.T) {
	ctx := context.Background()
	service := newTestService(clockwork.NewFakeClock())

	info, err := service.CreateRoom(ctx, "Quizmaster")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(info.RoomCode) != 6 {
		t.Fatalf("expected 6-char code, got %q", info.RoomCode)
	}
	if info.HostName != "Quizmaster" || info.PlayerCount != 0 {
		t.Fatalf("unexpected info: %+v", info)
	}

	// Lookup works by id and by code, case-insensitively.
	if _, err := service.Room(info.RoomID); err != nil {
		t.Fatalf("lookup by id: %v", err)
	}
	if _, err := service.LookupRoom(info.RoomCode); err != nil {
		t.Fatalf("lookup by code: %v", err)
	}
}

func TestCreateRoomValidatesHostName(t *testing.T) {
	service := newTestService(clockwork.NewFakeClock())
	if _, err := service.CreateRoom(context.Background(), "   "); err != domain.ErrNameInvalid {
		t.Fatalf("expected ErrNameInvalid, got %v", err)
	}
}

func TestLookupUnknownRoom(t *testing.T) {
	service := newTestService(clockwork.NewFakeClock())
	if _, err := service.LookupRoom("ZZZZZZ"); err != domain.ErrRoomNotFound {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
}

func TestCreateRoomFailsWithoutBank(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := memory.NewRoomStore(clock, 2*time.Hour, 30)
	banks := memory.NewBankRepository(memory.NewStaticBankLoader(nil), 5*time.Minute)
	service := app.NewGameService(store, banks, "missing")

	if _, err := service.CreateRoom(context.Background(), "Quizmaster"); err != domain.ErrBankNotFound {
		t.Fatalf("expected ErrBankNotFound, got %v", err)
	}
}

// TestFullGameRound walks the happy path through the service layer: create,
// join, answer, reveal.
func TestFullGameRound(t *testing.T) {
	ctx := context.Background()
	service := newTestService(clockwork.NewFakeClock())

	info, err := service.CreateRoom(ctx, "Quizmaster")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	room, err := service.Room(info.RoomCode)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	_ = room.EndMiniGame()

	ana, anaCh, cancel, err := room.AttachPlayer("Ana")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	defer cancel()

	if err := room.SelectCategory("Geography"); err != nil {
		t.Fatalf("select: %v", err)
	}
	if err := room.StartQuestion(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := room.SubmitAnswer(ana.ID, "B"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := room.RevealAnswer(); err != nil {
		t.Fatalf("reveal: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-anaCh:
			revealed, ok := ev.(app.AnswerRevealed)
			if !ok {
				continue
			}
			if revealed.Leaderboard[0].ID != ana.ID || revealed.Leaderboard[0].Score != 15 {
				t.Fatalf("expected Ana at 15 points, got %+v", revealed.Leaderboard)
			}
			if revealed.Leaderboard[0].Position != 1 {
				t.Fatalf("expected rank 1, got %d", revealed.Leaderboard[0].Position)
			}
			return
		case <-deadline:
			t.Fatalf("never saw the reveal")
		}
	}
}
