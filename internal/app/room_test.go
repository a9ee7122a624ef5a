package app

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"quiznight-service/internal/domain"
)

func testBank() domain.QuestionBank {
	return domain.QuestionBank{
		ID: "bank-1",
		Categories: []domain.Category{
			{
				Name: "Science",
				Questions: []domain.Question{
					{
						ID:      "q1",
						Prompt:  "Pick the right one",
						Options: []string{"wrong", "right", "also wrong", "nope"},
						Answer:  "right",
						Points:  100,
					},
					{
						ID:      "q2",
						Prompt:  "Pick again",
						Options: []string{"right", "wrong"},
						Answer:  "right",
						Points:  15,
					},
				},
			},
			{
				Name: "Buzz",
				Questions: []domain.Question{
					{ID: "b1", Prompt: "Shout it out", Mode: domain.ModeBuzzer, Points: 200},
				},
			},
			{
				Name: "Music",
				Questions: []domain.Question{
					{
						ID:        "m1",
						Prompt:    "Name that tune",
						Options:   []string{"song a", "song b"},
						Answer:    "song b",
						Mode:      domain.ModeMusic,
						AudioFile: "tune.mp3",
					},
				},
			},
		},
	}
}

// newQuietRoom returns a room with the lobby mini-game already ended, so
// question-flow tests see no race broadcasts.
func newQuietRoom(clock clockwork.Clock) *Room {
	r := NewRoom("room-1", "ABC123", "Host", testBank(), 30, clock)
	_ = r.EndMiniGame()
	return r
}

// awaitEvent reads from ch until an event of type T arrives, skipping
// unrelated broadcasts.
func awaitEvent[T any](t *testing.T, ch <-chan Event) T {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				t.Fatalf("event channel closed")
			}
			if typed, matched := ev.(T); matched {
				return typed
			}
		case <-deadline:
			var zero T
			t.Fatalf("timed out waiting for %T", zero)
			return zero
		}
	}
}

func TestAttachHostReceivesSnapshot(t *testing.T) {
	r := NewRoom("room-1", "ABC123", "Host", testBank(), 30, clockwork.NewFakeClock())
	updates, cancel := r.AttachHost()
	defer cancel()

	init := awaitEvent[HostInit](t, updates)
	if init.RoomCode != "ABC123" || init.RoomID != "room-1" {
		t.Fatalf("unexpected snapshot identity: %+v", init)
	}
	if init.State != string(StateLobby) || init.TimerSeconds != 30 {
		t.Fatalf("unexpected snapshot state: %+v", init)
	}
	if len(init.Categories) != 3 {
		t.Fatalf("expected 3 categories, got %v", init.Categories)
	}
	if !init.MiniGameActive {
		t.Fatalf("expected lobby mini-game to be running")
	}
}

func TestPlayerJoinDisconnectReconnect(t *testing.T) {
	r := newQuietRoom(clockwork.NewFakeClock())
	hostCh, hostCancel := r.AttachHost()
	defer hostCancel()
	awaitEvent[HostInit](t, hostCh)

	ana, anaCh, anaCancel, err := r.AttachPlayer("Ana")
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	init := awaitEvent[PlayerInit](t, anaCh)
	if init.PlayerID != ana.ID || init.Name != "Ana" {
		t.Fatalf("unexpected player snapshot: %+v", init)
	}
	joined := awaitEvent[PlayerJoined](t, hostCh)
	if joined.PlayerID != ana.ID {
		t.Fatalf("unexpected join notice: %+v", joined)
	}

	anaCancel()
	gone := awaitEvent[PlayerDisconnected](t, hostCh)
	if gone.PlayerID != ana.ID {
		t.Fatalf("unexpected disconnect notice: %+v", gone)
	}

	// Same name, different case: the old identity comes back.
	back, backCh, backCancel, err := r.AttachPlayer("ana")
	if err != nil {
		t.Fatalf("reattach: %v", err)
	}
	defer backCancel()
	if back.ID != ana.ID {
		t.Fatalf("expected restored id %s, got %s", ana.ID, back.ID)
	}
	awaitEvent[PlayerInit](t, backCh)
}

func TestAttachPlayerNameTaken(t *testing.T) {
	r := newQuietRoom(clockwork.NewFakeClock())
	_, _, cancel, err := r.AttachPlayer("Ana")
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	defer cancel()

	if _, _, _, err := r.AttachPlayer("Ana"); err != domain.ErrNameTaken {
		t.Fatalf("expected ErrNameTaken, got %v", err)
	}
}

func TestQuestionFlowScoresAndLeaderboard(t *testing.T) {
	r := newQuietRoom(clockwork.NewFakeClock())
	hostCh, hostCancel := r.AttachHost()
	defer hostCancel()

	ana, anaCh, anaCancel, _ := r.AttachPlayer("Ana")
	defer anaCancel()
	bob, bobCh, bobCancel, _ := r.AttachPlayer("Bob")
	defer bobCancel()

	if err := r.SelectCategory("Science"); err != nil {
		t.Fatalf("select category: %v", err)
	}
	awaitEvent[CategorySelected](t, anaCh)

	if err := r.StartQuestion(); err != nil {
		t.Fatalf("start question: %v", err)
	}
	hostStarted := awaitEvent[QuestionStarted](t, hostCh)
	if hostStarted.Question == nil || hostStarted.Question.ID != "q1" {
		t.Fatalf("expected full question for host, got %+v", hostStarted)
	}
	playerStarted := awaitEvent[QuestionStarted](t, anaCh)
	if playerStarted.Question != nil {
		t.Fatalf("question content leaked to player: %+v", playerStarted)
	}
	if playerStarted.Timer != 30 {
		t.Fatalf("expected 30s timer, got %d", playerStarted.Timer)
	}

	if err := r.SubmitAnswer(ana.ID, "B"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	confirmed := awaitEvent[AnswerConfirmed](t, anaCh)
	if confirmed.Position != 1 || confirmed.Answer != "B" {
		t.Fatalf("unexpected confirmation: %+v", confirmed)
	}
	count := awaitEvent[AnswerCountUpdate](t, hostCh)
	if count.Count != 1 || count.TotalPlayers != 2 {
		t.Fatalf("unexpected count update: %+v", count)
	}

	if err := r.SubmitAnswer(ana.ID, "A"); err != domain.ErrAlreadySubmitted {
		t.Fatalf("expected ErrAlreadySubmitted, got %v", err)
	}
	if err := r.SubmitAnswer(bob.ID, "C"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if err := r.RevealAnswer(); err != nil {
		t.Fatalf("reveal: %v", err)
	}
	revealed := awaitEvent[AnswerRevealed](t, bobCh)
	if revealed.CorrectAnswer != "right" || revealed.CorrectLetter != "B" {
		t.Fatalf("unexpected reveal: %+v", revealed)
	}
	if len(revealed.ScoringResults) != 2 {
		t.Fatalf("expected 2 scoring results, got %d", len(revealed.ScoringResults))
	}
	for _, res := range revealed.ScoringResults {
		switch res.PlayerID {
		case ana.ID:
			if !res.Correct || res.Points != 100 {
				t.Fatalf("unexpected result for Ana: %+v", res)
			}
		case bob.ID:
			if res.Correct || res.Points != 0 {
				t.Fatalf("unexpected result for Bob: %+v", res)
			}
		}
	}
	if revealed.Leaderboard[0].ID != ana.ID || revealed.Leaderboard[0].Score != 100 {
		t.Fatalf("expected Ana leading with 100, got %+v", revealed.Leaderboard)
	}

	// Submissions are closed once revealing.
	if err := r.SubmitAnswer(bob.ID, "A"); err != domain.ErrNoActiveQuestion {
		t.Fatalf("expected ErrNoActiveQuestion, got %v", err)
	}
}

func TestStopQuestionLocksSubmissions(t *testing.T) {
	r := newQuietRoom(clockwork.NewFakeClock())
	ana, anaCh, cancel, _ := r.AttachPlayer("Ana")
	defer cancel()

	_ = r.SelectCategory("Science")
	_ = r.StartQuestion()

	if err := r.StopQuestion(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	awaitEvent[BuzzerLocked](t, anaCh)

	if err := r.SubmitAnswer(ana.ID, "B"); err != domain.ErrSubmissionClosed {
		t.Fatalf("expected ErrSubmissionClosed, got %v", err)
	}
}

func TestNextQuestionAdvancesThenClears(t *testing.T) {
	r := newQuietRoom(clockwork.NewFakeClock())
	hostCh, cancel := r.AttachHost()
	defer cancel()
	awaitEvent[HostInit](t, hostCh)

	_ = r.SelectCategory("Science")
	_ = r.StartQuestion()
	awaitEvent[QuestionStarted](t, hostCh)

	if err := r.RevealAnswer(); err != nil {
		t.Fatalf("reveal: %v", err)
	}
	awaitEvent[AnswerRevealed](t, hostCh)

	// Second question starts immediately.
	if err := r.NextQuestion(); err != nil {
		t.Fatalf("next: %v", err)
	}
	started := awaitEvent[QuestionStarted](t, hostCh)
	if started.Question == nil || started.Question.ID != "q2" {
		t.Fatalf("expected q2, got %+v", started)
	}

	_ = r.RevealAnswer()
	awaitEvent[AnswerRevealed](t, hostCh)

	// Category exhausted: back to selection.
	if err := r.NextQuestion(); err != nil {
		t.Fatalf("next: %v", err)
	}
	awaitEvent[QuestionCleared](t, hostCh)

	if err := r.StartQuestion(); err != domain.ErrWrongState {
		t.Fatalf("expected ErrWrongState past category end, got %v", err)
	}

	// Reselecting resets the cursor.
	if err := r.SelectCategory("Science"); err != nil {
		t.Fatalf("reselect: %v", err)
	}
	if err := r.StartQuestion(); err != nil {
		t.Fatalf("restart: %v", err)
	}
	started = awaitEvent[QuestionStarted](t, hostCh)
	if started.Question.ID != "q1" {
		t.Fatalf("expected cursor reset to q1, got %s", started.Question.ID)
	}
}

func TestTimerExpiryLocksAnswers(t *testing.T) {
	clock := clockwork.NewFakeClock()
	r := NewRoom("room-1", "ABC123", "Host", testBank(), 1, clock)
	_ = r.EndMiniGame()

	hostCh, hostCancel := r.AttachHost()
	defer hostCancel()
	ana, anaCh, anaCancel, _ := r.AttachPlayer("Ana")
	defer anaCancel()

	_ = r.SelectCategory("Science")
	if err := r.StartQuestion(); err != nil {
		t.Fatalf("start: %v", err)
	}

	tick := awaitEvent[TimerTick](t, anaCh)
	if tick.Remaining != 1 {
		t.Fatalf("expected initial tick 1, got %d", tick.Remaining)
	}

	clock.BlockUntil(1)
	clock.Advance(time.Second)

	expired := awaitEvent[TimerExpired](t, hostCh)
	if expired.SubmissionsCount == nil || *expired.SubmissionsCount != 0 {
		t.Fatalf("expected zero submissions count, got %+v", expired)
	}

	if err := r.SubmitAnswer(ana.ID, "B"); err != domain.ErrSubmissionClosed {
		t.Fatalf("expected ErrSubmissionClosed after expiry, got %v", err)
	}
}

func TestMusicQuestionHasNoCountdown(t *testing.T) {
	r := newQuietRoom(clockwork.NewFakeClock())
	_, anaCh, cancel, _ := r.AttachPlayer("Ana")
	defer cancel()

	_ = r.SelectCategory("Music")
	if err := r.StartQuestion(); err != nil {
		t.Fatalf("start: %v", err)
	}
	awaitEvent[QuestionStarted](t, anaCh)

	select {
	case ev := <-anaCh:
		if _, isTick := ev.(TimerTick); isTick {
			t.Fatalf("music question should not tick")
		}
	case <-time.After(100 * time.Millisecond):
	}
}

func TestBuzzerModeQueueAndAward(t *testing.T) {
	r := newQuietRoom(clockwork.NewFakeClock())
	hostCh, hostCancel := r.AttachHost()
	defer hostCancel()

	ana, anaCh, anaCancel, _ := r.AttachPlayer("Ana")
	defer anaCancel()
	bob, _, bobCancel, _ := r.AttachPlayer("Bob")
	defer bobCancel()

	_ = r.SelectCategory("Buzz")
	if err := r.StartQuestion(); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := r.SubmitAnswer(ana.ID, "A"); err != domain.ErrWrongState {
		t.Fatalf("expected ErrWrongState for choice submission in buzzer mode, got %v", err)
	}

	if err := r.Buzz(ana.ID); err != nil {
		t.Fatalf("buzz: %v", err)
	}
	confirmed := awaitEvent[BuzzConfirmed](t, anaCh)
	if confirmed.Position != 1 {
		t.Fatalf("expected first buzz position, got %d", confirmed.Position)
	}
	buzzed := awaitEvent[PlayerBuzzed](t, hostCh)
	if buzzed.Buzz.PlayerID != ana.ID || len(buzzed.BuzzerQueue) != 1 {
		t.Fatalf("unexpected buzz notice: %+v", buzzed)
	}

	if err := r.Buzz(ana.ID); err != domain.ErrAlreadySubmitted {
		t.Fatalf("expected ErrAlreadySubmitted for duplicate buzz, got %v", err)
	}
	if err := r.Buzz(bob.ID); err != nil {
		t.Fatalf("buzz: %v", err)
	}
	buzzed = awaitEvent[PlayerBuzzed](t, hostCh)
	if buzzed.Buzz.Position != 2 {
		t.Fatalf("expected second position, got %d", buzzed.Buzz.Position)
	}

	// Buzzer reveals don't auto-score.
	if err := r.RevealAnswer(); err != nil {
		t.Fatalf("reveal: %v", err)
	}
	revealed := awaitEvent[AnswerRevealed](t, hostCh)
	if len(revealed.ScoringResults) != 0 {
		t.Fatalf("expected no automatic scoring in buzzer mode, got %+v", revealed.ScoringResults)
	}

	// Host judges and awards manually.
	if err := r.AwardPoints(ana.ID, 200); err != nil {
		t.Fatalf("award: %v", err)
	}
	queue := awaitEvent[BuzzerQueueUpdate](t, hostCh)
	if !queue.BuzzerQueue[0].Resolved {
		t.Fatalf("expected Ana's buzz marked resolved, got %+v", queue.BuzzerQueue)
	}
	lb := awaitEvent[LeaderboardUpdate](t, hostCh)
	if lb.AwardedPlayer != ana.ID || lb.Points != 200 {
		t.Fatalf("unexpected award notice: %+v", lb)
	}
	if lb.Leaderboard[0].ID != ana.ID || lb.Leaderboard[0].Score != 200 {
		t.Fatalf("expected Ana leading with 200, got %+v", lb.Leaderboard)
	}
}

func TestMiniGameRaceAwardsBonus(t *testing.T) {
	clock := clockwork.NewFakeClock()
	r := NewRoom("room-1", "ABC123", "Host", testBank(), 30, clock)

	hostCh, hostCancel := r.AttachHost()
	defer hostCancel()
	ana, anaCh, anaCancel, _ := r.AttachPlayer("Ana")
	defer anaCancel()

	for i := 0; i < 10; i++ {
		clock.Advance(200 * time.Millisecond)
		if err := r.Buzz(ana.ID); err != nil {
			t.Fatalf("buzz %d: %v", i+1, err)
		}
	}

	bonus := awaitEvent[MiniGameBonus](t, anaCh)
	if bonus.Points != 50 || bonus.FinishPosition != 1 {
		t.Fatalf("unexpected bonus: %+v", bonus)
	}
	lb := awaitEvent[LeaderboardUpdate](t, hostCh)
	if lb.AwardedPlayer != ana.ID || lb.Leaderboard[0].Score != 50 {
		t.Fatalf("expected 50-point bonus on leaderboard, got %+v", lb)
	}

	// Starting a question ends the race.
	_ = r.SelectCategory("Science")
	if err := r.StartQuestion(); err != nil {
		t.Fatalf("start: %v", err)
	}
	ended := awaitEvent[MiniGameEnded](t, hostCh)
	if len(ended.Winners) != 1 || ended.Winners[0] != ana.ID {
		t.Fatalf("unexpected winners: %+v", ended.Winners)
	}
}

func TestKickPlayerFreesName(t *testing.T) {
	r := newQuietRoom(clockwork.NewFakeClock())
	hostCh, hostCancel := r.AttachHost()
	defer hostCancel()

	ana, anaCh, anaCancel, _ := r.AttachPlayer("Ana")
	defer anaCancel()

	if err := r.KickPlayer(ana.ID); err != nil {
		t.Fatalf("kick: %v", err)
	}
	awaitEvent[Kicked](t, anaCh)
	left := awaitEvent[PlayerLeft](t, hostCh)
	if left.PlayerID != ana.ID {
		t.Fatalf("unexpected leave notice: %+v", left)
	}

	// The name is free immediately; this is a new identity.
	again, _, cancel, err := r.AttachPlayer("Ana")
	if err != nil {
		t.Fatalf("rejoin after kick: %v", err)
	}
	defer cancel()
	if again.ID == ana.ID {
		t.Fatalf("expected fresh identity after kick")
	}

	if err := r.KickPlayer("nope"); err != domain.ErrPlayerNotFound {
		t.Fatalf("expected ErrPlayerNotFound, got %v", err)
	}
}

func TestEndGameFreezesRoom(t *testing.T) {
	r := newQuietRoom(clockwork.NewFakeClock())
	ana, anaCh, anaCancel, _ := r.AttachPlayer("Ana")

	if err := r.EndGame(); err != nil {
		t.Fatalf("end: %v", err)
	}
	awaitEvent[GameEnded](t, anaCh)

	if err := r.SelectCategory("Science"); err != domain.ErrGameEnded {
		t.Fatalf("expected ErrGameEnded, got %v", err)
	}
	if err := r.SubmitAnswer(ana.ID, "B"); err != domain.ErrGameEnded {
		t.Fatalf("expected ErrGameEnded, got %v", err)
	}
	if err := r.EndGame(); err != domain.ErrGameEnded {
		t.Fatalf("expected ErrGameEnded on repeat, got %v", err)
	}
	if _, _, _, err := r.AttachPlayer("Newcomer"); err != domain.ErrGameEnded {
		t.Fatalf("expected ErrGameEnded for late join, got %v", err)
	}

	// Reconnection of an existing player still works for viewing standings.
	anaCancel()
	back, _, cancel, err := r.AttachPlayer("Ana")
	if err != nil {
		t.Fatalf("reconnect after end: %v", err)
	}
	defer cancel()
	if back.ID != ana.ID {
		t.Fatalf("expected restored identity, got %s", back.ID)
	}
}

func TestSetTimerValidation(t *testing.T) {
	r := newQuietRoom(clockwork.NewFakeClock())
	hostCh, cancel := r.AttachHost()
	defer cancel()
	awaitEvent[HostInit](t, hostCh)

	if err := r.SetTimer(0); err != domain.ErrWrongState {
		t.Fatalf("expected rejection of non-positive timer, got %v", err)
	}
	if err := r.SetTimer(45); err != nil {
		t.Fatalf("set timer: %v", err)
	}
	updated := awaitEvent[TimerUpdated](t, hostCh)
	if updated.Seconds != 45 {
		t.Fatalf("expected 45, got %d", updated.Seconds)
	}
}

func TestAdjustScoreOverwrites(t *testing.T) {
	r := newQuietRoom(clockwork.NewFakeClock())
	ana, anaCh, cancel, _ := r.AttachPlayer("Ana")
	defer cancel()
	awaitEvent[PlayerInit](t, anaCh)

	_ = r.AwardPoints(ana.ID, 120)
	awaitEvent[LeaderboardUpdate](t, anaCh)

	if err := r.AdjustScore(ana.ID, 10); err != nil {
		t.Fatalf("adjust: %v", err)
	}
	lb := awaitEvent[LeaderboardUpdate](t, anaCh)
	if lb.Leaderboard[0].Score != 10 {
		t.Fatalf("expected absolute score 10, got %+v", lb.Leaderboard)
	}
}

func TestRoomExpiry(t *testing.T) {
	clock := clockwork.NewFakeClock()
	r := NewRoom("room-1", "ABC123", "Host", testBank(), 30, clock)
	ttl := 2 * time.Hour

	if !r.Expired(clock.Now().Add(ttl), ttl) {
		t.Fatalf("expected empty room to expire after ttl")
	}

	_, cancel := r.AttachHost()
	if r.Expired(clock.Now().Add(ttl), ttl) {
		t.Fatalf("room with attached host must not expire")
	}

	clock.Advance(time.Hour)
	cancel()
	if r.Expired(clock.Now(), ttl) {
		t.Fatalf("freshly emptied room must not expire yet")
	}
	if !r.Expired(clock.Now().Add(ttl), ttl) {
		t.Fatalf("expected expiry ttl after last detach")
	}
}
