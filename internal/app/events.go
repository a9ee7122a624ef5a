package app

import "quiznight-service/internal/domain"

// Event is one room-scoped broadcast frame. Frames are flat JSON objects
// distinguished by their "type" field, so each concrete event carries its own
// Type tag. The transport marshals them as-is.
type Event any

// HostInit is the snapshot served to a host connection on attach; late or
// reconnecting hosts rebuild their view from it instead of replaying events.
type HostInit struct {
	Type            string               `json:"type"`
	RoomID          string               `json:"room_id"`
	RoomCode        string               `json:"room_code"`
	Players         []domain.Player      `json:"players"`
	Categories      []string             `json:"categories"`
	CurrentCategory string               `json:"current_category,omitempty"`
	State           string               `json:"state"`
	TimerSeconds    int                  `json:"timer_seconds"`
	MiniGame        domain.MiniGameState `json:"mini_game"`
	MiniGameActive  bool                 `json:"mini_game_active"`
}

// PlayerInit is the snapshot served to a player connection on attach.
type PlayerInit struct {
	Type           string               `json:"type"`
	PlayerID       string               `json:"player_id"`
	Name           string               `json:"name"`
	Score          int                  `json:"score"`
	Position       int                  `json:"position"`
	QuestionActive bool                 `json:"question_active"`
	State          string               `json:"state"`
	Leaderboard    []domain.Player      `json:"leaderboard"`
	MiniGame       domain.MiniGameState `json:"mini_game"`
	MiniGameActive bool                 `json:"mini_game_active"`
}

type PlayerJoined struct {
	Type        string          `json:"type"`
	PlayerID    string          `json:"player_id"`
	Name        string          `json:"name"`
	Leaderboard []domain.Player `json:"leaderboard"`
}

type PlayerDisconnected struct {
	Type        string          `json:"type"`
	PlayerID    string          `json:"player_id"`
	Name        string          `json:"name"`
	Leaderboard []domain.Player `json:"leaderboard"`
}

type PlayerLeft struct {
	Type        string          `json:"type"`
	PlayerID    string          `json:"player_id"`
	Leaderboard []domain.Player `json:"leaderboard"`
}

type CategorySelected struct {
	Type     string `json:"type"`
	Category string `json:"category"`
}

// QuestionStarted carries the full question to the host only; players get
// the timer and learn the content at reveal time.
type QuestionStarted struct {
	Type     string           `json:"type"`
	Question *domain.Question `json:"question,omitempty"`
	Timer    int              `json:"timer"`
}

type BuzzerLocked struct {
	Type string `json:"type"`
}

type TimerTick struct {
	Type      string `json:"type"`
	Remaining int    `json:"remaining"`
}

type TimerUpdated struct {
	Type    string `json:"type"`
	Seconds int    `json:"seconds"`
}

type TimerExpired struct {
	Type             string             `json:"type"`
	SubmissionsCount *int               `json:"submissions_count,omitempty"`
	BuzzerQueue      []domain.BuzzEntry `json:"buzzer_queue,omitempty"`
}

// AnswerConfirmed goes only to the submitting player.
type AnswerConfirmed struct {
	Type     string `json:"type"`
	Position int    `json:"position"`
	Answer   string `json:"answer"`
}

// AnswerCountUpdate goes only to the host: aggregate progress without
// revealing who answered what.
type AnswerCountUpdate struct {
	Type         string `json:"type"`
	Count        int    `json:"count"`
	TotalPlayers int    `json:"total_players"`
}

type PlayerBuzzed struct {
	Type        string             `json:"type"`
	Buzz        domain.BuzzEntry   `json:"buzz"`
	BuzzerQueue []domain.BuzzEntry `json:"buzzer_queue"`
}

type BuzzConfirmed struct {
	Type     string `json:"type"`
	Position int    `json:"position"`
}

// BuzzerQueueUpdate refreshes the host's queue view when entries are
// resolved by a manual award.
type BuzzerQueueUpdate struct {
	Type        string             `json:"type"`
	BuzzerQueue []domain.BuzzEntry `json:"buzzer_queue"`
}

type AnswerRevealed struct {
	Type           string                 `json:"type"`
	CorrectAnswer  string                 `json:"correct_answer"`
	CorrectLetter  string                 `json:"correct_letter,omitempty"`
	ScoringResults []domain.ScoringResult `json:"scoring_results,omitempty"`
	Leaderboard    []domain.Player        `json:"leaderboard,omitempty"`
}

type LeaderboardUpdate struct {
	Type          string          `json:"type"`
	Leaderboard   []domain.Player `json:"leaderboard"`
	AwardedPlayer string          `json:"awarded_player,omitempty"`
	Points        int             `json:"points,omitempty"`
}

type QuestionCleared struct {
	Type string `json:"type"`
}

// Kicked is targeted at the removed player; the transport closes the
// connection after delivering it.
type Kicked struct {
	Type string `json:"type"`
}

type GameEnded struct {
	Type        string          `json:"type"`
	Leaderboard []domain.Player `json:"leaderboard"`
}

type MiniGameUpdate struct {
	Type      string                             `json:"type"`
	Positions map[string]domain.MiniGamePosition `json:"positions"`
	Winners   []string                           `json:"winners"`
}

type MiniGameEnded struct {
	Type    string   `json:"type"`
	Winners []string `json:"winners"`
}

// MiniGameBonus goes only to the finishing player.
type MiniGameBonus struct {
	Type           string `json:"type"`
	Points         int    `json:"points"`
	FinishPosition int    `json:"finish_position"`
}
