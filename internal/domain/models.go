package domain

// QuestionMode selects the submission semantics for a question.
type QuestionMode string

const (
	// ModeChoice is the timed multiple-choice mode; players pick an option letter.
	ModeChoice QuestionMode = "choice"
	// ModeBuzzer is the legacy first-to-buzz mode; answers are judged by the host.
	ModeBuzzer QuestionMode = "buzzer"
	// ModeMusic behaves like choice but without an automatic countdown,
	// since the host controls audio playback.
	ModeMusic QuestionMode = "music"
)

// Question is immutable quiz content; the engine only ever references it.
type Question struct {
	ID        string       `json:"id"`
	Prompt    string       `json:"question"`
	Options   []string     `json:"options"`
	Answer    string       `json:"correct_answer"`
	Points    int          `json:"points"` // defaults to 100 if zero
	Mode      QuestionMode `json:"type,omitempty"`
	AudioFile string       `json:"audio_file,omitempty"`
}

// EffectiveMode normalizes a missing mode tag to multiple choice.
func (q Question) EffectiveMode() QuestionMode {
	if q.Mode == "" {
		return ModeChoice
	}
	return q.Mode
}

// EffectivePoints normalizes a missing point value.
func (q Question) EffectivePoints() int {
	if q.Points == 0 {
		return 100
	}
	return q.Points
}

// CorrectLetter derives the option letter ("A".."D") for the correct answer,
// or "" when the answer text does not match any option.
func (q Question) CorrectLetter() string {
	for i, opt := range q.Options {
		if opt == q.Answer {
			return string(rune('A' + i))
		}
	}
	return ""
}

// Category is an ordered list of questions under one name.
type Category struct {
	Name      string     `json:"name"`
	Questions []Question `json:"questions"`
}

// QuestionBank is the read-only catalog a room plays from.
type QuestionBank struct {
	ID         string     `json:"id"`
	Categories []Category `json:"categories"`
}

// Category returns the question list for a category name.
func (b QuestionBank) Category(name string) ([]Question, bool) {
	for _, c := range b.Categories {
		if c.Name == name {
			return c.Questions, true
		}
	}
	return nil, false
}

// CategoryNames returns category names in catalog order.
func (b QuestionBank) CategoryNames() []string {
	names := make([]string, 0, len(b.Categories))
	for _, c := range b.Categories {
		names = append(names, c.Name)
	}
	return names
}

// Player is a roster entry. Position is the derived leaderboard rank,
// recomputed whenever scores change.
type Player struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Score     int    `json:"score"`
	Position  int    `json:"position"`
	Connected bool   `json:"connected"`
}

// Submission is one player's accepted response to the active question.
// Position is the server-assigned arrival sequence number, never a
// client-reported timestamp.
type Submission struct {
	PlayerID string `json:"player_id"`
	Answer   string `json:"answer"`
	Position int    `json:"position"`
}

// BuzzEntry is one queued buzz in legacy buzzer mode. Resolved marks entries
// the host has already awarded for this question.
type BuzzEntry struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	Position int    `json:"position"`
	Resolved bool   `json:"resolved"`
}

// ScoringResult is the per-player outcome computed at reveal time.
// Answer, Position and Multiplier are nil for players who never submitted.
type ScoringResult struct {
	PlayerID   string   `json:"player_id"`
	Name       string   `json:"name"`
	Answer     *string  `json:"answer"`
	Correct    bool     `json:"is_correct"`
	Position   *int     `json:"position"`
	Multiplier *float64 `json:"multiplier"`
	Points     int      `json:"points"`
}

// MiniGamePosition is one racer's snapshot.
type MiniGamePosition struct {
	Name     string  `json:"name"`
	Position float64 `json:"position"`
	Finished bool    `json:"finished"`
}

// MiniGameState is the broadcastable view of the progress race.
type MiniGameState struct {
	Positions map[string]MiniGamePosition `json:"positions"`
	Winners   []string                    `json:"winners"`
}

// RoomInfo is the thin lookup view used by the join flow before a
// websocket is established.
type RoomInfo struct {
	RoomID      string `json:"room_id"`
	RoomCode    string `json:"room_code"`
	HostName    string `json:"host_name"`
	PlayerCount int    `json:"player_count"`
}
