package app

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"quiznight-service/internal/domain"
)

// State names the question/answer state machine positions.
type State string

const (
	StateLobby            State = "lobby"
	StateCategorySelected State = "category_selected"
	StateQuestionActive   State = "question_active"
	StateRevealing        State = "revealing"
	StateEnded            State = "ended"
)

const sinkBuffer = 32

type sinkRole int

const (
	roleHost sinkRole = iota
	rolePlayer
)

// sink is one attached connection's outbound channel. The room never learns
// transport details; it only fans events out to the current sink set.
type sink struct {
	role     sinkRole
	playerID string
	ch       chan Event
}

// Room is one game instance: roster, question state machine, scoring and
// mini-game composed behind a single mutex, so inbound events (host actions,
// submissions, timer ticks, mini-game buzzes) are processed strictly one at a
// time. That serialization is what makes arrival-sequence tie-breaking
// well-defined.
type Room struct {
	id       string
	code     string
	hostName string
	bank     domain.QuestionBank
	clock    clockwork.Clock
	log      zerolog.Logger

	mu           sync.Mutex
	state        State
	roster       *Roster
	category     string
	cursor       int
	question     *domain.Question
	locked       bool
	submissions  map[string]domain.Submission
	order        []string
	buzzQueue    []domain.BuzzEntry
	timerSeconds int
	countdown    *Countdown
	timerEpoch   int
	minigame     *MiniGame
	sinks        map[*sink]struct{}
	hostAttached bool
	emptySince   time.Time
	closed       bool
}

// NewRoom creates a room in the lobby state with the mini-game already
// running; it stays active until the first question starts or the host ends
// it.
func NewRoom(id, code, hostName string, bank domain.QuestionBank, timerSeconds int, clock clockwork.Clock) *Room {
	r := &Room{
		id:           id,
		code:         code,
		hostName:     hostName,
		bank:         bank,
		clock:        clock,
		log:          log.With().Str("room_id", id).Str("room_code", code).Logger(),
		state:        StateLobby,
		roster:       NewRoster(),
		submissions:  make(map[string]domain.Submission),
		timerSeconds: timerSeconds,
		minigame:     NewMiniGame(clock),
		sinks:        make(map[*sink]struct{}),
		emptySince:   clock.Now(),
	}
	r.log.Info().Str("host", hostName).Msg("room created")
	return r
}

func (r *Room) ID() string       { return r.id }
func (r *Room) Code() string     { return r.code }
func (r *Room) HostName() string { return r.hostName }

// Info returns the thin lookup view used by the join flow.
func (r *Room) Info() domain.RoomInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return domain.RoomInfo{
		RoomID:      r.id,
		RoomCode:    r.code,
		HostName:    r.hostName,
		PlayerCount: r.roster.Len(),
	}
}

// Expired reports whether the room has had no attached connections for at
// least ttl; the registry sweeper removes such rooms.
func (r *Room) Expired(now time.Time, ttl time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sinks) == 0 && !r.emptySince.IsZero() && now.Sub(r.emptySince) >= ttl
}

// Close cancels the room's countdown and mini-game and closes every attached
// sink. Called when the registry drops the room.
func (r *Room) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	r.stopCountdownLocked()
	r.minigame.Stop()
	for s := range r.sinks {
		delete(r.sinks, s)
		close(s.ch)
	}
	r.log.Info().Msg("room closed")
}

// AttachHost subscribes the host connection and queues its initial snapshot
// as the first event. The returned cancel detaches the sink.
func (r *Room) AttachHost() (<-chan Event, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := &sink{role: roleHost, ch: make(chan Event, sinkBuffer)}
	r.sinks[s] = struct{}{}
	r.hostAttached = true
	r.emptySince = time.Time{}

	s.ch <- HostInit{
		Type:            "init",
		RoomID:          r.id,
		RoomCode:        r.code,
		Players:         r.roster.Leaderboard(),
		Categories:      r.bank.CategoryNames(),
		CurrentCategory: r.category,
		State:           string(r.state),
		TimerSeconds:    r.timerSeconds,
		MiniGame:        r.miniGameSnapshotLocked(),
		MiniGameActive:  r.minigame.Active(),
	}

	return s.ch, func() { r.detach(s, "") }
}

// AttachPlayer joins (or re-admits) a player and subscribes their connection,
// queuing a player snapshot as the first event. The returned cancel detaches
// the sink and marks the player disconnected; their id, score and rank are
// retained for reconnection.
func (r *Room) AttachPlayer(name string) (domain.Player, <-chan Event, func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return domain.Player{}, nil, nil, domain.ErrRoomNotFound
	}

	player, reconnected, err := r.roster.Join(name)
	if err != nil {
		return domain.Player{}, nil, nil, err
	}
	if r.state == StateEnded && !reconnected {
		// The roster froze with the game; undo the speculative join.
		_ = r.roster.Remove(player.ID)
		return domain.Player{}, nil, nil, domain.ErrGameEnded
	}

	r.minigame.Track(player.ID)

	s := &sink{role: rolePlayer, playerID: player.ID, ch: make(chan Event, sinkBuffer)}
	r.sinks[s] = struct{}{}
	r.emptySince = time.Time{}

	player.Position = r.roster.Position(player.ID)
	s.ch <- PlayerInit{
		Type:           "init",
		PlayerID:       player.ID,
		Name:           player.Name,
		Score:          player.Score,
		Position:       player.Position,
		QuestionActive: r.state == StateQuestionActive && !r.locked,
		State:          string(r.state),
		Leaderboard:    r.roster.Leaderboard(),
		MiniGame:       r.miniGameSnapshotLocked(),
		MiniGameActive: r.minigame.Active(),
	}

	r.toHostLocked(PlayerJoined{
		Type:        "player_joined",
		PlayerID:    player.ID,
		Name:        player.Name,
		Leaderboard: r.roster.Leaderboard(),
	})
	if r.minigame.Active() {
		r.broadcastLocked(r.miniGameUpdateLocked())
	}

	r.log.Debug().Str("player_id", player.ID).Str("name", player.Name).Bool("reconnected", reconnected).Msg("player attached")
	return player, s.ch, func() { r.detach(s, player.ID) }, nil
}

// detach removes a sink; for player sinks it also applies disconnect
// semantics unless the player was already removed (kick or explicit leave).
func (r *Room) detach(s *sink, playerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sinks[s]; !ok {
		return
	}
	delete(r.sinks, s)
	close(s.ch)

	if s.role == roleHost {
		r.hostAttached = false
		for other := range r.sinks {
			if other.role == roleHost {
				r.hostAttached = true
				break
			}
		}
	}

	if playerID != "" {
		if p, ok := r.roster.Get(playerID); ok && p.Connected {
			// Only disconnect if no other sink carries this player
			// (a reconnect may have raced the old connection's close).
			if !r.playerSinkExistsLocked(playerID) {
				_ = r.roster.Disconnect(playerID)
				r.toHostLocked(PlayerDisconnected{
					Type:        "player_disconnected",
					PlayerID:    playerID,
					Name:        p.Name,
					Leaderboard: r.roster.Leaderboard(),
				})
			}
		}
	}

	if len(r.sinks) == 0 {
		r.emptySince = r.clock.Now()
	}
}

func (r *Room) playerSinkExistsLocked(playerID string) bool {
	for s := range r.sinks {
		if s.role == rolePlayer && s.playerID == playerID {
			return true
		}
	}
	return false
}

// SelectCategory sets the category and resets the question cursor.
func (r *Room) SelectCategory(category string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateEnded {
		return domain.ErrGameEnded
	}
	if r.state != StateLobby && r.state != StateCategorySelected {
		return domain.ErrWrongState
	}
	if _, ok := r.bank.Category(category); !ok {
		return domain.ErrCategoryNotFound
	}

	r.category = category
	r.cursor = 0
	r.state = StateCategorySelected
	r.broadcastLocked(CategorySelected{Type: "category_selected", Category: category})
	return nil
}

// StartQuestion opens the answer window for the question at the cursor.
func (r *Room) StartQuestion() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateEnded {
		return domain.ErrGameEnded
	}
	if r.state != StateCategorySelected {
		return domain.ErrWrongState
	}
	return r.startQuestionLocked()
}

func (r *Room) startQuestionLocked() error {
	questions, ok := r.bank.Category(r.category)
	if !ok {
		return domain.ErrCategoryNotFound
	}
	if r.cursor >= len(questions) {
		return domain.ErrWrongState
	}

	if r.minigame.Active() {
		r.endMiniGameLocked()
	}

	q := questions[r.cursor]
	r.question = &q
	r.state = StateQuestionActive
	r.locked = false
	r.submissions = make(map[string]domain.Submission)
	r.order = nil
	r.buzzQueue = nil

	r.toHostLocked(QuestionStarted{Type: "question_started", Question: &q, Timer: r.timerSeconds})
	r.toPlayersLocked(QuestionStarted{Type: "question_started", Timer: r.timerSeconds})

	// Music questions have no automatic countdown; the host controls
	// playback and stops the window manually.
	if q.EffectiveMode() != domain.ModeMusic {
		r.startCountdownLocked()
	}

	r.log.Info().Str("question_id", q.ID).Str("mode", string(q.EffectiveMode())).Int("cursor", r.cursor).Msg("question started")
	return nil
}

func (r *Room) startCountdownLocked() {
	r.stopCountdownLocked()
	r.timerEpoch++
	epoch := r.timerEpoch

	r.countdown = StartCountdown(r.clock, r.timerSeconds,
		func(remaining int) { r.onTick(epoch, remaining) },
		func() { r.onExpire(epoch) },
	)
}

func (r *Room) stopCountdownLocked() {
	if r.countdown != nil {
		r.countdown.Stop()
		r.countdown = nil
	}
	r.timerEpoch++
}

// onTick and onExpire re-enter the serialized path; the epoch guard drops
// callbacks from a countdown that was already cancelled or replaced.
func (r *Room) onTick(epoch, remaining int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if epoch != r.timerEpoch || r.state != StateQuestionActive || r.locked {
		return
	}
	r.broadcastLocked(TimerTick{Type: "timer_tick", Remaining: remaining})
}

func (r *Room) onExpire(epoch int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if epoch != r.timerEpoch || r.state != StateQuestionActive || r.locked {
		return
	}
	r.locked = true
	r.countdown = nil

	ev := TimerExpired{Type: "timer_expired"}
	if r.question != nil && r.question.EffectiveMode() == domain.ModeBuzzer {
		ev.BuzzerQueue = append([]domain.BuzzEntry(nil), r.buzzQueue...)
	} else {
		count := len(r.order)
		ev.SubmissionsCount = &count
	}
	r.broadcastLocked(ev)
	r.log.Debug().Msg("question timer expired")
}

// StopQuestion locks the answer window without scoring.
func (r *Room) StopQuestion() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateEnded {
		return domain.ErrGameEnded
	}
	if r.state != StateQuestionActive {
		return domain.ErrWrongState
	}

	r.locked = true
	r.stopCountdownLocked()
	r.broadcastLocked(BuzzerLocked{Type: "buzzer_locked"})
	return nil
}

// RevealAnswer scores the submission set and discloses the correct option.
// In buzzer mode no automatic scoring happens; the host judges answers and
// awards points manually.
func (r *Room) RevealAnswer() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateEnded {
		return domain.ErrGameEnded
	}
	if r.state != StateQuestionActive || r.question == nil {
		return domain.ErrWrongState
	}

	r.stopCountdownLocked()
	r.locked = true
	r.state = StateRevealing

	q := *r.question
	if q.EffectiveMode() == domain.ModeBuzzer {
		r.broadcastLocked(AnswerRevealed{
			Type:          "answer_revealed",
			CorrectAnswer: q.Answer,
			CorrectLetter: q.CorrectLetter(),
		})
		return nil
	}

	results := ScoreQuestion(q, r.submissionsInOrderLocked(), r.roster.Players())
	for _, res := range results {
		if res.Points != 0 {
			_ = r.roster.AddScore(res.PlayerID, res.Points)
		}
	}

	r.broadcastLocked(AnswerRevealed{
		Type:           "answer_revealed",
		CorrectAnswer:  q.Answer,
		CorrectLetter:  q.CorrectLetter(),
		ScoringResults: results,
		Leaderboard:    r.roster.Leaderboard(),
	})
	r.log.Info().Str("question_id", q.ID).Int("submissions", len(r.order)).Msg("answer revealed")
	return nil
}

// NextQuestion advances the cursor: more questions in the category start the
// next one immediately, otherwise the room returns to category selection.
func (r *Room) NextQuestion() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateEnded {
		return domain.ErrGameEnded
	}
	if r.state != StateRevealing {
		return domain.ErrWrongState
	}

	questions, ok := r.bank.Category(r.category)
	if !ok {
		return domain.ErrCategoryNotFound
	}

	r.cursor++
	r.question = nil
	r.submissions = make(map[string]domain.Submission)
	r.order = nil
	r.buzzQueue = nil

	if r.cursor < len(questions) {
		r.state = StateCategorySelected
		return r.startQuestionLocked()
	}

	r.state = StateCategorySelected
	r.broadcastLocked(QuestionCleared{Type: "question_cleared"})
	return nil
}

// AwardPoints applies a manual point delta outside the scoring engine,
// used when the host judges free-text answers. The engine does not enforce
// at-most-once per player; repeated awards are a host decision. In buzzer
// mode the matching queue entry is marked resolved so the host view can
// exclude it.
func (r *Room) AwardPoints(playerID string, points int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateEnded {
		return domain.ErrGameEnded
	}
	if err := r.roster.AddScore(playerID, points); err != nil {
		return err
	}

	if r.question != nil && r.question.EffectiveMode() == domain.ModeBuzzer {
		for i := range r.buzzQueue {
			if r.buzzQueue[i].PlayerID == playerID && !r.buzzQueue[i].Resolved {
				r.buzzQueue[i].Resolved = true
				r.toHostLocked(BuzzerQueueUpdate{
					Type:        "buzzer_queue_update",
					BuzzerQueue: append([]domain.BuzzEntry(nil), r.buzzQueue...),
				})
				break
			}
		}
	}

	r.broadcastLocked(LeaderboardUpdate{
		Type:          "leaderboard_update",
		Leaderboard:   r.roster.Leaderboard(),
		AwardedPlayer: playerID,
		Points:        points,
	})
	return nil
}

// AdjustScore overwrites a player's absolute score (host correction).
func (r *Room) AdjustScore(playerID string, score int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateEnded {
		return domain.ErrGameEnded
	}
	if err := r.roster.SetScore(playerID, score); err != nil {
		return err
	}
	r.broadcastLocked(LeaderboardUpdate{
		Type:        "leaderboard_update",
		Leaderboard: r.roster.Leaderboard(),
	})
	return nil
}

// SetTimer changes the countdown duration for subsequent questions.
func (r *Room) SetTimer(seconds int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateEnded {
		return domain.ErrGameEnded
	}
	if seconds <= 0 {
		return domain.ErrWrongState
	}
	r.timerSeconds = seconds
	r.toHostLocked(TimerUpdated{Type: "timer_updated", Seconds: seconds})
	return nil
}

// StartMiniGame resets and reopens the race.
func (r *Room) StartMiniGame() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateEnded {
		return domain.ErrGameEnded
	}
	r.minigame.Start()
	for _, p := range r.roster.Players() {
		r.minigame.Track(p.ID)
	}
	r.broadcastLocked(r.miniGameUpdateLocked())
	return nil
}

// EndMiniGame closes the race and announces the winners.
func (r *Room) EndMiniGame() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateEnded {
		return domain.ErrGameEnded
	}
	if !r.minigame.Active() {
		return nil
	}
	r.endMiniGameLocked()
	return nil
}

func (r *Room) endMiniGameLocked() {
	r.minigame.Stop()
	r.broadcastLocked(MiniGameEnded{Type: "mini_game_ended", Winners: r.minigame.Winners()})
}

// KickPlayer removes a player entirely and tells their connection to
// terminate; the name is freed immediately.
func (r *Room) KickPlayer(playerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateEnded {
		return domain.ErrGameEnded
	}
	if _, ok := r.roster.Get(playerID); !ok {
		return domain.ErrPlayerNotFound
	}

	r.toPlayerLocked(playerID, Kicked{Type: "kicked"})
	_ = r.roster.Remove(playerID)
	r.minigame.Forget(playerID)
	r.broadcastLocked(PlayerLeft{
		Type:        "player_left",
		PlayerID:    playerID,
		Leaderboard: r.roster.Leaderboard(),
	})
	r.log.Info().Str("player_id", playerID).Msg("player kicked")
	return nil
}

// LeavePlayer is an explicit leave: full removal, unlike a disconnect.
func (r *Room) LeavePlayer(playerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.roster.Get(playerID); !ok {
		return domain.ErrPlayerNotFound
	}
	_ = r.roster.Remove(playerID)
	r.minigame.Forget(playerID)
	r.broadcastLocked(PlayerLeft{
		Type:        "player_left",
		PlayerID:    playerID,
		Leaderboard: r.roster.Leaderboard(),
	})
	return nil
}

// EndGame freezes all further mutation and broadcasts final standings.
func (r *Room) EndGame() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateEnded {
		return domain.ErrGameEnded
	}
	r.state = StateEnded
	r.stopCountdownLocked()
	r.minigame.Stop()
	r.broadcastLocked(GameEnded{Type: "game_ended", Leaderboard: r.roster.Leaderboard()})
	r.log.Info().Msg("game ended")
	return nil
}

// SubmitAnswer records a player's response to the active multiple-choice
// question. The arrival position is assigned here, under the room lock, so
// concurrent submissions get a total order regardless of client clocks.
func (r *Room) SubmitAnswer(playerID, answer string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateEnded {
		return domain.ErrGameEnded
	}
	if r.state != StateQuestionActive || r.question == nil {
		return domain.ErrNoActiveQuestion
	}
	if r.locked {
		return domain.ErrSubmissionClosed
	}
	if r.question.EffectiveMode() == domain.ModeBuzzer {
		return domain.ErrWrongState
	}
	if _, ok := r.roster.Get(playerID); !ok {
		return domain.ErrPlayerNotFound
	}
	if _, ok := r.submissions[playerID]; ok {
		return domain.ErrAlreadySubmitted
	}

	sub := domain.Submission{
		PlayerID: playerID,
		Answer:   answer,
		Position: len(r.order) + 1,
	}
	r.submissions[playerID] = sub
	r.order = append(r.order, playerID)

	r.toPlayerLocked(playerID, AnswerConfirmed{
		Type:     "answer_confirmed",
		Position: sub.Position,
		Answer:   answer,
	})
	r.toHostLocked(AnswerCountUpdate{
		Type:         "answer_count_update",
		Count:        len(r.order),
		TotalPlayers: r.roster.ConnectedCount(),
	})
	return nil
}

// Buzz routes a buzz either into the legacy buzzer queue (active buzzer-mode
// question) or into the mini-game. Buzzes that fit neither window are
// silently dropped; a party client hammering the button is not an error.
func (r *Room) Buzz(playerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateEnded {
		return domain.ErrGameEnded
	}
	if _, ok := r.roster.Get(playerID); !ok {
		return domain.ErrPlayerNotFound
	}

	if r.state == StateQuestionActive && !r.locked &&
		r.question != nil && r.question.EffectiveMode() == domain.ModeBuzzer {
		return r.questionBuzzLocked(playerID)
	}

	if r.state != StateQuestionActive && r.minigame.Active() {
		r.miniGameBuzzLocked(playerID)
	}
	return nil
}

func (r *Room) questionBuzzLocked(playerID string) error {
	for _, entry := range r.buzzQueue {
		if entry.PlayerID == playerID {
			return domain.ErrAlreadySubmitted
		}
	}

	p, _ := r.roster.Get(playerID)
	entry := domain.BuzzEntry{
		PlayerID: playerID,
		Name:     p.Name,
		Position: len(r.buzzQueue) + 1,
	}
	r.buzzQueue = append(r.buzzQueue, entry)

	r.toPlayerLocked(playerID, BuzzConfirmed{Type: "buzz_confirmed", Position: entry.Position})
	r.toHostLocked(PlayerBuzzed{
		Type:        "player_buzzed",
		Buzz:        entry,
		BuzzerQueue: append([]domain.BuzzEntry(nil), r.buzzQueue...),
	})
	return nil
}

func (r *Room) miniGameBuzzLocked(playerID string) {
	r.minigame.Track(playerID)
	accepted, finishedNow, place := r.minigame.Buzz(playerID)
	if !accepted {
		return
	}

	if finishedNow && place <= miniGameMaxWinners {
		_ = r.roster.AddScore(playerID, miniGameBonus)
		r.toPlayerLocked(playerID, MiniGameBonus{
			Type:           "mini_game_bonus",
			Points:         miniGameBonus,
			FinishPosition: place,
		})
		r.broadcastLocked(LeaderboardUpdate{
			Type:          "leaderboard_update",
			Leaderboard:   r.roster.Leaderboard(),
			AwardedPlayer: playerID,
			Points:        miniGameBonus,
		})
	}
	r.broadcastLocked(r.miniGameUpdateLocked())
}

func (r *Room) submissionsInOrderLocked() []domain.Submission {
	out := make([]domain.Submission, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.submissions[id])
	}
	return out
}

func (r *Room) miniGameSnapshotLocked() domain.MiniGameState {
	names := make(map[string]string)
	for _, p := range r.roster.Players() {
		names[p.ID] = p.Name
	}
	return r.minigame.Snapshot(names)
}

func (r *Room) miniGameUpdateLocked() MiniGameUpdate {
	state := r.miniGameSnapshotLocked()
	return MiniGameUpdate{
		Type:      "mini_game_update",
		Positions: state.Positions,
		Winners:   state.Winners,
	}
}

// Fan-out helpers. Sends are non-blocking: a full sink drops its oldest
// buffered event so a slow or dead connection never stalls the room; such a
// client resynchronizes from the next broadcast it does receive.
func (r *Room) broadcastLocked(ev Event) {
	for s := range r.sinks {
		sendEvent(s, ev)
	}
}

func (r *Room) toHostLocked(ev Event) {
	for s := range r.sinks {
		if s.role == roleHost {
			sendEvent(s, ev)
		}
	}
}

func (r *Room) toPlayersLocked(ev Event) {
	for s := range r.sinks {
		if s.role == rolePlayer {
			sendEvent(s, ev)
		}
	}
}

func (r *Room) toPlayerLocked(playerID string, ev Event) {
	for s := range r.sinks {
		if s.role == rolePlayer && s.playerID == playerID {
			sendEvent(s, ev)
		}
	}
}

func sendEvent(s *sink, ev Event) {
	select {
	case s.ch <- ev:
	default:
		select {
		case <-s.ch:
		default:
		}
		select {
		case s.ch <- ev:
		default:
		}
	}
}
