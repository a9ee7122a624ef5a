package app

import (
	"time"

	"github.com/jonboulle/clockwork"

	"quiznight-service/internal/domain"
)

// Boat race tunables. The race runs from 0 to the finish line; the first two
// finishers earn a score bonus.
const (
	miniGameStep       = 10.0
	miniGameFinishLine = 100.0
	miniGameMaxWinners = 2
	miniGameBonus      = 50
	// Inputs arriving faster than this per player are dropped to dampen
	// client-side flooding.
	miniGameMinGap = 100 * time.Millisecond
)

// MiniGame is the auxiliary progress race. It is independent of the question
// state machine and carries its own invariants: progress never decreases, and
// a finished player is frozen. Not safe for concurrent use; the owning room
// serializes access.
type MiniGame struct {
	clock     clockwork.Clock
	active    bool
	positions map[string]float64
	finished  map[string]bool
	order     []string // finish order
	lastInput map[string]time.Time
}

// NewMiniGame returns a running race; it stays active until the host ends it
// or the first question starts.
func NewMiniGame(clock clockwork.Clock) *MiniGame {
	m := &MiniGame{clock: clock}
	m.reset()
	m.active = true
	return m
}

func (m *MiniGame) reset() {
	m.positions = make(map[string]float64)
	m.finished = make(map[string]bool)
	m.order = nil
	m.lastInput = make(map[string]time.Time)
}

func (m *MiniGame) Active() bool {
	return m.active
}

// Start resets all progress and reopens the race.
func (m *MiniGame) Start() {
	m.reset()
	m.active = true
}

// Stop closes the race; further inputs are ignored.
func (m *MiniGame) Stop() {
	m.active = false
}

// Track registers a racer at the starting line if not already present.
func (m *MiniGame) Track(playerID string) {
	if !m.active {
		return
	}
	if _, ok := m.positions[playerID]; !ok {
		m.positions[playerID] = 0
	}
}

// Forget drops a racer entirely (player kicked or left).
func (m *MiniGame) Forget(playerID string) {
	delete(m.positions, playerID)
	delete(m.lastInput, playerID)
}

// Buzz advances a racer by one step. It reports whether the input changed any
// state, whether the racer just crossed the finish line, and their finish
// place. Inputs for finished racers and inputs inside the minimum spacing
// window are no-ops.
func (m *MiniGame) Buzz(playerID string) (accepted bool, finishedNow bool, place int) {
	if !m.active || m.finished[playerID] {
		return false, false, 0
	}

	now := m.clock.Now()
	if last, ok := m.lastInput[playerID]; ok && now.Sub(last) < miniGameMinGap {
		return false, false, 0
	}
	m.lastInput[playerID] = now

	pos := m.positions[playerID] + miniGameStep
	if pos > miniGameFinishLine {
		pos = miniGameFinishLine
	}
	m.positions[playerID] = pos

	if pos >= miniGameFinishLine {
		m.finished[playerID] = true
		m.order = append(m.order, playerID)
		return true, true, len(m.order)
	}
	return true, false, 0
}

// Winners returns the first finishers, capped at the winner limit.
func (m *MiniGame) Winners() []string {
	if len(m.order) <= miniGameMaxWinners {
		return append([]string(nil), m.order...)
	}
	return append([]string(nil), m.order[:miniGameMaxWinners]...)
}

// Snapshot builds the broadcastable race state; racers without a roster name
// (kicked mid-race) are omitted.
func (m *MiniGame) Snapshot(names map[string]string) domain.MiniGameState {
	positions := make(map[string]domain.MiniGamePosition, len(m.positions))
	for id, pos := range m.positions {
		name, ok := names[id]
		if !ok {
			continue
		}
		positions[id] = domain.MiniGamePosition{
			Name:     name,
			Position: pos,
			Finished: m.finished[id],
		}
	}
	return domain.MiniGameState{
		Positions: positions,
		Winners:   m.Winners(),
	}
}
