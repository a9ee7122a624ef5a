package app

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"quiznight-service/internal/domain"
)

const maxNameLength = 24

// Roster tracks player identity, score and connectivity for one room.
// Player ids survive transport loss: a join with the name of a disconnected
// player restores that player instead of creating a new one. Not safe for
// concurrent use; the owning room serializes access.
type Roster struct {
	players map[string]*domain.Player
	joinSeq map[string]int
	nextSeq int
	newID   func() string
}

func NewRoster() *Roster {
	return &Roster{
		players: make(map[string]*domain.Player),
		joinSeq: make(map[string]int),
		newID:   uuid.NewString,
	}
}

// Join admits a new player, or re-admits the disconnected player whose name
// matches (case-insensitively). Names held by connected players are rejected.
// The second return value reports whether this was a reconnection.
func (r *Roster) Join(name string) (domain.Player, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > maxNameLength {
		return domain.Player{}, false, domain.ErrNameInvalid
	}

	for _, p := range r.players {
		if !strings.EqualFold(p.Name, name) {
			continue
		}
		if p.Connected {
			return domain.Player{}, false, domain.ErrNameTaken
		}
		p.Connected = true
		return *p, true, nil
	}

	p := &domain.Player{
		ID:        r.newID(),
		Name:      name,
		Connected: true,
	}
	r.players[p.ID] = p
	r.joinSeq[p.ID] = r.nextSeq
	r.nextSeq++
	return *p, false, nil
}

// Get returns a snapshot of one player.
func (r *Roster) Get(id string) (domain.Player, bool) {
	p, ok := r.players[id]
	if !ok {
		return domain.Player{}, false
	}
	return *p, true
}

// Disconnect marks a player as disconnected without freeing their name,
// score or rank.
func (r *Roster) Disconnect(id string) error {
	p, ok := r.players[id]
	if !ok {
		return domain.ErrPlayerNotFound
	}
	p.Connected = false
	return nil
}

// Remove deletes a player entirely, freeing their name immediately.
func (r *Roster) Remove(id string) error {
	if _, ok := r.players[id]; !ok {
		return domain.ErrPlayerNotFound
	}
	delete(r.players, id)
	delete(r.joinSeq, id)
	return nil
}

// AddScore applies a point delta; scores may go negative.
func (r *Roster) AddScore(id string, delta int) error {
	p, ok := r.players[id]
	if !ok {
		return domain.ErrPlayerNotFound
	}
	p.Score += delta
	return nil
}

// SetScore overwrites a player's absolute score.
func (r *Roster) SetScore(id string, score int) error {
	p, ok := r.players[id]
	if !ok {
		return domain.ErrPlayerNotFound
	}
	p.Score = score
	return nil
}

// Players returns all players, connected or not, in join order.
func (r *Roster) Players() []domain.Player {
	out := make([]domain.Player, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		return r.joinSeq[out[i].ID] < r.joinSeq[out[j].ID]
	})
	return out
}

// Leaderboard returns all players ordered by score descending, ties broken
// by join order, with Position filled in starting at 1.
func (r *Roster) Leaderboard() []domain.Player {
	out := r.Players()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	for i := range out {
		out[i].Position = i + 1
	}
	return out
}

// Position returns a player's current leaderboard rank.
func (r *Roster) Position(id string) int {
	for _, p := range r.Leaderboard() {
		if p.ID == id {
			return p.Position
		}
	}
	return 0
}

// ConnectedCount counts currently connected players.
func (r *Roster) ConnectedCount() int {
	n := 0
	for _, p := range r.players {
		if p.Connected {
			n++
		}
	}
	return n
}

// Len counts all players, including disconnected ones.
func (r *Roster) Len() int {
	return len(r.players)
}
