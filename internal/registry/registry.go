// Package registry tracks player lifecycle state and current party/match
// pointers. It is the one piece of state touched by the hub and by every
// match session, so it carries its own lock instead of living inside an
// actor loop.
package registry

import (
	"errors"
	"sync"

	"matchmaker-backend/internal/queue"
)

// DefaultRating seeds players the rating provider has never seen.
const DefaultRating = 1000

var ErrUnknownPlayer = errors.New("unknown player")

type PlayerState string

const (
	StateIdle       PlayerState = "idle"
	StateQueued     PlayerState = "queued"
	StateReadyCheck PlayerState = "ready_check"
	StateVeto       PlayerState = "veto"
	StateInMatch    PlayerState = "in_match"
)

type Player struct {
	ID      string
	Rating  float64
	State   PlayerState
	PartyID string
	MatchID string
}

type Registry struct {
	mu      sync.RWMutex
	players map[string]*Player
}

func New() *Registry {
	return &Registry{players: map[string]*Player{}}
}

// SetRating upserts a player's rating without touching lifecycle state.
func (r *Registry) SetRating(id string, rating float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.ensureLocked(id)
	p.Rating = rating
}

// Rating implements queue.RatingProvider.
func (r *Registry) Rating(id string) (float64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.players[id]
	if !ok {
		return 0, ErrUnknownPlayer
	}
	return p.Rating, nil
}

func (r *Registry) Get(id string) (Player, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.players[id]
	if !ok {
		return Player{}, false
	}
	return *p, true
}

// BeginQueue marks all members queued under a party. Fails with
// AlreadyQueued if any member is not idle; no member is modified on
// failure.
func (r *Registry) BeginQueue(partyID string, members []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range members {
		if p, ok := r.players[id]; ok && p.State != StateIdle {
			return queue.ErrAlreadyQueued
		}
	}
	for _, id := range members {
		p := r.ensureLocked(id)
		p.State = StateQueued
		p.PartyID = partyID
	}
	return nil
}

// EndQueue returns dequeued members to idle.
func (r *Registry) EndQueue(members []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range members {
		if p, ok := r.players[id]; ok {
			p.State = StateIdle
			p.PartyID = ""
		}
	}
}

// BeginMatch points members at a formed match; their parties are consumed.
func (r *Registry) BeginMatch(matchID string, members []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range members {
		p := r.ensureLocked(id)
		p.State = StateReadyCheck
		p.PartyID = ""
		p.MatchID = matchID
	}
}

// SetPhase moves participants between in-match lifecycle states.
func (r *Registry) SetPhase(members []string, state PlayerState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range members {
		if p, ok := r.players[id]; ok {
			p.State = state
		}
	}
}

// Release returns participants to idle when their match reaches a
// terminal phase; they become re-enqueue-eligible.
func (r *Registry) Release(members []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range members {
		if p, ok := r.players[id]; ok {
			p.State = StateIdle
			p.MatchID = ""
			p.PartyID = ""
		}
	}
}

func (r *Registry) ensureLocked(id string) *Player {
	p, ok := r.players[id]
	if !ok {
		p = &Player{ID: id, Rating: DefaultRating, State: StateIdle}
		r.players[id] = p
	}
	return p
}
