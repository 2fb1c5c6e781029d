package queue

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"matchmaker-backend/internal/engine"
)

var ErrAlreadyQueued = errors.New("already queued")
var ErrInvalidPartySize = errors.New("invalid party size")
var ErrNotQueued = errors.New("party not queued")
var ErrUnknownMode = errors.New("unknown mode")

// Party is a group of players waiting together. It exists only while
// queued: it is created on the queue-join request and destroyed when the
// party is dequeued, disbanded, or consumed by a formed match.
type Party struct {
	ID       string
	Members  []string
	Mode     engine.Mode
	QueuedAt time.Time
}

// NewParty validates the request and mints a party id.
func NewParty(members []string, mode engine.Mode, now time.Time) (*Party, error) {
	teamSize, ok := mode.TeamSize()
	if !ok {
		return nil, ErrUnknownMode
	}
	if len(members) == 0 || len(members) > teamSize {
		return nil, ErrInvalidPartySize
	}
	return &Party{
		ID:       uuid.NewString(),
		Members:  members,
		Mode:     mode,
		QueuedAt: now,
	}, nil
}

// Queue holds waiting parties in FIFO order. It is owned by the hub
// goroutine and needs no locking of its own.
type Queue struct {
	parties []*Party
	byID    map[string]*Party
}

func NewQueue() *Queue {
	return &Queue{byID: map[string]*Party{}}
}

func (q *Queue) Enqueue(p *Party) error {
	if _, dup := q.byID[p.ID]; dup {
		return ErrAlreadyQueued
	}
	q.parties = append(q.parties, p)
	q.byID[p.ID] = p
	return nil
}

func (q *Queue) Dequeue(partyID string) (*Party, error) {
	p, ok := q.byID[partyID]
	if !ok {
		return nil, ErrNotQueued
	}
	q.remove(p)
	return p, nil
}

// Consume removes parties that were pulled into a formed match.
func (q *Queue) Consume(parties []*Party) {
	for _, p := range parties {
		q.remove(p)
	}
}

func (q *Queue) remove(p *Party) {
	delete(q.byID, p.ID)
	for i, cur := range q.parties {
		if cur.ID == p.ID {
			q.parties = append(q.parties[:i], q.parties[i+1:]...)
			return
		}
	}
}

// Waiting returns parties for a mode, longest-queued first.
func (q *Queue) Waiting(mode engine.Mode) []*Party {
	var out []*Party
	for _, p := range q.parties {
		if p.Mode == mode {
			out = append(out, p)
		}
	}
	return out
}

func (q *Queue) Len() int { return len(q.parties) }

// OldestWait reports how long the head of the mode's queue has been
// waiting. Exposed for monitoring: a party whose size never combines
// shows up here growing without bound.
func (q *Queue) OldestWait(mode engine.Mode, now time.Time) time.Duration {
	for _, p := range q.parties {
		if p.Mode == mode {
			return now.Sub(p.QueuedAt)
		}
	}
	return 0
}
