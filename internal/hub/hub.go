// Package hub owns the wait queue and all live match sessions. A single
// goroutine serves a typed-message inbox and the matchmaker tick, so the
// queue and the session map need no locks.
package hub

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"matchmaker-backend/internal/engine"
	"matchmaker-backend/internal/events"
	"matchmaker-backend/internal/queue"
	"matchmaker-backend/internal/registry"
	"matchmaker-backend/internal/session"
)

type Msg interface{ isHubMsg() }

type EnqueueParty struct {
	Members []string
	Ratings map[string]float64
	Mode    engine.Mode
	Reply   chan EnqueueReply
}

type EnqueueReply struct {
	PartyID string
	Err     error
}

type DequeueParty struct {
	PartyID string
	Reply   chan error
}

// MatchCommand routes an engine command to a match. The session answers
// on Reply directly; archived (terminal) matches answer WrongPhase and
// unknown ids answer NotInMatch.
type MatchCommand struct {
	MatchID string
	Cmd     engine.Command
	Reply   chan error
}

type GetMatch struct {
	MatchID string
	Reply   chan *session.View
}

type Shutdown struct{}

type sessionClosed struct {
	matchID string
	final   session.View
}

func (EnqueueParty) isHubMsg()  {}
func (DequeueParty) isHubMsg()  {}
func (MatchCommand) isHubMsg()  {}
func (GetMatch) isHubMsg()      {}
func (Shutdown) isHubMsg()      {}
func (sessionClosed) isHubMsg() {}

type Config struct {
	TickInterval time.Duration
	MapPool      []string
	Modes        []engine.Mode
	Session      session.Config
}

type Hub struct {
	inbox    chan Msg
	queue    *queue.Queue
	sessions map[string]*session.Session
	archived map[string]session.View
	ratings  queue.RatingProvider
	reg      *registry.Registry
	bus      *events.Bus
	deps     session.Deps
	cfg      Config
	log      *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewHub(parent context.Context, cfg Config, reg *registry.Registry, ratings queue.RatingProvider, deps session.Deps) *Hub {
	ctx, cancel := context.WithCancel(parent)
	if len(cfg.Modes) == 0 {
		cfg.Modes = []engine.Mode{engine.ModeWingman, engine.ModeRanked}
	}
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	h := &Hub{
		inbox:    make(chan Msg, 64),
		queue:    queue.NewQueue(),
		sessions: map[string]*session.Session{},
		archived: map[string]session.View{},
		ratings:  ratings,
		reg:      reg,
		bus:      deps.Bus,
		deps:     deps,
		cfg:      cfg,
		log:      deps.Log,
		ctx:      ctx,
		cancel:   cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- Msg { return h.inbox }

func (h *Hub) loop() {
	ticker := time.NewTicker(h.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case <-ticker.C:
			h.formMatches(time.Now())

		case m := <-h.inbox:
			switch msg := m.(type) {
			case EnqueueParty:
				msg.Reply <- h.enqueue(msg)

			case DequeueParty:
				msg.Reply <- h.dequeue(msg.PartyID)

			case MatchCommand:
				if sess, ok := h.sessions[msg.MatchID]; ok {
					sess.Inbox() <- session.Command{Cmd: msg.Cmd, Reply: msg.Reply}
					break
				}
				if _, ok := h.archived[msg.MatchID]; ok {
					msg.Reply <- engine.ErrWrongPhase
					break
				}
				msg.Reply <- engine.ErrNotInMatch

			case GetMatch:
				if sess, ok := h.sessions[msg.MatchID]; ok {
					// Bridge the session's reply off the hub goroutine.
					inner := make(chan session.View, 1)
					sess.Inbox() <- session.GetState{Reply: inner}
					go func(out chan *session.View) {
						v := <-inner
						out <- &v
					}(msg.Reply)
					break
				}
				if v, ok := h.archived[msg.MatchID]; ok {
					msg.Reply <- &v
					break
				}
				msg.Reply <- nil

			case sessionClosed:
				if sess, ok := h.sessions[msg.matchID]; ok {
					sess.Inbox() <- session.Shutdown{}
					delete(h.sessions, msg.matchID)
				}
				h.archived[msg.matchID] = msg.final

			case Shutdown:
				h.shutdown()
				h.cancel()
				return
			}
		}
	}
}

func (h *Hub) shutdown() {
	for _, sess := range h.sessions {
		sess.Inbox() <- session.Shutdown{}
	}
	clear(h.sessions)
}

func (h *Hub) enqueue(msg EnqueueParty) EnqueueReply {
	for id, rating := range msg.Ratings {
		h.reg.SetRating(id, rating)
	}
	party, err := queue.NewParty(msg.Members, msg.Mode, time.Now())
	if err != nil {
		return EnqueueReply{Err: err}
	}
	if err := h.reg.BeginQueue(party.ID, party.Members); err != nil {
		return EnqueueReply{Err: err}
	}
	if err := h.queue.Enqueue(party); err != nil {
		h.reg.EndQueue(party.Members)
		return EnqueueReply{Err: err}
	}
	h.log.Info("party queued",
		zap.String("party_id", party.ID),
		zap.String("mode", string(party.Mode)),
		zap.Int("size", len(party.Members)))
	return EnqueueReply{PartyID: party.ID}
}

func (h *Hub) dequeue(partyID string) error {
	party, err := h.queue.Dequeue(partyID)
	if err != nil {
		return err
	}
	h.reg.EndQueue(party.Members)
	h.log.Info("party dequeued", zap.String("party_id", partyID))
	return nil
}

// formMatches runs one matchmaker tick: per mode, keep pulling compatible
// party sets until none remain.
func (h *Hub) formMatches(now time.Time) {
	for _, mode := range h.cfg.Modes {
		teamSize, ok := mode.TeamSize()
		if !ok {
			continue
		}
		for {
			waiting := h.queue.Waiting(mode)
			if len(waiting) == 0 {
				break
			}
			ratings, err := h.fetchRatings(waiting)
			if err != nil {
				// Provider outage: skip this tick, the next one retries.
				h.log.Warn("rating lookup failed", zap.String("mode", string(mode)), zap.Error(err))
				break
			}
			res, found := queue.FindMatch(waiting, teamSize, ratings)
			if !found {
				if wait := h.queue.OldestWait(mode, now); wait > 0 {
					h.log.Debug("no combination this tick",
						zap.String("mode", string(mode)),
						zap.Duration("queue_wait_time", wait))
				}
				break
			}
			h.startMatch(mode, res, now)
		}
	}
}

func (h *Hub) fetchRatings(parties []*queue.Party) (map[string]float64, error) {
	ratings := map[string]float64{}
	for _, p := range parties {
		for _, id := range p.Members {
			r, err := h.ratings.Rating(id)
			if err != nil {
				return nil, err
			}
			ratings[id] = r
		}
	}
	return ratings, nil
}

func (h *Hub) startMatch(mode engine.Mode, res queue.Result, now time.Time) {
	matchID := uuid.NewString()
	h.queue.Consume(res.Parties)

	participants := append(append([]string{}, res.TeamA...), res.TeamB...)
	h.reg.BeginMatch(matchID, participants)

	state := engine.NewState(mode, res.TeamA, res.TeamB, h.cfg.MapPool, now)
	sess := session.New(h.ctx, matchID, state, h.cfg.Session, h.deps, func(id string, final session.View) {
		select {
		case h.inbox <- sessionClosed{matchID: id, final: final}:
		case <-h.ctx.Done():
		}
	})
	h.sessions[matchID] = sess

	h.bus.Publish(events.Event{
		MatchID: matchID,
		Phase:   string(engine.PhaseReadyCheck),
		Type:    "MatchFound",
		Payload: map[string]any{
			"mode":   string(mode),
			"team_a": res.TeamA,
			"team_b": res.TeamB,
		},
		Timestamp: now,
	})
	h.log.Info("match formed",
		zap.String("match_id", matchID),
		zap.String("mode", string(mode)),
		zap.Int("parties", len(res.Parties)))
}
