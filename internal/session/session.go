// Package session runs one match's lifecycle as a single goroutine.
// Vote submissions and timer fires all serialize through the inbox, so a
// match's state is only ever mutated by one logical operation at a time;
// whichever of "last vote" and "timer expiry" reaches the inbox first
// wins, and the loser is rejected by the engine's phase guard.
package session

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"matchmaker-backend/internal/alloc"
	"matchmaker-backend/internal/archive"
	"matchmaker-backend/internal/engine"
	"matchmaker-backend/internal/events"
	"matchmaker-backend/internal/registry"
	"matchmaker-backend/internal/timer"
)

type Msg interface{ isSessionMsg() }

// Command carries an externally triggered engine command; the rejection
// (or nil) is sent on Reply.
type Command struct {
	Cmd   engine.Command
	Reply chan error
}

type GetState struct {
	Reply chan View
}

type Shutdown struct{}

type timerFired struct {
	gen uint64
	cmd engine.CommandType
}

type allocDone struct {
	info engine.ConnectInfo
	err  error
}

func (Command) isSessionMsg()    {}
func (GetState) isSessionMsg()   {}
func (Shutdown) isSessionMsg()   {}
func (timerFired) isSessionMsg() {}
func (allocDone) isSessionMsg()  {}

type View struct {
	MatchID string
	Version int
	State   engine.State
}

type Config struct {
	ReadyTimeout   time.Duration
	VetoTimeout    time.Duration
	ConnectTimeout time.Duration
	AllocAttempts  int
	AllocBackoff   time.Duration
}

// Deps are the collaborators a session shares with the hub.
type Deps struct {
	Bus      *events.Bus
	Registry *registry.Registry
	Alloc    alloc.Allocator
	Recorder archive.Recorder
	Log      *zap.Logger
	// Intn supplies veto randomness; nil means math/rand.
	Intn func(int) int
}

type Session struct {
	id      string
	inbox   chan Msg
	state   engine.State
	version int
	timer   timer.Timer
	cfg     Config
	deps    Deps
	onClose func(matchID string, final View)
	ctx     context.Context
	cancel  context.CancelFunc
}

// New starts the session goroutine and immediately moves the formed match
// into its ready check. onClose receives the terminal view so the owner
// can keep answering queries (and WrongPhase rejections) for the match.
func New(parent context.Context, matchID string, initial engine.State, cfg Config, deps Deps, onClose func(matchID string, final View)) *Session {
	ctx, cancel := context.WithCancel(parent)
	if deps.Intn == nil {
		deps.Intn = rand.Intn
	}
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	if cfg.AllocAttempts < 1 {
		cfg.AllocAttempts = 1
	}
	s := &Session{
		id:      matchID,
		inbox:   make(chan Msg, 64),
		state:   initial,
		cfg:     cfg,
		deps:    deps,
		onClose: onClose,
		ctx:     ctx,
		cancel:  cancel,
	}
	go s.loop()
	return s
}

func (s *Session) Inbox() chan<- Msg { return s.inbox }

func (s *Session) ID() string { return s.id }

func (s *Session) loop() {
	// FORMED is transient: begin the ready check before serving the inbox.
	if err := s.apply(engine.Command{Type: engine.CmdBegin}); err != nil {
		s.deps.Log.Error("begin ready check", zap.String("match_id", s.id), zap.Error(err))
	}

	for {
		select {
		case <-s.ctx.Done():
			s.timer.Cancel()
			return

		case m := <-s.inbox:
			switch msg := m.(type) {
			case Command:
				err := s.apply(msg.Cmd)
				if msg.Reply != nil {
					msg.Reply <- err
				}

			case timerFired:
				// A cancelled timer that still fired: stale generation.
				if msg.gen != s.timer.Gen() {
					break
				}
				// Phase guard in the engine makes a lost race a no-op.
				if err := s.apply(engine.Command{Type: msg.cmd}); err != nil {
					s.deps.Log.Debug("stale timer command dropped",
						zap.String("match_id", s.id), zap.String("cmd", string(msg.cmd)))
				}

			case allocDone:
				var err error
				if msg.err != nil {
					err = s.apply(engine.Command{Type: engine.CmdAllocationFailed})
				} else {
					err = s.apply(engine.Command{Type: engine.CmdAttachConnect, Connect: &msg.info})
				}
				if err != nil {
					s.deps.Log.Debug("stale allocation result dropped",
						zap.String("match_id", s.id), zap.Error(err))
				}

			case GetState:
				msg.Reply <- View{MatchID: s.id, Version: s.version, State: s.state}

			case Shutdown:
				s.timer.Cancel()
				s.cancel()
				return
			}
		}
	}
}

func (s *Session) apply(cmd engine.Command) error {
	evts, next, err := engine.Apply(s.state, cmd, time.Now(), s.deps.Intn)
	if err != nil {
		return err
	}
	s.state = next
	s.version++
	for _, ev := range evts {
		s.react(ev)
	}
	return nil
}

// react handles the side effects of one engine event: timers, registry,
// allocation, archive, and the outbound event stream.
func (s *Session) react(ev engine.Event) {
	participants := engine.Participants(s.state)

	switch ev.Type {
	case engine.EvtReadyCheckStarted:
		s.armTimer(s.cfg.ReadyTimeout, engine.CmdReadyTimeout)

	case engine.EvtVetoStarted:
		s.deps.Registry.SetPhase(participants, registry.StateVeto)
		s.armTimer(s.cfg.VetoTimeout, engine.CmdVetoTimeout)

	case engine.EvtMapResolved:
		s.deps.Registry.SetPhase(participants, registry.StateInMatch)
		s.armTimer(s.cfg.ConnectTimeout, engine.CmdConnectTimeout)
		s.startAllocation(s.state.PickedMap)

	case engine.EvtMatchFinished, engine.EvtMatchCancelled:
		s.timer.Cancel()
		s.archive()
		s.deps.Registry.Release(participants)
	}

	s.publish(ev)

	// The loop keeps serving after a terminal transition (commands get
	// WrongPhase from the engine) until the owner, told via onClose,
	// shuts the session down. That closes the window where a command
	// forwarded to a dead goroutine would never be answered.
	if s.state.Phase.Terminal() && s.onClose != nil {
		s.onClose(s.id, View{MatchID: s.id, Version: s.version, State: s.state})
	}
}

func (s *Session) armTimer(d time.Duration, cmd engine.CommandType) {
	s.timer.Arm(d, func(gen uint64) {
		select {
		case s.inbox <- timerFired{gen: gen, cmd: cmd}:
		case <-s.ctx.Done():
		}
	})
}

// startAllocation asks the external allocator for a server, retrying with
// exponential backoff off the session goroutine. The result re-enters
// through the inbox; the engine rejects it if the match moved on.
func (s *Session) startAllocation(mapID string) {
	go func() {
		backoff := s.cfg.AllocBackoff
		var lastErr error
		for attempt := 0; attempt < s.cfg.AllocAttempts; attempt++ {
			info, err := s.deps.Alloc.Allocate(s.ctx, s.id, mapID)
			if err == nil {
				select {
				case s.inbox <- allocDone{info: info}:
				case <-s.ctx.Done():
				}
				return
			}
			lastErr = err
			s.deps.Log.Warn("server allocation failed",
				zap.String("match_id", s.id), zap.Int("attempt", attempt+1), zap.Error(err))
			select {
			case <-time.After(backoff):
			case <-s.ctx.Done():
				return
			}
			backoff *= 2
		}
		select {
		case s.inbox <- allocDone{err: lastErr}:
		case <-s.ctx.Done():
		}
	}()
}

func (s *Session) archive() {
	sum := archive.Summary{
		MatchID:   s.id,
		Mode:      string(s.state.Mode),
		Outcome:   string(s.state.Phase),
		Reason:    string(s.state.Reason),
		MapID:     s.state.PickedMap,
		TeamA:     s.state.Teams[0],
		TeamB:     s.state.Teams[1],
		CreatedAt: s.state.CreatedAt,
		EndedAt:   time.Now(),
	}
	if err := s.deps.Recorder.Record(sum); err != nil {
		s.deps.Log.Error("archive match", zap.String("match_id", s.id), zap.Error(err))
	}
}

func (s *Session) publish(ev engine.Event) {
	payload := map[string]any{}
	if ev.PlayerID != "" {
		payload["player_id"] = ev.PlayerID
	}
	if ev.MapID != "" {
		payload["map_id"] = ev.MapID
	}
	if ev.Reason != "" {
		payload["reason"] = string(ev.Reason)
	}
	if len(ev.Absent) > 0 {
		payload["absent"] = ev.Absent
	}
	if ev.Type == engine.EvtConnectInfoIssued && s.state.Connect != nil {
		payload["address"] = s.state.Connect.Address
		payload["password"] = s.state.Connect.Password
	}
	s.deps.Bus.Publish(events.Event{
		MatchID:   s.id,
		Phase:     string(s.state.Phase),
		Type:      string(ev.Type),
		Payload:   payload,
		Timestamp: time.Now(),
	})
}
