package engine

import (
	"errors"
	"time"
)

var ErrWrongPhase = errors.New("wrong phase")
var ErrNotInMatch = errors.New("player not in match")
var ErrAlreadyVoted = errors.New("already voted")
var ErrUnknownMap = errors.New("unknown map")
var ErrNotAuthorized = errors.New("not authorized")
var ErrUnsupportedCommand = errors.New("unsupported command")

type Mode string

const (
	ModeWingman Mode = "2v2"
	ModeRanked  Mode = "5v5"
)

// TeamSize reports the per-team player count for a mode.
func (m Mode) TeamSize() (int, bool) {
	switch m {
	case ModeWingman:
		return 2, true
	case ModeRanked:
		return 5, true
	default:
		return 0, false
	}
}

type Phase string

const (
	PhaseFormed     Phase = "formed"
	PhaseReadyCheck Phase = "ready_check"
	PhaseVeto       Phase = "veto"
	PhaseConnect    Phase = "connect"
	PhaseFinished   Phase = "finished"
	PhaseCancelled  Phase = "cancelled"
)

// Terminal reports whether no further transitions are possible.
func (p Phase) Terminal() bool {
	return p == PhaseFinished || p == PhaseCancelled
}

type CancelReason string

const (
	ReasonNotAllReady      CancelReason = "NotAllReady"
	ReasonManualCancel     CancelReason = "ManualCancel"
	ReasonAllocationFailed CancelReason = "AllocationFailed"
	ReasonConnectTimeout   CancelReason = "ConnectTimeout"
)

type Ballot struct {
	MapID  string
	CastAt time.Time
}

type ConnectInfo struct {
	Address  string
	Password string
	MapID    string
	IssuedAt time.Time
}

// State is one match's full lifecycle state. It is owned by a single
// session goroutine; Apply copies the maps it mutates so broadcast
// snapshots never share mutable storage with live state.
type State struct {
	Phase      Phase
	Mode       Mode
	Teams      [2][]string
	MapPool    []string
	ReadyVotes map[string]time.Time
	Ballots    map[string]Ballot
	PickedMap  string
	Connect    *ConnectInfo
	Reason     CancelReason
	CreatedAt  time.Time
}

type CommandType string

const (
	CmdBegin            CommandType = "Begin"
	CmdSubmitReady      CommandType = "SubmitReady"
	CmdDeclineReady     CommandType = "DeclineReady"
	CmdReadyTimeout     CommandType = "ReadyTimeout"
	CmdCastVote         CommandType = "CastVote"
	CmdVetoTimeout      CommandType = "VetoTimeout"
	CmdAttachConnect    CommandType = "AttachConnect"
	CmdAllocationFailed CommandType = "AllocationFailed"
	CmdConnectTimeout   CommandType = "ConnectTimeout"
	CmdFinishMatch      CommandType = "FinishMatch"
)

type Command struct {
	Type     CommandType
	PlayerID string
	MapID    string
	Connect  *ConnectInfo
}

type EventType string

const (
	EvtReadyCheckStarted EventType = "ReadyCheckStarted"
	EvtReadyRecorded     EventType = "ReadyRecorded"
	EvtVetoStarted       EventType = "VetoStarted"
	EvtVoteRecorded      EventType = "VoteRecorded"
	EvtMapResolved       EventType = "MapResolved"
	EvtConnectInfoIssued EventType = "ConnectInfoIssued"
	EvtMatchFinished     EventType = "MatchFinished"
	EvtMatchCancelled    EventType = "MatchCancelled"
)

type Event struct {
	Type     EventType
	PlayerID string
	MapID    string
	Reason   CancelReason
	// Absent lists participants with no accepted ready vote at the
	// moment of a ready-check cancellation; a penalty policy consumes it.
	Absent []string
}

// Apply runs one command against the state machine. It returns the events
// produced, the successor state, and an error when the command is rejected
// (rejected commands leave the state untouched). intn supplies randomness
// for veto tie-breaks and must behave like rand.Intn.
func Apply(s State, cmd Command, now time.Time, intn func(int) int) ([]Event, State, error) {
	switch cmd.Type {

	case CmdBegin:
		if s.Phase != PhaseFormed {
			return nil, s, ErrWrongPhase
		}
		next := s
		next.Phase = PhaseReadyCheck
		next.ReadyVotes = map[string]time.Time{}
		return []Event{{Type: EvtReadyCheckStarted}}, next, nil

	case CmdSubmitReady:
		if s.Phase != PhaseReadyCheck {
			return nil, s, ErrWrongPhase
		}
		if !isParticipant(s, cmd.PlayerID) {
			return nil, s, ErrNotInMatch
		}
		if _, dup := s.ReadyVotes[cmd.PlayerID]; dup {
			return nil, s, ErrAlreadyVoted
		}
		next := s
		next.ReadyVotes = cloneVotes(s.ReadyVotes)
		next.ReadyVotes[cmd.PlayerID] = now
		events := []Event{{Type: EvtReadyRecorded, PlayerID: cmd.PlayerID}}

		// All accepted: advance immediately, do not wait out the clock.
		if len(next.ReadyVotes) == len(Participants(s)) {
			next.Phase = PhaseVeto
			next.ReadyVotes = map[string]time.Time{}
			next.Ballots = map[string]Ballot{}
			events = append(events, Event{Type: EvtVetoStarted})
		}
		return events, next, nil

	case CmdDeclineReady:
		if s.Phase != PhaseReadyCheck {
			return nil, s, ErrWrongPhase
		}
		if !isParticipant(s, cmd.PlayerID) {
			return nil, s, ErrNotInMatch
		}
		return cancel(s, ReasonManualCancel)

	case CmdReadyTimeout:
		if s.Phase != PhaseReadyCheck {
			return nil, s, ErrWrongPhase
		}
		return cancel(s, ReasonNotAllReady)

	case CmdCastVote:
		if s.Phase != PhaseVeto {
			return nil, s, ErrWrongPhase
		}
		if !isParticipant(s, cmd.PlayerID) {
			return nil, s, ErrNotInMatch
		}
		if !mapInPool(s, cmd.MapID) {
			return nil, s, ErrUnknownMap
		}
		next := s
		next.Ballots = cloneBallots(s.Ballots)
		// A repeat ballot overwrites: the ballot stays live until resolution.
		next.Ballots[cmd.PlayerID] = Ballot{MapID: cmd.MapID, CastAt: now}
		events := []Event{{Type: EvtVoteRecorded, PlayerID: cmd.PlayerID, MapID: cmd.MapID}}

		if len(next.Ballots) == len(Participants(s)) {
			resolved, evts := resolveVeto(next, intn)
			return append(events, evts...), resolved, nil
		}
		return events, next, nil

	case CmdVetoTimeout:
		if s.Phase != PhaseVeto {
			return nil, s, ErrWrongPhase
		}
		next, events := resolveVeto(s, intn)
		return events, next, nil

	case CmdAttachConnect:
		if s.Phase != PhaseConnect || s.Connect != nil {
			return nil, s, ErrWrongPhase
		}
		next := s
		info := *cmd.Connect
		info.MapID = s.PickedMap
		info.IssuedAt = now
		next.Connect = &info
		return []Event{{Type: EvtConnectInfoIssued, MapID: info.MapID}}, next, nil

	case CmdAllocationFailed:
		if s.Phase != PhaseConnect || s.Connect != nil {
			return nil, s, ErrWrongPhase
		}
		return cancel(s, ReasonAllocationFailed)

	case CmdConnectTimeout:
		if s.Phase != PhaseConnect {
			return nil, s, ErrWrongPhase
		}
		return cancel(s, ReasonConnectTimeout)

	case CmdFinishMatch:
		if s.Phase != PhaseConnect {
			return nil, s, ErrWrongPhase
		}
		if !isParticipant(s, cmd.PlayerID) {
			return nil, s, ErrNotInMatch
		}
		if cmd.PlayerID != Host(s) {
			return nil, s, ErrNotAuthorized
		}
		next := s
		next.Phase = PhaseFinished
		next.Connect = nil
		return []Event{{Type: EvtMatchFinished, PlayerID: cmd.PlayerID}}, next, nil

	default:
		return nil, s, ErrUnsupportedCommand
	}
}

func cancel(s State, reason CancelReason) ([]Event, State, error) {
	next := s
	next.Phase = PhaseCancelled
	next.Reason = reason
	next.Connect = nil
	ev := Event{Type: EvtMatchCancelled, Reason: reason}
	if s.Phase == PhaseReadyCheck {
		ev.Absent = notAccepted(s)
	}
	return []Event{ev}, next, nil
}
