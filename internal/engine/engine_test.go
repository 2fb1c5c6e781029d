package engine

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testPool = []string{"dust2", "mirage", "inferno", "nuke"}

func ranked5v5(t *testing.T) State {
	t.Helper()
	teamA := []string{"p1", "p2", "p3", "p4", "p5"}
	teamB := []string{"p6", "p7", "p8", "p9", "p10"}
	return NewState(ModeRanked, teamA, teamB, testPool, time.Now())
}

func mustApply(t *testing.T, s State, cmd Command) ([]Event, State) {
	t.Helper()
	events, next, err := Apply(s, cmd, time.Now(), rand.Intn)
	require.NoError(t, err)
	return events, next
}

func begin(t *testing.T, s State) State {
	t.Helper()
	_, next := mustApply(t, s, Command{Type: CmdBegin})
	return next
}

func TestBegin_MovesFormedToReadyCheck(t *testing.T) {
	s := ranked5v5(t)
	require.Equal(t, PhaseFormed, s.Phase)

	events, next := mustApply(t, s, Command{Type: CmdBegin})
	assert.Equal(t, PhaseReadyCheck, next.Phase)
	assert.True(t, ContainsEvent(events, EvtReadyCheckStarted))

	_, _, err := Apply(next, Command{Type: CmdBegin}, time.Now(), rand.Intn)
	assert.ErrorIs(t, err, ErrWrongPhase)
}

func TestReadyCheck_AllAcceptedAdvancesImmediately(t *testing.T) {
	s := begin(t, ranked5v5(t))

	for i, id := range Participants(s) {
		events, next := mustApply(t, s, Command{Type: CmdSubmitReady, PlayerID: id})
		s = next
		if i < 9 {
			assert.Equal(t, PhaseReadyCheck, s.Phase, "player %s", id)
			assert.False(t, ContainsEvent(events, EvtVetoStarted))
		} else {
			assert.Equal(t, PhaseVeto, s.Phase)
			assert.True(t, ContainsEvent(events, EvtVetoStarted))
		}
	}
	// Ready votes are cleared once the phase is left.
	assert.Empty(t, s.ReadyVotes)
}

func TestReadyCheck_Rejections(t *testing.T) {
	s := begin(t, ranked5v5(t))

	_, _, err := Apply(s, Command{Type: CmdSubmitReady, PlayerID: "stranger"}, time.Now(), rand.Intn)
	assert.ErrorIs(t, err, ErrNotInMatch)

	_, s = mustApply(t, s, Command{Type: CmdSubmitReady, PlayerID: "p1"})
	_, _, err = Apply(s, Command{Type: CmdSubmitReady, PlayerID: "p1"}, time.Now(), rand.Intn)
	assert.ErrorIs(t, err, ErrAlreadyVoted)
}

func TestReadyCheck_TimeoutCancelsWithAbsentees(t *testing.T) {
	s := begin(t, ranked5v5(t))
	_, s = mustApply(t, s, Command{Type: CmdSubmitReady, PlayerID: "p1"})
	_, s = mustApply(t, s, Command{Type: CmdSubmitReady, PlayerID: "p2"})

	events, next := mustApply(t, s, Command{Type: CmdReadyTimeout})
	require.Equal(t, PhaseCancelled, next.Phase)
	assert.Equal(t, ReasonNotAllReady, next.Reason)

	require.Len(t, events, 1)
	assert.Len(t, events[0].Absent, 8)
	assert.NotContains(t, events[0].Absent, "p1")
	assert.NotContains(t, events[0].Absent, "p2")

	// The loser of the timer/vote race is a no-op.
	_, _, err := Apply(next, Command{Type: CmdReadyTimeout}, time.Now(), rand.Intn)
	assert.ErrorIs(t, err, ErrWrongPhase)
	_, _, err = Apply(next, Command{Type: CmdSubmitReady, PlayerID: "p3"}, time.Now(), rand.Intn)
	assert.ErrorIs(t, err, ErrWrongPhase)
}

func TestReadyCheck_DeclineCancelsImmediately(t *testing.T) {
	s := begin(t, ranked5v5(t))

	events, next := mustApply(t, s, Command{Type: CmdDeclineReady, PlayerID: "p7"})
	assert.Equal(t, PhaseCancelled, next.Phase)
	assert.Equal(t, ReasonManualCancel, next.Reason)
	assert.True(t, ContainsEvent(events, EvtMatchCancelled))
}

func toVeto(t *testing.T, s State) State {
	t.Helper()
	s = begin(t, s)
	for _, id := range Participants(s) {
		_, s = mustApply(t, s, Command{Type: CmdSubmitReady, PlayerID: id})
	}
	require.Equal(t, PhaseVeto, s.Phase)
	return s
}

func TestVeto_OverwriteKeepsLastVote(t *testing.T) {
	s := toVeto(t, ranked5v5(t))

	_, s = mustApply(t, s, Command{Type: CmdCastVote, PlayerID: "p1", MapID: "dust2"})
	_, s = mustApply(t, s, Command{Type: CmdCastVote, PlayerID: "p1", MapID: "mirage"})

	require.Len(t, s.Ballots, 1)
	assert.Equal(t, "mirage", s.Ballots["p1"].MapID)
}

func TestVeto_Rejections(t *testing.T) {
	s := toVeto(t, ranked5v5(t))

	_, _, err := Apply(s, Command{Type: CmdCastVote, PlayerID: "stranger", MapID: "dust2"}, time.Now(), rand.Intn)
	assert.ErrorIs(t, err, ErrNotInMatch)
	_, _, err = Apply(s, Command{Type: CmdCastVote, PlayerID: "p1", MapID: "vertigo"}, time.Now(), rand.Intn)
	assert.ErrorIs(t, err, ErrUnknownMap)
}

func TestVeto_PluralityWins(t *testing.T) {
	s := toVeto(t, ranked5v5(t))

	votes := map[string]string{
		"p1": "mirage", "p2": "mirage", "p3": "mirage", "p4": "mirage",
		"p5": "mirage", "p6": "mirage", "p7": "dust2", "p8": "dust2",
		"p9": "dust2",
	}
	for id, m := range votes {
		_, s = mustApply(t, s, Command{Type: CmdCastVote, PlayerID: id, MapID: m})
	}
	// Last participant's ballot completes the vote and resolves it.
	events, next := mustApply(t, s, Command{Type: CmdCastVote, PlayerID: "p10", MapID: "dust2"})
	require.Equal(t, PhaseConnect, next.Phase)
	assert.Equal(t, "mirage", next.PickedMap)
	assert.True(t, ContainsEvent(events, EvtMapResolved))
}

func TestVeto_TieBreakUniformAmongLeaders(t *testing.T) {
	base := toVeto(t, ranked5v5(t))
	// {mirage:4, dust2:4, inferno:2} among 10 players.
	votes := map[string]string{
		"p1": "mirage", "p2": "mirage", "p3": "mirage", "p4": "mirage",
		"p5": "dust2", "p6": "dust2", "p7": "dust2", "p8": "dust2",
		"p9": "inferno", "p10": "inferno",
	}
	for id, m := range votes {
		_, base = mustApply(t, base, Command{Type: CmdCastVote, PlayerID: id, MapID: m})
	}

	rng := rand.New(rand.NewSource(1))
	counts := map[string]int{}
	const trials = 2000
	for i := 0; i < trials; i++ {
		_, next, err := Apply(base, Command{Type: CmdVetoTimeout}, time.Now(), rng.Intn)
		require.NoError(t, err)
		counts[next.PickedMap]++
	}

	assert.Zero(t, counts["inferno"], "a trailing map must never win")
	assert.InDelta(t, trials/2, counts["mirage"], trials/10)
	assert.InDelta(t, trials/2, counts["dust2"], trials/10)
}

func TestVeto_NoVotesPicksUniformlyFromPool(t *testing.T) {
	base := toVeto(t, ranked5v5(t))

	rng := rand.New(rand.NewSource(7))
	counts := map[string]int{}
	const trials = 4000
	for i := 0; i < trials; i++ {
		_, next, err := Apply(base, Command{Type: CmdVetoTimeout}, time.Now(), rng.Intn)
		require.NoError(t, err)
		counts[next.PickedMap]++
	}

	require.Len(t, counts, len(testPool), "every candidate should win sometimes")
	for mapID, n := range counts {
		assert.InDelta(t, trials/len(testPool), n, float64(trials)/10, "map %s", mapID)
	}
}

func toConnect(t *testing.T, s State) State {
	t.Helper()
	s = toVeto(t, s)
	for _, id := range Participants(s) {
		_, s = mustApply(t, s, Command{Type: CmdCastVote, PlayerID: id, MapID: "mirage"})
	}
	require.Equal(t, PhaseConnect, s.Phase)
	return s
}

func TestConnect_AttachAndFinish(t *testing.T) {
	s := toConnect(t, ranked5v5(t))

	info := &ConnectInfo{Address: "10.0.0.1:27015", Password: "hunter2"}
	events, s := mustApply(t, s, Command{Type: CmdAttachConnect, Connect: info})
	require.NotNil(t, s.Connect)
	assert.Equal(t, "mirage", s.Connect.MapID)
	assert.True(t, ContainsEvent(events, EvtConnectInfoIssued))

	// ConnectInfo is immutable once issued.
	_, _, err := Apply(s, Command{Type: CmdAttachConnect, Connect: info}, time.Now(), rand.Intn)
	assert.ErrorIs(t, err, ErrWrongPhase)

	// Only the host seat may finish.
	_, _, err = Apply(s, Command{Type: CmdFinishMatch, PlayerID: "p2"}, time.Now(), rand.Intn)
	assert.ErrorIs(t, err, ErrNotAuthorized)
	_, _, err = Apply(s, Command{Type: CmdFinishMatch, PlayerID: "stranger"}, time.Now(), rand.Intn)
	assert.ErrorIs(t, err, ErrNotInMatch)

	events, s = mustApply(t, s, Command{Type: CmdFinishMatch, PlayerID: Host(s)})
	assert.Equal(t, PhaseFinished, s.Phase)
	assert.True(t, ContainsEvent(events, EvtMatchFinished))

	// Finishing twice is a WrongPhase no-op, not a second transition.
	_, _, err = Apply(s, Command{Type: CmdFinishMatch, PlayerID: Host(s)}, time.Now(), rand.Intn)
	assert.ErrorIs(t, err, ErrWrongPhase)
}

func TestConnect_AllocationFailureCancels(t *testing.T) {
	s := toConnect(t, ranked5v5(t))

	_, next := mustApply(t, s, Command{Type: CmdAllocationFailed})
	assert.Equal(t, PhaseCancelled, next.Phase)
	assert.Equal(t, ReasonAllocationFailed, next.Reason)
}

func TestConnect_DeadlineCancels(t *testing.T) {
	s := toConnect(t, ranked5v5(t))
	info := &ConnectInfo{Address: "10.0.0.1:27015", Password: "hunter2"}
	_, s = mustApply(t, s, Command{Type: CmdAttachConnect, Connect: info})

	_, next := mustApply(t, s, Command{Type: CmdConnectTimeout})
	assert.Equal(t, PhaseCancelled, next.Phase)
	assert.Equal(t, ReasonConnectTimeout, next.Reason)
	assert.Nil(t, next.Connect)
}
