package engine

import (
	"slices"
	"sort"
	"time"
)

// NewState builds a match in the transient FORMED phase; CmdBegin moves it
// into the ready check.
func NewState(mode Mode, teamA, teamB []string, mapPool []string, now time.Time) State {
	return State{
		Phase:      PhaseFormed,
		Mode:       mode,
		Teams:      [2][]string{teamA, teamB},
		MapPool:    slices.Clone(mapPool),
		ReadyVotes: map[string]time.Time{},
		Ballots:    map[string]Ballot{},
		CreatedAt:  now,
	}
}

// Participants returns every player id across both teams.
func Participants(s State) []string {
	out := make([]string, 0, len(s.Teams[0])+len(s.Teams[1]))
	out = append(out, s.Teams[0]...)
	out = append(out, s.Teams[1]...)
	return out
}

// Host is the seat allowed to finish the match: first member of team A.
func Host(s State) string {
	if len(s.Teams[0]) == 0 {
		return ""
	}
	return s.Teams[0][0]
}

func isParticipant(s State, id string) bool {
	return slices.Contains(s.Teams[0], id) || slices.Contains(s.Teams[1], id)
}

func mapInPool(s State, mapID string) bool {
	return slices.Contains(s.MapPool, mapID)
}

func notAccepted(s State) []string {
	var out []string
	for _, id := range Participants(s) {
		if _, ok := s.ReadyVotes[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

// resolveVeto tallies the live ballots and moves the match to CONNECT.
// Plurality wins; ties among the leading maps break uniformly at random;
// an empty ballot box picks uniformly from the whole pool.
func resolveVeto(s State, intn func(int) int) (State, []Event) {
	next := s
	next.Phase = PhaseConnect
	next.PickedMap = tallyWinner(s.Ballots, s.MapPool, intn)
	next.Ballots = map[string]Ballot{}
	return next, []Event{{Type: EvtMapResolved, MapID: next.PickedMap}}
}

func tallyWinner(ballots map[string]Ballot, pool []string, intn func(int) int) string {
	if len(ballots) == 0 {
		return pool[intn(len(pool))]
	}
	counts := map[string]int{}
	for _, b := range ballots {
		counts[b.MapID]++
	}
	best := 0
	for _, n := range counts {
		if n > best {
			best = n
		}
	}
	var leaders []string
	for mapID, n := range counts {
		if n == best {
			leaders = append(leaders, mapID)
		}
	}
	// Map iteration order is random; sort before drawing so the draw is
	// uniform over a stable slice, not biased by iteration order.
	sort.Strings(leaders)
	return leaders[intn(len(leaders))]
}

func cloneVotes(m map[string]time.Time) map[string]time.Time {
	out := make(map[string]time.Time, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneBallots(m map[string]Ballot) map[string]Ballot {
	out := make(map[string]Ballot, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

// ContainsEvent reports whether events includes one of the given type.
func ContainsEvent(events []Event, t EventType) bool {
	for _, e := range events {
		if e.Type == t {
			return true
		}
	}
	return false
}
