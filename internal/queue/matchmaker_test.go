package queue

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchmaker-backend/internal/engine"
)

func party(t *testing.T, mode engine.Mode, queuedAt time.Time, members ...string) *Party {
	t.Helper()
	p, err := NewParty(members, mode, queuedAt)
	require.NoError(t, err)
	return p
}

func flatRatings(value float64, parties ...*Party) map[string]float64 {
	out := map[string]float64{}
	for _, p := range parties {
		for _, id := range p.Members {
			out[id] = value
		}
	}
	return out
}

func TestFindMatch_CombinesPartiesWithoutSplitting(t *testing.T) {
	now := time.Now()
	five := party(t, engine.ModeRanked, now, "a1", "a2", "a3", "a4", "a5")
	three := party(t, engine.ModeRanked, now.Add(time.Second), "b1", "b2", "b3")
	two := party(t, engine.ModeRanked, now.Add(2*time.Second), "c1", "c2")

	waiting := []*Party{five, three, two}
	res, ok := FindMatch(waiting, 5, flatRatings(1000, waiting...))
	require.True(t, ok)
	require.Len(t, res.Parties, 3)

	// No party is split across teams: each party's members all land on
	// the same side.
	for _, p := range res.Parties {
		onA, onB := 0, 0
		for _, id := range p.Members {
			if contains(res.TeamA, id) {
				onA++
			}
			if contains(res.TeamB, id) {
				onB++
			}
		}
		assert.Equal(t, len(p.Members), onA+onB, "party %s fully placed", p.ID)
		assert.True(t, onA == 0 || onB == 0, "party %s split across teams", p.ID)
	}
	assert.Len(t, res.TeamA, 5)
	assert.Len(t, res.TeamB, 5)
}

func TestFindMatch_NoCombination(t *testing.T) {
	now := time.Now()
	four := party(t, engine.ModeRanked, now, "a1", "a2", "a3", "a4")
	three := party(t, engine.ModeRanked, now, "b1", "b2", "b3")

	// 4+3 = 7: no subset reaches 10.
	_, ok := FindMatch([]*Party{four, three}, 5, flatRatings(1000, four, three))
	assert.False(t, ok)
}

func TestFindMatch_SubsetMustAdmitWholePartySplit(t *testing.T) {
	now := time.Now()
	// 4+4+2 = 10 but no whole-party partition yields two teams of 5.
	a := party(t, engine.ModeRanked, now, "a1", "a2", "a3", "a4")
	b := party(t, engine.ModeRanked, now, "b1", "b2", "b3", "b4")
	c := party(t, engine.ModeRanked, now, "c1", "c2")

	_, ok := FindMatch([]*Party{a, b, c}, 5, flatRatings(1000, a, b, c))
	assert.False(t, ok)
}

func TestFindMatch_PrefersLongestQueued(t *testing.T) {
	now := time.Now()
	old := party(t, engine.ModeWingman, now, "o1", "o2")
	mid := party(t, engine.ModeWingman, now.Add(time.Second), "m1", "m2")
	young := party(t, engine.ModeWingman, now.Add(2*time.Second), "y1", "y2")

	waiting := []*Party{old, mid, young}
	res, ok := FindMatch(waiting, 2, flatRatings(1000, waiting...))
	require.True(t, ok)

	ids := map[string]bool{}
	for _, p := range res.Parties {
		ids[p.ID] = true
	}
	assert.True(t, ids[old.ID])
	assert.True(t, ids[mid.ID])
	assert.False(t, ids[young.ID])
}

func TestFindMatch_SoloSnakeDraftBalancesRatings(t *testing.T) {
	now := time.Now()
	var waiting []*Party
	ratings := map[string]float64{}
	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("s%d", i)
		waiting = append(waiting, party(t, engine.ModeRanked, now, id))
		ratings[id] = float64(2000 - 100*i)
	}

	res, ok := FindMatch(waiting, 5, ratings)
	require.True(t, ok)

	// Snake draft 1-2-2-1 over 2000,1900,...,1100: every full group of
	// four cancels out, the trailing pair leaves a 100-point residue.
	assert.InDelta(t, ratingSum(res.TeamA, ratings), ratingSum(res.TeamB, ratings), 100)

	// Deterministic: same input, same assignment.
	again, ok := FindMatch(waiting, 5, ratings)
	require.True(t, ok)
	assert.Equal(t, res.TeamA, again.TeamA)
	assert.Equal(t, res.TeamB, again.TeamB)
}

func TestFindMatch_PartitionMinimizesSpread(t *testing.T) {
	now := time.Now()
	strong := party(t, engine.ModeWingman, now, "s1", "s2")
	weak := party(t, engine.ModeWingman, now, "w1", "w2")
	soloHigh := party(t, engine.ModeWingman, now, "h1")
	soloLow := party(t, engine.ModeWingman, now, "l1")

	ratings := map[string]float64{
		"s1": 1800, "s2": 1800,
		"w1": 1000, "w2": 1000,
		"h1": 1600, "l1": 1200,
	}

	// Subsets are FIFO-preferred, so strong+weak (size 4) is picked for a
	// 2v2 before any solo joins; they must land on opposite teams.
	res, ok := FindMatch([]*Party{strong, weak, soloHigh, soloLow}, 2, ratings)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"s1", "s2"}, res.TeamA)
	assert.ElementsMatch(t, []string{"w1", "w2"}, res.TeamB)
}

func contains(ids []string, id string) bool {
	for _, cur := range ids {
		if cur == id {
			return true
		}
	}
	return false
}

func ratingSum(ids []string, ratings map[string]float64) float64 {
	sum := 0.0
	for _, id := range ids {
		sum += ratings[id]
	}
	return sum
}
