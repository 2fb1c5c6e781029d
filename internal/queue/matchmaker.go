package queue

import (
	"math"
	"slices"
	"sort"
)

// RatingProvider is the external skill-rating collaborator.
type RatingProvider interface {
	Rating(playerID string) (float64, error)
}

// Result is a formed pairing: two full teams and the parties consumed.
// Parties are never split across teams.
type Result struct {
	TeamA   []string
	TeamB   []string
	Parties []*Party
}

// FindMatch searches the FIFO-ordered waiting list for a set of parties
// whose combined size is exactly 2×teamSize and that admits a whole-party
// team split. Earlier (longer-waiting) parties are preferred: the search
// tries subsets in include-first order. Deterministic, no randomness.
func FindMatch(waiting []*Party, teamSize int, rating map[string]float64) (Result, bool) {
	target := 2 * teamSize
	var chosen []*Party

	var try func(idx, sum int) (Result, bool)
	try = func(idx, sum int) (Result, bool) {
		if sum == target {
			teamA, teamB, ok := splitTeams(chosen, teamSize, rating)
			if !ok {
				return Result{}, false
			}
			return Result{TeamA: teamA, TeamB: teamB, Parties: slices.Clone(chosen)}, true
		}
		if idx >= len(waiting) {
			return Result{}, false
		}
		p := waiting[idx]
		if sum+len(p.Members) <= target {
			chosen = append(chosen, p)
			if r, ok := try(idx+1, sum+len(p.Members)); ok {
				return r, true
			}
			chosen = chosen[:len(chosen)-1]
		}
		return try(idx+1, sum)
	}
	return try(0, 0)
}

// splitTeams assigns the selected parties to two teams of exactly teamSize.
// When every party is a solo player the assignment is a snake draft
// (1-2-2-1 over rating descending). Otherwise parties stay intact and the
// partition minimizing the rating spread between teams wins; masks are
// scanned in ascending order and only a strictly smaller spread replaces
// the incumbent, so the result is deterministic.
func splitTeams(parties []*Party, teamSize int, rating map[string]float64) ([]string, []string, bool) {
	allSolo := true
	for _, p := range parties {
		if len(p.Members) > 1 {
			allSolo = false
			break
		}
	}
	if allSolo {
		players := make([]string, 0, 2*teamSize)
		for _, p := range parties {
			players = append(players, p.Members...)
		}
		a, b := snakeDraft(players, rating)
		return a, b, true
	}

	bestMask := -1
	bestSpread := math.MaxFloat64
	for mask := 0; mask < 1<<len(parties); mask++ {
		sizeA := 0
		sumA, sumB := 0.0, 0.0
		for i, p := range parties {
			sum := 0.0
			for _, id := range p.Members {
				sum += rating[id]
			}
			if mask&(1<<i) != 0 {
				sizeA += len(p.Members)
				sumA += sum
			} else {
				sumB += sum
			}
		}
		if sizeA != teamSize {
			continue
		}
		if spread := math.Abs(sumA - sumB); spread < bestSpread {
			bestSpread = spread
			bestMask = mask
		}
	}
	if bestMask < 0 {
		return nil, nil, false
	}

	var teamA, teamB []string
	for i, p := range parties {
		if bestMask&(1<<i) != 0 {
			teamA = append(teamA, p.Members...)
		} else {
			teamB = append(teamB, p.Members...)
		}
	}
	return teamA, teamB, true
}

// snakeDraft deals players sorted by rating descending in the pattern
// A B B A A B B A ... so team average ratings stay close.
func snakeDraft(players []string, rating map[string]float64) ([]string, []string) {
	sorted := slices.Clone(players)
	sort.Slice(sorted, func(i, j int) bool {
		ri, rj := rating[sorted[i]], rating[sorted[j]]
		if ri != rj {
			return ri > rj
		}
		return sorted[i] < sorted[j]
	})
	var teamA, teamB []string
	for i, id := range sorted {
		if i%4 == 0 || i%4 == 3 {
			teamA = append(teamA, id)
		} else {
			teamB = append(teamB, id)
		}
	}
	return teamA, teamB
}
