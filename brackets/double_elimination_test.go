package brackets

import (
	"context"
	"fmt"
	"testing"

	"github.com/Dosada05/stage-engine/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateDE(t *testing.T, teamCount int, reset bool) []*SlotMatch {
	t.Helper()
	ids := make([]int, teamCount)
	for i := range ids {
		ids[i] = 100 + i
	}
	gen := NewDoubleEliminationGenerator()
	matches, err := gen.Generate(context.Background(), GenerateParams{
		Stage:           testStage(models.StageFinalDoubleElimination, 2),
		Roster:          testRoster(ids...),
		GrandFinalReset: reset,
	})
	require.NoError(t, err)
	return matches
}

func indexByUID(matches []*SlotMatch) map[string]*SlotMatch {
	byUID := make(map[string]*SlotMatch, len(matches))
	for _, m := range matches {
		byUID[m.UID] = m
	}
	return byUID
}

func TestDoubleEliminationMatchCounts(t *testing.T) {
	matches := generateDE(t, 8, false)

	counts := map[models.BracketSegment]int{}
	for _, m := range matches {
		require.NotNil(t, m.Segment)
		counts[*m.Segment]++
	}
	// 8 teams: 7 winners matches, 6 losers matches, 1 grand final.
	assert.Equal(t, 7, counts[models.SegmentWinners])
	assert.Equal(t, 6, counts[models.SegmentLosers])
	assert.Equal(t, 1, counts[models.SegmentFinals])
	assert.Len(t, matches, 14)

	withReset := generateDE(t, 8, true)
	assert.Len(t, withReset, 15)
}

func TestDoubleEliminationSeedLadder(t *testing.T) {
	matches := generateDE(t, 8, false)
	byUID := indexByUID(matches)

	// Slot order for 8: 1v8, 4v5, 2v7, 3v6 (team ids are 100+seed-1).
	expect := [][2]int{{100, 107}, {103, 104}, {101, 106}, {102, 105}}
	for i, pair := range expect {
		m := byUID[uidWB(1, i+1)]
		require.NotNil(t, m, "missing winners round 1 match %d", i+1)
		assert.Equal(t, pair[0], *m.Home.TeamID)
		assert.Equal(t, pair[1], *m.Away.TeamID)
	}
}

func TestDoubleEliminationDAGInvariant(t *testing.T) {
	for _, n := range []int{4, 8, 16} {
		matches := generateDE(t, n, true)
		byUID := indexByUID(matches)
		for _, m := range matches {
			for _, slot := range []Slot{m.Home, m.Away} {
				if slot.SourceUID == nil {
					continue
				}
				src, ok := byUID[*slot.SourceUID]
				require.True(t, ok, "dangling source %s on %s", *slot.SourceUID, m.UID)
				assert.Less(t, src.RoundIndex, m.RoundIndex,
					"source %s (round %d) must precede %s (round %d)", src.UID, src.RoundIndex, m.UID, m.RoundIndex)
			}
		}
	}
}

func TestDoubleEliminationLosersDropDown(t *testing.T) {
	matches := generateDE(t, 8, false)
	byUID := indexByUID(matches)

	// Losers round 1 collects the losers of winners round 1 in pairs.
	lb1 := byUID["LB-R1-M1"]
	require.NotNil(t, lb1)
	assert.Equal(t, "WB-R1-M1", *lb1.Home.SourceUID)
	assert.Equal(t, models.OutcomeLoser, *lb1.Home.SourceOutcome)
	assert.Equal(t, "WB-R1-M2", *lb1.Away.SourceUID)
	assert.Equal(t, models.OutcomeLoser, *lb1.Away.SourceOutcome)

	// Losers round 2 meets the droppers of winners round 2, reversed.
	lb2 := byUID["LB-R2-M1"]
	require.NotNil(t, lb2)
	assert.Equal(t, "LB-R1-M1", *lb2.Home.SourceUID)
	assert.Equal(t, models.OutcomeWinner, *lb2.Home.SourceOutcome)
	assert.Equal(t, "WB-R2-M2", *lb2.Away.SourceUID)
	assert.Equal(t, models.OutcomeLoser, *lb2.Away.SourceOutcome)

	// Grand final sources both bracket finals' winners.
	gf := byUID["GF"]
	require.NotNil(t, gf)
	assert.Equal(t, "WB-R3-M1", *gf.Home.SourceUID)
	assert.Equal(t, models.OutcomeWinner, *gf.Home.SourceOutcome)
	assert.Equal(t, "LB-R4-M1", *gf.Away.SourceUID)
	assert.Equal(t, models.OutcomeWinner, *gf.Away.SourceOutcome)
}

func TestDoubleEliminationGrandFinalReset(t *testing.T) {
	matches := generateDE(t, 4, true)
	byUID := indexByUID(matches)

	reset := byUID["GF-R"]
	require.NotNil(t, reset)
	assert.Equal(t, "GF", *reset.Home.SourceUID)
	assert.Equal(t, models.OutcomeWinner, *reset.Home.SourceOutcome)
	assert.Equal(t, "GF", *reset.Away.SourceUID)
	assert.Equal(t, models.OutcomeLoser, *reset.Away.SourceOutcome)
	assert.Greater(t, reset.RoundIndex, byUID["GF"].RoundIndex)
}

func TestDoubleEliminationDeterministic(t *testing.T) {
	first := generateDE(t, 16, true)
	second := generateDE(t, 16, true)
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, *first[i], *second[i])
	}
}

func TestDoubleEliminationEveryTeamInRoundOne(t *testing.T) {
	matches := generateDE(t, 8, false)
	seen := map[int]bool{}
	for _, m := range matches {
		if m.RoundIndex != 0 {
			continue
		}
		seen[*m.Home.TeamID] = true
		seen[*m.Away.TeamID] = true
	}
	assert.Len(t, seen, 8)
}

func TestDoubleEliminationRejectsBadSizes(t *testing.T) {
	gen := NewDoubleEliminationGenerator()
	for _, n := range []int{2, 3, 6, 12} {
		ids := make([]int, n)
		for i := range ids {
			ids[i] = i + 1
		}
		_, err := gen.Generate(context.Background(), GenerateParams{
			Stage:  testStage(models.StageFinalDoubleElimination, 1),
			Roster: testRoster(ids...),
		})
		assert.ErrorIs(t, err, ErrBracketSize, "expected rejection for %d teams", n)
	}
}

func uidWB(round, match int) string {
	return fmt.Sprintf("WB-R%d-M%d", round, match)
}
