package brackets

import (
	"context"
	"fmt"
	"math/bits"

	"github.com/Dosada05/stage-engine/models"
)

type DoubleEliminationGenerator struct{}

func NewDoubleEliminationGenerator() Generator {
	return &DoubleEliminationGenerator{}
}

func (g *DoubleEliminationGenerator) Name() string {
	return "DoubleElimination"
}

// Generate builds the two parallel bracket trees plus a grand final.
//
// The winners bracket is seeded with the standard ladder (1 vs N, the 2-seed
// in the opposite half, and so on). Losers-bracket round 0 collects the
// losers of winners round 0; after that, rounds alternate between a "minor"
// round that receives droppers from the parallel winners round and a "major"
// round that pairs losers-bracket survivors with each other. Drop order is
// reversed on every other minor round so first-round opponents cannot meet
// again immediately.
//
// Round indices are assigned globally so every source link points to a
// strictly smaller RoundIndex: winners round r keeps index r, losers round j
// gets index j+1, the grand final follows the losers final.
//
// Bye handling is not supported: the roster size must be a power of two.
func (g *DoubleEliminationGenerator) Generate(ctx context.Context, params GenerateParams) ([]*SlotMatch, error) {
	if err := validateRoster(params.Roster); err != nil {
		return nil, err
	}
	n := len(params.Roster)
	if n < 4 || n&(n-1) != 0 {
		return nil, ErrBracketSize
	}
	k := bits.Len(uint(n)) - 1 // winners rounds

	all := make([]*SlotMatch, 0, 2*n)

	// Winners bracket.
	winners := make([][]*SlotMatch, k)
	ladder := seedLadder(n)
	for r := 0; r < k; r++ {
		count := n >> uint(r+1)
		label := fmt.Sprintf("Winners Round %d", r+1)
		if count == 1 {
			label = "Winners Final"
		}
		round := make([]*SlotMatch, count)
		for i := 0; i < count; i++ {
			m := &SlotMatch{
				UID:        fmt.Sprintf("WB-R%d-M%d", r+1, i+1),
				RoundLabel: label,
				Format:     models.FormatDoubleElimination,
				Segment:    segment(models.SegmentWinners),
				RoundIndex: r,
				MatchIndex: i,
			}
			if r == 0 {
				m.Home = boundSlot(params.Roster[ladder[2*i]-1].TeamID)
				m.Away = boundSlot(params.Roster[ladder[2*i+1]-1].TeamID)
			} else {
				m.Home = winnerSlot(winners[r-1][2*i].UID)
				m.Away = winnerSlot(winners[r-1][2*i+1].UID)
			}
			round[i] = m
			all = append(all, m)
		}
		winners[r] = round
	}

	// Losers bracket. prev tracks the latest losers round.
	lbRound := 0
	prev := make([]*SlotMatch, n/4)
	for i := range prev {
		m := &SlotMatch{
			UID:        fmt.Sprintf("LB-R1-M%d", i+1),
			RoundLabel: losersLabel(1, k),
			Format:     models.FormatDoubleElimination,
			Segment:    segment(models.SegmentLosers),
			RoundIndex: lbRound + 1,
			MatchIndex: i,
			Home:       loserSlot(winners[0][2*i].UID),
			Away:       loserSlot(winners[0][2*i+1].UID),
		}
		prev[i] = m
		all = append(all, m)
	}

	for d := 1; d < k; d++ {
		// Minor round: losers-bracket survivors meet the droppers from
		// winners round d.
		lbRound++
		count := len(prev)
		minor := make([]*SlotMatch, count)
		for i := 0; i < count; i++ {
			drop := i
			if d%2 == 1 {
				drop = count - 1 - i
			}
			m := &SlotMatch{
				UID:        fmt.Sprintf("LB-R%d-M%d", lbRound+1, i+1),
				RoundLabel: losersLabel(lbRound+1, k),
				Format:     models.FormatDoubleElimination,
				Segment:    segment(models.SegmentLosers),
				RoundIndex: lbRound + 1,
				MatchIndex: i,
				Home:       winnerSlot(prev[i].UID),
				Away:       loserSlot(winners[d][drop].UID),
			}
			minor[i] = m
			all = append(all, m)
		}
		prev = minor

		if d == k-1 {
			break
		}

		// Major round: survivors pair among themselves.
		lbRound++
		major := make([]*SlotMatch, count/2)
		for i := 0; i < count/2; i++ {
			m := &SlotMatch{
				UID:        fmt.Sprintf("LB-R%d-M%d", lbRound+1, i+1),
				RoundLabel: losersLabel(lbRound+1, k),
				Format:     models.FormatDoubleElimination,
				Segment:    segment(models.SegmentLosers),
				RoundIndex: lbRound + 1,
				MatchIndex: i,
				Home:       winnerSlot(prev[2*i].UID),
				Away:       winnerSlot(prev[2*i+1].UID),
			}
			major[i] = m
			all = append(all, m)
		}
		prev = major
	}

	wbFinal := winners[k-1][0]
	lbFinal := prev[0]

	grandFinal := &SlotMatch{
		UID:        "GF",
		RoundLabel: "Grand Final",
		Format:     models.FormatDoubleElimination,
		Segment:    segment(models.SegmentFinals),
		RoundIndex: lbFinal.RoundIndex + 1,
		MatchIndex: 0,
		Home:       winnerSlot(wbFinal.UID),
		Away:       winnerSlot(lbFinal.UID),
	}
	all = append(all, grandFinal)

	if params.GrandFinalReset {
		all = append(all, &SlotMatch{
			UID:        "GF-R",
			RoundLabel: "Grand Final Reset",
			Format:     models.FormatDoubleElimination,
			Segment:    segment(models.SegmentFinals),
			RoundIndex: grandFinal.RoundIndex + 1,
			MatchIndex: 0,
			Home:       winnerSlot(grandFinal.UID),
			Away:       loserSlot(grandFinal.UID),
		})
	}

	assignFields(all, params.Stage.FieldCount)
	return all, nil
}

func winnerSlot(sourceUID string) Slot {
	return pendingSlot(sourceUID, models.OutcomeWinner, "Winner of "+sourceUID)
}

func loserSlot(sourceUID string) Slot {
	return pendingSlot(sourceUID, models.OutcomeLoser, "Loser of "+sourceUID)
}

func losersLabel(round, k int) string {
	if round == 2*(k-1) {
		return "Losers Final"
	}
	return fmt.Sprintf("Losers Round %d", round)
}

// seedLadder returns 1-based seed numbers in bracket slot order, so that the
// top seed can only meet the second seed in the winners final:
// 2 -> [1 2], 4 -> [1 4 2 3], 8 -> [1 8 4 5 2 7 3 6].
func seedLadder(n int) []int {
	order := []int{1}
	for len(order) < n {
		next := make([]int, 0, len(order)*2)
		size := len(order) * 2
		for _, s := range order {
			next = append(next, s, size+1-s)
		}
		order = next
	}
	return order
}
