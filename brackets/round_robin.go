package brackets

import (
	"context"
	"fmt"

	"github.com/Dosada05/stage-engine/models"
)

type RoundRobinGenerator struct{}

func NewRoundRobinGenerator() Generator {
	return &RoundRobinGenerator{}
}

func (g *RoundRobinGenerator) Name() string {
	return "RoundRobin"
}

// Generate builds a single all-play-all schedule using the circle method:
// with N teams there are N-1 rounds (N for odd counts, with one team sitting
// out per round) and no team plays twice in the same round. Every side is
// bound; round-robin matches carry no source links.
func (g *RoundRobinGenerator) Generate(ctx context.Context, params GenerateParams) ([]*SlotMatch, error) {
	if err := validateRoster(params.Roster); err != nil {
		return nil, err
	}

	ids := make([]int, 0, len(params.Roster)+1)
	for _, e := range params.Roster {
		ids = append(ids, e.TeamID)
	}
	const bye = 0
	if len(ids)%2 != 0 {
		ids = append(ids, bye)
	}
	n := len(ids)

	matches := make([]*SlotMatch, 0, n*(n-1)/2)
	for round := 0; round < n-1; round++ {
		matchIndex := 0
		for i := 0; i < n/2; i++ {
			home, away := ids[i], ids[n-1-i]
			if home == bye || away == bye {
				continue
			}
			matches = append(matches, &SlotMatch{
				UID:        fmt.Sprintf("RR-R%d-M%d", round+1, matchIndex+1),
				RoundLabel: fmt.Sprintf("Round %d", round+1),
				Format:     models.FormatRoundRobin,
				RoundIndex: round,
				MatchIndex: matchIndex,
				Home:       boundSlot(home),
				Away:       boundSlot(away),
			})
			matchIndex++
		}
		// Rotate all positions but the first.
		rotated := make([]int, 0, n)
		rotated = append(rotated, ids[0], ids[n-1])
		rotated = append(rotated, ids[1:n-1]...)
		ids = rotated
	}

	assignFields(matches, params.Stage.FieldCount)
	return matches, nil
}

type FirstRoundGenerator struct{}

func NewFirstRoundGenerator() Generator {
	return &FirstRoundGenerator{}
}

func (g *FirstRoundGenerator) Name() string {
	return "FirstRound"
}

// Generate emits one seeded round: 1 vs N, 2 vs N-1 and so on. Requires an
// even roster since every team must appear in exactly one match.
func (g *FirstRoundGenerator) Generate(ctx context.Context, params GenerateParams) ([]*SlotMatch, error) {
	if err := validateRoster(params.Roster); err != nil {
		return nil, err
	}
	n := len(params.Roster)
	if n%2 != 0 {
		return nil, ErrOddParticipants
	}

	matches := make([]*SlotMatch, 0, n/2)
	for i := 0; i < n/2; i++ {
		matches = append(matches, &SlotMatch{
			UID:        fmt.Sprintf("FR-M%d", i+1),
			RoundLabel: "Round 1",
			Format:     models.FormatRoundRobin,
			RoundIndex: 0,
			MatchIndex: i,
			Home:       boundSlot(params.Roster[i].TeamID),
			Away:       boundSlot(params.Roster[n-1-i].TeamID),
		})
	}

	assignFields(matches, params.Stage.FieldCount)
	return matches, nil
}
