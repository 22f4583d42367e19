package brackets

import (
	"context"
	"errors"
	"sort"

	"github.com/Dosada05/stage-engine/models"
)

var (
	ErrInsufficientParticipants = errors.New("not enough participants to generate matches (minimum 2 required)")
	ErrUnsupportedStageType     = errors.New("unsupported stage type")
	ErrOddParticipants          = errors.New("seeded first round requires an even number of participants")
	ErrBracketSize              = errors.New("double elimination requires a power-of-two team count of at least 4")
)

// Slot is one side of a generated match: either bound to a team, or pending
// on the outcome of another generated match referenced by its UID.
type Slot struct {
	TeamID        *int
	SourceUID     *string
	SourceOutcome *models.Outcome
	Placeholder   *string
}

// SlotMatch is a generated match before persistence. UIDs are local to one
// generation run; the service resolves them to database ids in a second pass.
type SlotMatch struct {
	UID         string
	RoundLabel  string
	Format      models.MatchFormat
	Segment     *models.BracketSegment
	RoundIndex  int
	MatchIndex  int
	FieldNumber int
	Home        Slot
	Away        Slot
}

type GenerateParams struct {
	Stage *models.Stage
	// Roster ordered by seed ascending.
	Roster []models.RosterEntry
	// GrandFinalReset adds a bracket-reset match sourced from the grand
	// final. Only meaningful for double elimination.
	GrandFinalReset bool
}

// Generator maps a seeded roster onto a match topology. Implementations are
// pure: same inputs, same topology.
type Generator interface {
	Generate(ctx context.Context, params GenerateParams) ([]*SlotMatch, error)
	Name() string
}

// ForStageType picks the generator for a stage type.
func ForStageType(t models.StageType) (Generator, error) {
	switch t {
	case models.StageRoundRobin:
		return NewRoundRobinGenerator(), nil
	case models.StageFirstRound:
		return NewFirstRoundGenerator(), nil
	case models.StageFinalDoubleElimination:
		return NewDoubleEliminationGenerator(), nil
	default:
		return nil, ErrUnsupportedStageType
	}
}

func boundSlot(teamID int) Slot {
	id := teamID
	return Slot{TeamID: &id}
}

func pendingSlot(sourceUID string, outcome models.Outcome, placeholder string) Slot {
	uid := sourceUID
	o := outcome
	p := placeholder
	return Slot{SourceUID: &uid, SourceOutcome: &o, Placeholder: &p}
}

func segment(s models.BracketSegment) *models.BracketSegment {
	return &s
}

// assignFields spreads the matches of each round across the stage's playing
// fields, round-robin in match-index order, so parallel fields carry an even
// load. fieldCount < 1 is treated as a single field.
func assignFields(matches []*SlotMatch, fieldCount int) {
	if fieldCount < 1 {
		fieldCount = 1
	}
	byRound := make(map[int][]*SlotMatch)
	rounds := make([]int, 0)
	for _, m := range matches {
		if _, ok := byRound[m.RoundIndex]; !ok {
			rounds = append(rounds, m.RoundIndex)
		}
		byRound[m.RoundIndex] = append(byRound[m.RoundIndex], m)
	}
	sort.Ints(rounds)
	for _, r := range rounds {
		ms := byRound[r]
		sort.Slice(ms, func(i, j int) bool { return ms[i].MatchIndex < ms[j].MatchIndex })
		for i, m := range ms {
			m.FieldNumber = i%fieldCount + 1
		}
	}
}

func validateRoster(roster []models.RosterEntry) error {
	seen := make(map[int]bool, len(roster))
	for _, e := range roster {
		if seen[e.TeamID] {
			return ErrInsufficientParticipants
		}
		seen[e.TeamID] = true
	}
	if len(seen) < 2 {
		return ErrInsufficientParticipants
	}
	return nil
}
