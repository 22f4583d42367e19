package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/Dosada05/stage-engine/brackets"
	"github.com/Dosada05/stage-engine/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateMatchesRoundRobin(t *testing.T) {
	env := newTestEnv()
	stage := env.addStage(models.StageRoundRobin, 10, 20, 30, 40)

	result, err := env.stages.GenerateMatches(context.Background(), stage.ID, GenerateOptions{Start: true})
	require.NoError(t, err)

	require.Len(t, result.Matches, 6) // 4 choose 2
	for _, m := range result.Matches {
		assert.Equal(t, models.MatchScheduled, m.Status)
		require.NotNil(t, m.HomeTeamID)
		require.NotNil(t, m.AwayTeamID)
		assert.Nil(t, m.HomeSourceMatchID)
		assert.Nil(t, m.AwaySourceMatchID)
	}
	assert.Equal(t, models.StageInProgress, result.Status)
	assert.Len(t, result.Rankings, 4)

	assert.Equal(t, []string{
		brackets.EventMatchesUpdated,
		brackets.EventLeaderboardUpdated,
		brackets.EventStageUpdated,
	}, env.notifier.published())
}

func TestGenerateMatchesWithoutStartKeepsStagePending(t *testing.T) {
	env := newTestEnv()
	stage := env.addStage(models.StageRoundRobin, 1, 2, 3)

	result, err := env.stages.GenerateMatches(context.Background(), stage.ID, GenerateOptions{})
	require.NoError(t, err)

	assert.Equal(t, models.StagePending, result.Status)
	assert.Equal(t, []string{
		brackets.EventMatchesUpdated,
		brackets.EventLeaderboardUpdated,
	}, env.notifier.published())
}

// matchSignature describes a match by its position in the graph rather than
// by database ids, so regenerated graphs can be compared structurally.
type matchSignature struct {
	Round, Index           int
	HomeTeam, AwayTeam     int
	HomeSource, AwaySource string
}

func signatures(t *testing.T, matches []*models.Match) []matchSignature {
	t.Helper()
	position := make(map[int]string, len(matches))
	for _, m := range matches {
		position[m.ID] = fmt.Sprintf("R%d-M%d", m.RoundIndex, m.MatchIndex)
	}
	sigs := make([]matchSignature, len(matches))
	for i, m := range matches {
		sig := matchSignature{Round: m.RoundIndex, Index: m.MatchIndex}
		if m.HomeTeamID != nil {
			sig.HomeTeam = *m.HomeTeamID
		}
		if m.AwayTeamID != nil {
			sig.AwayTeam = *m.AwayTeamID
		}
		if m.HomeSourceMatchID != nil {
			sig.HomeSource = position[*m.HomeSourceMatchID] + ":" + string(*m.HomeSourceOutcome)
		}
		if m.AwaySourceMatchID != nil {
			sig.AwaySource = position[*m.AwaySourceMatchID] + ":" + string(*m.AwaySourceOutcome)
		}
		sigs[i] = sig
	}
	return sigs
}

func TestGenerateMatchesIsStructurallyIdempotent(t *testing.T) {
	env := newTestEnv()
	stage := env.addStage(models.StageFinalDoubleElimination, 1, 2, 3, 4, 5, 6, 7, 8)

	first, err := env.stages.GenerateMatches(context.Background(), stage.ID, GenerateOptions{GrandFinalReset: true})
	require.NoError(t, err)
	second, err := env.stages.GenerateMatches(context.Background(), stage.ID, GenerateOptions{GrandFinalReset: true})
	require.NoError(t, err)

	// Database ids differ between runs; the graph shape must not.
	assert.Equal(t, signatures(t, first.Matches), signatures(t, second.Matches))
}

func TestGenerateMatchesDoubleEliminationSourcesPrecede(t *testing.T) {
	env := newTestEnv()
	stage := env.addStage(models.StageFinalDoubleElimination, 1, 2, 3, 4, 5, 6, 7, 8)

	result, err := env.stages.GenerateMatches(context.Background(), stage.ID, GenerateOptions{})
	require.NoError(t, err)

	byID := make(map[int]*models.Match, len(result.Matches))
	for _, m := range result.Matches {
		byID[m.ID] = m
	}
	for _, m := range result.Matches {
		for _, src := range []*int{m.HomeSourceMatchID, m.AwaySourceMatchID} {
			if src == nil {
				continue
			}
			source, ok := byID[*src]
			require.True(t, ok, "match %d references unknown source %d", m.ID, *src)
			assert.Less(t, source.RoundIndex, m.RoundIndex)
			assert.Equal(t, m.StageID, source.StageID)
		}
	}
}

func TestGenerateMatchesInsufficientParticipants(t *testing.T) {
	env := newTestEnv()
	stage := env.addStage(models.StageRoundRobin, 99)

	_, err := env.stages.GenerateMatches(context.Background(), stage.ID, GenerateOptions{})
	assert.ErrorIs(t, err, brackets.ErrInsufficientParticipants)
	assert.Empty(t, env.notifier.published())
}

func TestGenerateMatchesUnknownStage(t *testing.T) {
	env := newTestEnv()
	_, err := env.stages.GenerateMatches(context.Background(), 404, GenerateOptions{})
	assert.ErrorIs(t, err, ErrStageNotFound)
}

func TestGenerateMatchesClearsPreviousWarnings(t *testing.T) {
	env := newTestEnv()
	stage := env.addStage(models.StageRoundRobin, 1, 2, 3, 4)
	require.NoError(t, env.stageRepo.AppendWarning(context.Background(), nil, stage.ID, "stale warning"))

	result, err := env.stages.GenerateMatches(context.Background(), stage.ID, GenerateOptions{})
	require.NoError(t, err)
	assert.Empty(t, result.Warnings)
}

func TestUpdateStageStatusTransitions(t *testing.T) {
	env := newTestEnv()
	stage := env.addStage(models.StageRoundRobin, 1, 2)

	completed := models.StageCompleted
	_, err := env.stages.UpdateStage(context.Background(), stage.ID, UpdateStageInput{Status: &completed})
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)

	inProgress := models.StageInProgress
	result, err := env.stages.UpdateStage(context.Background(), stage.ID, UpdateStageInput{Status: &inProgress})
	require.NoError(t, err)
	assert.Equal(t, models.StageInProgress, result.Status)
	assert.Equal(t, []string{brackets.EventStageUpdated}, env.notifier.published())

	result, err = env.stages.UpdateStage(context.Background(), stage.ID, UpdateStageInput{Status: &completed})
	require.NoError(t, err)
	assert.Equal(t, models.StageCompleted, result.Status)
}

func TestUpdateStageReseedAndRegenerate(t *testing.T) {
	env := newTestEnv()
	stage := env.addStage(models.StageFirstRound, 10, 20, 30, 40)
	_, err := env.stages.GenerateMatches(context.Background(), stage.ID, GenerateOptions{})
	require.NoError(t, err)
	env.notifier.reset()

	result, err := env.stages.UpdateStage(context.Background(), stage.ID, UpdateStageInput{
		TeamOrder:         []int{40, 30, 20, 10},
		RegenerateMatches: true,
	})
	require.NoError(t, err)

	// New seeding pairs 1 vs N, 2 vs N-1 over the reordered roster.
	require.Len(t, result.Matches, 2)
	assert.Equal(t, 40, *result.Matches[0].HomeTeamID)
	assert.Equal(t, 10, *result.Matches[0].AwayTeamID)
	assert.Equal(t, 30, *result.Matches[1].HomeTeamID)
	assert.Equal(t, 20, *result.Matches[1].AwayTeamID)

	require.Len(t, result.Roster, 4)
	assert.Equal(t, 40, result.Roster[0].TeamID)
	assert.Equal(t, 1, result.Roster[0].Seed)

	assert.Equal(t, []string{
		brackets.EventStageUpdated,
		brackets.EventMatchesUpdated,
		brackets.EventLeaderboardUpdated,
	}, env.notifier.published())
}

func TestUpdateStageRejectsBadTeamOrder(t *testing.T) {
	env := newTestEnv()
	stage := env.addStage(models.StageRoundRobin, 1, 2, 3)

	for _, order := range [][]int{
		{1, 2},       // missing a team
		{1, 2, 99},   // unknown team
		{1, 2, 2},    // duplicate
		{1, 2, 3, 4}, // extra team
	} {
		_, err := env.stages.UpdateStage(context.Background(), stage.ID, UpdateStageInput{TeamOrder: order})
		assert.ErrorIs(t, err, ErrTeamOrderMismatch, "order %v", order)
	}
}

func TestGetLeaderboardLimit(t *testing.T) {
	env := newTestEnv()
	stage := env.addStage(models.StageRoundRobin, 1, 2, 3, 4)

	_, err := env.stages.GetLeaderboard(context.Background(), stage.ID, -1)
	assert.ErrorIs(t, err, ErrLeaderboardLimitInvalid)

	all, err := env.stages.GetLeaderboard(context.Background(), stage.ID, 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	top, err := env.stages.GetLeaderboard(context.Background(), stage.ID, 2)
	require.NoError(t, err)
	assert.Len(t, top, 2)
}

func TestGetStageNotFound(t *testing.T) {
	env := newTestEnv()
	_, err := env.stages.GetStage(context.Background(), 12345)
	assert.ErrorIs(t, err, ErrStageNotFound)

	_, err = env.stages.GetMatches(context.Background(), 12345)
	assert.ErrorIs(t, err, ErrStageNotFound)
}
