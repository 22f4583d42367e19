package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/Dosada05/stage-engine/brackets"
	"github.com/Dosada05/stage-engine/models"
	"github.com/Dosada05/stage-engine/repositories"
)

type UpdateMatchInput struct {
	HomeScore *int               `json:"home_score"`
	AwayScore *int               `json:"away_score"`
	Status    models.MatchStatus `json:"status"`
}

type MatchService interface {
	// UpdateMatch records a result for one match, propagates the outcome
	// into downstream bracket slots when the match completes, and returns
	// the fresh stage aggregate so callers always see the authoritative
	// resulting state.
	UpdateMatch(ctx context.Context, stageID, matchID int, input UpdateMatchInput) (*models.Stage, error)
}

type matchService struct {
	tx        repositories.TxRunner
	stageRepo repositories.StageRepository
	matchRepo repositories.MatchRepository
	evaluator ScoreEvaluator
	hub       Notifier
	locks     *StageLocks
}

func NewMatchService(
	tx repositories.TxRunner,
	stageRepo repositories.StageRepository,
	matchRepo repositories.MatchRepository,
	evaluator ScoreEvaluator,
	hub Notifier,
	locks *StageLocks,
) MatchService {
	return &matchService{
		tx:        tx,
		stageRepo: stageRepo,
		matchRepo: matchRepo,
		evaluator: evaluator,
		hub:       hub,
		locks:     locks,
	}
}

func (s *matchService) UpdateMatch(ctx context.Context, stageID, matchID int, input UpdateMatchInput) (*models.Stage, error) {
	if !input.Status.Valid() {
		return nil, ErrInvalidMatchStatus
	}
	if (input.HomeScore == nil) != (input.AwayScore == nil) {
		return nil, ErrScoresInconsistent
	}
	if input.HomeScore != nil && (*input.HomeScore < 0 || *input.AwayScore < 0) {
		return nil, ErrNegativeScore
	}
	if input.Status == models.MatchCompleted && input.HomeScore == nil {
		return nil, ErrScoresRequired
	}

	unlock := s.locks.Lock(stageID)
	defer unlock()

	stage, err := s.stageRepo.GetByID(ctx, stageID)
	if err != nil {
		return nil, mapStageRepoError(err)
	}
	match, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		return nil, mapStageRepoError(err)
	}
	if match.StageID != stage.ID {
		return nil, ErrMatchNotFound
	}
	if match.Status == models.MatchCancelled && input.Status == models.MatchCompleted {
		return nil, ErrMatchAlreadyCancelled
	}

	homeScore, awayScore := input.HomeScore, input.AwayScore
	if homeScore != nil {
		h, a, evalErr := s.evaluator.Evaluate(ctx, match, *homeScore, *awayScore)
		if evalErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrScoreEvaluationFailed, evalErr)
		}
		homeScore, awayScore = &h, &a
	}

	// Re-submitting an identical result is a no-op: nothing is written and
	// no events are published.
	if match.Status == input.Status && intPtrEq(match.HomeScore, homeScore) && intPtrEq(match.AwayScore, awayScore) {
		return assembleStage(ctx, s.stageRepo, s.matchRepo, stageID)
	}

	completing := input.Status == models.MatchCompleted
	if completing && (match.HomeTeamID == nil || match.AwayTeamID == nil) {
		return nil, ErrMatchSidesUnbound
	}

	updated := *match
	updated.HomeScore = homeScore
	updated.AwayScore = awayScore
	updated.Status = input.Status

	err = s.tx.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.matchRepo.UpdateScoreStatus(ctx, exec, matchID, homeScore, awayScore, input.Status); err != nil {
			if errors.Is(err, repositories.ErrMatchNotFound) {
				// The graph was regenerated out from under us.
				return ErrStageConflict
			}
			return err
		}
		if !completing {
			return nil
		}
		if updated.IsTie() {
			if updated.Format == models.FormatDoubleElimination {
				warning := fmt.Sprintf("tie recorded on elimination match %d (%s); advancement is blocked until the result is corrected", updated.ID, updated.RoundLabel)
				return s.stageRepo.AppendWarning(ctx, exec, stage.ID, warning)
			}
			// Ties are a valid terminal state in round-robin play.
			return nil
		}
		return s.propagate(ctx, exec, stage.ID, &updated)
	})
	if err != nil {
		return nil, err
	}

	s.hub.Publish(stageID, brackets.EventMatchesUpdated)
	s.hub.Publish(stageID, brackets.EventLeaderboardUpdated)

	return assembleStage(ctx, s.stageRepo, s.matchRepo, stageID)
}

// propagate writes the decided match's winner and loser into every
// downstream slot holding a source link to it. The cascade is one hop deep:
// further levels resolve naturally as those matches complete in turn. A
// downstream match that vanished mid-cascade is logged and skipped so one
// missing slot never blocks the rest.
func (s *matchService) propagate(ctx context.Context, exec repositories.SQLExecutor, stageID int, decided *models.Match) error {
	winner := decided.WinnerTeamID()
	loser := decided.LoserTeamID()
	if winner == nil || loser == nil {
		return nil
	}

	downstream, err := s.matchRepo.ListBySource(ctx, exec, decided.ID)
	if err != nil {
		return err
	}

	for _, d := range downstream {
		if d.HomeSourceMatchID != nil && *d.HomeSourceMatchID == decided.ID {
			if err := s.bindSlot(ctx, exec, stageID, decided, d, models.SideHome, d.HomeTeamID, d.HomeSourceOutcome, winner, loser); err != nil {
				return err
			}
		}
		if d.AwaySourceMatchID != nil && *d.AwaySourceMatchID == decided.ID {
			if err := s.bindSlot(ctx, exec, stageID, decided, d, models.SideAway, d.AwayTeamID, d.AwaySourceOutcome, winner, loser); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *matchService) bindSlot(
	ctx context.Context,
	exec repositories.SQLExecutor,
	stageID int,
	decided *models.Match,
	downstream *models.Match,
	side models.Side,
	current *int,
	outcome *models.Outcome,
	winner, loser *int,
) error {
	if outcome == nil {
		return nil
	}
	target := winner
	if *outcome == models.OutcomeLoser {
		target = loser
	}
	if current != nil && *current == *target {
		return nil
	}
	if current != nil && downstream.Started() {
		// A corrected result cannot be pushed through a match that has
		// already begun; surface it instead of silently rewriting history.
		warning := fmt.Sprintf("result of match %d changed after downstream match %d already started; its %s slot was left unchanged", decided.ID, downstream.ID, side)
		return s.stageRepo.AppendWarning(ctx, exec, stageID, warning)
	}
	if err := s.matchRepo.BindSide(ctx, exec, downstream.ID, side, *target); err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			log.Printf("downstream match %d disappeared during propagation from match %d, skipping", downstream.ID, decided.ID)
			return nil
		}
		return err
	}
	return nil
}

func intPtrEq(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
