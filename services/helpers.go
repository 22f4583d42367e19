package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Dosada05/stage-engine/models"
	"github.com/Dosada05/stage-engine/repositories"
	"golang.org/x/sync/errgroup"
)

// Notifier is the live-update fan-out contract, satisfied by the websocket
// hub. Events are change-class signals only; subscribers pull fresh state.
type Notifier interface {
	Publish(stageID int, eventType string)
}

// ScoreEvaluator finalizes raw reported inputs into the numeric per-side
// scores the engine records. The default implementation passes the values
// through unchanged; deployments with per-match scoring formulas plug in
// their own.
type ScoreEvaluator interface {
	Evaluate(ctx context.Context, match *models.Match, homeRaw, awayRaw int) (home, away int, err error)
}

type passthroughEvaluator struct{}

func NewPassthroughEvaluator() ScoreEvaluator {
	return passthroughEvaluator{}
}

func (passthroughEvaluator) Evaluate(_ context.Context, _ *models.Match, homeRaw, awayRaw int) (int, int, error) {
	return homeRaw, awayRaw, nil
}

// StageLocks serializes mutating operations per stage. Stages are independent
// scheduling domains, so one mutex per stage id is enough; reads never take
// these locks.
type StageLocks struct {
	mu    sync.Mutex
	locks map[int]*sync.Mutex
}

func NewStageLocks() *StageLocks {
	return &StageLocks{locks: make(map[int]*sync.Mutex)}
}

// Lock acquires the stage's mutex and returns its unlock function.
func (l *StageLocks) Lock(stageID int) func() {
	l.mu.Lock()
	m, ok := l.locks[stageID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[stageID] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m.Unlock
}

// assembleStage loads the full stage aggregate: stage record, roster,
// matches, and the leaderboard derived from them. Roster and matches load in
// parallel; rankings are computed in-process afterwards.
func assembleStage(ctx context.Context, stageRepo repositories.StageRepository, matchRepo repositories.MatchRepository, stageID int) (*models.Stage, error) {
	stage, err := stageRepo.GetByID(ctx, stageID)
	if err != nil {
		return nil, mapStageRepoError(err)
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		roster, err := stageRepo.ListRoster(gCtx, stageID)
		if err != nil {
			return fmt.Errorf("failed to load roster for stage %d: %w", stageID, err)
		}
		stage.Roster = roster
		return nil
	})
	g.Go(func() error {
		matches, err := matchRepo.ListByStage(gCtx, stageID, nil, nil)
		if err != nil {
			return fmt.Errorf("failed to load matches for stage %d: %w", stageID, err)
		}
		stage.Matches = matches
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stage.Rankings = ComputeLeaderboard(stage.Roster, stage.Matches)
	return stage, nil
}

func mapStageRepoError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, repositories.ErrStageNotFound):
		return ErrStageNotFound
	case errors.Is(err, repositories.ErrMatchNotFound):
		return ErrMatchNotFound
	}
	return err
}
