package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/Dosada05/stage-engine/brackets"
	"github.com/Dosada05/stage-engine/models"
	"github.com/Dosada05/stage-engine/repositories"
)

type GenerateOptions struct {
	// GrandFinalReset adds a bracket-reset match to double-elimination
	// stages.
	GrandFinalReset bool `json:"grand_final_reset"`
	// Start moves a PENDING stage to IN_PROGRESS together with generation.
	Start bool `json:"start"`
}

type UpdateStageInput struct {
	Status *models.StageStatus `json:"status,omitempty"`
	// TeamOrder is the full list of rostered team ids in their new seed
	// order. It must contain exactly the currently rostered teams.
	TeamOrder []int `json:"team_order,omitempty"`
	// RegenerateMatches rebuilds the match graph from the (possibly
	// reordered) roster. Destructive: recorded scores are discarded.
	RegenerateMatches bool            `json:"regenerate_matches,omitempty"`
	GenerateOptions   GenerateOptions `json:"generate_options,omitempty"`
}

type StageService interface {
	GetStage(ctx context.Context, stageID int) (*models.Stage, error)
	GetMatches(ctx context.Context, stageID int) ([]*models.Match, error)
	GetLeaderboard(ctx context.Context, stageID int, limit int) ([]models.RankingEntry, error)
	GenerateMatches(ctx context.Context, stageID int, opts GenerateOptions) (*models.Stage, error)
	UpdateStage(ctx context.Context, stageID int, input UpdateStageInput) (*models.Stage, error)
}

type stageService struct {
	tx        repositories.TxRunner
	stageRepo repositories.StageRepository
	matchRepo repositories.MatchRepository
	hub       Notifier
	locks     *StageLocks
}

func NewStageService(
	tx repositories.TxRunner,
	stageRepo repositories.StageRepository,
	matchRepo repositories.MatchRepository,
	hub Notifier,
	locks *StageLocks,
) StageService {
	return &stageService{
		tx:        tx,
		stageRepo: stageRepo,
		matchRepo: matchRepo,
		hub:       hub,
		locks:     locks,
	}
}

func (s *stageService) GetStage(ctx context.Context, stageID int) (*models.Stage, error) {
	return assembleStage(ctx, s.stageRepo, s.matchRepo, stageID)
}

func (s *stageService) GetMatches(ctx context.Context, stageID int) ([]*models.Match, error) {
	if _, err := s.stageRepo.GetByID(ctx, stageID); err != nil {
		return nil, mapStageRepoError(err)
	}
	return s.matchRepo.ListByStage(ctx, stageID, nil, nil)
}

func (s *stageService) GetLeaderboard(ctx context.Context, stageID int, limit int) ([]models.RankingEntry, error) {
	if limit < 0 {
		return nil, ErrLeaderboardLimitInvalid
	}
	stage, err := assembleStage(ctx, s.stageRepo, s.matchRepo, stageID)
	if err != nil {
		return nil, err
	}
	rankings := stage.Rankings
	if limit > 0 && limit < len(rankings) {
		rankings = rankings[:limit]
	}
	return rankings, nil
}

// GenerateMatches destructively (re)builds the stage's match graph from the
// current roster order. Regeneration is an explicit user action: existing
// matches, their scores and the stage warnings that described them are all
// discarded.
func (s *stageService) GenerateMatches(ctx context.Context, stageID int, opts GenerateOptions) (*models.Stage, error) {
	unlock := s.locks.Lock(stageID)
	defer unlock()

	stage, err := s.stageRepo.GetByID(ctx, stageID)
	if err != nil {
		return nil, mapStageRepoError(err)
	}
	roster, err := s.stageRepo.ListRoster(ctx, stageID)
	if err != nil {
		return nil, fmt.Errorf("failed to load roster for stage %d: %w", stageID, err)
	}

	slotMatches, err := s.buildTopology(ctx, stage, roster, opts)
	if err != nil {
		return nil, err
	}

	startStage := opts.Start && stage.Status == models.StagePending
	err = s.tx.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.persistGeneration(ctx, exec, stage, slotMatches); err != nil {
			return err
		}
		if startStage {
			return s.stageRepo.UpdateStatus(ctx, exec, stageID, models.StageInProgress)
		}
		return nil
	})
	if err != nil {
		return nil, mapStageRepoError(err)
	}

	log.Printf("generated %d matches for stage %d (%s)", len(slotMatches), stageID, stage.Type)
	s.hub.Publish(stageID, brackets.EventMatchesUpdated)
	s.hub.Publish(stageID, brackets.EventLeaderboardUpdated)
	if startStage {
		s.hub.Publish(stageID, brackets.EventStageUpdated)
	}

	return assembleStage(ctx, s.stageRepo, s.matchRepo, stageID)
}

func (s *stageService) UpdateStage(ctx context.Context, stageID int, input UpdateStageInput) (*models.Stage, error) {
	unlock := s.locks.Lock(stageID)
	defer unlock()

	stage, err := s.stageRepo.GetByID(ctx, stageID)
	if err != nil {
		return nil, mapStageRepoError(err)
	}

	statusChange := false
	if input.Status != nil && *input.Status != stage.Status {
		if !validStageStatus(*input.Status) {
			return nil, ErrInvalidStageStatus
		}
		if !validStageTransition(stage.Status, *input.Status) {
			return nil, ErrInvalidStatusTransition
		}
		statusChange = true
	}

	roster, err := s.stageRepo.ListRoster(ctx, stageID)
	if err != nil {
		return nil, fmt.Errorf("failed to load roster for stage %d: %w", stageID, err)
	}

	var newRoster []models.RosterEntry
	if len(input.TeamOrder) > 0 {
		newRoster, err = reseedRoster(roster, input.TeamOrder)
		if err != nil {
			return nil, err
		}
	}

	var slotMatches []*brackets.SlotMatch
	if input.RegenerateMatches {
		effective := roster
		if newRoster != nil {
			effective = newRoster
		}
		slotMatches, err = s.buildTopology(ctx, stage, effective, input.GenerateOptions)
		if err != nil {
			return nil, err
		}
	}

	err = s.tx.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		if newRoster != nil {
			if err := s.stageRepo.ReplaceRoster(ctx, exec, stageID, newRoster); err != nil {
				return err
			}
		}
		if input.RegenerateMatches {
			if err := s.persistGeneration(ctx, exec, stage, slotMatches); err != nil {
				return err
			}
		}
		if statusChange {
			return s.stageRepo.UpdateStatus(ctx, exec, stageID, *input.Status)
		}
		return nil
	})
	if err != nil {
		return nil, mapStageRepoError(err)
	}

	s.hub.Publish(stageID, brackets.EventStageUpdated)
	if input.RegenerateMatches {
		s.hub.Publish(stageID, brackets.EventMatchesUpdated)
		s.hub.Publish(stageID, brackets.EventLeaderboardUpdated)
	}

	return assembleStage(ctx, s.stageRepo, s.matchRepo, stageID)
}

func (s *stageService) buildTopology(ctx context.Context, stage *models.Stage, roster []models.RosterEntry, opts GenerateOptions) ([]*brackets.SlotMatch, error) {
	gen, err := brackets.ForStageType(stage.Type)
	if err != nil {
		return nil, err
	}
	slotMatches, err := gen.Generate(ctx, brackets.GenerateParams{
		Stage:           stage,
		Roster:          roster,
		GrandFinalReset: opts.GrandFinalReset,
	})
	if err != nil {
		return nil, err
	}
	if len(slotMatches) == 0 {
		return nil, fmt.Errorf("%s generated no matches for %d teams", gen.Name(), len(roster))
	}
	return slotMatches, nil
}

// persistGeneration replaces the stage's match graph inside the caller's
// transaction. First pass inserts every match and records its database id
// under the generator-local UID; the second pass resolves source-link UIDs
// into those ids.
func (s *stageService) persistGeneration(ctx context.Context, exec repositories.SQLExecutor, stage *models.Stage, slotMatches []*brackets.SlotMatch) error {
	if err := s.matchRepo.DeleteByStage(ctx, exec, stage.ID); err != nil {
		return err
	}
	if err := s.stageRepo.ClearWarnings(ctx, exec, stage.ID); err != nil {
		return err
	}

	scheduledAt := time.Now().UTC().Add(15 * time.Minute)

	idByUID := make(map[string]int, len(slotMatches))
	for _, sm := range slotMatches {
		match := &models.Match{
			StageID:           stage.ID,
			RoundLabel:        sm.RoundLabel,
			Format:            sm.Format,
			BracketSegment:    sm.Segment,
			RoundIndex:        sm.RoundIndex,
			MatchIndex:        sm.MatchIndex,
			FieldNumber:       sm.FieldNumber,
			ScheduledAt:       scheduledAt,
			Status:            models.MatchScheduled,
			HomeTeamID:        sm.Home.TeamID,
			AwayTeamID:        sm.Away.TeamID,
			HomeSourceOutcome: sm.Home.SourceOutcome,
			HomePlaceholder:   sm.Home.Placeholder,
			AwaySourceOutcome: sm.Away.SourceOutcome,
			AwayPlaceholder:   sm.Away.Placeholder,
		}
		if err := s.matchRepo.Create(ctx, exec, match); err != nil {
			return fmt.Errorf("failed to create match %s for stage %d: %w", sm.UID, stage.ID, err)
		}
		idByUID[sm.UID] = match.ID
	}

	for _, sm := range slotMatches {
		homeID, err := resolveSourceID(idByUID, sm.Home.SourceUID)
		if err != nil {
			return err
		}
		awayID, err := resolveSourceID(idByUID, sm.Away.SourceUID)
		if err != nil {
			return err
		}
		if homeID == nil && awayID == nil {
			continue
		}
		if err := s.matchRepo.UpdateSourceMatchIDs(ctx, exec, idByUID[sm.UID], homeID, awayID); err != nil {
			return err
		}
	}
	return nil
}

func resolveSourceID(idByUID map[string]int, uid *string) (*int, error) {
	if uid == nil {
		return nil, nil
	}
	id, ok := idByUID[*uid]
	if !ok {
		return nil, fmt.Errorf("generator produced a dangling source link to %q", *uid)
	}
	return &id, nil
}

// reseedRoster rewrites seeds 1..N following the requested team order. The
// order must be a permutation of the current roster.
func reseedRoster(current []models.RosterEntry, teamOrder []int) ([]models.RosterEntry, error) {
	if len(teamOrder) != len(current) {
		return nil, ErrTeamOrderMismatch
	}
	byTeam := make(map[int]models.RosterEntry, len(current))
	for _, e := range current {
		byTeam[e.TeamID] = e
	}
	out := make([]models.RosterEntry, 0, len(teamOrder))
	seen := make(map[int]bool, len(teamOrder))
	for i, teamID := range teamOrder {
		entry, ok := byTeam[teamID]
		if !ok || seen[teamID] {
			return nil, ErrTeamOrderMismatch
		}
		seen[teamID] = true
		entry.Seed = i + 1
		out = append(out, entry)
	}
	return out, nil
}

func validStageStatus(s models.StageStatus) bool {
	switch s {
	case models.StagePending, models.StageInProgress, models.StageCompleted:
		return true
	}
	return false
}

func validStageTransition(from, to models.StageStatus) bool {
	switch from {
	case models.StagePending:
		return to == models.StageInProgress
	case models.StageInProgress:
		return to == models.StageCompleted
	}
	return false
}
