package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/stage-engine/models"
	"github.com/lib/pq"
)

var (
	ErrStageNotFound       = errors.New("stage not found")
	ErrStageOrderConflict  = errors.New("stage order already taken in this tournament")
	ErrRosterSeedConflict  = errors.New("seed already taken in this stage")
	ErrRosterTeamConflict  = errors.New("team already rostered in this stage")
	ErrStageStatusConflict = errors.New("stage status conflict")
)

type StageRepository interface {
	Create(ctx context.Context, exec SQLExecutor, stage *models.Stage) error
	GetByID(ctx context.Context, id int) (*models.Stage, error)
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.StageStatus) error
	AppendWarning(ctx context.Context, exec SQLExecutor, id int, warning string) error
	ClearWarnings(ctx context.Context, exec SQLExecutor, id int) error
	ListRoster(ctx context.Context, stageID int) ([]models.RosterEntry, error)
	ReplaceRoster(ctx context.Context, exec SQLExecutor, stageID int, entries []models.RosterEntry) error
}

type postgresStageRepository struct {
	db *sql.DB
}

func NewPostgresStageRepository(db *sql.DB) StageRepository {
	return &postgresStageRepository{db: db}
}

func (r *postgresStageRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresStageRepository) Create(ctx context.Context, exec SQLExecutor, stage *models.Stage) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO stages (tournament_id, name, type, stage_order, status, field_count, warnings)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`

	if stage.Warnings == nil {
		stage.Warnings = pq.StringArray{}
	}
	err := executor.QueryRowContext(ctx, query,
		stage.TournamentID,
		stage.Name,
		stage.Type,
		stage.StageOrder,
		stage.Status,
		stage.FieldCount,
		stage.Warnings,
	).Scan(&stage.ID, &stage.CreatedAt, &stage.UpdatedAt)

	return r.handleStageError(err)
}

func (r *postgresStageRepository) GetByID(ctx context.Context, id int) (*models.Stage, error) {
	query := `
		SELECT id, tournament_id, name, type, stage_order, status, field_count, warnings, created_at, updated_at
		FROM stages
		WHERE id = $1`

	stage := &models.Stage{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&stage.ID,
		&stage.TournamentID,
		&stage.Name,
		&stage.Type,
		&stage.StageOrder,
		&stage.Status,
		&stage.FieldCount,
		&stage.Warnings,
		&stage.CreatedAt,
		&stage.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStageNotFound
		}
		return nil, fmt.Errorf("failed to scan stage %d: %w", id, err)
	}
	return stage, nil
}

func (r *postgresStageRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.StageStatus) error {
	executor := r.getExecutor(exec)
	query := `UPDATE stages SET status = $1, updated_at = NOW() WHERE id = $2`
	result, err := executor.ExecContext(ctx, query, status, id)
	if err != nil {
		return r.handleStageError(err)
	}
	return checkAffectedRows(result, ErrStageNotFound)
}

func (r *postgresStageRepository) AppendWarning(ctx context.Context, exec SQLExecutor, id int, warning string) error {
	executor := r.getExecutor(exec)
	query := `UPDATE stages SET warnings = array_append(warnings, $1), updated_at = NOW() WHERE id = $2`
	result, err := executor.ExecContext(ctx, query, warning, id)
	if err != nil {
		return fmt.Errorf("failed to append warning to stage %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrStageNotFound)
}

func (r *postgresStageRepository) ClearWarnings(ctx context.Context, exec SQLExecutor, id int) error {
	executor := r.getExecutor(exec)
	query := `UPDATE stages SET warnings = '{}', updated_at = NOW() WHERE id = $1`
	result, err := executor.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to clear warnings for stage %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrStageNotFound)
}

func (r *postgresStageRepository) ListRoster(ctx context.Context, stageID int) ([]models.RosterEntry, error) {
	query := `
		SELECT id, stage_id, team_id, seed
		FROM stage_rosters
		WHERE stage_id = $1
		ORDER BY seed ASC`

	rows, err := r.db.QueryContext(ctx, query, stageID)
	if err != nil {
		return nil, fmt.Errorf("failed to query roster for stage %d: %w", stageID, err)
	}
	defer rows.Close()

	entries := make([]models.RosterEntry, 0)
	for rows.Next() {
		var e models.RosterEntry
		if scanErr := rows.Scan(&e.ID, &e.StageID, &e.TeamID, &e.Seed); scanErr != nil {
			return nil, fmt.Errorf("failed to scan roster row: %w", scanErr)
		}
		entries = append(entries, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during roster rows iteration: %w", err)
	}
	return entries, nil
}

func (r *postgresStageRepository) ReplaceRoster(ctx context.Context, exec SQLExecutor, stageID int, entries []models.RosterEntry) error {
	executor := r.getExecutor(exec)
	if _, err := executor.ExecContext(ctx, `DELETE FROM stage_rosters WHERE stage_id = $1`, stageID); err != nil {
		return fmt.Errorf("failed to clear roster for stage %d: %w", stageID, err)
	}
	query := `
		INSERT INTO stage_rosters (stage_id, team_id, seed)
		VALUES ($1, $2, $3)
		RETURNING id`
	for i := range entries {
		entries[i].StageID = stageID
		err := executor.QueryRowContext(ctx, query, stageID, entries[i].TeamID, entries[i].Seed).Scan(&entries[i].ID)
		if err != nil {
			return r.handleRosterError(err)
		}
	}
	return nil
}

func (r *postgresStageRepository) handleStageError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Constraint {
		case "stages_tournament_id_stage_order_key":
			return ErrStageOrderConflict
		}
	}
	return err
}

func (r *postgresStageRepository) handleRosterError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Constraint {
		case "stage_rosters_stage_id_seed_key":
			return ErrRosterSeedConflict
		case "stage_rosters_stage_id_team_id_key":
			return ErrRosterTeamConflict
		}
	}
	return err
}
