package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Dosada05/stage-engine/models"
	"github.com/lib/pq"
)

var (
	ErrMatchNotFound     = errors.New("match not found")
	ErrMatchStageInvalid = errors.New("match stage conflict or invalid")
)

type MatchRepository interface {
	Create(ctx context.Context, exec SQLExecutor, match *models.Match) error
	GetByID(ctx context.Context, id int) (*models.Match, error)
	ListByStage(ctx context.Context, stageID int, roundIndex *int, status *models.MatchStatus) ([]*models.Match, error)
	// ListBySource returns every match holding a source link to the given
	// match, i.e. its direct downstream slots.
	ListBySource(ctx context.Context, exec SQLExecutor, sourceMatchID int) ([]*models.Match, error)
	UpdateScoreStatus(ctx context.Context, exec SQLExecutor, id int, homeScore, awayScore *int, status models.MatchStatus) error
	// UpdateSourceMatchIDs fills the resolved database ids of source links
	// in the second generation pass.
	UpdateSourceMatchIDs(ctx context.Context, exec SQLExecutor, id int, homeSourceID, awaySourceID *int) error
	// BindSide writes a resolved team into one side, replacing its
	// placeholder label. The source link columns are kept for provenance.
	BindSide(ctx context.Context, exec SQLExecutor, id int, side models.Side, teamID int) error
	DeleteByStage(ctx context.Context, exec SQLExecutor, stageID int) error
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

func (r *postgresMatchRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const matchColumns = `id, stage_id, round_label, format, bracket_segment, round_index, match_index,
	field_number, scheduled_at, status, home_team_id, away_team_id, home_score, away_score,
	home_source_match_id, home_source_outcome, home_placeholder,
	away_source_match_id, away_source_outcome, away_placeholder,
	created_at, updated_at`

func (r *postgresMatchRepository) scanMatch(rowScanner interface{ Scan(...interface{}) error }) (*models.Match, error) {
	var m models.Match
	err := rowScanner.Scan(
		&m.ID, &m.StageID, &m.RoundLabel, &m.Format, &m.BracketSegment, &m.RoundIndex, &m.MatchIndex,
		&m.FieldNumber, &m.ScheduledAt, &m.Status, &m.HomeTeamID, &m.AwayTeamID, &m.HomeScore, &m.AwayScore,
		&m.HomeSourceMatchID, &m.HomeSourceOutcome, &m.HomePlaceholder,
		&m.AwaySourceMatchID, &m.AwaySourceOutcome, &m.AwayPlaceholder,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (r *postgresMatchRepository) Create(ctx context.Context, exec SQLExecutor, match *models.Match) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO matches
			(stage_id, round_label, format, bracket_segment, round_index, match_index,
			 field_number, scheduled_at, status, home_team_id, away_team_id,
			 home_source_outcome, home_placeholder, away_source_outcome, away_placeholder)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id, created_at, updated_at`

	err := executor.QueryRowContext(ctx, query,
		match.StageID,
		match.RoundLabel,
		match.Format,
		match.BracketSegment,
		match.RoundIndex,
		match.MatchIndex,
		match.FieldNumber,
		match.ScheduledAt,
		match.Status,
		match.HomeTeamID,
		match.AwayTeamID,
		match.HomeSourceOutcome,
		match.HomePlaceholder,
		match.AwaySourceOutcome,
		match.AwayPlaceholder,
	).Scan(&match.ID, &match.CreatedAt, &match.UpdatedAt)

	return r.handleMatchError(err)
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, id int) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1`
	match, err := r.scanMatch(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, ErrMatchNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan match %d: %w", id, err)
	}
	return match, nil
}

func (r *postgresMatchRepository) ListByStage(ctx context.Context, stageID int, roundIndex *int, status *models.MatchStatus) ([]*models.Match, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT ` + matchColumns + ` FROM matches WHERE stage_id = $1`)

	args := []interface{}{stageID}
	placeholderIndex := 2

	if roundIndex != nil {
		queryBuilder.WriteString(" AND round_index = $")
		queryBuilder.WriteString(strconv.Itoa(placeholderIndex))
		args = append(args, *roundIndex)
		placeholderIndex++
	}
	if status != nil {
		queryBuilder.WriteString(" AND status = $")
		queryBuilder.WriteString(strconv.Itoa(placeholderIndex))
		args = append(args, *status)
	}

	queryBuilder.WriteString(" ORDER BY round_index ASC, match_index ASC, id ASC")

	rows, err := r.db.QueryContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches for stage %d: %w", stageID, err)
	}
	defer rows.Close()

	return r.collect(rows)
}

func (r *postgresMatchRepository) ListBySource(ctx context.Context, exec SQLExecutor, sourceMatchID int) ([]*models.Match, error) {
	executor := r.getExecutor(exec)
	query := `SELECT ` + matchColumns + ` FROM matches
		WHERE home_source_match_id = $1 OR away_source_match_id = $1
		ORDER BY round_index ASC, match_index ASC, id ASC`

	rows, err := executor.QueryContext(ctx, query, sourceMatchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query downstream matches of %d: %w", sourceMatchID, err)
	}
	defer rows.Close()

	return r.collect(rows)
}

func (r *postgresMatchRepository) collect(rows *sql.Rows) ([]*models.Match, error) {
	matches := make([]*models.Match, 0)
	for rows.Next() {
		m, err := r.scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during match rows iteration: %w", err)
	}
	return matches, nil
}

func (r *postgresMatchRepository) UpdateScoreStatus(ctx context.Context, exec SQLExecutor, id int, homeScore, awayScore *int, status models.MatchStatus) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE matches
		SET home_score = $1, away_score = $2, status = $3, updated_at = NOW()
		WHERE id = $4`
	result, err := executor.ExecContext(ctx, query, homeScore, awayScore, status, id)
	if err != nil {
		return r.handleMatchError(err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) UpdateSourceMatchIDs(ctx context.Context, exec SQLExecutor, id int, homeSourceID, awaySourceID *int) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE matches
		SET home_source_match_id = $1, away_source_match_id = $2, updated_at = NOW()
		WHERE id = $3`
	result, err := executor.ExecContext(ctx, query, homeSourceID, awaySourceID, id)
	if err != nil {
		return fmt.Errorf("failed to set source links on match %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) BindSide(ctx context.Context, exec SQLExecutor, id int, side models.Side, teamID int) error {
	executor := r.getExecutor(exec)
	var query string
	switch side {
	case models.SideHome:
		query = `UPDATE matches SET home_team_id = $1, home_placeholder = NULL, updated_at = NOW() WHERE id = $2`
	case models.SideAway:
		query = `UPDATE matches SET away_team_id = $1, away_placeholder = NULL, updated_at = NOW() WHERE id = $2`
	default:
		return fmt.Errorf("unknown match side %q", side)
	}
	result, err := executor.ExecContext(ctx, query, teamID, id)
	if err != nil {
		return fmt.Errorf("failed to bind %s side of match %d: %w", side, id, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) DeleteByStage(ctx context.Context, exec SQLExecutor, stageID int) error {
	executor := r.getExecutor(exec)
	_, err := executor.ExecContext(ctx, `DELETE FROM matches WHERE stage_id = $1`, stageID)
	if err != nil {
		return fmt.Errorf("failed to delete matches for stage %d: %w", stageID, err)
	}
	return nil
}

func (r *postgresMatchRepository) handleMatchError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Constraint {
		case "matches_stage_id_fkey":
			return ErrMatchStageInvalid
		}
	}
	return err
}
