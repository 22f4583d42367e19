package models

import (
	"time"

	"github.com/lib/pq"
)

// StageType selects the pairing topology the generator builds for a stage.
type StageType string

const (
	// StageFirstRound is a single seeded round: 1 vs N, 2 vs N-1, and so on.
	StageFirstRound StageType = "FIRST_ROUND"
	// StageRoundRobin schedules every pair of rostered teams exactly once.
	StageRoundRobin StageType = "ROUND_ROBIN"
	// StageFinalDoubleElimination builds winners and losers brackets plus a
	// grand final.
	StageFinalDoubleElimination StageType = "FINAL_DOUBLE_ELIMINATION"
)

type StageStatus string

const (
	StagePending    StageStatus = "PENDING"
	StageInProgress StageStatus = "IN_PROGRESS"
	StageCompleted  StageStatus = "COMPLETED"
)

// Stage is one scheduling domain of a tournament. Warnings accumulate
// non-fatal anomalies (ties on elimination matches, late result corrections)
// until the match graph is regenerated.
type Stage struct {
	ID           int            `json:"id" db:"id"`
	TournamentID int            `json:"tournament_id" db:"tournament_id"`
	Name         string         `json:"name" db:"name"`
	Type         StageType      `json:"type" db:"type"`
	StageOrder   int            `json:"stage_order" db:"stage_order"`
	Status       StageStatus    `json:"status" db:"status"`
	FieldCount   int            `json:"field_count" db:"field_count"`
	Warnings     pq.StringArray `json:"warnings" db:"warnings"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at" db:"updated_at"`

	// Attached by the service layer on reads; never persisted directly.
	Roster   []RosterEntry  `json:"roster,omitempty" db:"-"`
	Matches  []*Match       `json:"matches,omitempty" db:"-"`
	Rankings []RankingEntry `json:"rankings,omitempty" db:"-"`
}

// RosterEntry places one team in a stage at a seed position. Seeds are
// 1-based and contiguous; roster order is seed order.
type RosterEntry struct {
	ID      int `json:"id" db:"id"`
	StageID int `json:"stage_id" db:"stage_id"`
	TeamID  int `json:"team_id" db:"team_id"`
	Seed    int `json:"seed" db:"seed"`
}
