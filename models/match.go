package models

import "time"

type MatchStatus string

const (
	MatchScheduled  MatchStatus = "SCHEDULED"
	MatchInProgress MatchStatus = "IN_PROGRESS"
	MatchCompleted  MatchStatus = "COMPLETED"
	MatchCancelled  MatchStatus = "CANCELLED"
)

func (s MatchStatus) Valid() bool {
	switch s {
	case MatchScheduled, MatchInProgress, MatchCompleted, MatchCancelled:
		return true
	}
	return false
}

type MatchFormat string

const (
	FormatRoundRobin        MatchFormat = "ROUND_ROBIN"
	FormatDoubleElimination MatchFormat = "DOUBLE_ELIMINATION"
)

// BracketSegment places an elimination match in one of the two parallel
// trees or the finals. Nil for round-robin matches.
type BracketSegment string

const (
	SegmentWinners BracketSegment = "WINNERS"
	SegmentLosers  BracketSegment = "LOSERS"
	SegmentFinals  BracketSegment = "FINALS"
)

// Outcome selects which side of a decided source match feeds a slot.
type Outcome string

const (
	OutcomeWinner Outcome = "WINNER"
	OutcomeLoser  Outcome = "LOSER"
)

type Side string

const (
	SideHome Side = "HOME"
	SideAway Side = "AWAY"
)

// Match is one node of a stage's match graph. Each side is either bound
// (team id set) or pending (source match + outcome + placeholder label set);
// propagation rewrites a pending side into a bound one. Source links always
// point to a match of the same stage with a strictly smaller RoundIndex,
// so the graph stays a DAG.
type Match struct {
	ID             int             `json:"id" db:"id"`
	StageID        int             `json:"stage_id" db:"stage_id"`
	RoundLabel     string          `json:"round_label" db:"round_label"`
	Format         MatchFormat     `json:"format" db:"format"`
	BracketSegment *BracketSegment `json:"bracket_segment,omitempty" db:"bracket_segment"`
	RoundIndex     int             `json:"round_index" db:"round_index"`
	MatchIndex     int             `json:"match_index" db:"match_index"`
	FieldNumber    int             `json:"field_number" db:"field_number"`
	ScheduledAt    time.Time       `json:"scheduled_at" db:"scheduled_at"`
	Status         MatchStatus     `json:"status" db:"status"`

	HomeTeamID *int `json:"home_team_id,omitempty" db:"home_team_id"`
	AwayTeamID *int `json:"away_team_id,omitempty" db:"away_team_id"`
	HomeScore  *int `json:"home_score,omitempty" db:"home_score"`
	AwayScore  *int `json:"away_score,omitempty" db:"away_score"`

	HomeSourceMatchID *int     `json:"home_source_match_id,omitempty" db:"home_source_match_id"`
	HomeSourceOutcome *Outcome `json:"home_source_outcome,omitempty" db:"home_source_outcome"`
	HomePlaceholder   *string  `json:"home_placeholder,omitempty" db:"home_placeholder"`
	AwaySourceMatchID *int     `json:"away_source_match_id,omitempty" db:"away_source_match_id"`
	AwaySourceOutcome *Outcome `json:"away_source_outcome,omitempty" db:"away_source_outcome"`
	AwayPlaceholder   *string  `json:"away_placeholder,omitempty" db:"away_placeholder"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// HasScore reports whether both score fields are set. The two fields are
// always set or cleared together.
func (m *Match) HasScore() bool {
	return m.HomeScore != nil && m.AwayScore != nil
}

// IsTie is only meaningful when HasScore is true.
func (m *Match) IsTie() bool {
	return m.HasScore() && *m.HomeScore == *m.AwayScore
}

// WinnerTeamID returns the winning side's team id, or nil for a tie or an
// undecided/unbound match.
func (m *Match) WinnerTeamID() *int {
	if !m.HasScore() || m.IsTie() {
		return nil
	}
	if *m.HomeScore > *m.AwayScore {
		return m.HomeTeamID
	}
	return m.AwayTeamID
}

// LoserTeamID mirrors WinnerTeamID for the losing side.
func (m *Match) LoserTeamID() *int {
	if !m.HasScore() || m.IsTie() {
		return nil
	}
	if *m.HomeScore > *m.AwayScore {
		return m.AwayTeamID
	}
	return m.HomeTeamID
}

// Started reports whether play on this match has begun: any status past
// SCHEDULED, or a recorded score. Late propagation refuses to silently
// rebind a started match.
func (m *Match) Started() bool {
	return m.Status != MatchScheduled || m.HasScore()
}
