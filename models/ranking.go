package models

// MatchResult is a per-match outcome from one team's point of view.
type MatchResult string

const (
	ResultWin  MatchResult = "WIN"
	ResultLoss MatchResult = "LOSS"
	ResultTie  MatchResult = "TIE"
)

// RankingEntry is one leaderboard row. Entries are derived from the stage's
// matches on every read; they are never an independent source of truth.
type RankingEntry struct {
	TeamID        int     `json:"team_id"`
	Seed          int     `json:"seed"`
	GamesPlayed   int     `json:"games_played"`
	Wins          int     `json:"wins"`
	Losses        int     `json:"losses"`
	Ties          int     `json:"ties"`
	RankingPoints int     `json:"ranking_points"`
	TotalScore    int     `json:"total_score"`
	Conceded      int     `json:"conceded"`
	LoseRate      float64 `json:"lose_rate"`
	Rank          int     `json:"rank"`

	Matches []RankingMatch `json:"matches"`
}

// RankingMatch is the per-match breakdown exposed for display.
type RankingMatch struct {
	MatchID        int         `json:"match_id"`
	OpponentTeamID *int        `json:"opponent_team_id,omitempty"`
	Scored         int         `json:"scored"`
	Conceded       int         `json:"conceded"`
	Status         MatchStatus `json:"status"`
	Result         MatchResult `json:"result"`
}
