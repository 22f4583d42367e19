package services

import (
	"sort"

	"github.com/Dosada05/stage-engine/models"
)

const (
	winPoints = 2
	tiePoints = 1
)

// ComputeLeaderboard derives the full ordered standings for a stage from its
// roster and matches. Every match with both scores recorded counts, whatever
// its status, except cancelled matches. The computation is pure: it performs
// no writes and always yields the same order for the same inputs.
//
// Sort order: ranking points desc, total score (points for) desc, lose rate
// asc, then original seed as the final deterministic tie-break. Ranks are
// positional, 1-based and gapless; equal sort keys still receive distinct
// sequential ranks.
func ComputeLeaderboard(roster []models.RosterEntry, matches []*models.Match) []models.RankingEntry {
	byTeam := make(map[int]*models.RankingEntry, len(roster))
	entries := make([]*models.RankingEntry, 0, len(roster))
	for _, e := range roster {
		entry := &models.RankingEntry{
			TeamID:  e.TeamID,
			Seed:    e.Seed,
			Matches: []models.RankingMatch{},
		}
		byTeam[e.TeamID] = entry
		entries = append(entries, entry)
	}

	for _, m := range matches {
		if !m.HasScore() || m.Status == models.MatchCancelled {
			continue
		}
		tally(byTeam, m, m.HomeTeamID, m.AwayTeamID, *m.HomeScore, *m.AwayScore)
		tally(byTeam, m, m.AwayTeamID, m.HomeTeamID, *m.AwayScore, *m.HomeScore)
	}

	for _, e := range entries {
		e.RankingPoints = e.Wins*winPoints + e.Ties*tiePoints
		e.TotalScore = sumScored(e)
		if e.GamesPlayed > 0 {
			e.LoseRate = float64(e.Losses) / float64(e.GamesPlayed)
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.RankingPoints != b.RankingPoints {
			return a.RankingPoints > b.RankingPoints
		}
		if a.TotalScore != b.TotalScore {
			return a.TotalScore > b.TotalScore
		}
		if a.LoseRate != b.LoseRate {
			return a.LoseRate < b.LoseRate
		}
		return a.Seed < b.Seed
	})

	out := make([]models.RankingEntry, len(entries))
	for i, e := range entries {
		e.Rank = i + 1
		out[i] = *e
	}
	return out
}

func tally(byTeam map[int]*models.RankingEntry, m *models.Match, teamID, opponentID *int, scored, conceded int) {
	if teamID == nil {
		return
	}
	entry, ok := byTeam[*teamID]
	if !ok {
		// Team no longer on the roster (reseeded after results were
		// recorded); its results do not enter the current standings.
		return
	}

	entry.GamesPlayed++
	entry.Conceded += conceded

	result := models.ResultTie
	switch {
	case scored > conceded:
		entry.Wins++
		result = models.ResultWin
	case scored < conceded:
		entry.Losses++
		result = models.ResultLoss
	default:
		entry.Ties++
	}

	entry.Matches = append(entry.Matches, models.RankingMatch{
		MatchID:        m.ID,
		OpponentTeamID: opponentID,
		Scored:         scored,
		Conceded:       conceded,
		Status:         m.Status,
		Result:         result,
	})
}

func sumScored(e *models.RankingEntry) int {
	total := 0
	for _, m := range e.Matches {
		total += m.Scored
	}
	return total
}
