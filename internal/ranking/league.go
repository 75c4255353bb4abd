package ranking

import (
	"sort"

	"github.com/academyhq/tournament-engine/internal/models"
)

// League points per match outcome.
const (
	PointsWin  = 3
	PointsDraw = 1
	PointsLoss = 0
)

// AccumulateHeadToHead folds completed head-to-head sessions into per-player
// statistics. Every participant listed on a session gets a row even before
// playing a match, so zero-match rows appear in standings.
func AccumulateHeadToHead(sessions []models.Session) []models.GroupStandingRow {
	byUser := make(map[int64]*models.GroupStandingRow)
	order := make([]int64, 0)

	ensure := func(userID int64) *models.GroupStandingRow {
		if row, ok := byUser[userID]; ok {
			return row
		}
		row := &models.GroupStandingRow{UserID: userID}
		byUser[userID] = row
		order = append(order, userID)
		return row
	}

	for _, s := range sessions {
		for _, id := range s.ParticipantUserIDs {
			ensure(id)
		}
		gr := s.GameResults
		if gr == nil || len(gr.Participants) != 2 {
			continue
		}
		a, b := gr.Participants[0], gr.Participants[1]
		for _, pair := range [][2]models.MatchParticipant{{a, b}, {b, a}} {
			me, them := pair[0], pair[1]
			row := ensure(me.UserID)
			row.MatchesPlayed++
			row.GoalsFor += int(me.Score)
			row.GoalsAgainst += int(them.Score)
			switch me.Result {
			case "win":
				row.Wins++
				row.Points += PointsWin
			case "draw":
				row.Draws++
				row.Points += PointsDraw
			case "loss":
				row.Losses++
			}
		}
	}

	rows := make([]models.GroupStandingRow, 0, len(order))
	for _, id := range order {
		row := byUser[id]
		row.GoalDifference = row.GoalsFor - row.GoalsAgainst
		rows = append(rows, *row)
	}
	return rows
}

// SortStandings orders rows by the football tiebreak keys (points, goal
// difference, goals for) and assigns ranks with tie grouping: rows equal on
// all three keys share a rank and the following rank is skipped accordingly.
func SortStandings(rows []models.GroupStandingRow) []models.GroupStandingRow {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Points != rows[j].Points {
			return rows[i].Points > rows[j].Points
		}
		if rows[i].GoalDifference != rows[j].GoalDifference {
			return rows[i].GoalDifference > rows[j].GoalDifference
		}
		return rows[i].GoalsFor > rows[j].GoalsFor
	})

	rank := 1
	for i := 0; i < len(rows); {
		j := i
		for j < len(rows) &&
			rows[j].Points == rows[i].Points &&
			rows[j].GoalDifference == rows[i].GoalDifference &&
			rows[j].GoalsFor == rows[i].GoalsFor {
			rows[j].Rank = rank
			j++
		}
		rank += j - i
		i = j
	}
	return rows
}

// LeagueRanking computes the round-robin table over all completed
// head-to-head sessions of a tournament.
func LeagueRanking(sessions []models.Session) []models.GroupStandingRow {
	return SortStandings(AccumulateHeadToHead(sessions))
}
