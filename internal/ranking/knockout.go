package ranking

import (
	"sort"

	"github.com/academyhq/tournament-engine/internal/models"
)

// Knockout result classes, in descending priority.
const (
	resultWin      = 2
	resultRunnerUp = 1
	resultLoss     = 0
)

// KnockoutStanding is one participant's final position in a single-elimination
// bracket.
type KnockoutStanding struct {
	UserID           int64   `json:"user_id"`
	Rank             int     `json:"rank"`
	RoundReached     int     `json:"round_reached"`
	Result           string  `json:"result"` // win, runner_up, loss
	EliminationScore float64 `json:"elimination_score,omitempty"`
	EliminationRound int     `json:"elimination_round,omitempty"`
}

type knockoutProgress struct {
	userID           int64
	roundReached     int
	wonLastMatch     bool
	eliminationScore float64
	eliminationRound int
}

// KnockoutRanking orders participants of a single-elimination bracket by the
// round they reached, then result class (champion, runner-up, eliminated),
// then their score in the match that knocked them out.
func KnockoutRanking(sessions []models.Session) []KnockoutStanding {
	byUser := make(map[int64]*knockoutProgress)
	order := make([]int64, 0)
	maxRound := 0

	for _, s := range sessions {
		gr := s.GameResults
		if gr == nil || gr.RoundNumber == 0 {
			continue
		}
		if gr.RoundNumber > maxRound {
			maxRound = gr.RoundNumber
		}
		for _, p := range gr.Participants {
			prog, ok := byUser[p.UserID]
			if !ok {
				prog = &knockoutProgress{userID: p.UserID}
				byUser[p.UserID] = prog
				order = append(order, p.UserID)
			}
			if gr.RoundNumber >= prog.roundReached {
				prog.roundReached = gr.RoundNumber
				prog.wonLastMatch = p.Result == "win"
				if p.Result != "win" {
					prog.eliminationScore = p.Score
					prog.eliminationRound = gr.RoundNumber
				}
			}
		}
	}

	standings := make([]KnockoutStanding, 0, len(order))
	for _, id := range order {
		prog := byUser[id]
		s := KnockoutStanding{
			UserID:           id,
			RoundReached:     prog.roundReached,
			EliminationScore: prog.eliminationScore,
			EliminationRound: prog.eliminationRound,
		}
		switch {
		case prog.wonLastMatch:
			s.Result = "win"
		case prog.eliminationRound == maxRound:
			s.Result = "runner_up"
		default:
			s.Result = "loss"
		}
		standings = append(standings, s)
	}

	priority := func(result string) int {
		switch result {
		case "win":
			return resultWin
		case "runner_up":
			return resultRunnerUp
		default:
			return resultLoss
		}
	}

	sort.SliceStable(standings, func(i, j int) bool {
		if standings[i].RoundReached != standings[j].RoundReached {
			return standings[i].RoundReached > standings[j].RoundReached
		}
		pi, pj := priority(standings[i].Result), priority(standings[j].Result)
		if pi != pj {
			return pi > pj
		}
		return standings[i].EliminationScore > standings[j].EliminationScore
	})

	rank := 1
	for i := 0; i < len(standings); {
		j := i
		for j < len(standings) &&
			standings[j].RoundReached == standings[i].RoundReached &&
			priority(standings[j].Result) == priority(standings[i].Result) &&
			standings[j].EliminationScore == standings[i].EliminationScore {
			standings[j].Rank = rank
			j++
		}
		rank += j - i
		i = j
	}
	return standings
}
