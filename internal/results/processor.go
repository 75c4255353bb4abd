package results

import (
	"fmt"
	"sort"

	"github.com/academyhq/tournament-engine/internal/models"
	"github.com/academyhq/tournament-engine/pkg/utils"
)

// SubmittedResult is one participant's line of a structured result submission.
// Which fields are required depends on the session's match format.
type SubmittedResult struct {
	UserID        int64    `json:"user_id"`
	Placement     *int     `json:"placement,omitempty"`
	Result        *string  `json:"result,omitempty"` // WIN or LOSS
	Score         *float64 `json:"score,omitempty"`
	Team          *string  `json:"team,omitempty"`
	TeamScore     *float64 `json:"team_score,omitempty"`
	OpponentScore *float64 `json:"opponent_score,omitempty"`
	TimeSeconds   *float64 `json:"time_seconds,omitempty"`
}

// ProcessedRank is a derived (user, rank) pair.
type ProcessedRank struct {
	UserID int64 `json:"user_id"`
	Rank   int   `json:"rank"`
}

// SkillRatingFunc is the injection seam for SKILL_RATING sessions; the rating
// criteria are venue-specific and have no default.
type SkillRatingFunc func(results []SubmittedResult) ([]ProcessedRank, error)

// Processor validates a result batch against the match format and derives
// per-session ranks. Pure apart from the optional injected skill-rating hook.
type Processor struct {
	skillRating SkillRatingFunc
}

func NewProcessor() *Processor {
	return &Processor{}
}

// WithSkillRating installs a custom SKILL_RATING processor.
func (p *Processor) WithSkillRating(fn SkillRatingFunc) *Processor {
	p.skillRating = fn
	return p
}

func invalid(message string, details string) *utils.AppError {
	return utils.NewAppError(utils.ErrCodeInvalidResult, message, details)
}

// Process rejects the whole batch on any violation; partial acceptance is
// never allowed.
func (p *Processor) Process(matchFormat string, results []SubmittedResult) ([]ProcessedRank, error) {
	if len(results) == 0 {
		return nil, invalid("Empty result batch", "")
	}

	switch matchFormat {
	case models.MatchIndividualRanking:
		return p.processPlacements(results)
	case models.MatchHeadToHead:
		return p.processHeadToHead(results)
	case models.MatchTeamMatch:
		return p.processTeamMatch(results)
	case models.MatchTimeBased:
		return p.processTimeBased(results)
	case models.MatchSkillRating:
		if p.skillRating == nil {
			return nil, invalid("SKILL_RATING processing is not implemented",
				"no custom processor injected")
		}
		return p.skillRating(results)
	default:
		return nil, invalid("Unknown match format", matchFormat)
	}
}

// processPlacements: placements must be unique integers 1..N starting at 1.
func (p *Processor) processPlacements(results []SubmittedResult) ([]ProcessedRank, error) {
	seen := make(map[int]int64, len(results))
	var duplicates []int
	minPlacement := 0
	out := make([]ProcessedRank, 0, len(results))

	for _, r := range results {
		if r.Placement == nil {
			return nil, invalid("Missing placement", fmt.Sprintf("user_id=%d", r.UserID))
		}
		pl := *r.Placement
		if _, dup := seen[pl]; dup {
			duplicates = append(duplicates, pl)
		}
		seen[pl] = r.UserID
		if minPlacement == 0 || pl < minPlacement {
			minPlacement = pl
		}
		out = append(out, ProcessedRank{UserID: r.UserID, Rank: pl})
	}
	if len(duplicates) > 0 {
		return nil, invalid("Duplicate placements", "").WithFields(duplicates)
	}
	if minPlacement != 1 {
		return nil, invalid("Placements must start at 1", fmt.Sprintf("lowest=%d", minPlacement))
	}
	for _, r := range out {
		if r.Rank > len(results) {
			return nil, invalid("Placements must be contiguous 1..N",
				fmt.Sprintf("placement=%d participants=%d", r.Rank, len(results)))
		}
	}
	return out, nil
}

func (p *Processor) processHeadToHead(results []SubmittedResult) ([]ProcessedRank, error) {
	if len(results) != 2 {
		return nil, invalid("Head-to-head requires exactly 2 results",
			fmt.Sprintf("got %d", len(results)))
	}
	a, b := results[0], results[1]

	// WIN_LOSS mode when explicit results are present, else score mode.
	if a.Result != nil || b.Result != nil {
		if a.Result == nil || b.Result == nil {
			return nil, invalid("Both participants need a result", "")
		}
		ranks := map[string]int{"WIN": 1, "LOSS": 2}
		ra, okA := ranks[*a.Result]
		rb, okB := ranks[*b.Result]
		if !okA || !okB {
			return nil, invalid("Result must be WIN or LOSS", "")
		}
		if ra == rb {
			return nil, invalid("Exactly one winner required", "")
		}
		return []ProcessedRank{
			{UserID: a.UserID, Rank: ra},
			{UserID: b.UserID, Rank: rb},
		}, nil
	}

	if a.Score == nil || b.Score == nil {
		return nil, invalid("Both participants need a score", "")
	}
	switch {
	case *a.Score > *b.Score:
		return []ProcessedRank{{a.UserID, 1}, {b.UserID, 2}}, nil
	case *b.Score > *a.Score:
		return []ProcessedRank{{a.UserID, 2}, {b.UserID, 1}}, nil
	default:
		return []ProcessedRank{{a.UserID, 1}, {b.UserID, 1}}, nil
	}
}

func (p *Processor) processTeamMatch(results []SubmittedResult) ([]ProcessedRank, error) {
	teamScores := make(map[string]float64)
	for _, r := range results {
		if r.Team == nil || r.TeamScore == nil || r.OpponentScore == nil {
			return nil, invalid("Team match requires team, team_score and opponent_score",
				fmt.Sprintf("user_id=%d", r.UserID))
		}
		teamScores[*r.Team] = *r.TeamScore
	}
	if len(teamScores) != 2 {
		return nil, invalid("Team match requires exactly 2 teams",
			fmt.Sprintf("got %d", len(teamScores)))
	}

	var best float64
	first := true
	draw := false
	for _, score := range teamScores {
		if first {
			best = score
			first = false
			continue
		}
		if score == best {
			draw = true
		} else if score > best {
			best = score
		}
	}

	out := make([]ProcessedRank, 0, len(results))
	for _, r := range results {
		rank := 2
		if draw || teamScores[*r.Team] == best {
			rank = 1
		}
		out = append(out, ProcessedRank{UserID: r.UserID, Rank: rank})
	}
	return out, nil
}

// processTimeBased sorts ascending; equal times share a rank.
func (p *Processor) processTimeBased(results []SubmittedResult) ([]ProcessedRank, error) {
	type timed struct {
		userID int64
		time   float64
	}
	rows := make([]timed, 0, len(results))
	for _, r := range results {
		if r.TimeSeconds == nil {
			return nil, invalid("Missing time_seconds", fmt.Sprintf("user_id=%d", r.UserID))
		}
		rows = append(rows, timed{r.UserID, *r.TimeSeconds})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].time < rows[j].time })

	out := make([]ProcessedRank, 0, len(rows))
	rank := 1
	for i := 0; i < len(rows); {
		j := i
		for j < len(rows) && rows[j].time == rows[i].time {
			out = append(out, ProcessedRank{UserID: rows[j].userID, Rank: rank})
			j++
		}
		rank += j - i
		i = j
	}
	return out, nil
}
