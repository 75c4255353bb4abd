package ranking

import (
	"sort"
	"strconv"

	"github.com/academyhq/tournament-engine/internal/models"
)

// Aggregation method labels reported in game_results.aggregation_method.
const (
	AggMinValue     = "MIN_VALUE"
	AggMaxValue     = "MAX_VALUE"
	AggSum          = "SUM"
	AggSumPlacement = "SUM_PLACEMENT"
)

// RankGroup is one rank slot; more than one participant encodes a tie. Tied
// ranks skip subsequent ranks: after a 2-way tie at rank 2 the next rank is 4.
type RankGroup struct {
	Rank         int     `json:"rank"`
	Participants []int64 `json:"participants"`
	FinalValue   float64 `json:"final_value"`
}

// Strategy reduces per-round measurements to a final value and declares how
// results are ordered and labelled. Strategies are pure value objects.
type Strategy interface {
	Name() string
	// Aggregate reduces one participant's round values under the resolved
	// direction. Direction-sensitive strategies flip min/max when overridden.
	Aggregate(values []float64, direction string) float64
	DefaultDirection() string
	AggregationLabel(direction string) string
}

// ParseMeasuredValue extracts the first numeric token from an operator-entered
// value like "12.5s", "11 pts" or "-3.2". Returns false when no number is
// present; such values are skipped for that (user, round) pair.
func ParseMeasuredValue(raw string) (float64, bool) {
	start := -1
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c >= '0' && c <= '9' {
			start = i
			// Include a directly preceding minus sign.
			if i > 0 && raw[i-1] == '-' {
				start = i - 1
			}
			break
		}
	}
	if start == -1 {
		return 0, false
	}
	end := start
	if raw[end] == '-' {
		end++
	}
	seenDot := false
	for end < len(raw) {
		c := raw[end]
		if c >= '0' && c <= '9' {
			end++
			continue
		}
		if c == '.' && !seenDot {
			seenDot = true
			end++
			continue
		}
		break
	}
	v, err := strconv.ParseFloat(raw[start:end], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

type scoredParticipant struct {
	UserID int64
	Value  float64
}

// groupByValue sorts scored participants in the given direction and groups
// exact-equal final values into shared ranks with rank skipping.
func groupByValue(rows []scoredParticipant, direction string) []RankGroup {
	sort.SliceStable(rows, func(i, j int) bool {
		if direction == models.DirectionDesc {
			return rows[i].Value > rows[j].Value
		}
		return rows[i].Value < rows[j].Value
	})

	groups := make([]RankGroup, 0, len(rows))
	rank := 1
	for i := 0; i < len(rows); {
		j := i
		for j < len(rows) && rows[j].Value == rows[i].Value {
			j++
		}
		members := make([]int64, 0, j-i)
		for _, r := range rows[i:j] {
			members = append(members, r.UserID)
		}
		groups = append(groups, RankGroup{Rank: rank, Participants: members, FinalValue: rows[i].Value})
		rank += j - i
		i = j
	}
	return groups
}

// Calculate runs a strategy over the raw round results. Participants without
// a single parseable value are dropped from the output.
func Calculate(strategy Strategy, roundResults map[string]map[string]string, participants []int64, directionOverride string) []RankGroup {
	direction := directionOverride
	if direction == "" {
		direction = strategy.DefaultDirection()
	}

	rows := make([]scoredParticipant, 0, len(participants))
	for _, userID := range participants {
		key := strconv.FormatInt(userID, 10)
		var values []float64
		for _, byUser := range roundResults {
			raw, ok := byUser[key]
			if !ok {
				continue
			}
			if v, ok := ParseMeasuredValue(raw); ok {
				values = append(values, v)
			}
		}
		if len(values) == 0 {
			continue
		}
		rows = append(rows, scoredParticipant{UserID: userID, Value: strategy.Aggregate(values, direction)})
	}

	return groupByValue(rows, direction)
}

// Flatten converts rank groups to the legacy per-user list stored in
// game_results, one entry per user with the tie flag set for shared ranks.
func Flatten(groups []RankGroup, measurementUnit string) []models.DerivedRanking {
	var out []models.DerivedRanking
	for _, g := range groups {
		tied := len(g.Participants) > 1
		for _, userID := range g.Participants {
			out = append(out, models.DerivedRanking{
				UserID:          userID,
				Rank:            g.Rank,
				FinalValue:      g.FinalValue,
				MeasurementUnit: measurementUnit,
				IsTied:          tied,
			})
		}
	}
	return out
}
