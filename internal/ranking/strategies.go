package ranking

import "github.com/academyhq/tournament-engine/internal/models"

func minOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func sumOf(values []float64) float64 {
	var s float64
	for _, v := range values {
		s += v
	}
	return s
}

// TimeBasedStrategy keeps each participant's best (lowest) time. A DESC
// override flips both the sort and the aggregation to worst-time-first.
type TimeBasedStrategy struct{}

func (TimeBasedStrategy) Name() string             { return models.ScoringTimeBased }
func (TimeBasedStrategy) DefaultDirection() string { return models.DirectionAsc }

func (TimeBasedStrategy) Aggregate(values []float64, direction string) float64 {
	if direction == models.DirectionDesc {
		return maxOf(values)
	}
	return minOf(values)
}

func (TimeBasedStrategy) AggregationLabel(direction string) string {
	if direction == models.DirectionDesc {
		return AggMaxValue
	}
	return AggMinValue
}

// ScoreBasedStrategy sums scores across rounds; only the sort direction flips
// on override.
type ScoreBasedStrategy struct{}

func (ScoreBasedStrategy) Name() string                            { return models.ScoringScoreBased }
func (ScoreBasedStrategy) DefaultDirection() string                { return models.DirectionDesc }
func (ScoreBasedStrategy) Aggregate(v []float64, _ string) float64 { return sumOf(v) }
func (ScoreBasedStrategy) AggregationLabel(_ string) string        { return AggSum }

// RoundsBasedStrategy keeps the best (highest) single-round result; an ASC
// override flips to lowest-first.
type RoundsBasedStrategy struct{}

func (RoundsBasedStrategy) Name() string             { return models.ScoringRoundsBased }
func (RoundsBasedStrategy) DefaultDirection() string { return models.DirectionDesc }

func (RoundsBasedStrategy) Aggregate(values []float64, direction string) float64 {
	if direction == models.DirectionAsc {
		return minOf(values)
	}
	return maxOf(values)
}

func (RoundsBasedStrategy) AggregationLabel(direction string) string {
	if direction == models.DirectionAsc {
		return AggMinValue
	}
	return AggMaxValue
}

// PlacementStrategy sums placements; lower totals win in every direction and
// the label never changes.
type PlacementStrategy struct{}

func (PlacementStrategy) Name() string                            { return models.ScoringPlacement }
func (PlacementStrategy) DefaultDirection() string                { return models.DirectionAsc }
func (PlacementStrategy) Aggregate(v []float64, _ string) float64 { return sumOf(v) }
func (PlacementStrategy) AggregationLabel(_ string) string        { return AggSumPlacement }

// DistanceBasedStrategy behaves exactly like score-based scoring.
type DistanceBasedStrategy struct{}

func (DistanceBasedStrategy) Name() string                            { return models.ScoringDistanceBased }
func (DistanceBasedStrategy) DefaultDirection() string                { return models.DirectionDesc }
func (DistanceBasedStrategy) Aggregate(v []float64, _ string) float64 { return sumOf(v) }
func (DistanceBasedStrategy) AggregationLabel(_ string) string        { return AggSum }
