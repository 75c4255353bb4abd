package ranking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/academyhq/tournament-engine/internal/models"
)

func TestParseMeasuredValue(t *testing.T) {
	cases := []struct {
		raw   string
		want  float64
		valid bool
	}{
		{"12.5", 12.5, true},
		{"12.5s", 12.5, true},
		{"11 pts", 11, true},
		{"-3.2", -3.2, true},
		{"time: 9.87s", 9.87, true},
		{"1.2.3", 1.2, true},
		{"n/a", 0, false},
		{"", 0, false},
		{"--", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseMeasuredValue(tc.raw)
		assert.Equal(t, tc.valid, ok, "raw=%q", tc.raw)
		if tc.valid {
			assert.Equal(t, tc.want, got, "raw=%q", tc.raw)
		}
	}
}

func TestRoundsBasedTieGrouping(t *testing.T) {
	// Best single round counts; two players tied at 10 share rank 2 and the
	// next player drops to rank 4.
	roundResults := map[string]map[string]string{
		"1": {"1": "11", "2": "9", "3": "10", "4": "8"},
		"2": {"1": "7", "2": "10", "3": "6", "4": "9"},
	}
	groups := Calculate(RoundsBasedStrategy{}, roundResults, []int64{1, 2, 3, 4}, "")

	require.Len(t, groups, 3)
	assert.Equal(t, 1, groups[0].Rank)
	assert.Equal(t, []int64{1}, groups[0].Participants)
	assert.Equal(t, 11.0, groups[0].FinalValue)

	assert.Equal(t, 2, groups[1].Rank)
	assert.ElementsMatch(t, []int64{2, 3}, groups[1].Participants)
	assert.Equal(t, 10.0, groups[1].FinalValue)

	assert.Equal(t, 4, groups[2].Rank)
	assert.Equal(t, []int64{4}, groups[2].Participants)
	assert.Equal(t, 9.0, groups[2].FinalValue)
}

func TestScoreBasedAscOverride(t *testing.T) {
	// Scores still sum under an ASC override; only the ordering flips, so the
	// lowest total wins.
	roundResults := map[string]map[string]string{
		"1": {"10": "5", "20": "8"},
		"2": {"10": "5", "20": "1"},
	}
	groups := Calculate(ScoreBasedStrategy{}, roundResults, []int64{10, 20}, models.DirectionAsc)

	require.Len(t, groups, 2)
	assert.Equal(t, []int64{20}, groups[0].Participants)
	assert.Equal(t, 9.0, groups[0].FinalValue)
	assert.Equal(t, []int64{10}, groups[1].Participants)
	assert.Equal(t, 10.0, groups[1].FinalValue)

	assert.Equal(t, AggSum, ScoreBasedStrategy{}.AggregationLabel(models.DirectionAsc))
}

func TestPlacementSumsAcrossRounds(t *testing.T) {
	roundResults := map[string]map[string]string{
		"1": {"1": "1", "2": "2"},
		"2": {"1": "3", "2": "2"},
	}
	groups := Calculate(PlacementStrategy{}, roundResults, []int64{1, 2}, "")

	require.Len(t, groups, 2)
	assert.Equal(t, []int64{2}, groups[0].Participants)
	assert.Equal(t, 4.0, groups[0].FinalValue)
	assert.Equal(t, []int64{1}, groups[1].Participants)

	// The placement label is fixed regardless of direction.
	assert.Equal(t, AggSumPlacement, PlacementStrategy{}.AggregationLabel(models.DirectionAsc))
	assert.Equal(t, AggSumPlacement, PlacementStrategy{}.AggregationLabel(models.DirectionDesc))
}

func TestTimeBasedDirectionFlipsAggregation(t *testing.T) {
	values := []float64{12.5, 11.8, 13.0}
	assert.Equal(t, 11.8, TimeBasedStrategy{}.Aggregate(values, models.DirectionAsc))
	assert.Equal(t, 13.0, TimeBasedStrategy{}.Aggregate(values, models.DirectionDesc))
	assert.Equal(t, AggMinValue, TimeBasedStrategy{}.AggregationLabel(models.DirectionAsc))
	assert.Equal(t, AggMaxValue, TimeBasedStrategy{}.AggregationLabel(models.DirectionDesc))
}

func TestRoundsBasedAscOverrideFlips(t *testing.T) {
	values := []float64{5, 9, 7}
	assert.Equal(t, 9.0, RoundsBasedStrategy{}.Aggregate(values, models.DirectionDesc))
	assert.Equal(t, 5.0, RoundsBasedStrategy{}.Aggregate(values, models.DirectionAsc))
	assert.Equal(t, AggMinValue, RoundsBasedStrategy{}.AggregationLabel(models.DirectionAsc))
}

func TestDistanceBasedMatchesScoreBased(t *testing.T) {
	values := []float64{3.5, 4.0}
	assert.Equal(t, ScoreBasedStrategy{}.Aggregate(values, ""), DistanceBasedStrategy{}.Aggregate(values, ""))
	assert.Equal(t, AggSum, DistanceBasedStrategy{}.AggregationLabel(models.DirectionDesc))
	assert.Equal(t, models.DirectionDesc, DistanceBasedStrategy{}.DefaultDirection())
}

func TestCalculateSkipsUnparseableParticipants(t *testing.T) {
	roundResults := map[string]map[string]string{
		"1": {"1": "10", "2": "dnf", "3": "8"},
	}
	groups := Calculate(ScoreBasedStrategy{}, roundResults, []int64{1, 2, 3}, "")

	var all []int64
	for _, g := range groups {
		all = append(all, g.Participants...)
	}
	assert.ElementsMatch(t, []int64{1, 3}, all)
}

func TestFlattenMarksTies(t *testing.T) {
	groups := []RankGroup{
		{Rank: 1, Participants: []int64{1}, FinalValue: 11},
		{Rank: 2, Participants: []int64{2, 3}, FinalValue: 10},
	}
	flat := Flatten(groups, "pts")

	require.Len(t, flat, 3)
	assert.False(t, flat[0].IsTied)
	assert.True(t, flat[1].IsTied)
	assert.True(t, flat[2].IsTied)
	assert.Equal(t, "pts", flat[0].MeasurementUnit)
	assert.Equal(t, 2, flat[2].Rank)
}

func TestStrategyFactory(t *testing.T) {
	for _, scoringType := range []string{
		models.ScoringTimeBased, models.ScoringScoreBased, models.ScoringRoundsBased,
		models.ScoringDistanceBased, models.ScoringPlacement,
	} {
		s, err := StrategyFor(scoringType)
		require.NoError(t, err)
		assert.Equal(t, scoringType, s.Name())
	}

	_, err := StrategyFor("ELO")
	require.Error(t, err)

	assert.NoError(t, ValidateTypeCode(models.TypeLeague))
	assert.NoError(t, ValidateTypeCode(models.TypeKnockout))
	assert.NoError(t, ValidateTypeCode(models.TypeGroupKnockout))
	assert.Error(t, ValidateTypeCode(models.TypeSwiss))
	assert.Error(t, ValidateTypeCode("double_elimination"))
}

func TestDefaultRankingDirections(t *testing.T) {
	assert.Equal(t, models.DirectionAsc, models.DefaultRankingDirection(models.ScoringTimeBased))
	assert.Equal(t, models.DirectionAsc, models.DefaultRankingDirection(models.ScoringPlacement))
	assert.Equal(t, models.DirectionDesc, models.DefaultRankingDirection(models.ScoringScoreBased))
	assert.Equal(t, models.DirectionDesc, models.DefaultRankingDirection(models.ScoringRoundsBased))
	assert.Equal(t, models.DirectionDesc, models.DefaultRankingDirection(models.ScoringDistanceBased))
}
