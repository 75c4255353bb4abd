package results

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/academyhq/tournament-engine/internal/models"
	"github.com/academyhq/tournament-engine/pkg/utils"
)

func intPtr(v int) *int           { return &v }
func strPtr(v string) *string     { return &v }
func floatPtr(v float64) *float64 { return &v }

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	appErr, ok := err.(*utils.AppError)
	require.True(t, ok, "expected AppError, got %T", err)
	assert.Equal(t, code, appErr.Code)
}

func TestProcessPlacements(t *testing.T) {
	p := NewProcessor()
	ranks, err := p.Process(models.MatchIndividualRanking, []SubmittedResult{
		{UserID: 1, Placement: intPtr(2)},
		{UserID: 2, Placement: intPtr(1)},
		{UserID: 3, Placement: intPtr(3)},
	})
	require.NoError(t, err)
	require.Len(t, ranks, 3)
	assert.Equal(t, 2, ranks[0].Rank)
	assert.Equal(t, 1, ranks[1].Rank)
}

func TestProcessPlacementsRejectsDuplicates(t *testing.T) {
	p := NewProcessor()
	_, err := p.Process(models.MatchIndividualRanking, []SubmittedResult{
		{UserID: 1, Placement: intPtr(1)},
		{UserID: 2, Placement: intPtr(1)},
	})
	assertCode(t, err, utils.ErrCodeInvalidResult)

	appErr := err.(*utils.AppError)
	assert.NotNil(t, appErr.Fields)
}

func TestProcessPlacementsMustStartAtOne(t *testing.T) {
	p := NewProcessor()
	_, err := p.Process(models.MatchIndividualRanking, []SubmittedResult{
		{UserID: 1, Placement: intPtr(2)},
		{UserID: 2, Placement: intPtr(3)},
	})
	assertCode(t, err, utils.ErrCodeInvalidResult)
}

func TestProcessPlacementsMustBeContiguous(t *testing.T) {
	p := NewProcessor()
	_, err := p.Process(models.MatchIndividualRanking, []SubmittedResult{
		{UserID: 1, Placement: intPtr(1)},
		{UserID: 2, Placement: intPtr(5)},
	})
	assertCode(t, err, utils.ErrCodeInvalidResult)
}

func TestProcessHeadToHeadWinLoss(t *testing.T) {
	p := NewProcessor()
	ranks, err := p.Process(models.MatchHeadToHead, []SubmittedResult{
		{UserID: 1, Result: strPtr("LOSS")},
		{UserID: 2, Result: strPtr("WIN")},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, ranks[0].Rank)
	assert.Equal(t, 1, ranks[1].Rank)
}

func TestProcessHeadToHeadRejectsTwoWinners(t *testing.T) {
	p := NewProcessor()
	_, err := p.Process(models.MatchHeadToHead, []SubmittedResult{
		{UserID: 1, Result: strPtr("WIN")},
		{UserID: 2, Result: strPtr("WIN")},
	})
	assertCode(t, err, utils.ErrCodeInvalidResult)
}

func TestProcessHeadToHeadScoreMode(t *testing.T) {
	p := NewProcessor()
	ranks, err := p.Process(models.MatchHeadToHead, []SubmittedResult{
		{UserID: 1, Score: floatPtr(21)},
		{UserID: 2, Score: floatPtr(15)},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, ranks[0].Rank)
	assert.Equal(t, 2, ranks[1].Rank)
}

func TestProcessHeadToHeadEqualScoresShareRankOne(t *testing.T) {
	p := NewProcessor()
	ranks, err := p.Process(models.MatchHeadToHead, []SubmittedResult{
		{UserID: 1, Score: floatPtr(10)},
		{UserID: 2, Score: floatPtr(10)},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, ranks[0].Rank)
	assert.Equal(t, 1, ranks[1].Rank)
}

func TestProcessHeadToHeadRequiresExactlyTwo(t *testing.T) {
	p := NewProcessor()
	_, err := p.Process(models.MatchHeadToHead, []SubmittedResult{
		{UserID: 1, Score: floatPtr(10)},
	})
	assertCode(t, err, utils.ErrCodeInvalidResult)
}

func TestProcessTeamMatch(t *testing.T) {
	p := NewProcessor()
	ranks, err := p.Process(models.MatchTeamMatch, []SubmittedResult{
		{UserID: 1, Team: strPtr("red"), TeamScore: floatPtr(3), OpponentScore: floatPtr(1)},
		{UserID: 2, Team: strPtr("red"), TeamScore: floatPtr(3), OpponentScore: floatPtr(1)},
		{UserID: 3, Team: strPtr("blue"), TeamScore: floatPtr(1), OpponentScore: floatPtr(3)},
		{UserID: 4, Team: strPtr("blue"), TeamScore: floatPtr(1), OpponentScore: floatPtr(3)},
	})
	require.NoError(t, err)
	require.Len(t, ranks, 4)
	assert.Equal(t, 1, ranks[0].Rank)
	assert.Equal(t, 1, ranks[1].Rank)
	assert.Equal(t, 2, ranks[2].Rank)
	assert.Equal(t, 2, ranks[3].Rank)
}

func TestProcessTeamMatchDrawRanksEveryoneFirst(t *testing.T) {
	p := NewProcessor()
	ranks, err := p.Process(models.MatchTeamMatch, []SubmittedResult{
		{UserID: 1, Team: strPtr("red"), TeamScore: floatPtr(2), OpponentScore: floatPtr(2)},
		{UserID: 2, Team: strPtr("blue"), TeamScore: floatPtr(2), OpponentScore: floatPtr(2)},
	})
	require.NoError(t, err)
	for _, r := range ranks {
		assert.Equal(t, 1, r.Rank)
	}
}

func TestProcessTeamMatchRequiresTwoTeams(t *testing.T) {
	p := NewProcessor()
	_, err := p.Process(models.MatchTeamMatch, []SubmittedResult{
		{UserID: 1, Team: strPtr("red"), TeamScore: floatPtr(2), OpponentScore: floatPtr(2)},
	})
	assertCode(t, err, utils.ErrCodeInvalidResult)
}

func TestProcessTimeBased(t *testing.T) {
	p := NewProcessor()
	ranks, err := p.Process(models.MatchTimeBased, []SubmittedResult{
		{UserID: 1, TimeSeconds: floatPtr(12.5)},
		{UserID: 2, TimeSeconds: floatPtr(11.8)},
		{UserID: 3, TimeSeconds: floatPtr(12.5)},
		{UserID: 4, TimeSeconds: floatPtr(14.0)},
	})
	require.NoError(t, err)
	require.Len(t, ranks, 4)

	byUser := make(map[int64]int)
	for _, r := range ranks {
		byUser[r.UserID] = r.Rank
	}
	assert.Equal(t, 1, byUser[2])
	assert.Equal(t, 2, byUser[1])
	assert.Equal(t, 2, byUser[3])
	assert.Equal(t, 4, byUser[4])
}

func TestProcessSkillRatingWithoutHookFails(t *testing.T) {
	p := NewProcessor()
	_, err := p.Process(models.MatchSkillRating, []SubmittedResult{{UserID: 1}})
	assertCode(t, err, utils.ErrCodeInvalidResult)
}

func TestProcessSkillRatingWithHook(t *testing.T) {
	p := NewProcessor().WithSkillRating(func(results []SubmittedResult) ([]ProcessedRank, error) {
		out := make([]ProcessedRank, 0, len(results))
		for i, r := range results {
			out = append(out, ProcessedRank{UserID: r.UserID, Rank: i + 1})
		}
		return out, nil
	})
	ranks, err := p.Process(models.MatchSkillRating, []SubmittedResult{{UserID: 5}, {UserID: 6}})
	require.NoError(t, err)
	assert.Equal(t, 1, ranks[0].Rank)
	assert.Equal(t, 2, ranks[1].Rank)
}

func TestProcessRejectsEmptyBatchAndUnknownFormat(t *testing.T) {
	p := NewProcessor()
	_, err := p.Process(models.MatchHeadToHead, nil)
	assertCode(t, err, utils.ErrCodeInvalidResult)

	_, err = p.Process("FREESTYLE", []SubmittedResult{{UserID: 1}})
	assertCode(t, err, utils.ErrCodeInvalidResult)
}
