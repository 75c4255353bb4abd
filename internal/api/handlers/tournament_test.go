package handlers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/academyhq/tournament-engine/internal/models"
	"github.com/academyhq/tournament-engine/internal/services"
	"github.com/academyhq/tournament-engine/pkg/utils"
)

func validCreateRequest() createTournamentRequest {
	return createTournamentRequest{
		Name:        "Sprint Cup",
		StartDate:   time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2026, 6, 7, 0, 0, 0, 0, time.UTC),
		Format:      models.FormatIndividualRanking,
		ScoringType: models.ScoringTimeBased,
	}
}

func TestCreateTournamentRequestTimingBounds(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*createTournamentRequest)
		valid  bool
	}{
		{"defaults pass", func(r *createTournamentRequest) {}, true},
		{"match at upper bound", func(r *createTournamentRequest) { r.MatchDuration = 480 }, true},
		{"match above upper bound", func(r *createTournamentRequest) { r.MatchDuration = 481 }, false},
		{"match negative", func(r *createTournamentRequest) { r.MatchDuration = -5 }, false},
		{"break at upper bound", func(r *createTournamentRequest) { r.BreakDuration = 120 }, true},
		{"break above upper bound", func(r *createTournamentRequest) { r.BreakDuration = 121 }, false},
		{"fields at upper bound", func(r *createTournamentRequest) { r.ParallelFields = 20 }, true},
		{"fields above upper bound", func(r *createTournamentRequest) { r.ParallelFields = 21 }, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validCreateRequest()
			tc.mutate(&req)
			appErr := req.validate()
			if tc.valid {
				assert.Nil(t, appErr)
			} else {
				require.NotNil(t, appErr)
				assert.Equal(t, utils.ErrCodeValidation, appErr.Code)
			}
		})
	}
}

func TestUpdateTournamentRejectsOutOfRangeTiming(t *testing.T) {
	db := handlerDB(t)
	h := NewTournamentHandler(db, handlerConfig(), services.NewAuditService())
	tournament := leagueTournament(t, db, models.StatusDraft)

	for _, body := range []string{
		`{"match_duration_minutes": 481}`,
		`{"break_duration_minutes": 121}`,
		`{"parallel_fields": 21}`,
	} {
		c, w := requestContext("PATCH", body, tournament.ID)
		h.UpdateTournament(c)
		assert.Equal(t, 422, w.Code, body)
	}

	// Values inside the range are applied.
	c, w := requestContext("PATCH", `{"match_duration_minutes": 90}`, tournament.ID)
	h.UpdateTournament(c)
	require.Equal(t, 200, w.Code, w.Body.String())

	var stored models.Tournament
	require.NoError(t, db.First(&stored, tournament.ID).Error)
	assert.Equal(t, 90, stored.MatchDurationMinutes)
}
