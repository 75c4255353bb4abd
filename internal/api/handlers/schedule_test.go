package handlers

import (
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/academyhq/tournament-engine/internal/models"
	"github.com/academyhq/tournament-engine/internal/services"
	"github.com/academyhq/tournament-engine/pkg/config"
)

func handlerDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{}, &models.Tournament{}, &models.TournamentEnrollment{},
		&models.Session{}, &models.CampusScheduleConfig{}, &models.AuditLog{},
	))
	return db
}

func handlerConfig() *config.Config {
	return &config.Config{
		TournamentTimezone:   "Europe/Budapest",
		MatchDurationMinutes: 30,
		BreakDurationMinutes: 10,
		ParallelFields:       1,
		MatchDayStart:        "09:00",
	}
}

// requestContext builds a gin context carrying a JSON body and the tournament
// id path parameter, the shape the route table produces.
func requestContext(method, body string, tournamentID uint) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, "/", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "id", Value: strconv.FormatUint(uint64(tournamentID), 10)}}
	c.Set("user_id", uint(9))
	return c, w
}

func leagueTournament(t *testing.T, db *gorm.DB, status string) *models.Tournament {
	t.Helper()
	tournament := models.Tournament{
		Name:                 "Spring League",
		StartDate:            time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		EndDate:              time.Date(2026, 6, 7, 0, 0, 0, 0, time.UTC),
		Timezone:             "Europe/Budapest",
		Format:               models.FormatHeadToHead,
		TypeCode:             models.TypeLeague,
		MatchDurationMinutes: 30,
		BreakDurationMinutes: 10,
		ParallelFields:       1,
		Status:               status,
	}
	require.NoError(t, db.Create(&tournament).Error)
	for i := uint(1); i <= 4; i++ {
		require.NoError(t, db.Create(&models.TournamentEnrollment{
			TournamentID:  tournament.ID,
			UserID:        i,
			RequestStatus: models.EnrollmentApproved,
			IsActive:      true,
		}).Error)
	}
	return &tournament
}

func seedSession(t *testing.T, db *gorm.DB, tournamentID uint) {
	t.Helper()
	require.NoError(t, db.Create(&models.Session{
		TournamentID:       tournamentID,
		Title:              "Match 1",
		DateStart:          "2026-06-01T09:00:00",
		DateEnd:            "2026-06-01T09:30:00",
		Phase:              models.PhaseKnockout,
		Round:              1,
		MatchFormat:        models.MatchHeadToHead,
		ParticipantUserIDs: []int64{1, 2},
	}).Error)
}

func TestGenerateSessionsReplacesScheduleWhileDrafting(t *testing.T) {
	db := handlerDB(t)
	h := NewScheduleHandler(db, handlerConfig(), services.NewAuditService())
	tournament := leagueTournament(t, db, models.StatusDraft)
	seedSession(t, db, tournament.ID)

	c, w := requestContext("POST", `{}`, tournament.ID)
	h.GenerateSessions(c)
	require.Equal(t, 201, w.Code, w.Body.String())

	// The stale session is gone; a 4-player league is 6 matches.
	var sessions []models.Session
	require.NoError(t, db.Where("tournament_id = ?", tournament.ID).Find(&sessions).Error)
	assert.Len(t, sessions, 6)
	for _, s := range sessions {
		assert.NotEqual(t, "Match 1", s.Title)
	}
}

func TestGenerateSessionsRefusedOnceEnrollmentOpens(t *testing.T) {
	db := handlerDB(t)
	h := NewScheduleHandler(db, handlerConfig(), services.NewAuditService())
	tournament := leagueTournament(t, db, models.StatusReadyForEnrollment)
	seedSession(t, db, tournament.ID)

	c, w := requestContext("POST", `{}`, tournament.ID)
	h.GenerateSessions(c)
	assert.Equal(t, 409, w.Code, w.Body.String())

	// The existing schedule is untouched.
	var count int64
	db.Model(&models.Session{}).Where("tournament_id = ?", tournament.ID).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestGenerateSessionsAfterExplicitWipe(t *testing.T) {
	db := handlerDB(t)
	h := NewScheduleHandler(db, handlerConfig(), services.NewAuditService())
	tournament := leagueTournament(t, db, models.StatusReadyForEnrollment)
	seedSession(t, db, tournament.ID)

	c, w := requestContext("DELETE", ``, tournament.ID)
	h.WipeSessions(c)
	// Status-only responses are not flushed to the recorder by
	// gin.CreateTestContext without an explicit WriteHeaderNow.
	c.Writer.WriteHeaderNow()
	require.Equal(t, 204, w.Code)

	c, w = requestContext("POST", `{}`, tournament.ID)
	h.GenerateSessions(c)
	require.Equal(t, 201, w.Code, w.Body.String())

	var count int64
	db.Model(&models.Session{}).Where("tournament_id = ?", tournament.ID).Count(&count)
	assert.Equal(t, int64(6), count)
}

func TestUpdateScheduleConfigRejectsOutOfRangeValues(t *testing.T) {
	db := handlerDB(t)
	h := NewScheduleHandler(db, handlerConfig(), services.NewAuditService())
	tournament := leagueTournament(t, db, models.StatusDraft)

	for _, body := range []string{
		`{"match_duration_minutes": 481}`,
		`{"match_duration_minutes": 0}`,
		`{"break_duration_minutes": 121}`,
		`{"break_duration_minutes": -1}`,
		`{"parallel_fields": 21}`,
		`{"parallel_fields": 0}`,
	} {
		c, w := requestContext("PATCH", body, tournament.ID)
		h.UpdateScheduleConfig(c)
		assert.Equal(t, 422, w.Code, body)
	}

	c, w := requestContext("PATCH", `{"match_duration_minutes": 480, "break_duration_minutes": 0, "parallel_fields": 20}`, tournament.ID)
	h.UpdateScheduleConfig(c)
	require.Equal(t, 200, w.Code, w.Body.String())

	var stored models.Tournament
	require.NoError(t, db.First(&stored, tournament.ID).Error)
	assert.Equal(t, 480, stored.MatchDurationMinutes)
	assert.Equal(t, 0, stored.BreakDurationMinutes)
	assert.Equal(t, 20, stored.ParallelFields)
}

func TestUpsertCampusConfigRejectsOutOfRangeValues(t *testing.T) {
	db := handlerDB(t)
	h := NewScheduleHandler(db, handlerConfig(), services.NewAuditService())
	tournament := leagueTournament(t, db, models.StatusDraft)

	c, w := requestContext("PUT", `{"campus_id": 3, "match_duration_minutes": 500}`, tournament.ID)
	h.UpsertCampusConfig(c)
	assert.Equal(t, 422, w.Code, w.Body.String())

	c, w = requestContext("PUT", `{"campus_id": 3, "match_duration_minutes": 45}`, tournament.ID)
	h.UpsertCampusConfig(c)
	require.Equal(t, 200, w.Code, w.Body.String())
}
