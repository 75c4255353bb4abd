package results

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/academyhq/tournament-engine/internal/models"
	"github.com/academyhq/tournament-engine/pkg/utils"
)

func validatorDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Tournament{}, &models.TournamentEnrollment{}, &models.Session{},
	))
	return db
}

func enroll(t *testing.T, db *gorm.DB, tournamentID, userID uint, status string, active bool) {
	t.Helper()
	enrollment := models.TournamentEnrollment{
		TournamentID:  tournamentID,
		UserID:        userID,
		RequestStatus: status,
		IsActive:      active,
	}
	require.NoError(t, db.Create(&enrollment).Error)
	// IsActive has gorm:"default:true", so Create drops a zero-value false
	// and the DB default flips it; write it explicitly via a map update.
	if !active {
		require.NoError(t, db.Model(&enrollment).Update("is_active", false).Error)
	}
}

func TestEligibleUserIDs(t *testing.T) {
	db := validatorDB(t)
	tournament := models.Tournament{Name: "Cup", Status: models.StatusOngoing}
	require.NoError(t, db.Create(&tournament).Error)

	enroll(t, db, tournament.ID, 1, models.EnrollmentApproved, true)
	enroll(t, db, tournament.ID, 2, models.EnrollmentApproved, false)
	enroll(t, db, tournament.ID, 3, models.EnrollmentPending, true)
	enroll(t, db, tournament.ID, 4, models.EnrollmentApproved, true)

	eligible, err := NewValidator(db).EligibleUserIDs(tournament.ID)
	require.NoError(t, err)

	// Withdrawn and pending enrollments never count.
	assert.Equal(t, map[int64]bool{1: true, 4: true}, eligible)
}

func TestValidateSubmissionRejectsOutsiders(t *testing.T) {
	db := validatorDB(t)
	tournament := models.Tournament{Name: "Cup", Status: models.StatusOngoing}
	require.NoError(t, db.Create(&tournament).Error)
	enroll(t, db, tournament.ID, 1, models.EnrollmentApproved, true)
	enroll(t, db, tournament.ID, 2, models.EnrollmentApproved, true)

	session := models.Session{TournamentID: tournament.ID}
	batch := []SubmittedResult{{UserID: 1}, {UserID: 2}, {UserID: 99}}

	err := NewValidator(db).ValidateSubmission(&tournament, &session, batch)
	assertCode(t, err, utils.ErrCodeInvalidResult)
	appErr := err.(*utils.AppError)
	assert.Equal(t, []int64{99}, appErr.Fields)
}

func TestValidateSubmissionAcceptsFullRoster(t *testing.T) {
	db := validatorDB(t)
	tournament := models.Tournament{Name: "Cup", Status: models.StatusInProgress}
	require.NoError(t, db.Create(&tournament).Error)
	enroll(t, db, tournament.ID, 1, models.EnrollmentApproved, true)
	enroll(t, db, tournament.ID, 2, models.EnrollmentApproved, true)

	session := models.Session{TournamentID: tournament.ID}
	batch := []SubmittedResult{{UserID: 1}, {UserID: 2}}

	require.NoError(t, NewValidator(db).ValidateSubmission(&tournament, &session, batch))
}

func TestValidateSubmissionRequiresAcceptingStatus(t *testing.T) {
	db := validatorDB(t)
	for _, status := range []string{
		models.StatusDraft, models.StatusReadyForEnrollment,
		models.StatusCompleted, models.StatusCancelled,
	} {
		tournament := models.Tournament{Status: status}
		err := NewValidator(db).ValidateSubmission(&tournament, &models.Session{}, nil)
		assertCode(t, err, utils.ErrCodeInvalidResult)
	}
}

func TestValidateSubmissionRejectsFinalizedSession(t *testing.T) {
	db := validatorDB(t)
	tournament := models.Tournament{Name: "Cup", Status: models.StatusOngoing}
	require.NoError(t, db.Create(&tournament).Error)

	session := models.Session{
		TournamentID: tournament.ID,
		GameResults:  &models.GameResults{},
	}
	err := NewValidator(db).ValidateSubmission(&tournament, &session, nil)
	assertCode(t, err, utils.ErrCodeAlreadyFinalized)
}
