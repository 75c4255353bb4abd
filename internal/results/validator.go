package results

import (
	"fmt"

	"github.com/academyhq/tournament-engine/internal/models"
	"github.com/academyhq/tournament-engine/pkg/utils"
	"gorm.io/gorm"
)

// Validator gates result submissions against the roster and session state.
type Validator struct {
	db *gorm.DB
}

func NewValidator(db *gorm.DB) *Validator {
	return &Validator{db: db}
}

// EligibleUserIDs returns the active approved roster of a tournament.
func (v *Validator) EligibleUserIDs(tournamentID uint) (map[int64]bool, error) {
	var enrollments []models.TournamentEnrollment
	err := v.db.Where("tournament_id = ? AND is_active = ? AND request_status = ?",
		tournamentID, true, models.EnrollmentApproved).Find(&enrollments).Error
	if err != nil {
		return nil, err
	}
	eligible := make(map[int64]bool, len(enrollments))
	for _, e := range enrollments {
		eligible[int64(e.UserID)] = true
	}
	return eligible, nil
}

// ValidateSubmission checks the batch before any result is accepted: every
// submitter must hold an active approved enrollment, the tournament must be
// accepting results and the session must not be finalized yet.
func (v *Validator) ValidateSubmission(tournament *models.Tournament, session *models.Session, batch []SubmittedResult) error {
	if !tournament.AcceptsResults() {
		return utils.NewAppError(utils.ErrCodeInvalidResult,
			"Tournament is not accepting results",
			fmt.Sprintf("status=%s", tournament.Status))
	}
	if session.GameResults != nil {
		return utils.NewAppError(utils.ErrCodeAlreadyFinalized,
			"Session results already recorded",
			fmt.Sprintf("session_id=%d", session.ID))
	}

	eligible, err := v.EligibleUserIDs(tournament.ID)
	if err != nil {
		return err
	}
	var outsiders []int64
	for _, r := range batch {
		if !eligible[r.UserID] {
			outsiders = append(outsiders, r.UserID)
		}
	}
	if len(outsiders) > 0 {
		return utils.NewAppError(utils.ErrCodeInvalidResult,
			"Users are not enrolled in this tournament", "").WithFields(outsiders)
	}
	return nil
}
