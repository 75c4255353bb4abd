package lifecycle

import (
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/academyhq/tournament-engine/internal/models"
	"github.com/academyhq/tournament-engine/pkg/utils"
)

// permitted maps each status to the statuses it may move to. CANCELLED is
// reachable from every non-terminal state and handled separately.
var permitted = map[string][]string{
	models.StatusDraft:              {models.StatusSeekingInstructor, models.StatusReadyForEnrollment},
	models.StatusSeekingInstructor:  {models.StatusReadyForEnrollment},
	models.StatusReadyForEnrollment: {models.StatusOngoing},
	models.StatusOngoing:            {models.StatusInProgress},
	models.StatusInProgress:         {models.StatusCompleted},
}

// CanTransition reports whether from -> to is a legal lifecycle move.
func CanTransition(from, to string) bool {
	if to == models.StatusCancelled {
		return from != models.StatusCompleted && from != models.StatusCancelled
	}
	for _, next := range permitted[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition moves a tournament to newStatus and appends the history row in
// the same transaction. The caller supplies tx so the transition is atomic
// with whatever triggered it.
func Transition(tx *gorm.DB, t *models.Tournament, newStatus string, changedBy uint, reason string, metadata datatypes.JSON) error {
	if !CanTransition(t.Status, newStatus) {
		return utils.NewAppError(utils.ErrCodeInvalidTransition,
			"Transition not permitted",
			fmt.Sprintf("current=%s requested=%s", t.Status, newStatus))
	}

	oldStatus := t.Status
	if err := tx.Model(&models.Tournament{}).Where("id = ?", t.ID).
		Update("status", newStatus).Error; err != nil {
		return err
	}
	t.Status = newStatus

	entry := models.StatusHistoryEntry{
		TournamentID: t.ID,
		OldStatus:    oldStatus,
		NewStatus:    newStatus,
		ChangedBy:    changedBy,
		Reason:       reason,
		Metadata:     metadata,
	}
	return tx.Create(&entry).Error
}
