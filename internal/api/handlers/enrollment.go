package handlers

import (
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/academyhq/tournament-engine/internal/api/middleware"
	"github.com/academyhq/tournament-engine/internal/models"
	"github.com/academyhq/tournament-engine/internal/services"
	"github.com/academyhq/tournament-engine/pkg/utils"
)

type EnrollmentHandler struct {
	db    *gorm.DB
	audit *services.AuditService
}

func NewEnrollmentHandler(db *gorm.DB, audit *services.AuditService) *EnrollmentHandler {
	return &EnrollmentHandler{db: db, audit: audit}
}

func loadEnrollableTournament(db *gorm.DB, id uint) (*models.Tournament, error) {
	var tournament models.Tournament
	if err := db.First(&tournament, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewAppError(utils.ErrCodeNotFound, "Tournament not found", "")
		}
		return nil, err
	}
	if tournament.Status != models.StatusReadyForEnrollment {
		return nil, utils.NewAppError(utils.ErrCodeInvalidTransition,
			"Tournament is not open for enrollment",
			fmt.Sprintf("status=%s", tournament.Status))
	}
	return &tournament, nil
}

// Enroll creates a pending enrollment for the caller.
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	tournamentID, err := pathID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	userID := middleware.CurrentUserID(c)

	var enrollment models.TournamentEnrollment
	err = h.db.Transaction(func(tx *gorm.DB) error {
		if _, err := loadEnrollableTournament(tx, tournamentID); err != nil {
			return err
		}

		var existing models.TournamentEnrollment
		err := tx.Where("tournament_id = ? AND user_id = ?", tournamentID, userID).
			First(&existing).Error
		if err == nil {
			if existing.IsActive {
				return utils.NewAppError(utils.ErrCodeConflict,
					"Already enrolled", fmt.Sprintf("enrollment_id=%d", existing.ID))
			}
			// Re-enrollment after withdrawal reactivates the row as pending.
			existing.IsActive = true
			existing.RequestStatus = models.EnrollmentPending
			existing.ApprovedAt = nil
			if err := tx.Save(&existing).Error; err != nil {
				return err
			}
			enrollment = existing
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		enrollment = models.TournamentEnrollment{
			TournamentID:  tournamentID,
			UserID:        userID,
			RequestStatus: models.EnrollmentPending,
			IsActive:      true,
		}
		if err := tx.Create(&enrollment).Error; err != nil {
			return err
		}
		h.audit.Log(tx, "tournament.enrolled", userID, "tournament", tournamentID, nil)
		return nil
	})
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SendCreated(c, enrollment)
}

// Unenroll withdraws the caller: the row stays for audit, flagged inactive.
func (h *EnrollmentHandler) Unenroll(c *gin.Context) {
	tournamentID, err := pathID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	userID := middleware.CurrentUserID(c)

	err = h.db.Transaction(func(tx *gorm.DB) error {
		var enrollment models.TournamentEnrollment
		err := tx.Where("tournament_id = ? AND user_id = ? AND is_active = ?",
			tournamentID, userID, true).First(&enrollment).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NewAppError(utils.ErrCodeNotFound, "Enrollment not found", "")
		}
		if err != nil {
			return err
		}

		var tournament models.Tournament
		if err := tx.First(&tournament, tournamentID).Error; err != nil {
			return err
		}
		if tournament.AcceptsResults() || tournament.IsTerminal() {
			return utils.NewAppError(utils.ErrCodeInvalidTransition,
				"Cannot withdraw after the tournament has started",
				fmt.Sprintf("status=%s", tournament.Status))
		}

		if err := tx.Model(&enrollment).Updates(map[string]interface{}{
			"is_active":      false,
			"request_status": models.EnrollmentCancelled,
		}).Error; err != nil {
			return err
		}
		h.audit.Log(tx, "tournament.unenrolled", userID, "tournament", tournamentID, nil)
		return nil
	})
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SendNoContent(c)
}

// ListEnrollments returns the roster, approved first.
func (h *EnrollmentHandler) ListEnrollments(c *gin.Context) {
	tournamentID, err := pathID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	var enrollments []models.TournamentEnrollment
	query := h.db.Where("tournament_id = ?", tournamentID)
	if c.Query("active") == "true" {
		query = query.Where("is_active = ?", true)
	}
	if status := c.Query("request_status"); status != "" {
		query = query.Where("request_status = ?", status)
	}
	if err := query.Order("request_status ASC, id ASC").Find(&enrollments).Error; err != nil {
		respondError(c, err)
		return
	}
	utils.SendSuccess(c, enrollments)
}

type reviewEnrollmentRequest struct {
	RequestStatus string `json:"request_status"` // APPROVED or DECLINED
}

// ReviewEnrollment approves or declines one pending request.
func (h *EnrollmentHandler) ReviewEnrollment(c *gin.Context) {
	tournamentID, err := pathID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	enrollmentID, err := pathID(c, "enrollmentId")
	if err != nil {
		respondError(c, err)
		return
	}
	var req reviewEnrollmentRequest
	if err := bindStrict(c, &req); err != nil {
		respondError(c, err)
		return
	}
	if req.RequestStatus != models.EnrollmentApproved && req.RequestStatus != models.EnrollmentDeclined {
		utils.SendValidationError(c, "request_status must be APPROVED or DECLINED", req.RequestStatus)
		return
	}

	var enrollment models.TournamentEnrollment
	err = h.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("id = ? AND tournament_id = ?", enrollmentID, tournamentID).
			First(&enrollment).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NewAppError(utils.ErrCodeNotFound, "Enrollment not found", "")
		}
		if err != nil {
			return err
		}

		updates := map[string]interface{}{"request_status": req.RequestStatus}
		if req.RequestStatus == models.EnrollmentApproved {
			now := time.Now().UTC()
			updates["approved_at"] = &now
		}
		if err := tx.Model(&enrollment).Updates(updates).Error; err != nil {
			return err
		}
		h.audit.Log(tx, "enrollment.reviewed", middleware.CurrentUserID(c),
			"enrollment", enrollment.ID,
			map[string]interface{}{"request_status": req.RequestStatus})
		return nil
	})
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SendSuccess(c, enrollment)
}

type batchEnrollRequest struct {
	UserIDs []uint `json:"user_ids"`
}

// BatchEnroll lets an admin register a list of users directly as approved,
// skipping the request flow. Existing rows are approved in place.
func (h *EnrollmentHandler) BatchEnroll(c *gin.Context) {
	tournamentID, err := pathID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	var req batchEnrollRequest
	if err := bindStrict(c, &req); err != nil {
		respondError(c, err)
		return
	}
	if len(req.UserIDs) == 0 {
		utils.SendValidationError(c, "user_ids is required", "")
		return
	}

	var enrolled []models.TournamentEnrollment
	err = h.db.Transaction(func(tx *gorm.DB) error {
		if _, err := loadEnrollableTournament(tx, tournamentID); err != nil {
			return err
		}
		now := time.Now().UTC()
		for _, userID := range req.UserIDs {
			var enrollment models.TournamentEnrollment
			err := tx.Where("tournament_id = ? AND user_id = ?", tournamentID, userID).
				First(&enrollment).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				enrollment = models.TournamentEnrollment{
					TournamentID: tournamentID,
					UserID:       userID,
				}
			} else if err != nil {
				return err
			}
			enrollment.IsActive = true
			enrollment.RequestStatus = models.EnrollmentApproved
			enrollment.ApprovedAt = &now
			if err := tx.Save(&enrollment).Error; err != nil {
				return err
			}
			enrolled = append(enrolled, enrollment)
		}
		h.audit.Log(tx, "tournament.batch_enrolled", middleware.CurrentUserID(c),
			"tournament", tournamentID,
			map[string]interface{}{"count": len(req.UserIDs)})
		return nil
	})
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SendCreated(c, enrolled)
}
