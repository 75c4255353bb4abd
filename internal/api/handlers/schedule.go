package handlers

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/academyhq/tournament-engine/internal/api/middleware"
	"github.com/academyhq/tournament-engine/internal/models"
	"github.com/academyhq/tournament-engine/internal/scheduler"
	"github.com/academyhq/tournament-engine/internal/services"
	"github.com/academyhq/tournament-engine/pkg/config"
	"github.com/academyhq/tournament-engine/pkg/utils"
)

type ScheduleHandler struct {
	db    *gorm.DB
	cfg   *config.Config
	audit *services.AuditService
}

func NewScheduleHandler(db *gorm.DB, cfg *config.Config, audit *services.AuditService) *ScheduleHandler {
	return &ScheduleHandler{db: db, cfg: cfg, audit: audit}
}

type generateRequest struct {
	TotalRounds  int    `json:"total_rounds"`
	GroupCount   int    `json:"group_count"`
	TopNPerGroup int    `json:"top_n_per_group"`
	CampusID     *uint  `json:"campus_id"`
	DayStart     string `json:"day_start"` // "09:00"
}

func (h *ScheduleHandler) options(req generateRequest) scheduler.Options {
	dayStart := req.DayStart
	if dayStart == "" {
		dayStart = h.cfg.MatchDayStart
	}
	return scheduler.Options{
		TotalRounds:  req.TotalRounds,
		GroupCount:   req.GroupCount,
		TopNPerGroup: req.TopNPerGroup,
		CampusID:     req.CampusID,
		DayStart:     dayStart,
	}
}

// roster returns the approved active participants ordered by enrollment id;
// enrollment order doubles as the initial seeding.
func roster(db *gorm.DB, tournamentID uint) ([]int64, error) {
	var enrollments []models.TournamentEnrollment
	err := db.Where("tournament_id = ? AND is_active = ? AND request_status = ?",
		tournamentID, true, models.EnrollmentApproved).
		Order("id ASC").Find(&enrollments).Error
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(enrollments))
	for _, e := range enrollments {
		ids = append(ids, int64(e.UserID))
	}
	return ids, nil
}

// GenerateSessions creates the full schedule. Refused once results exist.
// An existing schedule is silently replaced only in DRAFT and
// SEEKING_INSTRUCTOR; after enrollment opens the caller must delete the old
// schedule explicitly before regenerating.
func (h *ScheduleHandler) GenerateSessions(c *gin.Context) {
	tournamentID, err := pathID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	var req generateRequest
	if err := bindStrict(c, &req); err != nil {
		respondError(c, err)
		return
	}

	var sessions []models.Session
	err = h.db.Transaction(func(tx *gorm.DB) error {
		var tournament models.Tournament
		if err := tx.First(&tournament, tournamentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.NewAppError(utils.ErrCodeNotFound, "Tournament not found", "")
			}
			return err
		}
		if tournament.AcceptsResults() || tournament.IsTerminal() {
			return utils.NewAppError(utils.ErrCodeInvalidTransition,
				"Schedule is frozen once the tournament starts",
				fmt.Sprintf("status=%s", tournament.Status))
		}

		// Regeneration only while no result has been recorded.
		var recorded int64
		if err := tx.Model(&models.Session{}).
			Where("tournament_id = ? AND game_results IS NOT NULL", tournamentID).
			Count(&recorded).Error; err != nil {
			return err
		}
		if recorded > 0 {
			return utils.NewAppError(utils.ErrCodeConflict,
				"Sessions with recorded results cannot be regenerated",
				fmt.Sprintf("recorded=%d", recorded))
		}

		var existing int64
		if err := tx.Model(&models.Session{}).
			Where("tournament_id = ?", tournamentID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			implicitWipe := tournament.Status == models.StatusDraft ||
				tournament.Status == models.StatusSeekingInstructor
			if !implicitWipe {
				return utils.NewAppError(utils.ErrCodeConflict,
					"A schedule already exists; delete it before regenerating",
					fmt.Sprintf("sessions=%d status=%s", existing, tournament.Status))
			}
			if err := tx.Where("tournament_id = ?", tournamentID).
				Delete(&models.Session{}).Error; err != nil {
				return err
			}
		}

		participants, err := roster(tx, tournamentID)
		if err != nil {
			return err
		}
		var campusConfigs []models.CampusScheduleConfig
		if err := tx.Where("tournament_id = ?", tournamentID).
			Find(&campusConfigs).Error; err != nil {
			return err
		}

		sessions, err = scheduler.Generate(&tournament, participants, campusConfigs, h.options(req))
		if err != nil {
			return err
		}
		for i := range sessions {
			if err := tx.Create(&sessions[i]).Error; err != nil {
				return err
			}
		}
		h.audit.Log(tx, "tournament.sessions_generated", middleware.CurrentUserID(c),
			"tournament", tournamentID,
			map[string]interface{}{"sessions": len(sessions), "participants": len(participants)})
		return nil
	})
	if err != nil {
		respondError(c, err)
		return
	}
	scheduler.SortForDisplay(sessions)
	utils.SendCreated(c, sessions)
}

// PreviewSessions runs the generator without persisting anything. Options
// come from query parameters so the dry-run stays a plain GET.
func (h *ScheduleHandler) PreviewSessions(c *gin.Context) {
	tournamentID, err := pathID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	var req generateRequest
	req.TotalRounds, _ = strconv.Atoi(c.Query("total_rounds"))
	req.GroupCount, _ = strconv.Atoi(c.Query("group_count"))
	req.TopNPerGroup, _ = strconv.Atoi(c.Query("top_n_per_group"))
	req.DayStart = c.Query("day_start")
	if raw := c.Query("campus_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			utils.SendValidationError(c, "campus_id must be an integer", "")
			return
		}
		campusID := uint(id)
		req.CampusID = &campusID
	}

	var tournament models.Tournament
	if err := h.db.First(&tournament, tournamentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.SendNotFound(c, "Tournament not found")
			return
		}
		respondError(c, err)
		return
	}
	participants, err := roster(h.db, tournamentID)
	if err != nil {
		respondError(c, err)
		return
	}
	var campusConfigs []models.CampusScheduleConfig
	if err := h.db.Where("tournament_id = ?", tournamentID).
		Find(&campusConfigs).Error; err != nil {
		respondError(c, err)
		return
	}

	sessions, err := scheduler.Generate(&tournament, participants, campusConfigs, h.options(req))
	if err != nil {
		respondError(c, err)
		return
	}
	scheduler.SortForDisplay(sessions)
	utils.SendSuccess(c, sessions)
}

// ListSessions returns the schedule in display order.
func (h *ScheduleHandler) ListSessions(c *gin.Context) {
	tournamentID, err := pathID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	var sessions []models.Session
	query := h.db.Where("tournament_id = ?", tournamentID)
	if phase := c.Query("phase"); phase != "" {
		query = query.Where("phase = ?", phase)
	}
	if err := query.Find(&sessions).Error; err != nil {
		respondError(c, err)
		return
	}
	scheduler.SortForDisplay(sessions)
	utils.SendSuccess(c, sessions)
}

func (h *ScheduleHandler) GetSession(c *gin.Context) {
	tournamentID, err := pathID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	sessionID, err := pathID(c, "sessionId")
	if err != nil {
		respondError(c, err)
		return
	}
	var session models.Session
	if err := h.db.Where("id = ? AND tournament_id = ?", sessionID, tournamentID).
		First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.SendNotFound(c, "Session not found")
			return
		}
		respondError(c, err)
		return
	}
	utils.SendSuccess(c, session)
}

// WipeSessions deletes the schedule; refused once any result is recorded.
func (h *ScheduleHandler) WipeSessions(c *gin.Context) {
	tournamentID, err := pathID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	err = h.db.Transaction(func(tx *gorm.DB) error {
		var recorded int64
		if err := tx.Model(&models.Session{}).
			Where("tournament_id = ? AND game_results IS NOT NULL", tournamentID).
			Count(&recorded).Error; err != nil {
			return err
		}
		if recorded > 0 {
			return utils.NewAppError(utils.ErrCodeConflict,
				"Sessions with recorded results cannot be deleted",
				fmt.Sprintf("recorded=%d", recorded))
		}
		if err := tx.Where("tournament_id = ?", tournamentID).
			Delete(&models.Session{}).Error; err != nil {
			return err
		}
		h.audit.Log(tx, "tournament.sessions_wiped", middleware.CurrentUserID(c),
			"tournament", tournamentID, nil)
		return nil
	})
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SendNoContent(c)
}

type campusConfigRequest struct {
	CampusID             uint   `json:"campus_id"`
	MatchDurationMinutes int    `json:"match_duration_minutes"`
	BreakDurationMinutes int    `json:"break_duration_minutes"`
	ParallelFields       int    `json:"parallel_fields"`
	VenueLabel           string `json:"venue_label"`
}

// UpsertCampusConfig creates or replaces the per-campus schedule override.
func (h *ScheduleHandler) UpsertCampusConfig(c *gin.Context) {
	tournamentID, err := pathID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	var req campusConfigRequest
	if err := bindStrict(c, &req); err != nil {
		respondError(c, err)
		return
	}
	if req.CampusID == 0 {
		utils.SendValidationError(c, "campus_id is required", "")
		return
	}
	// Zero means "no override here", so only set values are range checked.
	if req.MatchDurationMinutes != 0 {
		if appErr := scheduler.ValidateMatchDuration(req.MatchDurationMinutes); appErr != nil {
			respondError(c, appErr)
			return
		}
	}
	if req.BreakDurationMinutes != 0 {
		if appErr := scheduler.ValidateBreakDuration(req.BreakDurationMinutes); appErr != nil {
			respondError(c, appErr)
			return
		}
	}
	if req.ParallelFields != 0 {
		if appErr := scheduler.ValidateParallelFields(req.ParallelFields); appErr != nil {
			respondError(c, appErr)
			return
		}
	}

	var cfg models.CampusScheduleConfig
	err = h.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("tournament_id = ? AND campus_id = ?", tournamentID, req.CampusID).
			First(&cfg).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			cfg = models.CampusScheduleConfig{
				TournamentID: tournamentID,
				CampusID:     req.CampusID,
			}
		} else if err != nil {
			return err
		}
		cfg.MatchDurationMinutes = req.MatchDurationMinutes
		cfg.BreakDurationMinutes = req.BreakDurationMinutes
		cfg.ParallelFields = req.ParallelFields
		cfg.VenueLabel = req.VenueLabel
		cfg.IsActive = true
		return tx.Save(&cfg).Error
	})
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SendSuccess(c, cfg)
}

func (h *ScheduleHandler) ListCampusConfigs(c *gin.Context) {
	tournamentID, err := pathID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	var configs []models.CampusScheduleConfig
	if err := h.db.Where("tournament_id = ?", tournamentID).
		Order("campus_id ASC").Find(&configs).Error; err != nil {
		respondError(c, err)
		return
	}
	utils.SendSuccess(c, configs)
}

func (h *ScheduleHandler) DeleteCampusConfig(c *gin.Context) {
	tournamentID, err := pathID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	campusID, err := pathID(c, "campusId")
	if err != nil {
		respondError(c, err)
		return
	}
	result := h.db.Where("tournament_id = ? AND campus_id = ?", tournamentID, campusID).
		Delete(&models.CampusScheduleConfig{})
	if result.Error != nil {
		respondError(c, result.Error)
		return
	}
	if result.RowsAffected == 0 {
		utils.SendNotFound(c, "Campus schedule config not found")
		return
	}
	utils.SendNoContent(c)
}

type scheduleConfigRequest struct {
	MatchDurationMinutes *int `json:"match_duration_minutes"`
	BreakDurationMinutes *int `json:"break_duration_minutes"`
	ParallelFields       *int `json:"parallel_fields"`
}

type scheduleConfigView struct {
	MatchDurationMinutes int `json:"match_duration_minutes"`
	BreakDurationMinutes int `json:"break_duration_minutes"`
	ParallelFields       int `json:"parallel_fields"`
}

// GetScheduleConfig returns the tournament-level scheduling defaults.
func (h *ScheduleHandler) GetScheduleConfig(c *gin.Context) {
	tournamentID, err := pathID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	var tournament models.Tournament
	if err := h.db.First(&tournament, tournamentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.SendNotFound(c, "Tournament not found")
			return
		}
		respondError(c, err)
		return
	}
	utils.SendSuccess(c, scheduleConfigView{
		MatchDurationMinutes: tournament.MatchDurationMinutes,
		BreakDurationMinutes: tournament.BreakDurationMinutes,
		ParallelFields:       tournament.ParallelFields,
	})
}

// UpdateScheduleConfig patches the tournament-level scheduling defaults.
// Frozen once the tournament accepts results, like the schedule itself.
func (h *ScheduleHandler) UpdateScheduleConfig(c *gin.Context) {
	tournamentID, err := pathID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	var req scheduleConfigRequest
	if err := bindStrict(c, &req); err != nil {
		respondError(c, err)
		return
	}

	var tournament models.Tournament
	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&tournament, tournamentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.NewAppError(utils.ErrCodeNotFound, "Tournament not found", "")
			}
			return err
		}
		if tournament.AcceptsResults() || tournament.IsTerminal() {
			return utils.NewAppError(utils.ErrCodeInvalidTransition,
				"Schedule config is frozen once the tournament starts",
				fmt.Sprintf("status=%s", tournament.Status))
		}
		if req.MatchDurationMinutes != nil {
			if appErr := scheduler.ValidateMatchDuration(*req.MatchDurationMinutes); appErr != nil {
				return appErr
			}
			tournament.MatchDurationMinutes = *req.MatchDurationMinutes
		}
		if req.BreakDurationMinutes != nil {
			if appErr := scheduler.ValidateBreakDuration(*req.BreakDurationMinutes); appErr != nil {
				return appErr
			}
			tournament.BreakDurationMinutes = *req.BreakDurationMinutes
		}
		if req.ParallelFields != nil {
			if appErr := scheduler.ValidateParallelFields(*req.ParallelFields); appErr != nil {
				return appErr
			}
			tournament.ParallelFields = *req.ParallelFields
		}
		return tx.Save(&tournament).Error
	})
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SendSuccess(c, scheduleConfigView{
		MatchDurationMinutes: tournament.MatchDurationMinutes,
		BreakDurationMinutes: tournament.BreakDurationMinutes,
		ParallelFields:       tournament.ParallelFields,
	})
}
