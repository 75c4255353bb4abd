package handlers

import (
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/academyhq/tournament-engine/internal/api/middleware"
	"github.com/academyhq/tournament-engine/internal/lifecycle"
	"github.com/academyhq/tournament-engine/internal/models"
	"github.com/academyhq/tournament-engine/internal/ranking"
	"github.com/academyhq/tournament-engine/internal/scheduler"
	"github.com/academyhq/tournament-engine/internal/services"
	"github.com/academyhq/tournament-engine/pkg/config"
	"github.com/academyhq/tournament-engine/pkg/utils"
)

type TournamentHandler struct {
	db    *gorm.DB
	cfg   *config.Config
	audit *services.AuditService
}

func NewTournamentHandler(db *gorm.DB, cfg *config.Config, audit *services.AuditService) *TournamentHandler {
	return &TournamentHandler{db: db, cfg: cfg, audit: audit}
}

type createTournamentRequest struct {
	Name             string                   `json:"name"`
	Code             string                   `json:"code"`
	Specialization   string                   `json:"specialization"`
	AgeGroup         string                   `json:"age_group"`
	StartDate        time.Time                `json:"start_date"`
	EndDate          time.Time                `json:"end_date"`
	Timezone         string                   `json:"timezone"`
	Format           string                   `json:"tournament_format"`
	TypeCode         string                   `json:"tournament_type_code"`
	ScoringType      string                   `json:"scoring_type"`
	RankingDirection string                   `json:"ranking_direction"`
	MeasurementUnit  string                   `json:"measurement_unit"`
	MatchDuration    int                      `json:"match_duration_minutes"`
	BreakDuration    int                      `json:"break_duration_minutes"`
	ParallelFields   int                      `json:"parallel_fields"`
	Config           *models.TournamentConfig `json:"tournament_config_obj"`
}

func (r *createTournamentRequest) validate() *utils.AppError {
	if r.Name == "" {
		return utils.NewAppError(utils.ErrCodeValidation, "Name is required", "")
	}
	if r.StartDate.IsZero() || r.EndDate.IsZero() {
		return utils.NewAppError(utils.ErrCodeValidation, "start_date and end_date are required", "")
	}
	if r.EndDate.Before(r.StartDate) {
		return utils.NewAppError(utils.ErrCodeValidation, "end_date must not precede start_date", "")
	}

	switch r.Format {
	case models.FormatIndividualRanking:
		if _, err := ranking.StrategyFor(r.ScoringType); err != nil {
			var appErr *utils.AppError
			if errors.As(err, &appErr) {
				return appErr
			}
			return utils.NewAppError(utils.ErrCodeValidation, "Invalid scoring type", r.ScoringType)
		}
	case models.FormatHeadToHead:
		if err := ranking.ValidateTypeCode(r.TypeCode); err != nil {
			var appErr *utils.AppError
			if errors.As(err, &appErr) {
				return appErr
			}
			return utils.NewAppError(utils.ErrCodeValidation, "Invalid tournament type code", r.TypeCode)
		}
	default:
		return utils.NewAppError(utils.ErrCodeValidation,
			"tournament_format must be INDIVIDUAL_RANKING or HEAD_TO_HEAD", r.Format)
	}

	switch r.RankingDirection {
	case "", models.DirectionAsc, models.DirectionDesc:
	default:
		return utils.NewAppError(utils.ErrCodeValidation,
			"ranking_direction must be ASC or DESC", r.RankingDirection)
	}

	// Zero falls back to the configured defaults later, so only set values
	// are range checked.
	if r.MatchDuration != 0 {
		if appErr := scheduler.ValidateMatchDuration(r.MatchDuration); appErr != nil {
			return appErr
		}
	}
	if r.BreakDuration != 0 {
		if appErr := scheduler.ValidateBreakDuration(r.BreakDuration); appErr != nil {
			return appErr
		}
	}
	if r.ParallelFields != 0 {
		if appErr := scheduler.ValidateParallelFields(r.ParallelFields); appErr != nil {
			return appErr
		}
	}
	return nil
}

// CreateTournament registers a new tournament in DRAFT.
func (h *TournamentHandler) CreateTournament(c *gin.Context) {
	var req createTournamentRequest
	if err := bindStrict(c, &req); err != nil {
		respondError(c, err)
		return
	}
	if appErr := req.validate(); appErr != nil {
		utils.SendAppError(c, appErr)
		return
	}

	timezone := req.Timezone
	if timezone == "" {
		timezone = h.cfg.TournamentTimezone
	}

	tournament := models.Tournament{
		Name:                 req.Name,
		Code:                 req.Code,
		Specialization:       req.Specialization,
		AgeGroup:             req.AgeGroup,
		StartDate:            req.StartDate,
		EndDate:              req.EndDate,
		Timezone:             timezone,
		Format:               req.Format,
		TypeCode:             req.TypeCode,
		ScoringType:          req.ScoringType,
		RankingDirection:     req.RankingDirection,
		MeasurementUnit:      req.MeasurementUnit,
		MatchDurationMinutes: req.MatchDuration,
		BreakDurationMinutes: req.BreakDuration,
		ParallelFields:       req.ParallelFields,
		Status:               models.StatusDraft,
		Config:               req.Config,
	}
	if tournament.MatchDurationMinutes == 0 {
		tournament.MatchDurationMinutes = h.cfg.MatchDurationMinutes
	}
	if tournament.BreakDurationMinutes == 0 {
		tournament.BreakDurationMinutes = h.cfg.BreakDurationMinutes
	}
	if tournament.ParallelFields == 0 {
		tournament.ParallelFields = h.cfg.ParallelFields
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&tournament).Error; err != nil {
			return err
		}
		h.audit.Log(tx, "tournament.created", middleware.CurrentUserID(c),
			"tournament", tournament.ID, map[string]interface{}{"name": tournament.Name})
		return nil
	})
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SendCreated(c, tournament)
}

// ListTournaments returns a filtered, paginated tournament list.
func (h *TournamentHandler) ListTournaments(c *gin.Context) {
	page := 1
	perPage := 20
	if v, err := intQuery(c, "page"); err == nil && v > 0 {
		page = v
	}
	if v, err := intQuery(c, "per_page"); err == nil && v > 0 && v <= 100 {
		perPage = v
	}

	query := h.db.Model(&models.Tournament{})
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if format := c.Query("tournament_format"); format != "" {
		query = query.Where("format = ?", format)
	}
	if spec := c.Query("specialization"); spec != "" {
		query = query.Where("specialization = ?", spec)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		respondError(c, err)
		return
	}

	var tournaments []models.Tournament
	err := query.Order("start_date DESC").
		Offset((page - 1) * perPage).Limit(perPage).
		Find(&tournaments).Error
	if err != nil {
		respondError(c, err)
		return
	}

	totalPages := int((total + int64(perPage) - 1) / int64(perPage))
	utils.SendSuccessWithMeta(c, tournaments, &utils.Meta{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
	})
}

func (h *TournamentHandler) GetTournament(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	var tournament models.Tournament
	if err := h.db.First(&tournament, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.SendNotFound(c, "Tournament not found")
			return
		}
		respondError(c, err)
		return
	}
	utils.SendSuccess(c, tournament)
}

type updateTournamentRequest struct {
	Name             *string                  `json:"name"`
	Code             *string                  `json:"code"`
	Specialization   *string                  `json:"specialization"`
	AgeGroup         *string                  `json:"age_group"`
	StartDate        *time.Time               `json:"start_date"`
	EndDate          *time.Time               `json:"end_date"`
	Timezone         *string                  `json:"timezone"`
	RankingDirection *string                  `json:"ranking_direction"`
	MeasurementUnit  *string                  `json:"measurement_unit"`
	MatchDuration    *int                     `json:"match_duration_minutes"`
	BreakDuration    *int                     `json:"break_duration_minutes"`
	ParallelFields   *int                     `json:"parallel_fields"`
	Config           *models.TournamentConfig `json:"tournament_config_obj"`
}

// UpdateTournament patches mutable fields. Format, type and scoring are frozen
// after creation; everything else stays editable until results start flowing.
func (h *TournamentHandler) UpdateTournament(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	var req updateTournamentRequest
	if err := bindStrict(c, &req); err != nil {
		respondError(c, err)
		return
	}

	var tournament models.Tournament
	if err := h.db.First(&tournament, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.SendNotFound(c, "Tournament not found")
			return
		}
		respondError(c, err)
		return
	}
	if tournament.Status == models.StatusInProgress || tournament.IsTerminal() {
		utils.SendAppError(c, utils.NewAppError(utils.ErrCodeInvalidTransition,
			"Tournament can no longer be edited",
			fmt.Sprintf("status=%s", tournament.Status)))
		return
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Code != nil {
		updates["code"] = *req.Code
	}
	if req.Specialization != nil {
		updates["specialization"] = *req.Specialization
	}
	if req.AgeGroup != nil {
		updates["age_group"] = *req.AgeGroup
	}
	if req.StartDate != nil {
		updates["start_date"] = *req.StartDate
	}
	if req.EndDate != nil {
		updates["end_date"] = *req.EndDate
	}
	if req.Timezone != nil {
		updates["timezone"] = *req.Timezone
	}
	if req.RankingDirection != nil {
		switch *req.RankingDirection {
		case "", models.DirectionAsc, models.DirectionDesc:
			updates["ranking_direction"] = *req.RankingDirection
		default:
			utils.SendValidationError(c, "ranking_direction must be ASC or DESC", *req.RankingDirection)
			return
		}
	}
	if req.MeasurementUnit != nil {
		updates["measurement_unit"] = *req.MeasurementUnit
	}
	if req.MatchDuration != nil {
		if appErr := scheduler.ValidateMatchDuration(*req.MatchDuration); appErr != nil {
			utils.SendAppError(c, appErr)
			return
		}
		updates["match_duration_minutes"] = *req.MatchDuration
	}
	if req.BreakDuration != nil {
		if appErr := scheduler.ValidateBreakDuration(*req.BreakDuration); appErr != nil {
			utils.SendAppError(c, appErr)
			return
		}
		updates["break_duration_minutes"] = *req.BreakDuration
	}
	if req.ParallelFields != nil {
		if appErr := scheduler.ValidateParallelFields(*req.ParallelFields); appErr != nil {
			utils.SendAppError(c, appErr)
			return
		}
		updates["parallel_fields"] = *req.ParallelFields
	}
	if req.Config != nil {
		updates["config"] = req.Config
	}
	if len(updates) == 0 {
		utils.SendSuccess(c, tournament)
		return
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&tournament).Updates(updates).Error; err != nil {
			return err
		}
		h.audit.Log(tx, "tournament.updated", middleware.CurrentUserID(c),
			"tournament", tournament.ID, updates)
		return nil
	})
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SendSuccess(c, tournament)
}

// DeleteTournament removes a tournament and its owned rows. Only DRAFT and
// CANCELLED tournaments may be deleted.
func (h *TournamentHandler) DeleteTournament(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	var tournament models.Tournament
	if err := h.db.First(&tournament, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.SendNotFound(c, "Tournament not found")
			return
		}
		respondError(c, err)
		return
	}
	if tournament.Status != models.StatusDraft && tournament.Status != models.StatusCancelled {
		utils.SendAppError(c, utils.NewAppError(utils.ErrCodeInvalidTransition,
			"Only draft or cancelled tournaments can be deleted",
			fmt.Sprintf("status=%s", tournament.Status)))
		return
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Select("Enrollments", "Sessions", "Rankings", "StatusHistory",
			"CampusConfigs", "RewardDistributions").Delete(&tournament).Error; err != nil {
			return err
		}
		h.audit.Log(tx, "tournament.deleted", middleware.CurrentUserID(c),
			"tournament", tournament.ID, map[string]interface{}{"name": tournament.Name})
		return nil
	})
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SendNoContent(c)
}

type statusChangeRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// ChangeStatus applies one explicit lifecycle transition.
func (h *TournamentHandler) ChangeStatus(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	var req statusChangeRequest
	if err := bindStrict(c, &req); err != nil {
		respondError(c, err)
		return
	}
	if req.Status == "" {
		utils.SendValidationError(c, "status is required", "")
		return
	}

	var tournament models.Tournament
	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&tournament, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.NewAppError(utils.ErrCodeNotFound, "Tournament not found", "")
			}
			return err
		}
		return lifecycle.Transition(tx, &tournament, req.Status,
			middleware.CurrentUserID(c), req.Reason, nil)
	})
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SendSuccess(c, tournament)
}

// StatusHistory returns the transition audit trail, oldest first.
func (h *TournamentHandler) StatusHistory(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	var history []models.StatusHistoryEntry
	if err := h.db.Where("tournament_id = ?", id).
		Order("created_at ASC, id ASC").Find(&history).Error; err != nil {
		respondError(c, err)
		return
	}
	utils.SendSuccess(c, history)
}

type tournamentSummary struct {
	Tournament         models.Tournament `json:"tournament"`
	EnrollmentCount    int64             `json:"enrollment_count"`
	SessionCount       int64             `json:"session_count"`
	CompletedSessions  int64             `json:"completed_sessions"`
	RankingRows        int64             `json:"ranking_rows"`
	RewardsDistributed bool              `json:"rewards_distributed"`
}

// Summary aggregates the headline numbers of one tournament.
func (h *TournamentHandler) Summary(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	var tournament models.Tournament
	if err := h.db.First(&tournament, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.SendNotFound(c, "Tournament not found")
			return
		}
		respondError(c, err)
		return
	}

	summary := tournamentSummary{Tournament: tournament}
	h.db.Model(&models.TournamentEnrollment{}).
		Where("tournament_id = ? AND is_active = ?", id, true).Count(&summary.EnrollmentCount)
	h.db.Model(&models.Session{}).
		Where("tournament_id = ?", id).Count(&summary.SessionCount)
	h.db.Model(&models.Session{}).
		Where("tournament_id = ? AND game_results IS NOT NULL", id).Count(&summary.CompletedSessions)
	h.db.Model(&models.TournamentRanking{}).
		Where("tournament_id = ?", id).Count(&summary.RankingRows)

	var distributions int64
	h.db.Model(&models.RewardDistribution{}).
		Where("tournament_id = ?", id).Count(&distributions)
	summary.RewardsDistributed = distributions > 0

	utils.SendSuccess(c, summary)
}

// Cancel is a convenience wrapper for the CANCELLED transition.
func (h *TournamentHandler) Cancel(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	_ = bindStrict(c, &req) // empty body is fine

	var tournament models.Tournament
	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&tournament, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.NewAppError(utils.ErrCodeNotFound, "Tournament not found", "")
			}
			return err
		}
		metadata := datatypes.JSON(fmt.Sprintf(`{"cancelled_by":%d}`, middleware.CurrentUserID(c)))
		return lifecycle.Transition(tx, &tournament, models.StatusCancelled,
			middleware.CurrentUserID(c), req.Reason, metadata)
	})
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SendSuccess(c, tournament)
}
