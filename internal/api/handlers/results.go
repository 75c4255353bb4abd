package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/academyhq/tournament-engine/internal/api/middleware"
	"github.com/academyhq/tournament-engine/internal/lifecycle"
	"github.com/academyhq/tournament-engine/internal/models"
	"github.com/academyhq/tournament-engine/internal/results"
	"github.com/academyhq/tournament-engine/internal/services"
	"github.com/academyhq/tournament-engine/pkg/utils"
)

type ResultsHandler struct {
	db        *gorm.DB
	validator *results.Validator
	processor *results.Processor
	limiter   *services.SubmissionLimiter
	hub       *services.WebSocketHub
	cache     *services.CacheService
}

func NewResultsHandler(db *gorm.DB, validator *results.Validator, processor *results.Processor,
	limiter *services.SubmissionLimiter, hub *services.WebSocketHub, cache *services.CacheService) *ResultsHandler {
	return &ResultsHandler{
		db:        db,
		validator: validator,
		processor: processor,
		limiter:   limiter,
		hub:       hub,
		cache:     cache,
	}
}

func (h *ResultsHandler) allowSubmission(c *gin.Context) bool {
	userID := middleware.CurrentUserID(c)
	if h.limiter != nil && !h.limiter.Allow(userID) {
		utils.SendError(c, 429, utils.NewAppError(utils.ErrCodeConflict,
			"Too many submissions, slow down", ""))
		return false
	}
	return true
}

func (h *ResultsHandler) loadPair(tx *gorm.DB, tournamentID, sessionID uint) (*models.Tournament, *models.Session, error) {
	var tournament models.Tournament
	if err := tx.First(&tournament, tournamentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, utils.NewAppError(utils.ErrCodeNotFound, "Tournament not found", "")
		}
		return nil, nil, err
	}
	var session models.Session
	if err := tx.Where("id = ? AND tournament_id = ?", sessionID, tournamentID).
		First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, utils.NewAppError(utils.ErrCodeNotFound, "Session not found", "")
		}
		return nil, nil, err
	}
	return &tournament, &session, nil
}

// markInProgress flips ONGOING to IN_PROGRESS when the first result arrives.
func markInProgress(tx *gorm.DB, tournament *models.Tournament, actor uint) error {
	if tournament.Status != models.StatusOngoing {
		return nil
	}
	return lifecycle.Transition(tx, tournament, models.StatusInProgress,
		actor, "first result recorded", nil)
}

type submitResultsRequest struct {
	Results []results.SubmittedResult `json:"results"`
}

// SubmitResults records a structured result batch for one session. The batch
// is all-or-nothing: any invalid line rejects the whole submission.
func (h *ResultsHandler) SubmitResults(c *gin.Context) {
	if !h.allowSubmission(c) {
		return
	}
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
	var req submitResultsRequest
	if err := bindStrict(c, &req); err != nil {
		respondError(c, err)
		return
	}
	actor := middleware.CurrentUserID(c)

	var session *models.Session
	err = h.db.Transaction(func(tx *gorm.DB) error {
		tournament, s, err := h.loadPair(tx, tournamentID, sessionID)
		if err != nil {
			return err
		}
		session = s

		if err := h.validator.ValidateSubmission(tournament, session, req.Results); err != nil {
			return err
		}
		ranks, err := h.processor.Process(session.MatchFormat, req.Results)
		if err != nil {
			return err
		}

		gameResults := buildGameResults(tournament, session, req.Results, ranks, actor)
		if err := tx.Model(&models.Session{}).Where("id = ?", session.ID).
			Update("game_results", gameResults).Error; err != nil {
			return err
		}
		session.GameResults = gameResults

		if tournament.Format == models.FormatHeadToHead {
			if err := accumulateRankings(tx, tournament.ID, gameResults); err != nil {
				return err
			}
		}
		return markInProgress(tx, tournament, actor)
	})
	if err != nil {
		respondError(c, err)
		return
	}

	h.cache.Delete(c.Request.Context(),
		services.RankingsCacheKey(tournamentID), services.LeaderboardCacheKey(tournamentID))
	h.hub.Broadcast(services.Event{
		Type:         services.EventResultRecorded,
		TournamentID: tournamentID,
		SessionID:    sessionID,
	})
	utils.SendSuccess(c, session)
}

// buildGameResults assembles the game_results blob from a processed batch.
func buildGameResults(t *models.Tournament, s *models.Session,
	batch []results.SubmittedResult, ranks []results.ProcessedRank, actor uint) *models.GameResults {

	gr := &models.GameResults{
		RecordedAt:       time.Now().UTC(),
		RecordedByID:     actor,
		TournamentFormat: t.Format,
		MatchFormat:      s.MatchFormat,
		ScoringType:      t.ScoringType,
		MeasurementUnit:  t.MeasurementUnit,
		RoundNumber:      s.Round,
	}

	rankByUser := make(map[int64]int, len(ranks))
	for _, r := range ranks {
		rankByUser[r.UserID] = r.Rank
	}

	if s.MatchFormat == models.MatchHeadToHead || s.MatchFormat == models.MatchTeamMatch {
		winners := 0
		for _, r := range ranks {
			if r.Rank == 1 {
				winners++
			}
		}
		for _, line := range batch {
			p := models.MatchParticipant{UserID: line.UserID}
			if line.Score != nil {
				p.Score = *line.Score
			} else if line.TeamScore != nil {
				p.Score = *line.TeamScore
			}
			switch {
			case rankByUser[line.UserID] == 1 && winners == len(batch):
				p.Result = "draw"
			case rankByUser[line.UserID] == 1:
				p.Result = "win"
			default:
				p.Result = "loss"
			}
			gr.Participants = append(gr.Participants, p)
		}
	}

	for _, r := range ranks {
		gr.DerivedRankings = append(gr.DerivedRankings, models.DerivedRanking{
			UserID: r.UserID,
			Rank:   r.Rank,
		})
	}
	if raw, err := json.Marshal(batch); err == nil {
		gr.RawResults = raw
	}
	return gr
}

// accumulateRankings folds one head-to-head result into the per-player
// ranking rows; the final rank ordering is only computed at tournament close.
func accumulateRankings(tx *gorm.DB, tournamentID uint, gr *models.GameResults) error {
	for _, p := range gr.Participants {
		userID := uint(p.UserID)
		var row models.TournamentRanking
		err := tx.Where("tournament_id = ? AND user_id = ?", tournamentID, userID).
			First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			row = models.TournamentRanking{
				TournamentID:    tournamentID,
				UserID:          &userID,
				ParticipantType: models.ParticipantIndividual,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		updates := map[string]interface{}{}
		switch p.Result {
		case "win":
			updates["wins"] = gorm.Expr("wins + 1")
			updates["points"] = gorm.Expr("points + ?", 3)
		case "draw":
			updates["draws"] = gorm.Expr("draws + 1")
			updates["points"] = gorm.Expr("points + ?", 1)
		case "loss":
			updates["losses"] = gorm.Expr("losses + 1")
		}
		if len(updates) == 0 {
			continue
		}
		if err := tx.Model(&models.TournamentRanking{}).Where("id = ?", row.ID).
			Updates(updates).Error; err != nil {
			return err
		}
	}
	return nil
}

// PatchResults is the legacy free-form endpoint: the payload is stored as-is
// under raw_results with recording metadata, subject to the same guards.
func (h *ResultsHandler) PatchResults(c *gin.Context) {
	if !h.allowSubmission(c) {
		return
	}
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
	var raw json.RawMessage
	if err := c.ShouldBindJSON(&raw); err != nil {
		utils.SendValidationError(c, "Invalid request body", err.Error())
		return
	}
	actor := middleware.CurrentUserID(c)

	var session *models.Session
	err = h.db.Transaction(func(tx *gorm.DB) error {
		tournament, s, err := h.loadPair(tx, tournamentID, sessionID)
		if err != nil {
			return err
		}
		session = s
		if err := h.validator.ValidateSubmission(tournament, session, nil); err != nil {
			return err
		}

		gr := &models.GameResults{
			RecordedAt:       time.Now().UTC(),
			RecordedByID:     actor,
			TournamentFormat: tournament.Format,
			MatchFormat:      session.MatchFormat,
			ScoringType:      tournament.ScoringType,
			RoundNumber:      session.Round,
			RawResults:       raw,
		}
		if err := tx.Model(&models.Session{}).Where("id = ?", session.ID).
			Update("game_results", gr).Error; err != nil {
			return err
		}
		session.GameResults = gr
		return markInProgress(tx, tournament, actor)
	})
	if err != nil {
		respondError(c, err)
		return
	}

	h.hub.Broadcast(services.Event{
		Type:         services.EventResultRecorded,
		TournamentID: tournamentID,
		SessionID:    sessionID,
	})
	utils.SendSuccess(c, session)
}

type submitRoundRequest struct {
	Results map[string]string `json:"results"` // user id -> measured value
}

// SubmitRound records one round of an individual ranking session. Rounds may
// be corrected until the session is finalized; completed_rounds only grows.
func (h *ResultsHandler) SubmitRound(c *gin.Context) {
	if !h.allowSubmission(c) {
		return
	}
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
	roundNumber, err := strconv.Atoi(c.Param("round"))
	if err != nil || roundNumber < 1 {
		utils.SendValidationError(c, "round must be a positive integer", "")
		return
	}
	var req submitRoundRequest
	if err := bindStrict(c, &req); err != nil {
		respondError(c, err)
		return
	}
	if len(req.Results) == 0 {
		utils.SendValidationError(c, "results is required", "")
		return
	}
	actor := middleware.CurrentUserID(c)

	var rounds *models.RoundsData
	err = h.db.Transaction(func(tx *gorm.DB) error {
		tournament, session, err := h.loadPair(tx, tournamentID, sessionID)
		if err != nil {
			return err
		}
		if session.MatchFormat != models.MatchIndividualRanking {
			return utils.NewAppError(utils.ErrCodeInvalidResult,
				"Only individual ranking sessions accept round results",
				fmt.Sprintf("match_format=%s", session.MatchFormat))
		}
		if err := h.validator.ValidateSubmission(tournament, session, nil); err != nil {
			return err
		}

		rounds = session.RoundsData
		if rounds == nil {
			rounds = &models.RoundsData{
				TotalRounds:  roundNumber,
				RoundResults: map[string]map[string]string{},
			}
		}
		if roundNumber > rounds.TotalRounds {
			return utils.NewAppError(utils.ErrCodeInvalidResult,
				"Round number exceeds the planned round count",
				fmt.Sprintf("round=%d total=%d", roundNumber, rounds.TotalRounds))
		}

		eligible, err := h.validator.EligibleUserIDs(tournamentID)
		if err != nil {
			return err
		}
		var outsiders []string
		for key := range req.Results {
			id, err := strconv.ParseInt(key, 10, 64)
			if err != nil || !eligible[id] {
				outsiders = append(outsiders, key)
			}
		}
		if len(outsiders) > 0 {
			return utils.NewAppError(utils.ErrCodeInvalidResult,
				"Users are not enrolled in this tournament", "").WithFields(outsiders)
		}

		if rounds.RoundResults == nil {
			rounds.RoundResults = map[string]map[string]string{}
		}
		key := strconv.Itoa(roundNumber)
		rounds.RoundResults[key] = req.Results
		// Corrections to an earlier round never shrink the counter.
		if roundNumber > rounds.CompletedRounds {
			rounds.CompletedRounds = roundNumber
		}

		if err := tx.Model(&models.Session{}).Where("id = ?", session.ID).
			Update("rounds_data", rounds).Error; err != nil {
			return err
		}
		return markInProgress(tx, tournament, actor)
	})
	if err != nil {
		respondError(c, err)
		return
	}

	h.hub.Broadcast(services.Event{
		Type:         services.EventResultRecorded,
		TournamentID: tournamentID,
		SessionID:    sessionID,
		Payload:      gin.H{"round_number": roundNumber},
	})
	utils.SendSuccess(c, rounds)
}

// RoundStatus reports the round progress of an individual ranking session.
func (h *ResultsHandler) RoundStatus(c *gin.Context) {
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
	if session.RoundsData == nil {
		utils.SendSuccess(c, gin.H{
			"total_rounds":     0,
			"completed_rounds": 0,
			"all_complete":     false,
			"finalized":        session.GameResults != nil,
		})
		return
	}
	utils.SendSuccess(c, gin.H{
		"total_rounds":     session.RoundsData.TotalRounds,
		"completed_rounds": session.RoundsData.CompletedRounds,
		"all_complete":     session.RoundsData.AllRoundsComplete(),
		"finalized":        session.GameResults != nil,
		"round_results":    session.RoundsData.RoundResults,
	})
}
