package handlers

import (
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/academyhq/tournament-engine/internal/api/middleware"
	"github.com/academyhq/tournament-engine/internal/models"
	"github.com/academyhq/tournament-engine/internal/ranking"
	"github.com/academyhq/tournament-engine/internal/rewards"
	"github.com/academyhq/tournament-engine/internal/services"
	"github.com/academyhq/tournament-engine/internal/standings"
	"github.com/academyhq/tournament-engine/pkg/config"
	"github.com/academyhq/tournament-engine/pkg/utils"
)

type RankingsHandler struct {
	db           *gorm.DB
	cfg          *config.Config
	cache        *services.CacheService
	orchestrator *rewards.Orchestrator
	users        *services.UserDirectory
}

func NewRankingsHandler(db *gorm.DB, cfg *config.Config, cache *services.CacheService,
	orchestrator *rewards.Orchestrator, users *services.UserDirectory) *RankingsHandler {
	return &RankingsHandler{
		db:           db,
		cfg:          cfg,
		cache:        cache,
		orchestrator: orchestrator,
		users:        users,
	}
}

func (h *RankingsHandler) cacheTTL() time.Duration {
	return time.Duration(h.cfg.RankingCacheExpiration) * time.Second
}

// GetRankings returns the persisted ranking rows, cached briefly.
func (h *RankingsHandler) GetRankings(c *gin.Context) {
	tournamentID, err := pathID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}

	key := services.RankingsCacheKey(tournamentID)
	var cached []models.TournamentRanking
	if err := h.cache.Get(c.Request.Context(), key, &cached); err == nil {
		utils.SendSuccess(c, cached)
		return
	}

	var rows []models.TournamentRanking
	if err := h.db.Where("tournament_id = ?", tournamentID).
		Order("rank ASC, points DESC").Find(&rows).Error; err != nil {
		respondError(c, err)
		return
	}

	h.cache.Set(c.Request.Context(), key, rows, h.cacheTTL())
	utils.SendSuccess(c, rows)
}

// CalculateRankings computes the current head-to-head ordering on demand
// without persisting anything; a live preview of the final table.
func (h *RankingsHandler) CalculateRankings(c *gin.Context) {
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
	if tournament.Format != models.FormatHeadToHead {
		utils.SendAppError(c, utils.NewAppError(utils.ErrCodeInvalidResult,
			"On-demand ranking is only available for head-to-head tournaments",
			fmt.Sprintf("format=%s", tournament.Format)))
		return
	}

	var sessions []models.Session
	if err := h.db.Where("tournament_id = ?", tournamentID).Find(&sessions).Error; err != nil {
		respondError(c, err)
		return
	}

	switch tournament.TypeCode {
	case models.TypeLeague:
		utils.SendSuccess(c, ranking.LeagueRanking(sessions))
	case models.TypeKnockout:
		utils.SendSuccess(c, ranking.KnockoutRanking(sessions))
	case models.TypeGroupKnockout:
		utils.SendSuccess(c, ranking.GroupKnockoutRanking(sessions))
	default:
		utils.SendAppError(c, utils.NewAppError(utils.ErrCodeUnknownScoringType,
			"Unknown tournament type code", tournament.TypeCode))
	}
}

// GroupStandings returns the current per-group tables.
func (h *RankingsHandler) GroupStandings(c *gin.Context) {
	tournamentID, err := pathID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	var sessions []models.Session
	if err := h.db.Where("tournament_id = ? AND phase = ?",
		tournamentID, models.PhaseGroupStage).Find(&sessions).Error; err != nil {
		respondError(c, err)
		return
	}
	if len(sessions) == 0 {
		utils.SendNotFound(c, "Tournament has no group stage")
		return
	}

	var userIDs []int64
	for _, s := range sessions {
		userIDs = append(userIDs, s.ParticipantUserIDs...)
	}
	names := h.users.NamesByID(userIDs)
	utils.SendSuccess(c, standings.CalculateGroupStandings(sessions, names))
}

// DistributeRewards re-triggers the payout; a no-op replay after the first
// distribution, returning the recorded summary.
func (h *RankingsHandler) DistributeRewards(c *gin.Context) {
	tournamentID, err := pathID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}

	var summary *rewards.Summary
	err = h.db.Transaction(func(tx *gorm.DB) error {
		var tournament models.Tournament
		if err := tx.First(&tournament, tournamentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.NewAppError(utils.ErrCodeNotFound, "Tournament not found", "")
			}
			return err
		}
		if tournament.Status != models.StatusCompleted {
			return utils.NewAppError(utils.ErrCodeInvalidTransition,
				"Rewards are only distributed for completed tournaments",
				fmt.Sprintf("status=%s", tournament.Status))
		}
		s, err := h.orchestrator.Distribute(tx, &tournament, middleware.CurrentUserID(c))
		if err != nil {
			return err
		}
		summary = s
		return nil
	})
	if err != nil {
		// Lost a race against a concurrent distribution. Our writes rolled
		// back with the transaction, so the winner's ledger row is the
		// answer and the replay contract holds.
		var appErr *utils.AppError
		if errors.As(err, &appErr) && appErr.Code == utils.ErrCodeConflict {
			if existing, exErr := h.orchestrator.Existing(h.db, tournamentID); exErr == nil {
				utils.SendSuccess(c, existing)
				return
			}
		}
		respondError(c, err)
		return
	}
	utils.SendSuccess(c, summary)
}

// DistributedRewards returns the recorded distribution ledger entry.
func (h *RankingsHandler) DistributedRewards(c *gin.Context) {
	tournamentID, err := pathID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	summary, err := h.orchestrator.Existing(h.db, tournamentID)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SendSuccess(c, summary)
}

type leaderboardEntry struct {
	UserID int64   `json:"user_id"`
	Name   string  `json:"name,omitempty"`
	Rank   *int    `json:"rank,omitempty"`
	Points float64 `json:"points"`
	Wins   int     `json:"wins"`
	Draws  int     `json:"draws"`
	Losses int     `json:"losses"`
}

// Leaderboard is the display-ready ranking view with names, cached in Redis.
func (h *RankingsHandler) Leaderboard(c *gin.Context) {
	tournamentID, err := pathID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}

	key := services.LeaderboardCacheKey(tournamentID)
	var cached []leaderboardEntry
	if err := h.cache.Get(c.Request.Context(), key, &cached); err == nil {
		utils.SendSuccess(c, cached)
		return
	}

	var rows []models.TournamentRanking
	if err := h.db.Where("tournament_id = ?", tournamentID).
		Order("rank ASC, points DESC").Find(&rows).Error; err != nil {
		respondError(c, err)
		return
	}

	var userIDs []int64
	for _, r := range rows {
		if r.UserID != nil {
			userIDs = append(userIDs, int64(*r.UserID))
		}
	}
	names := h.users.NamesByID(userIDs)

	entries := make([]leaderboardEntry, 0, len(rows))
	for _, r := range rows {
		if r.UserID == nil {
			continue
		}
		entries = append(entries, leaderboardEntry{
			UserID: int64(*r.UserID),
			Name:   names[int64(*r.UserID)],
			Rank:   r.Rank,
			Points: r.Points,
			Wins:   r.Wins,
			Draws:  r.Draws,
			Losses: r.Losses,
		})
	}

	h.cache.Set(c.Request.Context(), key, entries, h.cacheTTL())
	utils.SendSuccess(c, entries)
}
