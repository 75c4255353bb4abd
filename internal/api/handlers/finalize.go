package handlers

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/academyhq/tournament-engine/internal/api/middleware"
	"github.com/academyhq/tournament-engine/internal/finalize"
	"github.com/academyhq/tournament-engine/internal/models"
	"github.com/academyhq/tournament-engine/internal/services"
	"github.com/academyhq/tournament-engine/pkg/utils"
)

type FinalizeHandler struct {
	db         *gorm.DB
	session    *finalize.SessionFinalizer
	groupStage *finalize.GroupStageFinalizer
	tournament *finalize.TournamentFinalizer
	hub        *services.WebSocketHub
	cache      *services.CacheService
	notifier   services.Notifier
	users      *services.UserDirectory
}

func NewFinalizeHandler(db *gorm.DB, session *finalize.SessionFinalizer,
	groupStage *finalize.GroupStageFinalizer, tournament *finalize.TournamentFinalizer,
	hub *services.WebSocketHub, cache *services.CacheService,
	notifier services.Notifier, users *services.UserDirectory) *FinalizeHandler {
	return &FinalizeHandler{
		db:         db,
		session:    session,
		groupStage: groupStage,
		tournament: tournament,
		hub:        hub,
		cache:      cache,
		notifier:   notifier,
		users:      users,
	}
}

// FinalizeSession closes one individual ranking session.
func (h *FinalizeHandler) FinalizeSession(c *gin.Context) {
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
	actor := middleware.CurrentUserID(c)
	actorName := c.GetString("email")

	gameResults, err := h.session.Finalize(tournamentID, sessionID, actor, actorName)
	if err != nil {
		respondError(c, err)
		return
	}

	h.cache.Delete(c.Request.Context(),
		services.RankingsCacheKey(tournamentID), services.LeaderboardCacheKey(tournamentID))
	h.hub.Broadcast(services.Event{
		Type:         services.EventSessionFinalized,
		TournamentID: tournamentID,
		SessionID:    sessionID,
	})
	utils.SendSuccess(c, gameResults)
}

// FinalizeGroupStage closes the group stage and seeds the knockout bracket.
func (h *FinalizeHandler) FinalizeGroupStage(c *gin.Context) {
	tournamentID, err := pathID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	result, err := h.groupStage.Finalize(tournamentID, middleware.CurrentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SendSuccess(c, result)
}

// FinalizeTournament closes the tournament and distributes rewards once.
func (h *FinalizeHandler) FinalizeTournament(c *gin.Context) {
	tournamentID, err := pathID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	result, err := h.tournament.Finalize(tournamentID, middleware.CurrentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	h.cache.Delete(c.Request.Context(),
		services.RankingsCacheKey(tournamentID), services.LeaderboardCacheKey(tournamentID))
	h.hub.Broadcast(services.Event{
		Type:         services.EventTournamentCompleted,
		TournamentID: tournamentID,
	})
	// Podium SMS on the first close only; never on the idempotent replay.
	if !result.AlreadyCompleted && result.Rewards != nil {
		go h.notifyPodium(h.lookupName(tournamentID), result.Rewards.Items)
	}
	utils.SendSuccess(c, result)
}

// notifyPodium congratulates the top three finishers by SMS, best effort.
func (h *FinalizeHandler) notifyPodium(tournamentName string, items []models.RewardItem) {
	for _, item := range items {
		if item.Rank > 3 {
			continue
		}
		user, err := h.users.GetUser(uint(item.UserID))
		if err != nil || user.Phone == "" {
			continue
		}
		msg := services.PodiumMessage(tournamentName, item.Rank, item.Credits)
		if err := h.notifier.SendMessage(user.Phone, msg); err != nil {
			continue
		}
	}
}

func (h *FinalizeHandler) lookupName(tournamentID uint) string {
	var tournament models.Tournament
	if err := h.db.First(&tournament, tournamentID).Error; err != nil {
		return ""
	}
	return tournament.Name
}
