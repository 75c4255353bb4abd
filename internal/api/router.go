package api

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/academyhq/tournament-engine/internal/api/handlers"
	"github.com/academyhq/tournament-engine/internal/api/middleware"
	"github.com/academyhq/tournament-engine/internal/finalize"
	"github.com/academyhq/tournament-engine/internal/ranking"
	"github.com/academyhq/tournament-engine/internal/results"
	"github.com/academyhq/tournament-engine/internal/rewards"
	"github.com/academyhq/tournament-engine/internal/services"
	"github.com/academyhq/tournament-engine/pkg/config"
)

// Dependencies bundles everything the route table needs.
type Dependencies struct {
	DB       *gorm.DB
	Config   *config.Config
	Cache    *services.CacheService
	Hub      *services.WebSocketHub
	Notifier services.Notifier
}

// SetupRouter wires the full HTTP surface.
func SetupRouter(deps Dependencies) *gin.Engine {
	cfg := deps.Config
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.CORS(cfg.CorsOrigins))

	audit := services.NewAuditService()
	users := services.NewUserDirectory(deps.DB)
	rankingService := ranking.NewService()
	orchestrator := rewards.NewOrchestrator(nil)
	validator := results.NewValidator(deps.DB)
	processor := results.NewProcessor()
	limiter := services.NewSubmissionLimiter(cfg.SubmissionRateLimit, cfg.SubmissionBurst)

	sessionFinalizer := finalize.NewSessionFinalizer(deps.DB, rankingService, nil)
	groupFinalizer := finalize.NewGroupStageFinalizer(deps.DB, nil)
	tournamentFinalizer := finalize.NewTournamentFinalizer(deps.DB, orchestrator, nil)

	tournamentHandler := handlers.NewTournamentHandler(deps.DB, cfg, audit)
	enrollmentHandler := handlers.NewEnrollmentHandler(deps.DB, audit)
	scheduleHandler := handlers.NewScheduleHandler(deps.DB, cfg, audit)
	resultsHandler := handlers.NewResultsHandler(deps.DB, validator, processor, limiter, deps.Hub, deps.Cache)
	finalizeHandler := handlers.NewFinalizeHandler(deps.DB, sessionFinalizer, groupFinalizer,
		tournamentFinalizer, deps.Hub, deps.Cache, deps.Notifier, users)
	rankingsHandler := handlers.NewRankingsHandler(deps.DB, cfg, deps.Cache, orchestrator, users)
	healthHandler := handlers.NewHealthHandler(deps.DB)

	router.GET("/health", healthHandler.Health)
	if deps.Hub != nil {
		router.GET("/ws", func(c *gin.Context) {
			deps.Hub.Serve(c.Writer, c.Request)
		})
	}

	v1 := router.Group("/api/v1")

	// Any authenticated user can read and enroll
	authed := v1.Group("")
	authed.Use(middleware.AuthRequired(cfg.JWTSecret))
	authed.GET("/tournaments", tournamentHandler.ListTournaments)
	authed.GET("/tournaments/:id", tournamentHandler.GetTournament)
	authed.GET("/tournaments/:id/sessions", scheduleHandler.ListSessions)
	authed.GET("/tournaments/:id/sessions/:sessionId", scheduleHandler.GetSession)
	authed.GET("/tournaments/:id/sessions/:sessionId/rounds", resultsHandler.RoundStatus)
	authed.GET("/tournaments/:id/rankings", rankingsHandler.GetRankings)
	authed.GET("/tournaments/:id/leaderboard", rankingsHandler.Leaderboard)
	authed.GET("/tournaments/:id/group-standings", rankingsHandler.GroupStandings)
	authed.GET("/tournaments/:id/status-history", tournamentHandler.StatusHistory)
	authed.GET("/tournaments/:id/summary", tournamentHandler.Summary)
	authed.POST("/tournaments/:id/enroll", enrollmentHandler.Enroll)
	authed.DELETE("/tournaments/:id/unenroll", enrollmentHandler.Unenroll)

	// Instructors and admins run the tournament
	staff := v1.Group("")
	staff.Use(middleware.AuthRequired(cfg.JWTSecret))
	staff.Use(middleware.RoleRequired("instructor", "admin"))
	staff.GET("/tournaments/:id/enrollments", enrollmentHandler.ListEnrollments)
	staff.POST("/tournaments/:id/sessions/:sessionId/submit-results", resultsHandler.SubmitResults)
	staff.PATCH("/tournaments/:id/sessions/:sessionId/results", resultsHandler.PatchResults)
	staff.POST("/tournaments/:id/sessions/:sessionId/rounds/:round/submit-results", resultsHandler.SubmitRound)
	staff.POST("/tournaments/:id/sessions/:sessionId/finalize", finalizeHandler.FinalizeSession)
	staff.POST("/tournaments/:id/finalize-group-stage", finalizeHandler.FinalizeGroupStage)
	staff.POST("/tournaments/:id/finalize-tournament", finalizeHandler.FinalizeTournament)
	staff.POST("/tournaments/:id/calculate-rankings", rankingsHandler.CalculateRankings)

	// Admin-only management
	admin := v1.Group("")
	admin.Use(middleware.AuthRequired(cfg.JWTSecret))
	admin.Use(middleware.RoleRequired("admin"))
	admin.POST("/tournaments", tournamentHandler.CreateTournament)
	admin.PATCH("/tournaments/:id", tournamentHandler.UpdateTournament)
	admin.DELETE("/tournaments/:id", tournamentHandler.DeleteTournament)
	admin.PATCH("/tournaments/:id/status", tournamentHandler.ChangeStatus)
	admin.POST("/tournaments/:id/cancel", tournamentHandler.Cancel)
	admin.POST("/tournaments/:id/admin/batch-enroll", enrollmentHandler.BatchEnroll)
	admin.PATCH("/tournaments/:id/enrollments/:enrollmentId", enrollmentHandler.ReviewEnrollment)
	admin.POST("/tournaments/:id/generate-sessions", scheduleHandler.GenerateSessions)
	admin.GET("/tournaments/:id/preview-sessions", scheduleHandler.PreviewSessions)
	admin.DELETE("/tournaments/:id/sessions", scheduleHandler.WipeSessions)
	admin.PATCH("/tournaments/:id/schedule-config", scheduleHandler.UpdateScheduleConfig)
	admin.GET("/tournaments/:id/schedule-config", scheduleHandler.GetScheduleConfig)
	admin.PUT("/tournaments/:id/campus-schedules", scheduleHandler.UpsertCampusConfig)
	admin.GET("/tournaments/:id/campus-schedules", scheduleHandler.ListCampusConfigs)
	admin.DELETE("/tournaments/:id/campus-schedules/:campusId", scheduleHandler.DeleteCampusConfig)
	admin.POST("/tournaments/:id/distribute-rewards", rankingsHandler.DistributeRewards)
	admin.GET("/tournaments/:id/distributed-rewards", rankingsHandler.DistributedRewards)

	return router
}
