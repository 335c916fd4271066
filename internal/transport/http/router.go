package http

import (
	"net/http"

	"drill-review-service/internal/app"
	"drill-review-service/internal/domain"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Services bundles the use cases exposed over HTTP.
type Services struct {
	Answers     *app.AnswerService
	Reviews     *app.ReviewService
	Leaderboard *app.LeaderboardService
	Sessions    *app.DrillService
	Leaders     app.LeaderDirectory
	Hub         *app.LeaderboardHub
}

// NewRouter wires the REST API, the leaderboard websocket and health check.
func NewRouter(svc Services, log *zap.Logger) *gin.Engine {
	if log == nil {
		log = zap.NewNop()
	}
	r := gin.New()
	r.Use(gin.Recovery(), Identify(), RequestLogger(log))

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	h := &handlers{svc: svc, log: log}
	api := r.Group("/api/v1")

	answers := api.Group("/answers")
	answers.POST("", RequireRole(domain.RoleLeader, domain.RoleSuperAdmin), h.submitAnswer)
	answers.GET("", h.listAnswers)
	answers.GET("/:id", h.getAnswer)
	answers.POST("/:id/approve", RequireRole(domain.RoleSuperAdmin, domain.RoleXcon), h.approveAnswer)
	answers.POST("/:id/reject", RequireRole(domain.RoleSuperAdmin, domain.RoleXcon), h.rejectAnswer)
	answers.DELETE("/:id", RequireRole(domain.RoleSuperAdmin), h.deleteAnswer)

	sessions := api.Group("/sessions")
	sessions.POST("", RequireRole(domain.RoleSuperAdmin), h.createSession)
	sessions.GET("", h.listSessions)
	sessions.GET("/:id", h.getSession)
	sessions.POST("/:id/transition", RequireRole(domain.RoleSuperAdmin), h.transitionSession)
	sessions.GET("/:id/leaderboard", h.leaderboard)
	sessions.GET("/:id/leaderboard/export", h.exportLeaderboard)

	api.GET("/leaders", h.listLeaders)

	if svc.Hub != nil {
		ws := NewWSHandler(svc.Hub, svc.Leaderboard, log)
		r.GET("/ws/leaderboard", gin.WrapF(ws.ServeWS))
	}
	return r
}

type handlers struct {
	svc Services
	log *zap.Logger
}
