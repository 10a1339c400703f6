package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/psds-microservice/live-pk-service/internal/handler"
	"github.com/psds-microservice/live-pk-service/pkg/constants"
)

// Handlers groups everything the router mounts.
type Handlers struct {
	Session *handler.SessionHandler
	PK      *handler.PKHandler
	Token   *handler.TokenHandler
	WS      *handler.StreamWSHandler
	Health  *handler.HealthHandler
}

// New builds the HTTP router. gatherer may be nil to skip /metrics.
func New(h Handlers, gatherer prometheus.Gatherer) http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET(constants.PathHealth, h.Health.Health)
	r.GET(constants.PathReady, h.Health.Ready)
	if gatherer != nil {
		r.GET(constants.PathMetrics, gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	r.GET(constants.PathGenerateToken, h.Token.GenerateToken)

	// REST live sessions
	lives := r.Group(constants.PathLives)
	{
		lives.POST("", h.Session.RegisterSession)
		lives.GET("", h.Session.ListSessions)
		lives.GET("/:id", h.Session.GetSession)
		lives.DELETE("/:id", h.Session.RemoveSession)
		lives.POST("/:id/heartbeat", h.Session.Heartbeat)
		lives.GET("/:id/pk", h.Session.GetSessionPK)
	}

	// REST pk pairings
	pk := r.Group(constants.PathPK)
	{
		pk.POST("/invite", h.PK.Invite)
		pk.GET("/:id", h.PK.Get)
		pk.POST("/:id/accept", h.PK.Accept)
		pk.POST("/:id/reject", h.PK.Reject)
		pk.POST("/:id/score", h.PK.Score)
		pk.POST("/:id/end", h.PK.End)
	}

	// WebSocket: /ws[?session_id=...]
	r.GET(constants.PathWS, h.WS.ServeWS)

	return r
}
