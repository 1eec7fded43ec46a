package routes

import (
	ginlog "github.com/gin-contrib/logger"
	"github.com/gin-gonic/gin"

	"routedesk/internal/controllers"
	"routedesk/internal/logger"
	"routedesk/internal/metrics"
)

// SetupRouter wires every route group onto a new engine. m may be nil.
func SetupRouter(api *controllers.API, m *metrics.Metrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(ginlog.SetLogger(
		ginlog.WithUTC(true),
		ginlog.WithSkipPath([]string{"/healthz", "/metrics"}),
		ginlog.WithWriter(logger.Writer()),
	))
	r.Use(m.Middleware())

	HealthRoutes(r, api, m)
	AuthRoutes(r, api)
	AdminRoutes(r, api)
	DraftRoutes(r, api)
	WebSocketRoutes(r, api)

	return r
}

func HealthRoutes(r *gin.Engine, api *controllers.API, m *metrics.Metrics) {
	r.GET("/healthz", api.Healthz)
	if m != nil {
		r.GET("/metrics", m.Handler())
	}
}
