// Package http registers the dispatch API routes.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"xpress/internal/http/handlers"
	"xpress/internal/http/middleware"
	"xpress/internal/modules/discovery"
	"xpress/internal/modules/dispatch"
	"xpress/internal/types"
	"xpress/internal/ws"
)

type RouterDeps struct {
	Queue   *dispatch.Queue
	Drivers discovery.Store
	Hub     *ws.Hub
	Log     *slog.Logger
}

func NewRouter(deps RouterDeps) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(middleware.Recovery(deps.Log), middleware.Logging(deps.Log))

	matching := handlers.NewMatchingHandler(deps.Queue)
	r.POST("/api/matching/requests", matching.Submit)
	r.GET("/api/matching/requests/:id", matching.Status)
	r.POST("/api/matching/requests/:id/cancel", matching.Cancel)
	r.GET("/api/matching/requests/:id/responses", matching.Responses)

	driver := handlers.NewDriverHandler(deps.Queue, deps.Drivers)
	r.PUT("/api/drivers/:id/location", driver.UpdateLocation)
	r.POST("/api/drivers/:id/accept", driver.Accept)
	r.POST("/api/drivers/:id/reject", driver.Reject)

	if deps.Hub != nil {
		r.GET("/ws/drivers/:id", func(c *gin.Context) {
			deps.Hub.HandleDriver(c.Writer, c.Request, types.ID(c.Param("id")))
		})
	}

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}
