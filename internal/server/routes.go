// Package server is a reference implementation of the WatchGraph API backed
// by an in-memory store.
package server

import (
	"io"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options configures New.
type Options struct {
	// Token, when set, is required as a bearer token on /api routes.
	Token    string
	Logger   *slog.Logger
	Registry *prometheus.Registry
}

// New builds the router for st. Gauges are primed for every stored system.
func New(st *Store, opts Options) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}
	metrics := NewMetrics(opts.Registry)
	for _, s := range st.Systems() {
		if snap, err := st.Snapshot(s.ID); err == nil {
			metrics.ObserveSnapshot(snap)
		}
	}

	router := gin.New()
	router.Use(gin.Recovery(), metrics.Instrument(), RequestLogger(opts.Logger))
	SetupRoutes(router, st, metrics, opts)
	return router
}

func SetupRoutes(router *gin.Engine, st *Store, metrics *Metrics, opts Options) {
	router.GET("/health", HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{})))

	api := router.Group("/api")
	if opts.Token != "" {
		api.Use(RequireToken(opts.Token))
	}
	{
		api.GET("/systems", ListSystems(st))
		api.POST("/systems", CreateSystem(st, metrics, opts.Logger))
		api.GET("/systems/:id", GetSystem(st))
		api.GET("/systems/:id/requirements", ListRequirements(st))
		api.GET("/systems/:id/compliance", GetCompliance(st, metrics))
		api.POST("/compliance/batch", BatchCompliance(st, metrics))
		api.GET("/dashboard/stats", DashboardStats(st))

		reqs := api.Group("/requirements/:mapping_id")
		{
			reqs.GET("", GetRequirement(st))
			reqs.PATCH("", UpdateRequirement(st, metrics, opts.Logger))
			reqs.GET("/changes", ListChanges(st))
			reqs.GET("/evidence", EvidenceUnavailable)
			reqs.POST("/evidence", EvidenceUnavailable)
		}

		evidence := api.Group("/evidence/:id")
		{
			evidence.GET("/download", EvidenceUnavailable)
			evidence.DELETE("", EvidenceUnavailable)
		}
	}
}
