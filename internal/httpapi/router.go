// Package httpapi serves the REST surface of geostore with gin, plus the
// liveness and readiness probes used by the orchestrator.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/stuartshay/geostore/internal/proximity"
	"github.com/stuartshay/geostore/internal/store"
)

// Pinger reports storage connectivity for the readiness probe
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// Deps are the collaborators the HTTP handlers call
type Deps struct {
	Store       *store.Store
	Engine      *proximity.Engine
	DB          Pinger
	ServiceName string
	Environment string
}

// NewRouter builds the gin engine with every route registered
func NewRouter(d Deps) *gin.Engine {
	if d.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger())

	health := &healthHandler{db: d.DB, service: d.ServiceName}
	r.GET("/healthz", health.Liveness)
	r.GET("/readyz", health.Readiness)

	loc := &locationHandler{store: d.Store}
	nearby := &queryHandler{engine: d.Engine}

	v1 := r.Group("/v1")
	{
		objects := v1.Group("/objects/:type/:id/location")
		objects.GET("", loc.Get)
		objects.PUT("", loc.Save)
		objects.DELETE("", loc.Delete)
		objects.POST("/trash", loc.Trash)

		meta := v1.Group("/locations/:id/meta")
		meta.GET("", loc.ListMeta)
		meta.GET("/:key", loc.GetMeta)
		meta.PUT("", loc.SaveMeta)
		meta.DELETE("", loc.DeleteMeta)

		v1.GET("/nearby/:type", nearby.Nearby)
		v1.GET("/distance/convert", nearby.Convert)
	}

	return r
}

// Handler wraps the router with OpenTelemetry HTTP instrumentation
func Handler(r *gin.Engine, serviceName string) http.Handler {
	return otelhttp.NewHandler(r, serviceName)
}

// requestLogger logs each request at debug level
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	}
}

type healthHandler struct {
	db      Pinger
	service string
}

// Liveness reports that the process is serving
func (h *healthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": h.service})
}

// Readiness reports whether the database is reachable
func (h *healthHandler) Readiness(c *gin.Context) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.HealthCheck(ctx); err != nil {
			log.Warn().Err(err).Msg("Readiness check failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "service": h.service})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "service": h.service})
}
