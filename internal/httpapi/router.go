// Package httpapi exposes the cascade engine over HTTP.
package httpapi

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mhartman/phaseflow/internal/domain"
)

// RegisterValidators installs the custom binding validators. Call once before
// the first request is served.
func RegisterValidators() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("deptype", func(fl validator.FieldLevel) bool {
			return domain.ValidDependencyTypes[fl.Field().String()]
		})
	}
}

// NewRouter assembles the gin engine with all routes mounted. The metrics
// gatherer may be nil, in which case /metrics is not registered.
func NewRouter(h *Handlers, logger *slog.Logger, gatherer prometheus.Gatherer) *gin.Engine {
	RegisterValidators()

	r := gin.New()
	r.Use(gin.Recovery())
	if logger != nil {
		r.Use(slogRequests(logger))
	}

	r.GET("/healthz", h.Health)
	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api/v1")
	{
		api.POST("/projects", h.CreateProject)
		api.GET("/projects", h.ListProjects)
		api.GET("/projects/:id/phases", h.ListProjectPhases)
		api.GET("/projects/:id/dependencies", h.ListProjectDependencies)

		api.POST("/phases", h.CreatePhase)
		api.GET("/phases/:id/dependencies", h.ListPhaseDependencies)

		api.POST("/dependencies", h.CreateDependency)
		api.DELETE("/dependencies/:id", h.DeleteDependency)

		api.POST("/cascade/preview", h.PreviewCascade)
		api.POST("/cascade/apply", h.ApplyCascade)
	}

	return r
}

func slogRequests(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		logger.Info("http_request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(started).Milliseconds(),
			"request_id", requestID(c),
		)
	}
}
