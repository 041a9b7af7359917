// routes.go - Route registration helpers
package api

import (
	"log/slog"

	"github.com/KaramelBytes/statloom/internal/cache"
	"github.com/KaramelBytes/statloom/internal/dataset"
	"github.com/KaramelBytes/statloom/internal/ingest"
	"github.com/KaramelBytes/statloom/internal/narrative"
	"github.com/labstack/echo/v4"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Cache   cache.Store
	Board   *ingest.Board
	Dataset dataset.Options
	// Narrator is nil when narratives are disabled.
	Narrator *narrative.Narrator
	// NarrateByDefault applies when a request has no narrate field.
	NarrateByDefault bool
	Logger           *slog.Logger
	Version          string
}

// Handlers holds all handler instances
type Handlers struct {
	Health    *HealthHandler
	Templates *TemplateHandler
	Preview   *PreviewHandler
	Analysis  *AnalysisHandler
	Results   *ResultsHandler
	Export    *ExportHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Handlers{
		Health:    &HealthHandler{version: deps.Version, narrative: deps.Narrator != nil},
		Templates: &TemplateHandler{},
		Preview:   &PreviewHandler{board: deps.Board, opt: deps.Dataset},
		Analysis:  &AnalysisHandler{deps: deps},
		Results:   &ResultsHandler{store: deps.Cache},
		Export:    &ExportHandler{store: deps.Cache},
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, h *Handlers) {
	e.GET("/health", h.Health.HandleHealth)

	g := e.Group("/api")
	g.GET("/templates", h.Templates.HandleList)
	g.GET("/templates/:template", h.Templates.HandleGet)

	g.POST("/preview", h.Preview.HandlePreview)
	g.GET("/preview/:template", h.Preview.HandleGetPreview)
	g.DELETE("/preview/:template", h.Preview.HandleResetPreview)

	for _, m := range []string{"descriptive", "regression", "sem", "pls", "predictive", "prescriptive", "dematel"} {
		g.POST("/"+m, h.Analysis.HandleMethod(m))
	}
	g.POST("/visualization", h.Analysis.HandleVisualization)
	g.POST("/export", h.Export.HandleExport)

	g.GET("/results/:template", h.Results.HandleGet)
	g.DELETE("/results/:template", h.Results.HandleDelete)
	g.DELETE("/results", h.Results.HandleClear)
}
