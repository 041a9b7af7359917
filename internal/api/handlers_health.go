// handlers_health.go - Health check and template catalogue handlers
package api

import (
	"net/http"

	"github.com/KaramelBytes/statloom/internal/analysis"
	"github.com/KaramelBytes/statloom/internal/tools"
	"github.com/labstack/echo/v4"
)

type HealthHandler struct {
	version   string
	narrative bool
}

// HandleHealth returns server health status
func (h *HealthHandler) HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":    "ok",
		"version":   h.version,
		"methods":   analysis.Names(),
		"narrative": h.narrative,
	})
}

type TemplateHandler struct{}

// HandleList returns every analysis template
func (h *TemplateHandler) HandleList(c echo.Context) error {
	return respond(c, http.StatusOK, tools.All())
}

// HandleGet returns one template by id
func (h *TemplateHandler) HandleGet(c echo.Context) error {
	id := c.Param("template")
	t, ok := tools.Lookup(id)
	if !ok {
		return NewNotFoundError("template", id)
	}
	return respond(c, http.StatusOK, t)
}
