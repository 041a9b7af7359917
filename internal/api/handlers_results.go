// handlers_results.go - Cached results and exports
package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/KaramelBytes/statloom/internal/analysis"
	"github.com/KaramelBytes/statloom/internal/cache"
	"github.com/KaramelBytes/statloom/internal/export"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type ResultsHandler struct {
	store cache.Store
}

// HandleGet returns the cached result of a template
func (h *ResultsHandler) HandleGet(c echo.Context) error {
	template := c.Param("template")
	e, err := h.store.Get(c.Request().Context(), session(c), template)
	if errors.Is(err, cache.ErrNotFound) {
		return NewNotFoundError("result", template)
	}
	if err != nil {
		return NewInternalError("cache unavailable", err)
	}
	return respond(c, http.StatusOK, AnalysisResponse{
		Template:       e.Template,
		Result:         e.Result,
		HTML:           e.HTML,
		Narrative:      e.Narrative,
		NarrativeHTML:  e.NarrativeHTML,
		NarrativeError: e.NarrativeError,
		CachedAt:       e.CreatedAt,
	})
}

// HandleDelete drops the cached result of a template
func (h *ResultsHandler) HandleDelete(c echo.Context) error {
	if err := h.store.Delete(c.Request().Context(), session(c), c.Param("template")); err != nil {
		return NewInternalError("cache unavailable", err)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleClear drops every cached result of the session
func (h *ResultsHandler) HandleClear(c echo.Context) error {
	if err := h.store.Clear(c.Request().Context(), session(c)); err != nil {
		return NewInternalError("cache unavailable", err)
	}
	return c.NoContent(http.StatusNoContent)
}

type ExportHandler struct {
	store cache.Store
}

// exportRequest names a cached template or carries a result inline.
type exportRequest struct {
	Template  string           `json:"template" form:"template"`
	Format    string           `json:"format" form:"format"`
	Result    *analysis.Result `json:"result"`
	Narrative string           `json:"narrative" form:"narrative"`
}

// HandleExport writes a result as an attachment in the requested format
func (h *ExportHandler) HandleExport(c echo.Context) error {
	var req exportRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid export request", err)
	}
	format, err := export.ParseFormat(req.Format)
	if err != nil {
		return NewValidationError(err.Error())
	}
	res, narrative := req.Result, req.Narrative
	if res == nil {
		if strings.TrimSpace(req.Template) == "" {
			return NewValidationError("template or result is required")
		}
		e, err := h.store.Get(c.Request().Context(), session(c), req.Template)
		if errors.Is(err, cache.ErrNotFound) {
			return NewNotFoundError("result", req.Template)
		}
		if err != nil {
			return NewInternalError("cache unavailable", err)
		}
		res = e.Result
		if narrative == "" {
			narrative = e.Narrative
		}
	}
	if res == nil {
		return NewNotFoundError("result", req.Template)
	}
	var buf bytes.Buffer
	if err := export.Write(&buf, res, narrative, format); err != nil {
		return NewInternalError("export failed", err)
	}
	base := req.Template
	if base == "" {
		base = res.Method
	}
	name := fmt.Sprintf("%s-%s.%s", base, uuid.NewString()[:8], format.Extension())
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	return c.Blob(http.StatusOK, format.ContentType(), buf.Bytes())
}
