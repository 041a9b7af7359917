// handlers_analysis.go - Method endpoints, visualization and narratives
package api

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"github.com/KaramelBytes/statloom/internal/analysis"
	"github.com/KaramelBytes/statloom/internal/cache"
	"github.com/KaramelBytes/statloom/internal/chart"
	"github.com/KaramelBytes/statloom/internal/dataset"
	"github.com/KaramelBytes/statloom/internal/narrative"
	"github.com/KaramelBytes/statloom/internal/tools"
	"github.com/KaramelBytes/statloom/internal/utils"
	"github.com/labstack/echo/v4"
)

type AnalysisHandler struct {
	deps *Dependencies
}

// AnalysisResponse is returned by every method endpoint and stored in the cache.
type AnalysisResponse struct {
	Template       string           `json:"template" msgpack:"template"`
	Result         *analysis.Result `json:"result" msgpack:"result"`
	HTML           string           `json:"html" msgpack:"html"`
	Narrative      string           `json:"narrative,omitempty" msgpack:"narrative,omitempty"`
	NarrativeHTML  string           `json:"narrative_html,omitempty" msgpack:"narrative_html,omitempty"`
	NarrativeError string           `json:"narrative_error,omitempty" msgpack:"narrative_error,omitempty"`
	CachedAt       time.Time        `json:"cached_at" msgpack:"cached_at"`
}

// HandleMethod returns the handler of one registered analysis method.
func (h *AnalysisHandler) HandleMethod(method string) echo.HandlerFunc {
	return func(c echo.Context) error {
		tpl, _ := tools.ForMethod(method)
		ds, p, err := h.input(c, tpl)
		if err != nil {
			return err
		}
		m, err := analysis.Lookup(method)
		if err != nil {
			return classify(err)
		}
		res, err := m.Run(c.Request().Context(), ds, p)
		if err != nil {
			return classify(err)
		}
		return h.finish(c, tpl, res, utils.MarkdownToHTML(res.Markdown()))
	}
}

// HandleVisualization renders a chart. With raw=true the image itself is
// returned; otherwise it is embedded in the html of a regular response.
func (h *AnalysisHandler) HandleVisualization(c echo.Context) error {
	tpl, _ := tools.Lookup("data-visualization")
	ds, p, err := h.input(c, tpl)
	if err != nil {
		return err
	}
	spec, err := chart.SpecFromParams(p)
	if err != nil {
		return classify(err)
	}
	img, err := chart.Render(ds, spec)
	if err != nil {
		return classify(err)
	}
	if formBool(c, "raw", false) {
		return c.Blob(http.StatusOK, chart.ContentType(spec.Format), img)
	}
	title := spec.Title
	if title == "" {
		title = fmt.Sprintf("%s chart", spec.Kind)
	}
	res := &analysis.Result{
		Method:  "visualization",
		Title:   title,
		Dataset: ds.Name,
		Rows:    len(ds.Rows),
		Notes:   ds.Notes,
		Metrics: []analysis.Metric{{Name: "bytes", Value: float64(len(img))}},
	}
	var b strings.Builder
	fmt.Fprintf(&b, "<h2>%s</h2>\n<figure>%s</figure>\n", html.EscapeString(title), chart.ImgTag(img, spec.Format, title))
	return h.finish(c, tpl, res, b.String())
}

// input loads the upload, applies the row filter and checks required fields.
func (h *AnalysisHandler) input(c echo.Context, tpl tools.Template) (*dataset.Dataset, analysis.Params, error) {
	p, err := params(c)
	if err != nil {
		return nil, nil, err
	}
	if missing := tpl.Validate(p); len(missing) > 0 {
		return nil, nil, NewValidationError("missing required field(s): " + strings.Join(missing, ", "))
	}
	up, err := readUpload(c)
	if err != nil {
		return nil, nil, err
	}
	opt := h.deps.Dataset
	opt.Sheet = c.FormValue("sheet")
	ds, err := dataset.Load(up.Name, up.Data, opt)
	if err != nil {
		if apiErr := classify(err); apiErr.Code == "VALIDATION_ERROR" {
			return nil, nil, apiErr
		}
		return nil, nil, NewParseError(err)
	}
	if f := strings.TrimSpace(c.FormValue("filter")); f != "" {
		filtered, err := ds.Filter(f)
		if err != nil {
			return nil, nil, NewValidationError(err.Error())
		}
		if len(filtered.Rows) == 0 {
			return nil, nil, NewValidationError(fmt.Sprintf("filter %q matched no rows", f))
		}
		filtered.Notes = append(filtered.Notes, fmt.Sprintf("filter %q kept %d of %d rows", f, len(filtered.Rows), len(ds.Rows)))
		ds = filtered
	}
	return ds, p, nil
}

// finish adds the narrative, caches the rendered result under the template
// and writes the response.
func (h *AnalysisHandler) finish(c echo.Context, tpl tools.Template, res *analysis.Result, body string) error {
	template := strings.TrimSpace(c.FormValue("template"))
	if template == "" {
		template = tpl.ID
	}
	resp := AnalysisResponse{Template: template, Result: res, HTML: body, CachedAt: time.Now().UTC()}
	if formBool(c, "narrate", h.deps.NarrateByDefault) {
		h.narrate(c.Request().Context(), &resp)
	}
	entry := &cache.Entry{
		Template:       template,
		HTML:           resp.HTML,
		Result:         res,
		Narrative:      resp.Narrative,
		NarrativeHTML:  resp.NarrativeHTML,
		NarrativeError: resp.NarrativeError,
		CreatedAt:      resp.CachedAt,
	}
	if err := h.deps.Cache.Put(c.Request().Context(), session(c), entry); err != nil {
		// a cache outage must not lose a computed result
		h.deps.Logger.Warn("cache put failed", "template", template, "err", err)
	}
	return respond(c, http.StatusOK, resp)
}

// narrate never fails the request; problems are reported in NarrativeError.
func (h *AnalysisHandler) narrate(ctx context.Context, resp *AnalysisResponse) {
	if h.deps.Narrator == nil {
		resp.NarrativeError = "narrative is disabled on this server"
		return
	}
	text, err := h.deps.Narrator.Narrate(ctx, resp.Result)
	if err != nil {
		h.deps.Logger.Warn("narrative failed", "method", resp.Result.Method, "model", h.deps.Narrator.Model(), "err", err)
		resp.NarrativeError = err.Error()
		return
	}
	resp.Narrative = text
	resp.NarrativeHTML = narrative.HTML(text)
	resp.HTML += "\n<h3>Interpretation</h3>\n" + resp.NarrativeHTML
}
