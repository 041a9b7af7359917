// handlers_preview.go - Header and preview extraction for upload widgets
package api

import (
	"bytes"
	"encoding/csv"
	"html"
	"net/http"
	"strings"

	"github.com/KaramelBytes/statloom/internal/dataset"
	"github.com/KaramelBytes/statloom/internal/ingest"
	"github.com/KaramelBytes/statloom/internal/tools"
	"github.com/labstack/echo/v4"
)

type PreviewHandler struct {
	board *ingest.Board
	opt   dataset.Options
}

// PreviewResponse is the upload widget state plus the rendered table.
type PreviewResponse struct {
	ingest.State
	HTML     string   `json:"html,omitempty" msgpack:"html,omitempty"`
	Warnings []string `json:"warnings,omitempty" msgpack:"warnings,omitempty"`
}

// HandlePreview extracts headers and the first rows of an upload and stores
// them as the template's widget state. A previous error is always cleared.
func (h *PreviewHandler) HandlePreview(c echo.Context) error {
	template := strings.TrimSpace(c.FormValue("template"))
	if template == "" {
		return NewValidationError("template is required")
	}
	if _, ok := tools.Lookup(template); !ok {
		return NewValidationError("unknown template: " + template)
	}
	up, err := readUpload(c)
	if err != nil {
		return err
	}
	text, err := h.text(up, c.FormValue("sheet"))
	if err != nil {
		return NewParseError(err)
	}
	st, err := h.board.Load(session(c), template, text)
	if err != nil {
		return &APIError{Status: http.StatusUnprocessableEntity, Code: "PARSE_ERROR", Message: st.Error}
	}
	return respond(c, http.StatusOK, previewResponse(st))
}

// HandleGetPreview returns the stored widget state of a template
func (h *PreviewHandler) HandleGetPreview(c echo.Context) error {
	st, ok := h.board.Get(session(c), c.Param("template"))
	if !ok {
		return NewNotFoundError("preview", c.Param("template"))
	}
	return respond(c, http.StatusOK, previewResponse(st))
}

// HandleResetPreview forgets the widget state of a template
func (h *PreviewHandler) HandleResetPreview(c echo.Context) error {
	h.board.Reset(session(c), c.Param("template"))
	return c.NoContent(http.StatusNoContent)
}

func previewResponse(st ingest.State) PreviewResponse {
	resp := PreviewResponse{State: st}
	if st.Preview == nil {
		return resp
	}
	resp.HTML = st.Preview.HTML()
	resp.Warnings = append(resp.Warnings, st.Preview.Warnings...)
	if t, ok := tools.Lookup(st.Template); ok && t.Numeric {
		resp.Warnings = append(resp.Warnings, ingest.NumericWarnings(st.Preview, st.Preview.Headers)...)
	}
	// warnings quote raw header and cell text
	for _, w := range resp.Warnings {
		resp.HTML += `<p class="error">` + html.EscapeString(w) + `</p>`
	}
	return resp
}

// text returns delimited text for the board. Spreadsheets are decoded and
// re-encoded as CSV so every upload goes through the same header extraction.
func (h *PreviewHandler) text(up *upload, sheet string) (string, error) {
	if !strings.HasSuffix(strings.ToLower(up.Name), ".xlsx") {
		return string(up.Data), nil
	}
	opt := h.opt
	opt.Sheet = sheet
	ds, err := dataset.Load(up.Name, up.Data, opt)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(ds.Headers)
	_ = w.WriteAll(ds.Rows)
	return buf.String(), w.Error()
}
