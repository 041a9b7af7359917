// Package web serves the embedded HTML front end: a template index and one
// form page per analysis tool.
package web

import (
	"bytes"
	"embed"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/KaramelBytes/statloom/internal/tools"
	"github.com/labstack/echo/v4"
)

//go:embed templates/*.html
var pageFiles embed.FS

//go:embed static/*
var staticFiles embed.FS

var pages = template.Must(template.New("").Funcs(template.FuncMap{
	"inputType": inputType,
}).ParseFS(pageFiles, "templates/*.html"))

// StaticFS returns the embedded assets with static/ as root.
func StaticFS() (fs.FS, error) {
	return fs.Sub(staticFiles, "static")
}

// RegisterRoutes registers the front end. API routes should already be
// registered on e.
func RegisterRoutes(e *echo.Echo, version string) error {
	assets, err := StaticFS()
	if err != nil {
		return err
	}
	e.GET("/", func(c echo.Context) error {
		return render(c, "index.html", map[string]any{"Tools": tools.All(), "Version": version})
	})
	e.GET("/tools/:template", func(c echo.Context) error {
		t, ok := tools.Lookup(c.Param("template"))
		if !ok {
			return echo.NewHTTPError(http.StatusNotFound, "unknown tool: "+c.Param("template"))
		}
		return render(c, "tool.html", map[string]any{"Tool": t, "Version": version})
	})
	e.GET("/static/*", echo.WrapHandler(http.StripPrefix("/static/", http.FileServer(http.FS(assets)))))
	return nil
}

func render(c echo.Context, name string, data any) error {
	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, name, data); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to render page").SetInternal(err)
	}
	return c.HTMLBlob(http.StatusOK, buf.Bytes())
}

func inputType(k tools.FieldKind) string {
	switch k {
	case tools.Number:
		return "number"
	case tools.Bool:
		return "checkbox"
	default:
		return "text"
	}
}
