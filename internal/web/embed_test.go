package web

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, e *echo.Echo, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestPages(t *testing.T) {
	e := echo.New()
	require.NoError(t, RegisterRoutes(e, "v-test"))

	rec := get(t, e, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `href="/tools/regression-analysis"`)
	assert.Contains(t, rec.Body.String(), "statloom v-test")

	rec = get(t, e, "/tools/pls-analysis")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `data-endpoint="/api/pls"`)
	assert.Contains(t, body, `<option selected>path</option>`)
	assert.Contains(t, body, `name="bootstrap" value="0"`)

	assert.Equal(t, http.StatusNotFound, get(t, e, "/tools/nope").Code)
}

func TestStatic(t *testing.T) {
	e := echo.New()
	require.NoError(t, RegisterRoutes(e, ""))
	rec := get(t, e, "/static/app.js")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/api/preview")
	assert.Equal(t, http.StatusNotFound, get(t, e, "/static/missing.js").Code)
}
