package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/KaramelBytes/statloom/internal/analysis"
	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	// MIMEMsgpack is served when the client asks for it in Accept.
	MIMEMsgpack = "application/msgpack"
	// HeaderSession carries the cache namespace of a client.
	HeaderSession  = "X-Session-ID"
	defaultSession = "default"
	maxUploadBytes = 50 << 20
)

// reserved form keys that are not method parameters.
var reserved = map[string]bool{"file": true, "text": true, "filter": true, "narrate": true, "template": true, "session": true, "sheet": true, "raw": true}

// upload is the table sent with a request, either a file or pasted text.
type upload struct {
	Name string
	Data []byte
}

// session resolves the cache namespace of the request.
func session(c echo.Context) string {
	if s := strings.TrimSpace(c.Request().Header.Get(HeaderSession)); s != "" {
		return s
	}
	if s := strings.TrimSpace(c.FormValue("session")); s != "" {
		return s
	}
	return defaultSession
}

// readUpload takes the multipart "file" field, else the "text" form value.
func readUpload(c echo.Context) (*upload, error) {
	fh, err := c.FormFile("file")
	if err == nil {
		f, err := fh.Open()
		if err != nil {
			return nil, NewBadRequestError("could not open uploaded file", err)
		}
		defer f.Close()
		data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
		if err != nil {
			return nil, NewBadRequestError("could not read uploaded file", err)
		}
		if len(data) > maxUploadBytes {
			return nil, &APIError{Status: http.StatusRequestEntityTooLarge, Code: "TOO_LARGE", Message: fmt.Sprintf("file exceeds %d MB", maxUploadBytes>>20)}
		}
		return &upload{Name: fh.Filename, Data: data}, nil
	}
	if !errors.Is(err, http.ErrMissingFile) && !strings.Contains(err.Error(), "multipart") {
		return nil, NewBadRequestError("invalid upload", err)
	}
	text := c.FormValue("text")
	if strings.TrimSpace(text) == "" {
		return nil, NewValidationError("provide a file upload or a text field with the data")
	}
	return &upload{Name: "pasted.csv", Data: []byte(text)}, nil
}

// params collects the method parameters from the form.
func params(c echo.Context) (analysis.Params, error) {
	form, err := c.FormParams()
	if err != nil {
		return nil, NewBadRequestError("invalid form", err)
	}
	p := analysis.Params{}
	for k, vals := range form {
		if reserved[k] || len(vals) == 0 {
			continue
		}
		p[k] = strings.Join(vals, ",")
	}
	return p, nil
}

// formBool reads a boolean form value, falling back to def when absent.
func formBool(c echo.Context, key string, def bool) bool {
	v := strings.TrimSpace(c.FormValue(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return v == "on" || v == "yes"
	}
	return b
}

func wantsMsgpack(c echo.Context) bool {
	return strings.Contains(c.Request().Header.Get(echo.HeaderAccept), MIMEMsgpack)
}

// respond writes v as msgpack when the client accepts it, JSON otherwise.
func respond(c echo.Context, status int, v any) error {
	if wantsMsgpack(c) {
		b, err := msgpack.Marshal(v)
		if err != nil {
			return NewInternalError("failed to encode msgpack", err)
		}
		return c.Blob(status, MIMEMsgpack, b)
	}
	return c.JSON(status, v)
}
