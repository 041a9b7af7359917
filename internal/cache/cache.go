// Package cache keeps the last rendered result per session and template.
package cache

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/KaramelBytes/statloom/internal/analysis"
)

// ErrNotFound is returned by Get when no entry is stored.
var ErrNotFound = errors.New("cache: entry not found")

// Entry is one rendered analysis kept for a template.
type Entry struct {
	Template  string           `json:"template" msgpack:"template"`
	HTML      string           `json:"html" msgpack:"html"`
	Result    *analysis.Result `json:"result,omitempty" msgpack:"result,omitempty"`
	Narrative string           `json:"narrative,omitempty" msgpack:"narrative,omitempty"`
	// NarrativeHTML and NarrativeError mirror the response fields of the run.
	NarrativeHTML  string    `json:"narrative_html,omitempty" msgpack:"narrative_html,omitempty"`
	NarrativeError string    `json:"narrative_error,omitempty" msgpack:"narrative_error,omitempty"`
	CreatedAt      time.Time `json:"cached_at" msgpack:"cached_at"`
}

// Store persists entries keyed by session and template.
type Store interface {
	Get(ctx context.Context, session, template string) (*Entry, error)
	Put(ctx context.Context, session string, e *Entry) error
	Delete(ctx context.Context, session, template string) error
	Clear(ctx context.Context, session string) error
}

// Options selects and tunes a backend.
type Options struct {
	Backend    string // memory or redis
	TTL        time.Duration
	MaxEntries int

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// New returns the store named by opt.Backend.
func New(opt Options) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(opt.Backend)) {
	case "", "memory":
		return NewMemory(opt.TTL, opt.MaxEntries), nil
	case "redis":
		if opt.RedisAddr == "" {
			return nil, fmt.Errorf("cache: redis backend requires redis_addr")
		}
		return NewRedis(opt.RedisAddr, opt.RedisPassword, opt.RedisDB, opt.TTL), nil
	}
	return nil, fmt.Errorf("cache: unknown backend %q (memory, redis)", opt.Backend)
}

// key escapes both parts so neither can contain the ':' separator or a
// Redis glob metacharacter.
func key(session, template string) string {
	return "statloom:" + url.QueryEscape(session) + ":" + url.QueryEscape(template)
}

// sessionPrefix is the key prefix shared by every entry of session.
func sessionPrefix(session string) string {
	return "statloom:" + url.QueryEscape(session) + ":"
}
