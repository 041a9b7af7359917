package cache

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/KaramelBytes/statloom/internal/analysis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Minute, 0)
	_, err := m.Get(ctx, "s1", "descriptive-analysis")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.Put(ctx, "s1", &Entry{Template: "descriptive-analysis", HTML: "<p>a</p>"}))
	require.NoError(t, m.Put(ctx, "s1", &Entry{Template: "sem-analysis", HTML: "<p>b</p>"}))
	require.NoError(t, m.Put(ctx, "s2", &Entry{Template: "sem-analysis", HTML: "<p>c</p>"}))

	e, err := m.Get(ctx, "s1", "descriptive-analysis")
	require.NoError(t, err)
	assert.Equal(t, "<p>a</p>", e.HTML)
	assert.False(t, e.CreatedAt.IsZero())

	// Templates are independent: replacing one leaves the other.
	require.NoError(t, m.Put(ctx, "s1", &Entry{Template: "sem-analysis", HTML: "<p>b2</p>"}))
	e, err = m.Get(ctx, "s1", "descriptive-analysis")
	require.NoError(t, err)
	assert.Equal(t, "<p>a</p>", e.HTML)

	require.NoError(t, m.Delete(ctx, "s1", "descriptive-analysis"))
	_, err = m.Get(ctx, "s1", "descriptive-analysis")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.Clear(ctx, "s1"))
	_, err = m.Get(ctx, "s1", "sem-analysis")
	assert.ErrorIs(t, err, ErrNotFound)
	e, err = m.Get(ctx, "s2", "sem-analysis")
	require.NoError(t, err)
	assert.Equal(t, "<p>c</p>", e.HTML)
}

func TestMemoryTTLAndEviction(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemory(time.Minute, 2)
	m.now = func() time.Time { return now }

	require.NoError(t, m.Put(ctx, "s", &Entry{Template: "a"}))
	now = now.Add(time.Second)
	require.NoError(t, m.Put(ctx, "s", &Entry{Template: "b"}))
	now = now.Add(time.Second)
	require.NoError(t, m.Put(ctx, "s", &Entry{Template: "c"}))
	assert.Equal(t, 2, m.Len())
	_, err := m.Get(ctx, "s", "a")
	assert.ErrorIs(t, err, ErrNotFound, "oldest entry should be evicted")

	now = now.Add(2 * time.Minute)
	_, err = m.Get(ctx, "s", "c")
	assert.ErrorIs(t, err, ErrNotFound, "entry should expire")
}

func TestSessionIsolation(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0, 0)
	require.NoError(t, m.Put(ctx, "alice:x", &Entry{Template: "regression-analysis", HTML: "alice-x"}))
	require.NoError(t, m.Put(ctx, "*", &Entry{Template: "regression-analysis", HTML: "star"}))

	_, err := m.Get(ctx, "alice", "x:regression-analysis")
	assert.ErrorIs(t, err, ErrNotFound, "a template containing ':' must not reach another session")

	require.NoError(t, m.Clear(ctx, "alice"))
	e, err := m.Get(ctx, "alice:x", "regression-analysis")
	require.NoError(t, err)
	assert.Equal(t, "alice-x", e.HTML)

	assert.NotContains(t, sessionPrefix("*"), "*")
	assert.NotContains(t, sessionPrefix("[a-z]?"), "?")
	require.NoError(t, m.Clear(ctx, "*"))
	assert.Equal(t, 1, m.Len())
}

func TestEncodeRoundTrip(t *testing.T) {
	in := &Entry{
		Template:  "regression-analysis",
		HTML:      "<h2>x</h2>",
		Narrative: "fine",
		CreatedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		Result: &analysis.Result{
			Method:  "regression",
			Metrics: []analysis.Metric{{Name: "r_squared", Value: 0.5}, {Name: "f_p_value", Value: math.NaN()}},
			Tables:  []analysis.Table{{Name: "Coefficients", Columns: []string{"term"}, Rows: [][]string{{"x"}}}},
		},
	}
	b, err := encode(in)
	require.NoError(t, err)
	out, err := decode(b)
	require.NoError(t, err)
	assert.Equal(t, in.HTML, out.HTML)
	assert.True(t, in.CreatedAt.Equal(out.CreatedAt))
	assert.Equal(t, "Coefficients", out.Result.Tables[0].Name)
	assert.True(t, math.IsNaN(out.Result.Metrics[1].Value))
}

func TestNew(t *testing.T) {
	s, err := New(Options{})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	s, err = New(Options{Backend: "redis", RedisAddr: "127.0.0.1:6379"})
	require.NoError(t, err)
	assert.IsType(t, &Redis{}, s)
	require.NoError(t, s.(*Redis).Close())

	_, err = New(Options{Backend: "redis"})
	assert.Error(t, err)
	_, err = New(Options{Backend: "memcached"})
	assert.Error(t, err)
	assert.Equal(t, "statloom:s:t", key("s", "t"))
}
