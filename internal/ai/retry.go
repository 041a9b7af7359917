package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"strconv"
	"time"
)

// transport is the HTTP plumbing shared by the runtimes: one JSON POST with
// retries on 429, 5xx and network timeouts.
type transport struct {
	http      *http.Client
	host      string
	attempts  int
	baseDelay time.Duration
	maxDelay  time.Duration
	// parseError fills an APIError from a non-2xx body.
	parseError func(apiErr *APIError, raw map[string]any)
	// modelOn404 treats any 404 as a missing model.
	modelOn404 bool
}

func newTransport(host string, c RuntimeConfig) transport {
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 60 * time.Second
	}
	if c.RetryMax <= 0 {
		c.RetryMax = 3
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 500 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 4 * time.Second
	}
	return transport{
		http:      &http.Client{Timeout: c.HTTPTimeout},
		host:      host,
		attempts:  c.RetryMax,
		baseDelay: c.BaseDelay,
		maxDelay:  c.MaxDelay,
	}
}

// post sends body to url and decodes a 2xx response into out. It returns
// the response's request id.
func (t transport) post(ctx context.Context, url string, header http.Header, body any, out any) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	backoff := t.baseDelay
	var lastErr error
	for attempt := 1; attempt <= t.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return "", fmt.Errorf("build request: %w", err)
		}
		for k, v := range header {
			req.Header[k] = v
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := t.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			lastErr = &UnreachableError{Host: t.host, Err: err}
			if isRetryableNetErr(err) && attempt < t.attempts {
				if err := sleep(ctx, withJitter(backoff)); err != nil {
					return "", err
				}
				backoff = min(backoff*2, t.maxDelay)
				continue
			}
			return "", lastErr
		}
		id := extractRequestID(resp)
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			if err != nil {
				return id, fmt.Errorf("decode response: %w", err)
			}
			return id, nil
		}

		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		resp.Body.Close()
		apiErr := &APIError{StatusCode: resp.StatusCode, RequestID: id}
		var fields map[string]any
		if json.Unmarshal(raw, &fields) == nil && t.parseError != nil {
			apiErr.Raw = fields
			t.parseError(apiErr, fields)
		}
		lastErr = classifyAPIError(apiErr, resp, t.modelOn404)
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		if !retryable || attempt == t.attempts {
			return id, lastErr
		}
		wait := min(withJitter(backoff), t.maxDelay)
		if ra, ok := retryAfter(resp); ok {
			wait = ra
		}
		if err := sleep(ctx, wait); err != nil {
			return id, err
		}
		backoff = min(backoff*2, t.maxDelay)
	}
	return "", lastErr
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func isRetryableNetErr(err error) bool {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

func retryAfter(resp *http.Response) (time.Duration, bool) {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0, false
	}
	secs, err := parseRetryAfterSeconds(v)
	if err != nil || secs < 0 {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}

// parseRetryAfterSeconds reads a Retry-After value given as seconds or an HTTP date.
func parseRetryAfterSeconds(v string) (int, error) {
	if s, err := strconv.Atoi(v); err == nil {
		return s, nil
	}
	if t, err := http.ParseTime(v); err == nil {
		return int(max(time.Until(t), 0).Seconds()), nil
	}
	return 0, fmt.Errorf("invalid Retry-After: %q", v)
}

// extractRequestID pulls a request id from common headers.
func extractRequestID(resp *http.Response) string {
	for _, k := range []string{"X-Request-Id", "OpenAI-Request-ID", "Openrouter-Request-ID", "X-Amzn-Requestid"} {
		if v := resp.Header.Get(k); v != "" {
			return v
		}
	}
	return ""
}

// withJitter applies +/- 20% jitter to d.
func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return time.Duration(float64(d) * (0.8 + rand.Float64()*0.4))
}
