// Package social implements go-live announcement senders for each social
// integration type.
package social

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// ErrMissingSecret is returned when a delivery lacks the secret its sender needs.
var ErrMissingSecret = errors.New("integration secret not configured")

// Option configures a sender.
type Option func(*poster)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *poster) { p.http = c }
}

// WithLimiter shares a rate limiter between senders.
func WithLimiter(l *rate.Limiter) Option {
	return func(p *poster) { p.limiter = l }
}

// NewLimiter returns the default limiter shared by all senders: one request
// per second with a burst of five.
func NewLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Every(time.Second), 5)
}

// poster sends JSON bodies over HTTP behind a rate limiter.
type poster struct {
	http    *http.Client
	limiter *rate.Limiter
}

func newPoster(opts []Option) *poster {
	p := &poster{
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: NewLimiter(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// postJSON marshals body and POSTs it to target. Any non-2xx status is an error.
func (p *poster) postJSON(ctx context.Context, target string, headers map[string]string, body any) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// truncate shortens s to at most n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
