// Package platform implements the PlatformDispatcher port for each supported
// streaming and video platform.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/go-querystring/query"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/ericfisherdev/streamcaster/internal/domain/model"
	"github.com/ericfisherdev/streamcaster/internal/domain/port/driven"
)

// maxErrorBody caps how much of an error response body is kept in messages.
const maxErrorBody = 512

// apiClient is the JSON REST client shared by the hand-written adapters. It
// rate limits outgoing calls, attaches bearer auth and maps HTTP status codes
// onto the dispatch sentinels.
type apiClient struct {
	platform model.Platform
	baseURL  string
	http     *http.Client
	limiter  *rate.Limiter
	headers  map[string]string
}

// request describes one API call. Query is encoded with go-querystring; Body
// is marshalled as JSON unless RawBody is set.
type request struct {
	Method      string
	Path        string
	Query       any
	Body        any
	RawBody     io.Reader
	ContentType string
	Token       string
	Headers     map[string]string
	// Idempotent requests carry a fresh Idempotency-Key header.
	Idempotent bool
}

func newAPIClient(platform model.Platform, baseURL string, opts options) *apiClient {
	return &apiClient{
		platform: platform,
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     opts.httpClient,
		limiter:  opts.limiter,
		headers:  map[string]string{},
	}
}

// do executes req and decodes a JSON response into out when out is non-nil.
func (c *apiClient) do(ctx context.Context, req request, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	target := req.Path
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		target = c.baseURL + "/" + strings.TrimLeft(req.Path, "/")
	}
	if req.Query != nil {
		values, err := query.Values(req.Query)
		if err != nil {
			return fmt.Errorf("encode query: %w", err)
		}
		if encoded := values.Encode(); encoded != "" {
			target += "?" + encoded
		}
	}

	body := req.RawBody
	contentType := req.ContentType
	if body == nil && req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		body = bytes.NewReader(b)
		contentType = "application/json"
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if req.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.Token)
	}
	if req.Idempotent {
		httpReq.Header.Set("Idempotency-Key", uuid.NewString())
	}
	for k, v := range c.headers {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s %s: %w: %v", req.Method, req.Path, driven.ErrPlatformUnavailable, err)
	}
	defer resp.Body.Close()

	slog.Debug("platform api call",
		"platform", c.platform,
		"method", req.Method,
		"path", req.Path,
		"status", resp.StatusCode,
	)

	if err := statusError(resp); err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.Path, err)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode %s response: %w", req.Path, err)
	}
	return nil
}

// statusError maps a non-2xx response onto a dispatch sentinel.
func statusError(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	detail := strings.TrimSpace(string(snippet))

	return fmt.Errorf("%w: status %d: %s", classifyStatus(resp.StatusCode), resp.StatusCode, detail)
}

func classifyStatus(code int) error {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return driven.ErrCredentialRejected
	case code == http.StatusTooManyRequests || code >= 500:
		return driven.ErrPlatformUnavailable
	default:
		return driven.ErrPlatformRejected
	}
}

// requireToken returns ErrMissingCredentials when the account carries no access token.
func requireToken(account model.AuthorizedAccount) error {
	if account.AccessToken == "" {
		return driven.ErrMissingCredentials
	}
	return nil
}
