package platform

import (
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// OAuthCredentials identifies this application to a platform's token endpoint.
type OAuthCredentials struct {
	ClientID     string
	ClientSecret string
}

// Configured reports whether both client id and secret are set.
func (c OAuthCredentials) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// Option configures a platform adapter.
type Option func(*options)

type options struct {
	httpClient *http.Client
	baseURL    string
	tokenURL   string
	uploadURL  string
	limiter    *rate.Limiter
}

func defaultOptions() options {
	return options{
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		limiter:    rate.NewLimiter(rate.Every(200*time.Millisecond), 5),
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithHTTPClient replaces the HTTP client used for API calls.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithBaseURL overrides the platform API base URL.
func WithBaseURL(u string) Option {
	return func(o *options) { o.baseURL = u }
}

// WithTokenURL overrides the OAuth token endpoint.
func WithTokenURL(u string) Option {
	return func(o *options) { o.tokenURL = u }
}

// WithUploadURL overrides the media upload base URL where it differs from the API base.
func WithUploadURL(u string) Option {
	return func(o *options) { o.uploadURL = u }
}

// WithRateLimit sets the sustained request rate and burst for the adapter.
func WithRateLimit(every time.Duration, burst int) Option {
	return func(o *options) { o.limiter = rate.NewLimiter(rate.Every(every), burst) }
}
