package social

import (
	"context"
	"fmt"
	"strings"

	"github.com/ericfisherdev/streamcaster/internal/domain/model"
	"github.com/ericfisherdev/streamcaster/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.SocialSender = (*TwitterSender)(nil)

const (
	twitterAPIURL = "https://api.twitter.com"
	tweetMaxRunes = 280
)

// TwitterSender posts the announcement as a tweet using the integration's
// API key as a bearer token.
type TwitterSender struct {
	baseURL string
	poster  *poster
}

// NewTwitterSender creates a TwitterSender. An empty baseURL uses the public API.
func NewTwitterSender(baseURL string, opts ...Option) *TwitterSender {
	if baseURL == "" {
		baseURL = twitterAPIURL
	}
	return &TwitterSender{baseURL: strings.TrimRight(baseURL, "/"), poster: newPoster(opts)}
}

type tweet struct {
	Text string `json:"text"`
}

// Send posts delivery.Message as a tweet.
func (s *TwitterSender) Send(ctx context.Context, delivery model.SocialDelivery) error {
	if delivery.APIKey == "" {
		return ErrMissingSecret
	}

	err := s.poster.postJSON(ctx, s.baseURL+"/2/tweets",
		map[string]string{"Authorization": "Bearer " + delivery.APIKey},
		tweet{Text: truncate(delivery.Message, tweetMaxRunes)},
	)
	if err != nil {
		return fmt.Errorf("post tweet for %q: %w", delivery.IntegrationName, err)
	}
	return nil
}
