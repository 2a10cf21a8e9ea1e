package social

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ericfisherdev/streamcaster/internal/domain/model"
	"github.com/ericfisherdev/streamcaster/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.SocialSender = (*WebhookSender)(nil)

// WebhookSender posts the announcement to an arbitrary HTTP endpoint as
// {"text", "html", "integration", "config"}. It is also the fallback for
// custom and unknown integration types.
type WebhookSender struct {
	poster *poster
}

// NewWebhookSender creates a WebhookSender.
func NewWebhookSender(opts ...Option) *WebhookSender {
	return &WebhookSender{poster: newPoster(opts)}
}

type webhookPayload struct {
	Text        string          `json:"text"`
	HTML        string          `json:"html"`
	Integration string          `json:"integration"`
	Config      json.RawMessage `json:"config,omitempty"`
}

// Send posts delivery.Message with a rendered HTML copy to the webhook URL.
func (s *WebhookSender) Send(ctx context.Context, delivery model.SocialDelivery) error {
	if delivery.WebhookURL == "" {
		return ErrMissingSecret
	}

	var cfg json.RawMessage
	if json.Valid(delivery.Config) {
		cfg = delivery.Config
	}

	err := s.poster.postJSON(ctx, delivery.WebhookURL, nil, webhookPayload{
		Text:        delivery.Message,
		HTML:        RenderMarkdown(delivery.Message),
		Integration: delivery.IntegrationName,
		Config:      cfg,
	})
	if err != nil {
		return fmt.Errorf("post webhook for %q: %w", delivery.IntegrationName, err)
	}
	return nil
}
