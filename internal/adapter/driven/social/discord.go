package social

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ericfisherdev/streamcaster/internal/domain/model"
	"github.com/ericfisherdev/streamcaster/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.SocialSender = (*DiscordSender)(nil)

// discordMaxContent is Discord's message content limit.
const discordMaxContent = 2000

// DiscordSender posts the announcement to a Discord channel webhook.
type DiscordSender struct {
	poster *poster
}

// NewDiscordSender creates a DiscordSender.
func NewDiscordSender(opts ...Option) *DiscordSender {
	return &DiscordSender{poster: newPoster(opts)}
}

type discordMessage struct {
	Content   string `json:"content"`
	Username  string `json:"username,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// discordConfig holds optional overrides read from the integration config.
type discordConfig struct {
	Username  string `json:"username"`
	AvatarURL string `json:"avatarUrl"`
}

// Send posts delivery.Message to the integration's webhook URL.
func (s *DiscordSender) Send(ctx context.Context, delivery model.SocialDelivery) error {
	if delivery.WebhookURL == "" {
		return ErrMissingSecret
	}

	var cfg discordConfig
	if len(delivery.Config) > 0 {
		// Unknown or malformed config only loses the optional overrides.
		_ = json.Unmarshal(delivery.Config, &cfg)
	}

	err := s.poster.postJSON(ctx, delivery.WebhookURL, nil, discordMessage{
		Content:   truncate(delivery.Message, discordMaxContent),
		Username:  cfg.Username,
		AvatarURL: cfg.AvatarURL,
	})
	if err != nil {
		return fmt.Errorf("post discord webhook for %q: %w", delivery.IntegrationName, err)
	}
	return nil
}
