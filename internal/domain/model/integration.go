package model

import (
	"encoding/json"
	"time"
)

// SocialIntegration is a go-live announcement channel. Secret fields hold
// vault envelopes; empty means not configured.
type SocialIntegration struct {
	ID               int64
	Name             string
	Type             IntegrationType
	SealedAPIKey     string
	SealedWebhookURL string
	Enabled          bool
	MessageTemplate  string
	Config           json.RawMessage
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// SocialDelivery is one resolved go-live delivery: decrypted secrets plus the
// rendered message. Never persisted.
type SocialDelivery struct {
	IntegrationID   int64
	IntegrationName string
	Type            IntegrationType
	APIKey          string
	WebhookURL      string
	Message         string
	Config          json.RawMessage
}
