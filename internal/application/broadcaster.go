package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ericfisherdev/streamcaster/internal/domain/model"
	"github.com/ericfisherdev/streamcaster/internal/domain/port/driven"
)

// MessagePlaceholder is replaced with the broadcast message in integration templates.
const MessagePlaceholder = "{message}"

// BroadcastReport summarizes one go-live fan-out.
type BroadcastReport struct {
	Attempted int `json:"attempted"`
	Delivered int `json:"delivered"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// Broadcaster announces go-live messages to every enabled social integration.
// Each integration is isolated: a missing secret skips it, and a failed or
// panicking send is logged without affecting the others.
type Broadcaster struct {
	store       driven.IntegrationStore
	box         driven.SecretBox
	senders     map[model.IntegrationType]driven.SocialSender
	sendTimeout time.Duration
}

// NewBroadcaster creates a Broadcaster. Integration types without a sender
// in senders use the webhook sender.
func NewBroadcaster(
	store driven.IntegrationStore,
	box driven.SecretBox,
	senders map[model.IntegrationType]driven.SocialSender,
	sendTimeout time.Duration,
) *Broadcaster {
	return &Broadcaster{
		store:       store,
		box:         box,
		senders:     senders,
		sendTimeout: sendTimeout,
	}
}

// RenderTemplate substitutes message into template. An empty template
// yields message unchanged.
func RenderTemplate(template, message string) string {
	if strings.TrimSpace(template) == "" {
		return message
	}
	return strings.ReplaceAll(template, MessagePlaceholder, message)
}

// Broadcast sends message to every enabled integration. It is best effort:
// all integrations are attempted and the report is informational.
func (b *Broadcaster) Broadcast(ctx context.Context, message string) BroadcastReport {
	var report BroadcastReport

	integrations, err := b.store.ListEnabled(ctx)
	if err != nil {
		slog.Error("list enabled integrations failed", "error", err)
		return report
	}

	for _, in := range integrations {
		report.Attempted++

		delivery, ok := b.resolve(in, message)
		if !ok {
			report.Skipped++
			continue
		}

		sender := b.senderFor(in.Type)
		if sender == nil {
			slog.Warn("no sender for integration type", "integration_id", in.ID, "type", in.Type)
			report.Skipped++
			continue
		}

		if err := b.send(ctx, sender, delivery); err != nil {
			report.Failed++
			slog.Error("go-live delivery failed",
				"integration_id", in.ID,
				"integration", in.Name,
				"type", in.Type,
				"error", err,
			)
			continue
		}
		report.Delivered++
	}

	slog.Info("go-live broadcast complete",
		"attempted", report.Attempted,
		"delivered", report.Delivered,
		"skipped", report.Skipped,
		"failed", report.Failed,
	)
	return report
}

// resolve opens the secret required by the integration type and renders the
// message. It reports false when the integration must be skipped.
func (b *Broadcaster) resolve(in model.SocialIntegration, message string) (model.SocialDelivery, bool) {
	delivery := model.SocialDelivery{
		IntegrationID:   in.ID,
		IntegrationName: in.Name,
		Type:            in.Type,
		Message:         RenderTemplate(in.MessageTemplate, message),
		Config:          in.Config,
	}

	sealed := in.SealedWebhookURL
	if in.Type == model.IntegrationTwitter {
		sealed = in.SealedAPIKey
	}
	if sealed == "" {
		slog.Warn("integration secret not configured, skipping", "integration_id", in.ID, "type", in.Type)
		return delivery, false
	}

	secret, err := b.box.Open(sealed)
	if err != nil {
		slog.Warn("integration secret unreadable, skipping", "integration_id", in.ID, "type", in.Type, "error", err)
		return delivery, false
	}
	if secret == "" {
		slog.Warn("integration secret empty, skipping", "integration_id", in.ID, "type", in.Type)
		return delivery, false
	}

	if in.Type == model.IntegrationTwitter {
		delivery.APIKey = secret
	} else {
		delivery.WebhookURL = secret
	}
	return delivery, true
}

func (b *Broadcaster) senderFor(t model.IntegrationType) driven.SocialSender {
	if s, ok := b.senders[t]; ok {
		return s
	}
	return b.senders[model.IntegrationWebhook]
}

// send runs one delivery under the per-send timeout and converts a sender
// panic into an error.
func (b *Broadcaster) send(ctx context.Context, sender driven.SocialSender, delivery model.SocialDelivery) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sender panic: %v", r)
		}
	}()

	sendCtx, cancel := context.WithTimeout(ctx, b.sendTimeout)
	defer cancel()

	return sender.Send(sendCtx, delivery)
}
