package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ericfisherdev/streamcaster/internal/domain/model"
	"github.com/ericfisherdev/streamcaster/internal/domain/port/driven"
)

// IntegrationInput is the plaintext form of a social integration write.
// Nil secret pointers leave the stored secret unchanged on update; an empty
// string clears it. A nil Enabled means enabled on create and unchanged on
// update.
type IntegrationInput struct {
	Name            string
	Type            string
	APIKey          *string
	WebhookURL      *string
	Enabled         *bool
	MessageTemplate string
	Config          json.RawMessage
}

// IntegrationView is a social integration with secrets replaced by previews.
type IntegrationView struct {
	ID                int64
	Name              string
	Type              model.IntegrationType
	Enabled           bool
	MessageTemplate   string
	Config            json.RawMessage
	APIKeyPreview     string
	WebhookURLPreview string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IntegrationService manages go-live integrations, sealing secrets on write.
type IntegrationService struct {
	store driven.IntegrationStore
	box   driven.SecretBox
}

// NewIntegrationService creates an IntegrationService.
func NewIntegrationService(store driven.IntegrationStore, box driven.SecretBox) *IntegrationService {
	return &IntegrationService{store: store, box: box}
}

// List returns every integration as a view.
func (s *IntegrationService) List(ctx context.Context) ([]IntegrationView, error) {
	all, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]IntegrationView, 0, len(all))
	for _, in := range all {
		views = append(views, s.View(in))
	}
	return views, nil
}

// View masks the integration's secrets.
func (s *IntegrationService) View(in model.SocialIntegration) IntegrationView {
	return IntegrationView{
		ID:                in.ID,
		Name:              in.Name,
		Type:              in.Type,
		Enabled:           in.Enabled,
		MessageTemplate:   in.MessageTemplate,
		Config:            in.Config,
		APIKeyPreview:     s.preview(in.SealedAPIKey),
		WebhookURLPreview: s.preview(in.SealedWebhookURL),
		CreatedAt:         in.CreatedAt,
		UpdatedAt:         in.UpdatedAt,
	}
}

func (s *IntegrationService) preview(sealed string) string {
	if sealed == "" {
		return ""
	}
	return s.box.Preview(sealed)
}

// Create validates and stores a new integration.
func (s *IntegrationService) Create(ctx context.Context, in IntegrationInput) (IntegrationView, error) {
	integration := model.SocialIntegration{Enabled: true}
	if err := s.apply(&integration, in); err != nil {
		return IntegrationView{}, err
	}

	created, err := s.store.Create(ctx, integration)
	if err != nil {
		return IntegrationView{}, err
	}
	slog.Info("integration created", "integration_id", created.ID, "type", created.Type, "enabled", created.Enabled)
	return s.View(created), nil
}

// Update replaces the integration's fields. Returns
// driven.ErrIntegrationNotFound if id does not exist.
func (s *IntegrationService) Update(ctx context.Context, id int64, in IntegrationInput) (IntegrationView, error) {
	existing, err := s.store.GetByID(ctx, id)
	if err != nil {
		return IntegrationView{}, err
	}
	if existing == nil {
		return IntegrationView{}, driven.ErrIntegrationNotFound
	}

	if err := s.apply(existing, in); err != nil {
		return IntegrationView{}, err
	}

	updated, err := s.store.Update(ctx, *existing)
	if err != nil {
		return IntegrationView{}, err
	}
	slog.Info("integration updated", "integration_id", updated.ID, "enabled", updated.Enabled)
	return s.View(updated), nil
}

// Delete removes the integration.
func (s *IntegrationService) Delete(ctx context.Context, id int64) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	slog.Info("integration deleted", "integration_id", id)
	return nil
}

func (s *IntegrationService) apply(dst *model.SocialIntegration, in IntegrationInput) error {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	typ, err := model.ParseIntegrationType(in.Type)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if len(in.Config) > 0 && !json.Valid(in.Config) {
		return fmt.Errorf("%w: config is not valid JSON", ErrInvalidInput)
	}

	dst.Name = name
	dst.Type = typ
	if in.Enabled != nil {
		dst.Enabled = *in.Enabled
	}
	dst.MessageTemplate = in.MessageTemplate
	if len(in.Config) > 0 {
		dst.Config = in.Config
	}

	if in.APIKey != nil {
		if dst.SealedAPIKey, err = s.sealOptional(*in.APIKey); err != nil {
			return fmt.Errorf("seal api key: %w", err)
		}
	}
	if in.WebhookURL != nil {
		if dst.SealedWebhookURL, err = s.sealOptional(*in.WebhookURL); err != nil {
			return fmt.Errorf("seal webhook url: %w", err)
		}
	}
	return nil
}

// sealOptional leaves empty secrets empty so "not configured" stays
// distinguishable from a sealed blank.
func (s *IntegrationService) sealOptional(secret string) (string, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return "", nil
	}
	return s.box.Seal(secret)
}
