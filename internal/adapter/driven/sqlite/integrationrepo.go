package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/streamcaster/internal/domain/model"
	"github.com/ericfisherdev/streamcaster/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.IntegrationStore = (*IntegrationRepo)(nil)

const integrationColumns = `id, name, type, api_key, webhook_url, enabled, message_template,
	config, created_at, updated_at`

// IntegrationRepo is the SQLite implementation of the IntegrationStore port interface.
type IntegrationRepo struct {
	db  *DB
	now func() time.Time
}

// NewIntegrationRepo creates a new IntegrationRepo backed by the given DB.
func NewIntegrationRepo(db *DB) *IntegrationRepo {
	return &IntegrationRepo{db: db, now: time.Now}
}

// Create inserts a social integration and returns the stored row.
func (r *IntegrationRepo) Create(ctx context.Context, in model.SocialIntegration) (model.SocialIntegration, error) {
	now := formatTime(r.now())
	query := `
		INSERT INTO social_integrations (name, type, api_key, webhook_url, enabled,
			message_template, config, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING ` + integrationColumns

	row := r.db.Writer.QueryRowContext(ctx, query,
		in.Name,
		string(in.Type),
		nullString(in.SealedAPIKey),
		nullString(in.SealedWebhookURL),
		in.Enabled,
		nullString(in.MessageTemplate),
		rawJSON(in.Config),
		now,
		now,
	)

	stored, err := scanIntegration(row)
	if err != nil {
		return model.SocialIntegration{}, fmt.Errorf("create integration %q: %w", in.Name, err)
	}
	return *stored, nil
}

// Update replaces every mutable column of the integration with the given id.
func (r *IntegrationRepo) Update(ctx context.Context, in model.SocialIntegration) (model.SocialIntegration, error) {
	query := `
		UPDATE social_integrations
		SET name = ?, type = ?, api_key = ?, webhook_url = ?, enabled = ?,
			message_template = ?, config = ?, updated_at = ?
		WHERE id = ?
		RETURNING ` + integrationColumns

	row := r.db.Writer.QueryRowContext(ctx, query,
		in.Name,
		string(in.Type),
		nullString(in.SealedAPIKey),
		nullString(in.SealedWebhookURL),
		in.Enabled,
		nullString(in.MessageTemplate),
		rawJSON(in.Config),
		formatTime(r.now()),
		in.ID,
	)

	stored, err := scanIntegration(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.SocialIntegration{}, driven.ErrIntegrationNotFound
	}
	if err != nil {
		return model.SocialIntegration{}, fmt.Errorf("update integration %d: %w", in.ID, err)
	}
	return *stored, nil
}

// Delete removes the integration with the given id.
func (r *IntegrationRepo) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM social_integrations WHERE id = ?`

	res, err := r.db.Writer.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete integration %d: %w", id, err)
	}
	return requireRow(res, driven.ErrIntegrationNotFound)
}

// GetByID returns the integration with the given id. Returns nil, nil if not found.
func (r *IntegrationRepo) GetByID(ctx context.Context, id int64) (*model.SocialIntegration, error) {
	query := `SELECT ` + integrationColumns + ` FROM social_integrations WHERE id = ?`

	in, err := scanIntegration(r.db.Reader.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get integration %d: %w", id, err)
	}
	return in, nil
}

// ListAll returns every integration ordered by id.
func (r *IntegrationRepo) ListAll(ctx context.Context) ([]model.SocialIntegration, error) {
	query := `SELECT ` + integrationColumns + ` FROM social_integrations ORDER BY id`
	return r.list(ctx, query)
}

// ListEnabled returns enabled integrations ordered by id.
func (r *IntegrationRepo) ListEnabled(ctx context.Context) ([]model.SocialIntegration, error) {
	query := `SELECT ` + integrationColumns + ` FROM social_integrations WHERE enabled = 1 ORDER BY id`
	return r.list(ctx, query)
}

func (r *IntegrationRepo) list(ctx context.Context, query string, args ...any) ([]model.SocialIntegration, error) {
	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list integrations: %w", err)
	}
	defer rows.Close()

	var out []model.SocialIntegration
	for rows.Next() {
		in, err := scanIntegration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan integration: %w", err)
		}
		out = append(out, *in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate integrations: %w", err)
	}

	return out, nil
}

func scanIntegration(s scanner) (*model.SocialIntegration, error) {
	var in model.SocialIntegration
	var typ, config, createdAt, updatedAt string
	var apiKey, webhookURL, template sql.NullString

	err := s.Scan(
		&in.ID, &in.Name, &typ, &apiKey, &webhookURL, &in.Enabled, &template,
		&config, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	in.Type = model.IntegrationType(typ)
	in.SealedAPIKey = apiKey.String
	in.SealedWebhookURL = webhookURL.String
	in.MessageTemplate = template.String
	in.Config = []byte(config)

	if in.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if in.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	return &in, nil
}
