package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ericfisherdev/streamcaster/internal/domain/model"
	"github.com/ericfisherdev/streamcaster/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.AlertStore = (*AlertRepo)(nil)

// AlertRepo is the SQLite implementation of the AlertStore port interface.
type AlertRepo struct {
	db  *DB
	now func() time.Time
}

// NewAlertRepo creates a new AlertRepo backed by the given DB.
func NewAlertRepo(db *DB) *AlertRepo {
	return &AlertRepo{db: db, now: time.Now}
}

// Append stores an alert event. A zero CreatedAt is stamped with the current time.
func (r *AlertRepo) Append(ctx context.Context, event model.AlertEvent) (model.AlertEvent, error) {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = r.now()
	}
	event.CreatedAt = event.CreatedAt.UTC()

	const query = `
		INSERT INTO alert_events (platform, account_id, type, message, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	res, err := r.db.Writer.ExecContext(ctx, query,
		string(event.Platform),
		nullInt64(event.AccountID),
		event.Type,
		event.Message,
		rawJSON(event.Payload),
		formatTime(event.CreatedAt),
	)
	if err != nil {
		return model.AlertEvent{}, fmt.Errorf("append %s alert: %w", event.Type, err)
	}

	event.ID, err = res.LastInsertId()
	if err != nil {
		return model.AlertEvent{}, fmt.Errorf("last insert id: %w", err)
	}
	if len(event.Payload) == 0 {
		event.Payload = []byte("{}")
	}
	return event, nil
}

// ListRecent returns up to limit events, newest first.
func (r *AlertRepo) ListRecent(ctx context.Context, limit int) ([]model.AlertEvent, error) {
	const query = `
		SELECT id, platform, account_id, type, message, payload, created_at
		FROM alert_events
		ORDER BY created_at DESC, id DESC
		LIMIT ?`

	rows, err := r.db.Reader.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	var events []model.AlertEvent
	for rows.Next() {
		var ev model.AlertEvent
		var platform, payload, createdAt string
		var accountID sql.NullInt64

		if err := rows.Scan(&ev.ID, &platform, &accountID, &ev.Type, &ev.Message, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}

		ev.Platform = model.Platform(platform)
		ev.AccountID = int64Ptr(accountID)
		ev.Payload = []byte(payload)
		if ev.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at for alert %d: %w", ev.ID, err)
		}

		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alerts: %w", err)
	}

	return events, nil
}
