package driven

import (
	"context"

	"github.com/ericfisherdev/streamcaster/internal/domain/model"
)

// AlertStore defines the driven port for alert event persistence. It is
// append-only.
type AlertStore interface {
	Append(ctx context.Context, event model.AlertEvent) (model.AlertEvent, error)

	// ListRecent returns up to limit events, newest first.
	ListRecent(ctx context.Context, limit int) ([]model.AlertEvent, error)
}
