package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/ericfisherdev/streamcaster/internal/domain/model"
	"github.com/ericfisherdev/streamcaster/internal/domain/port/driven"
)

const (
	// DefaultRecentAlerts is the number of alerts Recent returns when no limit is given.
	DefaultRecentAlerts = 50
	maxRecentAlerts     = 500
)

// AlertHandler receives published alerts. It runs on the publisher's goroutine.
type AlertHandler func(model.AlertEvent)

// AlertBus persists platform alerts and fans them out to in-process subscribers.
type AlertBus struct {
	store driven.AlertStore

	mu   sync.RWMutex
	seq  uint64
	subs map[uint64]AlertHandler
}

// NewAlertBus creates an AlertBus backed by store.
func NewAlertBus(store driven.AlertStore) *AlertBus {
	return &AlertBus{store: store, subs: make(map[uint64]AlertHandler)}
}

// Subscribe registers handler and returns a function that removes it.
// Calling the returned function more than once is a no-op.
func (b *AlertBus) Subscribe(handler AlertHandler) (unsubscribe func()) {
	b.mu.Lock()
	b.seq++
	id := b.seq
	b.subs[id] = handler
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// Publish persists event and then invokes every handler subscribed at that
// moment, in subscription order, before returning. A panicking handler is
// logged and does not stop delivery to the rest.
func (b *AlertBus) Publish(ctx context.Context, event model.AlertEvent) (model.AlertEvent, error) {
	stored, err := b.store.Append(ctx, event)
	if err != nil {
		return model.AlertEvent{}, fmt.Errorf("persist alert: %w", err)
	}

	for _, h := range b.snapshot() {
		deliver(h, stored)
	}
	return stored, nil
}

// Recent returns the newest alerts first. limit <= 0 uses DefaultRecentAlerts.
func (b *AlertBus) Recent(ctx context.Context, limit int) ([]model.AlertEvent, error) {
	if limit <= 0 {
		limit = DefaultRecentAlerts
	}
	limit = min(limit, maxRecentAlerts)
	return b.store.ListRecent(ctx, limit)
}

// Simulate publishes a synthetic alert so overlays and subscribers can be
// tested without a live platform event.
func (b *AlertBus) Simulate(ctx context.Context, platform model.Platform, alertType string) (model.AlertEvent, error) {
	platform, err := model.ParsePlatform(string(platform))
	if err != nil {
		return model.AlertEvent{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	alertType = strings.TrimSpace(alertType)
	if alertType == "" {
		alertType = "follow"
	}

	payload, err := json.Marshal(map[string]any{"simulated": true})
	if err != nil {
		return model.AlertEvent{}, fmt.Errorf("marshal payload: %w", err)
	}

	return b.Publish(ctx, model.AlertEvent{
		Platform: platform,
		Type:     alertType,
		Message:  fmt.Sprintf("Test %s alert from %s", alertType, platform),
		Payload:  payload,
	})
}

// SubscriberCount returns the number of active subscribers.
func (b *AlertBus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *AlertBus) snapshot() []AlertHandler {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ids := make([]uint64, 0, len(b.subs))
	for id := range b.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	handlers := make([]AlertHandler, 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, b.subs[id])
	}
	return handlers
}

func deliver(h AlertHandler, event model.AlertEvent) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("alert subscriber panicked", "alert_id", event.ID, "panic", r)
		}
	}()
	h(event)
}
