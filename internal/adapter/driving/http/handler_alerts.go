package httphandler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ericfisherdev/streamcaster/internal/domain/model"
)

// alertStreamBuffer bounds the per-client backlog. Alerts beyond it are
// dropped for that client so a slow reader never blocks publishers.
const alertStreamBuffer = 32

// ListAlerts returns the most recent alerts, newest first.
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	events, err := h.svc.Alerts.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list alerts", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]AlertResponse, 0, len(events))
	for _, ev := range events {
		resp = append(resp, toAlertResponse(ev))
	}
	writeJSON(w, http.StatusOK, resp)
}

// SimulateAlert publishes a synthetic alert for overlay testing.
func (h *Handler) SimulateAlert(w http.ResponseWriter, r *http.Request) {
	var req SimulateAlertRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ev, err := h.svc.Alerts.Simulate(r.Context(), model.Platform(req.Platform), req.Type)
	if err != nil {
		h.writeServiceError(w, "simulate alert", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAlertResponse(ev))
}

// StreamAlerts pushes alerts to the client as server-sent events until the
// client disconnects.
func (h *Handler) StreamAlerts(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	// Long-lived stream; lift any server write deadline.
	_ = rc.SetWriteDeadline(time.Time{})

	events := make(chan model.AlertEvent, alertStreamBuffer)
	unsubscribe := h.svc.Alerts.Subscribe(func(ev model.AlertEvent) {
		select {
		case events <- ev:
		default:
			h.logger.Warn("alert stream client lagging, dropping alert", "alert_id", ev.ID)
		}
	})
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		h.logger.Error("alert stream flush unsupported", "error", err)
		return
	}

	keepAlive := time.NewTicker(h.streamKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		case ev := <-events:
			data, err := json.Marshal(toAlertResponse(ev))
			if err != nil {
				h.logger.Error("marshal alert", "alert_id", ev.ID, "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "id: %d\nevent: alert\ndata: %s\n\n", ev.ID, data); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
