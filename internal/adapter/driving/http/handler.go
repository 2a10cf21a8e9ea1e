package httphandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ericfisherdev/streamcaster/internal/application"
	"github.com/ericfisherdev/streamcaster/internal/domain/model"
	"github.com/ericfisherdev/streamcaster/internal/domain/port/driven"
)

// Services bundles the application services the REST API drives. Health may
// be nil, in which case /health reports a bare liveness response.
type Services struct {
	Accounts     *application.AccountService
	Jobs         *application.JobService
	Integrations *application.IntegrationService
	Broadcaster  *application.Broadcaster
	Metadata     *application.MetadataService
	Alerts       *application.AlertBus
	Scheduler    *application.Scheduler
	Health       *application.HealthService
}

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	svc    Services
	logger *slog.Logger

	// streamKeepAlive is the interval between SSE keep-alive comments.
	streamKeepAlive time.Duration
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(svc Services, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger, streamKeepAlive: 25 * time.Second}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/accounts", h.ListAccounts)
	mux.HandleFunc("POST /api/v1/accounts", h.ConnectAccount)
	mux.HandleFunc("POST /api/v1/accounts/{id}/disconnect", h.DisconnectAccount)

	mux.HandleFunc("GET /api/v1/shorts", h.listJobs(model.JobKindShort))
	mux.HandleFunc("POST /api/v1/shorts", h.scheduleJob(model.JobKindShort))
	mux.HandleFunc("GET /api/v1/vods", h.listJobs(model.JobKindVOD))
	mux.HandleFunc("POST /api/v1/vods", h.scheduleJob(model.JobKindVOD))

	mux.HandleFunc("GET /api/v1/integrations", h.ListIntegrations)
	mux.HandleFunc("POST /api/v1/integrations", h.CreateIntegration)
	mux.HandleFunc("PUT /api/v1/integrations/{id}", h.UpdateIntegration)
	mux.HandleFunc("DELETE /api/v1/integrations/{id}", h.DeleteIntegration)

	mux.HandleFunc("POST /api/v1/golive", h.GoLive)
	mux.HandleFunc("POST /api/v1/metadata", h.UpdateMetadata)
	mux.HandleFunc("POST /api/v1/live-events", h.CreateLiveEvents)

	mux.HandleFunc("GET /api/v1/alerts", h.ListAlerts)
	mux.HandleFunc("POST /api/v1/alerts/simulate", h.SimulateAlert)
	mux.HandleFunc("GET /api/v1/alerts/stream", h.StreamAlerts)

	mux.HandleFunc("POST /api/v1/scheduler/run/{class}", h.RunScheduler)
	mux.HandleFunc("GET /api/v1/health", h.Health)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// ListAccounts returns every linked account without tokens.
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	views, err := h.svc.Accounts.ListViews(r.Context())
	if err != nil {
		h.logger.Error("failed to list accounts", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]AccountResponse, 0, len(views))
	for _, v := range views {
		resp = append(resp, toAccountResponse(v))
	}
	writeJSON(w, http.StatusOK, resp)
}

// ConnectAccount links or relinks a platform account.
func (h *Handler) ConnectAccount(w http.ResponseWriter, r *http.Request) {
	var req ConnectAccountRequest
	if !decodeBody(w, r, &req) {
		return
	}

	acct, err := h.svc.Accounts.Upsert(r.Context(), application.ConnectAccountInput{
		Platform:     model.Platform(req.Platform),
		ExternalID:   req.ExternalID,
		DisplayName:  req.DisplayName,
		AccessToken:  req.AccessToken,
		RefreshToken: req.RefreshToken,
		Scopes:       req.Scopes,
	})
	if err != nil {
		h.writeServiceError(w, "connect account", err)
		return
	}

	writeJSON(w, http.StatusCreated, toAccountResponse(h.svc.Accounts.View(acct)))
}

// DisconnectAccount marks an account disconnected and destroys its tokens.
func (h *Handler) DisconnectAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.svc.Accounts.Disconnect(r.Context(), id); err != nil {
		h.writeServiceError(w, "disconnect account", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listJobs(kind model.JobKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobs, err := h.svc.Jobs.List(r.Context(), kind)
		if err != nil {
			h.logger.Error("failed to list jobs", "kind", kind, "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		resp := make([]JobResponse, 0, len(jobs))
		for _, j := range jobs {
			resp = append(resp, toJobResponse(j))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (h *Handler) scheduleJob(kind model.JobKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ScheduleJobRequest
		if !decodeBody(w, r, &req) {
			return
		}

		at, err := time.Parse(time.RFC3339, req.ScheduledFor)
		if err != nil {
			writeError(w, http.StatusBadRequest, "scheduled_for must be an RFC 3339 timestamp")
			return
		}

		job, err := h.svc.Jobs.Schedule(r.Context(), kind, application.ScheduleJobInput{
			Title:        req.Title,
			Description:  req.Description,
			Tags:         req.Tags,
			VideoPath:    req.VideoPath,
			ScheduledFor: at,
			Platform:     req.Platform,
			AccountID:    req.AccountID,
		})
		if err != nil {
			h.writeServiceError(w, "schedule job", err)
			return
		}
		writeJSON(w, http.StatusCreated, toJobResponse(job))
	}
}

// ListIntegrations returns every go-live integration with masked secrets.
func (h *Handler) ListIntegrations(w http.ResponseWriter, r *http.Request) {
	views, err := h.svc.Integrations.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list integrations", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]IntegrationResponse, 0, len(views))
	for _, v := range views {
		resp = append(resp, toIntegrationResponse(v))
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateIntegration adds a go-live integration.
func (h *Handler) CreateIntegration(w http.ResponseWriter, r *http.Request) {
	var req IntegrationRequest
	if !decodeBody(w, r, &req) {
		return
	}

	view, err := h.svc.Integrations.Create(r.Context(), req.toInput())
	if err != nil {
		h.writeServiceError(w, "create integration", err)
		return
	}
	writeJSON(w, http.StatusCreated, toIntegrationResponse(view))
}

// UpdateIntegration replaces a go-live integration. Omitted secrets are kept.
func (h *Handler) UpdateIntegration(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req IntegrationRequest
	if !decodeBody(w, r, &req) {
		return
	}

	view, err := h.svc.Integrations.Update(r.Context(), id, req.toInput())
	if err != nil {
		h.writeServiceError(w, "update integration", err)
		return
	}
	writeJSON(w, http.StatusOK, toIntegrationResponse(view))
}

// DeleteIntegration removes a go-live integration.
func (h *Handler) DeleteIntegration(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.svc.Integrations.Delete(r.Context(), id); err != nil {
		h.writeServiceError(w, "delete integration", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GoLive broadcasts a go-live message to every enabled integration.
func (h *Handler) GoLive(w http.ResponseWriter, r *http.Request) {
	var req GoLiveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	writeJSON(w, http.StatusOK, h.svc.Broadcaster.Broadcast(r.Context(), req.Message))
}

// UpdateMetadata pushes title and category changes to the listed accounts.
func (h *Handler) UpdateMetadata(w http.ResponseWriter, r *http.Request) {
	var req MetadataRequest
	if !decodeBody(w, r, &req) {
		return
	}
	meta, ok := req.toMetadata(w)
	if !ok {
		return
	}

	outcomes := h.svc.Metadata.UpdateStreamInfo(r.Context(), meta, req.AccountIDs)
	writeJSON(w, http.StatusOK, toOutcomeResponses(outcomes))
}

// CreateLiveEvents schedules a live event on the listed accounts.
func (h *Handler) CreateLiveEvents(w http.ResponseWriter, r *http.Request) {
	var req MetadataRequest
	if !decodeBody(w, r, &req) {
		return
	}
	meta, ok := req.toMetadata(w)
	if !ok {
		return
	}

	outcomes := h.svc.Metadata.CreateLiveEvent(r.Context(), meta, req.AccountIDs)
	writeJSON(w, http.StatusOK, toOutcomeResponses(outcomes))
}

// RunScheduler triggers one tick of a job class immediately.
func (h *Handler) RunScheduler(w http.ResponseWriter, r *http.Request) {
	class, err := application.ParseJobClass(r.PathValue("class"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "class must be one of shorts, vods, refresh")
		return
	}

	report, err := h.svc.Scheduler.RunNow(r.Context(), class)
	if err != nil {
		h.writeServiceError(w, "run scheduler", err)
		return
	}
	writeJSON(w, http.StatusOK, toTickResponse(report))
}

// Health returns the engine status summary, or a bare liveness response
// when no health service is configured.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC().Format(time.RFC3339)
	if h.svc.Health == nil {
		writeJSON(w, http.StatusOK, HealthResponse{Status: string(application.HealthOK), Time: now})
		return
	}

	summary, err := h.svc.Health.Summary(r.Context())
	if err != nil {
		h.logger.Error("failed to build health summary", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable", Time: now})
		return
	}
	writeJSON(w, http.StatusOK, toHealthResponse(*summary, now))
}

// writeServiceError maps application and port errors to HTTP statuses.
func (h *Handler) writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, application.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, driven.ErrAccountNotFound):
		writeError(w, http.StatusNotFound, "account not found")
	case errors.Is(err, driven.ErrIntegrationNotFound):
		writeError(w, http.StatusNotFound, "integration not found")
	case errors.Is(err, driven.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "job not found")
	default:
		h.logger.Error("request failed", "op", op, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// decodeBody decodes a JSON request body into v, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// pathID parses the {id} path value, writing a 400 on failure.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}
