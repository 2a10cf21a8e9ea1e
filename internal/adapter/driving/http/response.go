package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/streamcaster/internal/application"
	"github.com/ericfisherdev/streamcaster/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// formatTime renders t as RFC 3339 UTC, or "" for the zero time.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// nonNil replaces a nil slice with an empty one so it encodes as [].
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// rawOrEmpty returns raw, or an empty JSON object when raw is empty.
func rawOrEmpty(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage(`{}`)
	}
	return raw
}

// --- Requests ---

// ConnectAccountRequest is the JSON body for linking an account.
type ConnectAccountRequest struct {
	Platform     string   `json:"platform"`
	ExternalID   string   `json:"external_id"`
	DisplayName  string   `json:"display_name"`
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	Scopes       []string `json:"scopes"`
}

// ScheduleJobRequest is the JSON body for scheduling a short or VOD.
type ScheduleJobRequest struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Tags         []string `json:"tags"`
	VideoPath    string   `json:"video_path"`
	ScheduledFor string   `json:"scheduled_for"`
	Platform     string   `json:"platform"`
	AccountID    *int64   `json:"account_id"`
}

// IntegrationRequest is the JSON body for creating or updating an
// integration. Omitting api_key or webhook_url keeps the stored value.
// Omitting enabled creates the integration enabled, or keeps the stored flag
// on update.
type IntegrationRequest struct {
	Name            string          `json:"name"`
	Type            string          `json:"type"`
	APIKey          *string         `json:"api_key"`
	WebhookURL      *string         `json:"webhook_url"`
	Enabled         *bool           `json:"enabled"`
	MessageTemplate string          `json:"message_template"`
	Config          json.RawMessage `json:"config"`
}

func (r IntegrationRequest) toInput() application.IntegrationInput {
	return application.IntegrationInput{
		Name:            r.Name,
		Type:            r.Type,
		APIKey:          r.APIKey,
		WebhookURL:      r.WebhookURL,
		Enabled:         r.Enabled,
		MessageTemplate: r.MessageTemplate,
		Config:          r.Config,
	}
}

// GoLiveRequest is the JSON body for the go-live broadcast endpoint.
type GoLiveRequest struct {
	Message string `json:"message"`
}

// MetadataRequest is the JSON body for stream metadata and live event pushes.
type MetadataRequest struct {
	Title          string  `json:"title"`
	Category       string  `json:"category"`
	Game           string  `json:"game"`
	Description    string  `json:"description"`
	ScheduledStart string  `json:"scheduled_start"`
	AccountIDs     []int64 `json:"account_ids"`
}

func (r MetadataRequest) toMetadata(w http.ResponseWriter) (model.StreamMetadata, bool) {
	if len(r.AccountIDs) == 0 {
		writeError(w, http.StatusBadRequest, "account_ids is required")
		return model.StreamMetadata{}, false
	}

	meta := model.StreamMetadata{
		Title:       r.Title,
		Category:    r.Category,
		Game:        r.Game,
		Description: r.Description,
	}
	if r.ScheduledStart != "" {
		at, err := time.Parse(time.RFC3339, r.ScheduledStart)
		if err != nil {
			writeError(w, http.StatusBadRequest, "scheduled_start must be an RFC 3339 timestamp")
			return model.StreamMetadata{}, false
		}
		meta.ScheduledStart = at.UTC()
	}
	return meta, true
}

// SimulateAlertRequest is the JSON body for the simulated alert endpoint.
type SimulateAlertRequest struct {
	Platform string `json:"platform"`
	Type     string `json:"type"`
}

// --- Responses ---

// AccountResponse is the JSON representation of a linked account. It never
// carries tokens.
type AccountResponse struct {
	ID                 int64    `json:"id"`
	Platform           string   `json:"platform"`
	ExternalID         string   `json:"external_id"`
	DisplayName        string   `json:"display_name"`
	Scopes             []string `json:"scopes"`
	ConnectionStatus   string   `json:"connection_status"`
	LastRefreshedAt    string   `json:"last_refreshed_at"`
	CreatedAt          string   `json:"created_at"`
	AccessTokenPreview string   `json:"access_token_preview"`
}

// JobResponse is the JSON representation of a scheduled short or VOD.
type JobResponse struct {
	ID            int64    `json:"id"`
	Kind          string   `json:"kind"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Tags          []string `json:"tags"`
	VideoPath     string   `json:"video_path"`
	ScheduledFor  string   `json:"scheduled_for"`
	Platform      string   `json:"platform"`
	AccountID     *int64   `json:"account_id"`
	Status        string   `json:"status"`
	ExternalID    string   `json:"external_id,omitempty"`
	ResultMessage string   `json:"result_message,omitempty"`
	CreatedAt     string   `json:"created_at"`
	UpdatedAt     string   `json:"updated_at"`
}

// IntegrationResponse is the JSON representation of a go-live integration.
type IntegrationResponse struct {
	ID                int64           `json:"id"`
	Name              string          `json:"name"`
	Type              string          `json:"type"`
	Enabled           bool            `json:"enabled"`
	MessageTemplate   string          `json:"message_template"`
	Config            json.RawMessage `json:"config"`
	APIKeyPreview     string          `json:"api_key_preview"`
	WebhookURLPreview string          `json:"webhook_url_preview"`
	CreatedAt         string          `json:"created_at"`
	UpdatedAt         string          `json:"updated_at"`
}

// OutcomeResponse is the per-account result of a metadata push.
type OutcomeResponse struct {
	AccountID int64  `json:"account_id"`
	Platform  string `json:"platform,omitempty"`
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
}

// AlertResponse is the JSON representation of an alert event.
type AlertResponse struct {
	ID        int64           `json:"id"`
	Platform  string          `json:"platform"`
	AccountID *int64          `json:"account_id"`
	Type      string          `json:"type"`
	Message   string          `json:"message"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt string          `json:"created_at"`
}

// TickResponse is the JSON representation of a manual scheduler run.
type TickResponse struct {
	Class      string `json:"class"`
	Due        int    `json:"due"`
	Succeeded  int    `json:"succeeded"`
	Failed     int    `json:"failed"`
	Skipped    int    `json:"skipped"`
	DurationMS int64  `json:"duration_ms"`
}

// JobCountsResponse tallies jobs of one kind by status.
type JobCountsResponse struct {
	Pending   int `json:"pending"`
	Uploading int `json:"uploading"`
	Posted    int `json:"posted"`
	Failed    int `json:"failed"`
}

// HealthResponse is the JSON representation of the health check endpoint.
// Summary fields are omitted when no health service is configured.
type HealthResponse struct {
	Status               string             `json:"status"`
	Time                 string             `json:"time"`
	Platforms            []string           `json:"platforms,omitempty"`
	UnservedPlatforms    []string           `json:"unserved_platforms,omitempty"`
	ConnectedAccounts    *int               `json:"connected_accounts,omitempty"`
	DisconnectedAccounts *int               `json:"disconnected_accounts,omitempty"`
	Shorts               *JobCountsResponse `json:"shorts,omitempty"`
	VODs                 *JobCountsResponse `json:"vods,omitempty"`
}

func toAccountResponse(v model.AccountView) AccountResponse {
	return AccountResponse{
		ID:                 v.ID,
		Platform:           string(v.Platform),
		ExternalID:         v.ExternalID,
		DisplayName:        v.DisplayName,
		Scopes:             nonNil(v.Scopes),
		ConnectionStatus:   string(v.ConnectionStatus),
		LastRefreshedAt:    formatTime(v.LastRefreshedAt),
		CreatedAt:          formatTime(v.CreatedAt),
		AccessTokenPreview: v.AccessTokenPreview,
	}
}

func toJobResponse(j model.ScheduledJob) JobResponse {
	return JobResponse{
		ID:            j.ID,
		Kind:          string(j.Kind),
		Title:         j.Title,
		Description:   j.Description,
		Tags:          nonNil(j.Tags),
		VideoPath:     j.VideoPath,
		ScheduledFor:  formatTime(j.ScheduledFor),
		Platform:      string(j.Platform),
		AccountID:     j.AccountID,
		Status:        string(j.Status),
		ExternalID:    j.ExternalID,
		ResultMessage: j.ResultMessage,
		CreatedAt:     formatTime(j.CreatedAt),
		UpdatedAt:     formatTime(j.UpdatedAt),
	}
}

func toIntegrationResponse(v application.IntegrationView) IntegrationResponse {
	return IntegrationResponse{
		ID:                v.ID,
		Name:              v.Name,
		Type:              string(v.Type),
		Enabled:           v.Enabled,
		MessageTemplate:   v.MessageTemplate,
		Config:            rawOrEmpty(v.Config),
		APIKeyPreview:     v.APIKeyPreview,
		WebhookURLPreview: v.WebhookURLPreview,
		CreatedAt:         formatTime(v.CreatedAt),
		UpdatedAt:         formatTime(v.UpdatedAt),
	}
}

func toOutcomeResponses(outcomes []application.MetadataOutcome) []OutcomeResponse {
	resp := make([]OutcomeResponse, 0, len(outcomes))
	for _, o := range outcomes {
		r := OutcomeResponse{AccountID: o.AccountID, Platform: string(o.Platform), OK: o.Err == nil}
		if o.Err != nil {
			r.Error = o.Err.Error()
		}
		resp = append(resp, r)
	}
	return resp
}

func toAlertResponse(ev model.AlertEvent) AlertResponse {
	return AlertResponse{
		ID:        ev.ID,
		Platform:  string(ev.Platform),
		AccountID: ev.AccountID,
		Type:      ev.Type,
		Message:   ev.Message,
		Payload:   rawOrEmpty(ev.Payload),
		CreatedAt: formatTime(ev.CreatedAt),
	}
}

func toTickResponse(r application.TickReport) TickResponse {
	return TickResponse{
		Class:      string(r.Class),
		Due:        r.Due,
		Succeeded:  r.Succeeded,
		Failed:     r.Failed,
		Skipped:    r.Skipped,
		DurationMS: r.Duration.Milliseconds(),
	}
}

func toJobCountsResponse(c application.JobCounts) *JobCountsResponse {
	return &JobCountsResponse{Pending: c.Pending, Uploading: c.Uploading, Posted: c.Posted, Failed: c.Failed}
}

func toHealthResponse(s application.HealthSummary, now string) HealthResponse {
	platforms := make([]string, 0, len(s.Platforms))
	for _, p := range s.Platforms {
		platforms = append(platforms, string(p))
	}
	unserved := make([]string, 0, len(s.UnservedPlatforms))
	for _, p := range s.UnservedPlatforms {
		unserved = append(unserved, string(p))
	}

	return HealthResponse{
		Status:               string(s.Status),
		Time:                 now,
		Platforms:            platforms,
		UnservedPlatforms:    unserved,
		ConnectedAccounts:    &s.ConnectedAccounts,
		DisconnectedAccounts: &s.DisconnectedAccounts,
		Shorts:               toJobCountsResponse(s.Shorts),
		VODs:                 toJobCountsResponse(s.VODs),
	}
}
