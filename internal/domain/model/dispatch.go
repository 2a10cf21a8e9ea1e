package model

import "time"

// StreamMetadata describes a stream for metadata updates and live events.
// Empty fields are left unchanged by dispatchers that support partial updates.
type StreamMetadata struct {
	Title          string
	Category       string
	Game           string
	Description    string
	ScheduledStart time.Time
}

// UploadPayload is the content handed to ScheduleShort and UploadVOD.
type UploadPayload struct {
	Title        string
	Description  string
	Tags         []string
	VideoPath    string
	ScheduledFor time.Time
}

// DispatchResult is what a platform reports after accepting an upload.
type DispatchResult struct {
	Status     string
	ExternalID string
	Message    string
}

// TokenGrant is the outcome of a token refresh. Empty RefreshToken or nil
// Scopes mean "unchanged".
type TokenGrant struct {
	AccessToken  string
	RefreshToken string
	Scopes       []string
	Expiry       time.Time
}
