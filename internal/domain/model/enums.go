package model

import (
	"fmt"
	"strings"
)

// Platform identifies a third-party publishing platform.
type Platform string

const (
	PlatformTikTok   Platform = "TikTok"
	PlatformTwitch   Platform = "Twitch"
	PlatformKick     Platform = "Kick"
	PlatformYouTube  Platform = "YouTube"
	PlatformFacebook Platform = "Facebook"
)

// AllPlatforms lists every supported platform in display order.
var AllPlatforms = []Platform{
	PlatformTikTok,
	PlatformTwitch,
	PlatformKick,
	PlatformYouTube,
	PlatformFacebook,
}

// ParsePlatform resolves a platform name case-insensitively.
func ParsePlatform(s string) (Platform, error) {
	s = strings.TrimSpace(s)
	for _, p := range AllPlatforms {
		if strings.EqualFold(string(p), s) {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown platform %q", s)
}

// ConnectionStatus represents whether an account's credentials are live.
type ConnectionStatus string

const (
	ConnectionConnected    ConnectionStatus = "connected"
	ConnectionDisconnected ConnectionStatus = "disconnected"
)

// JobKind separates short-form schedules from VOD uploads. Each kind is
// processed by its own scheduler tick.
type JobKind string

const (
	JobKindShort JobKind = "short"
	JobKindVOD   JobKind = "vod"
)

// JobStatus is the state of a scheduled job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusUploading JobStatus = "uploading"
	JobStatusPosted    JobStatus = "posted"
	JobStatusFailed    JobStatus = "failed"
)

// IsTerminal reports whether no further transitions are possible.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusPosted || s == JobStatusFailed
}

// CanTransitionTo reports whether s -> next is a legal move in
// pending -> uploading -> {posted, failed}. pending -> failed is allowed for
// jobs short-circuited before dispatch.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case JobStatusPending:
		return next == JobStatusUploading || next == JobStatusFailed
	case JobStatusUploading:
		return next == JobStatusPosted || next == JobStatusFailed
	default:
		return false
	}
}

// IntegrationType selects how a go-live message is delivered.
type IntegrationType string

const (
	IntegrationTwitter IntegrationType = "twitter"
	IntegrationDiscord IntegrationType = "discord"
	IntegrationWebhook IntegrationType = "webhook"
	IntegrationCustom  IntegrationType = "custom"
)

// ParseIntegrationType validates an integration type string.
func ParseIntegrationType(s string) (IntegrationType, error) {
	switch t := IntegrationType(strings.ToLower(strings.TrimSpace(s))); t {
	case IntegrationTwitter, IntegrationDiscord, IntegrationWebhook, IntegrationCustom:
		return t, nil
	default:
		return "", fmt.Errorf("unknown integration type %q", s)
	}
}
