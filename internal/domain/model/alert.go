package model

import (
	"encoding/json"
	"time"
)

// AlertEvent is a transient platform event such as a follow or donation.
type AlertEvent struct {
	ID        int64
	Platform  Platform
	AccountID *int64
	Type      string
	Message   string
	Payload   json.RawMessage
	CreatedAt time.Time
}
