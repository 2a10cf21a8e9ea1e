package model

import "time"

// Account is a linked platform account as persisted. The token fields hold
// vault envelopes, never plaintext.
type Account struct {
	ID                 int64
	Platform           Platform
	ExternalID         string
	DisplayName        string
	SealedAccessToken  string
	SealedRefreshToken string
	Scopes             []string
	ConnectionStatus   ConnectionStatus
	LastRefreshedAt    time.Time
	CreatedAt          time.Time
}

// IsConnected reports whether the account is marked connected.
func (a Account) IsConnected() bool {
	return a.ConnectionStatus == ConnectionConnected
}

// AuthorizedAccount is the decrypted view of an Account handed to platform
// dispatchers for the duration of a single call. It must never be persisted.
type AuthorizedAccount struct {
	ID           int64
	Platform     Platform
	ExternalID   string
	DisplayName  string
	AccessToken  string
	RefreshToken string
	Scopes       []string
}

// AccountView is the account shape exposed outside the engine. Tokens are
// replaced by a masked preview.
type AccountView struct {
	ID                 int64
	Platform           Platform
	ExternalID         string
	DisplayName        string
	Scopes             []string
	ConnectionStatus   ConnectionStatus
	LastRefreshedAt    time.Time
	CreatedAt          time.Time
	AccessTokenPreview string
}
