package driven

import (
	"context"
	"errors"
	"time"

	"github.com/ericfisherdev/streamcaster/internal/domain/model"
)

// ErrAccountNotFound indicates the requested account does not exist.
var ErrAccountNotFound = errors.New("account not found")

// AccountStore defines the driven port for linked account persistence.
// Token columns are opaque vault envelopes; the store never sees plaintext.
type AccountStore interface {
	// Upsert inserts the account or, when (platform, external id) already
	// exists, updates display name, tokens, scopes, connection status and
	// last refresh time. The stored row is returned.
	Upsert(ctx context.Context, account model.Account) (model.Account, error)

	// GetByID returns nil, nil if the account does not exist.
	GetByID(ctx context.Context, id int64) (*model.Account, error)

	ListAll(ctx context.Context) ([]model.Account, error)
	ListByStatus(ctx context.Context, status model.ConnectionStatus) ([]model.Account, error)

	// UpdateTokens replaces sealed tokens and scopes after a refresh.
	UpdateTokens(ctx context.Context, id int64, sealedAccess, sealedRefresh string, scopes []string, refreshedAt time.Time) error

	// Disconnect marks the account disconnected and overwrites both tokens.
	// Returns ErrAccountNotFound if no row matched.
	Disconnect(ctx context.Context, id int64, sealedAccess, sealedRefresh string) error
}
