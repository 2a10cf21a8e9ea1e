package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ericfisherdev/streamcaster/internal/domain/model"
	"github.com/ericfisherdev/streamcaster/internal/domain/port/driven"
)

// ConnectAccountInput is the plaintext account link request. Tokens are
// sealed before they reach the store.
type ConnectAccountInput struct {
	Platform     model.Platform
	ExternalID   string
	DisplayName  string
	AccessToken  string
	RefreshToken string
	Scopes       []string
}

// AccountService owns linked accounts: sealing tokens on write, exposing
// token-free views, and refreshing credentials periodically.
type AccountService struct {
	store          driven.AccountStore
	box            driven.SecretBox
	dispatchers    driven.DispatcherLookup
	refreshTimeout time.Duration
	now            func() time.Time
}

// NewAccountService creates an AccountService. refreshTimeout bounds each
// per-account token refresh call.
func NewAccountService(
	store driven.AccountStore,
	box driven.SecretBox,
	dispatchers driven.DispatcherLookup,
	refreshTimeout time.Duration,
) *AccountService {
	return &AccountService{
		store:          store,
		box:            box,
		dispatchers:    dispatchers,
		refreshTimeout: refreshTimeout,
		now:            time.Now,
	}
}

// List returns every stored account. Token fields remain sealed.
func (s *AccountService) List(ctx context.Context) ([]model.Account, error) {
	return s.store.ListAll(ctx)
}

// ListViews returns every account with tokens replaced by a preview.
func (s *AccountService) ListViews(ctx context.Context) ([]model.AccountView, error) {
	accounts, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	views := make([]model.AccountView, 0, len(accounts))
	for _, a := range accounts {
		views = append(views, s.View(a))
	}
	return views, nil
}

// View strips tokens from a and adds a masked access token preview.
func (s *AccountService) View(a model.Account) model.AccountView {
	return model.AccountView{
		ID:                 a.ID,
		Platform:           a.Platform,
		ExternalID:         a.ExternalID,
		DisplayName:        a.DisplayName,
		Scopes:             a.Scopes,
		ConnectionStatus:   a.ConnectionStatus,
		LastRefreshedAt:    a.LastRefreshedAt,
		CreatedAt:          a.CreatedAt,
		AccessTokenPreview: s.box.Preview(a.SealedAccessToken),
	}
}

// Upsert seals both tokens and stores the account keyed by (platform,
// external id). An existing account is reconnected and its tokens, name
// and scopes replaced.
func (s *AccountService) Upsert(ctx context.Context, in ConnectAccountInput) (model.Account, error) {
	platform, err := model.ParsePlatform(string(in.Platform))
	if err != nil {
		return model.Account{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	externalID := strings.TrimSpace(in.ExternalID)
	if externalID == "" {
		return model.Account{}, fmt.Errorf("%w: external id is required", ErrInvalidInput)
	}

	sealedAccess, err := s.box.Seal(in.AccessToken)
	if err != nil {
		return model.Account{}, fmt.Errorf("seal access token: %w", err)
	}
	sealedRefresh, err := s.box.Seal(in.RefreshToken)
	if err != nil {
		return model.Account{}, fmt.Errorf("seal refresh token: %w", err)
	}

	scopes := in.Scopes
	if scopes == nil {
		scopes = []string{}
	}

	acct, err := s.store.Upsert(ctx, model.Account{
		Platform:           platform,
		ExternalID:         externalID,
		DisplayName:        in.DisplayName,
		SealedAccessToken:  sealedAccess,
		SealedRefreshToken: sealedRefresh,
		Scopes:             scopes,
		ConnectionStatus:   model.ConnectionConnected,
		LastRefreshedAt:    s.now(),
	})
	if err != nil {
		return model.Account{}, err
	}

	slog.Info("account linked", "account_id", acct.ID, "platform", acct.Platform, "external_id", acct.ExternalID)
	return acct, nil
}

// Disconnect marks the account disconnected and destroys its tokens by
// re-sealing empty strings over them.
func (s *AccountService) Disconnect(ctx context.Context, id int64) error {
	blankAccess, err := s.box.Seal("")
	if err != nil {
		return fmt.Errorf("seal blank token: %w", err)
	}
	blankRefresh, err := s.box.Seal("")
	if err != nil {
		return fmt.Errorf("seal blank token: %w", err)
	}

	if err := s.store.Disconnect(ctx, id, blankAccess, blankRefresh); err != nil {
		return err
	}

	slog.Info("account disconnected", "account_id", id)
	return nil
}

// FindByID returns the account or nil, nil if it does not exist.
func (s *AccountService) FindByID(ctx context.Context, id int64) (*model.Account, error) {
	return s.store.GetByID(ctx, id)
}

// Authorize opens the account's tokens for a single dispatcher call. The
// result must not be stored.
func (s *AccountService) Authorize(a model.Account) (model.AuthorizedAccount, error) {
	access, err := s.box.Open(a.SealedAccessToken)
	if err != nil {
		return model.AuthorizedAccount{}, fmt.Errorf("open access token for account %d: %w", a.ID, err)
	}
	refresh, err := s.box.Open(a.SealedRefreshToken)
	if err != nil {
		return model.AuthorizedAccount{}, fmt.Errorf("open refresh token for account %d: %w", a.ID, err)
	}

	return model.AuthorizedAccount{
		ID:           a.ID,
		Platform:     a.Platform,
		ExternalID:   a.ExternalID,
		DisplayName:  a.DisplayName,
		AccessToken:  access,
		RefreshToken: refresh,
		Scopes:       a.Scopes,
	}, nil
}

// RefreshAll refreshes tokens for every connected account. A failure for one
// account is logged and skipped; it never stops the remaining refreshes.
func (s *AccountService) RefreshAll(ctx context.Context) (refreshed, failed int) {
	accounts, err := s.store.ListByStatus(ctx, model.ConnectionConnected)
	if err != nil {
		slog.Error("list connected accounts failed", "error", err)
		return 0, 0
	}

	for _, acct := range accounts {
		if ctx.Err() != nil {
			break
		}
		if err := s.refreshOne(ctx, acct); err != nil {
			failed++
			slog.Error("token refresh failed",
				"account_id", acct.ID,
				"platform", acct.Platform,
				"error", err,
			)
			continue
		}
		refreshed++
	}

	slog.Info("token refresh cycle complete", "refreshed", refreshed, "failed", failed)
	return refreshed, failed
}

func (s *AccountService) refreshOne(ctx context.Context, acct model.Account) error {
	dispatcher, ok := s.dispatchers.Get(acct.Platform)
	if !ok {
		return fmt.Errorf("no dispatcher for platform %s", acct.Platform)
	}

	authorized, err := s.Authorize(acct)
	if err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.refreshTimeout)
	defer cancel()

	grant, err := dispatcher.RefreshToken(callCtx, authorized)
	if err != nil {
		return err
	}

	access := grant.AccessToken
	if access == "" {
		access = authorized.AccessToken
	}
	refresh := grant.RefreshToken
	if refresh == "" {
		refresh = authorized.RefreshToken
	}

	sealedAccess, err := s.box.Seal(access)
	if err != nil {
		return fmt.Errorf("seal access token: %w", err)
	}
	sealedRefresh, err := s.box.Seal(refresh)
	if err != nil {
		return fmt.Errorf("seal refresh token: %w", err)
	}

	return s.store.UpdateTokens(ctx, acct.ID, sealedAccess, sealedRefresh, grant.Scopes, s.now())
}
