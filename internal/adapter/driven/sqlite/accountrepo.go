package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/streamcaster/internal/domain/model"
	"github.com/ericfisherdev/streamcaster/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.AccountStore = (*AccountRepo)(nil)

const accountColumns = `id, platform, external_id, display_name, access_token, refresh_token,
	scopes, connection_status, last_refreshed_at, created_at`

// AccountRepo is the SQLite implementation of the AccountStore port interface.
// Token columns hold vault envelopes; this repo never sees plaintext.
type AccountRepo struct {
	db  *DB
	now func() time.Time
}

// NewAccountRepo creates a new AccountRepo backed by the given DB.
func NewAccountRepo(db *DB) *AccountRepo {
	return &AccountRepo{db: db, now: time.Now}
}

// Upsert inserts an account or updates the existing row with the same
// (platform, external_id). The id and created_at of an existing row are kept.
func (r *AccountRepo) Upsert(ctx context.Context, account model.Account) (model.Account, error) {
	scopes, err := encodeStrings(account.Scopes)
	if err != nil {
		return model.Account{}, err
	}

	status := account.ConnectionStatus
	if status == "" {
		status = model.ConnectionConnected
	}
	refreshedAt := account.LastRefreshedAt
	if refreshedAt.IsZero() {
		refreshedAt = r.now()
	}

	query := `
		INSERT INTO accounts (platform, external_id, display_name, access_token, refresh_token,
			scopes, connection_status, last_refreshed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(platform, external_id) DO UPDATE SET
			display_name      = excluded.display_name,
			access_token      = excluded.access_token,
			refresh_token     = excluded.refresh_token,
			scopes            = excluded.scopes,
			connection_status = excluded.connection_status,
			last_refreshed_at = excluded.last_refreshed_at
		RETURNING ` + accountColumns

	row := r.db.Writer.QueryRowContext(ctx, query,
		string(account.Platform),
		account.ExternalID,
		account.DisplayName,
		account.SealedAccessToken,
		account.SealedRefreshToken,
		scopes,
		string(status),
		formatTime(refreshedAt),
		formatTime(r.now()),
	)

	stored, err := scanAccount(row)
	if err != nil {
		return model.Account{}, fmt.Errorf("upsert account %s/%s: %w", account.Platform, account.ExternalID, err)
	}
	return *stored, nil
}

// GetByID returns the account with the given id. Returns nil, nil if not found.
func (r *AccountRepo) GetByID(ctx context.Context, id int64) (*model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = ?`

	acct, err := scanAccount(r.db.Reader.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account %d: %w", id, err)
	}
	return acct, nil
}

// ListAll returns every account ordered by id.
func (r *AccountRepo) ListAll(ctx context.Context) ([]model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts ORDER BY id`
	return r.list(ctx, query)
}

// ListByStatus returns accounts with the given connection status ordered by id.
func (r *AccountRepo) ListByStatus(ctx context.Context, status model.ConnectionStatus) ([]model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE connection_status = ? ORDER BY id`
	return r.list(ctx, query, string(status))
}

// UpdateTokens replaces the sealed tokens and scopes after a refresh. A nil
// scopes slice leaves the stored scopes untouched.
func (r *AccountRepo) UpdateTokens(ctx context.Context, id int64, sealedAccess, sealedRefresh string, scopes []string, refreshedAt time.Time) error {
	var scopesArg sql.NullString
	if scopes != nil {
		encoded, err := encodeStrings(scopes)
		if err != nil {
			return err
		}
		scopesArg = sql.NullString{String: encoded, Valid: true}
	}

	const query = `
		UPDATE accounts
		SET access_token = ?, refresh_token = ?,
			scopes = COALESCE(?, scopes),
			last_refreshed_at = ?
		WHERE id = ?`

	res, err := r.db.Writer.ExecContext(ctx, query, sealedAccess, sealedRefresh, scopesArg, formatTime(refreshedAt), id)
	if err != nil {
		return fmt.Errorf("update tokens for account %d: %w", id, err)
	}
	return requireRow(res, driven.ErrAccountNotFound)
}

// Disconnect marks the account disconnected and overwrites both tokens.
func (r *AccountRepo) Disconnect(ctx context.Context, id int64, sealedAccess, sealedRefresh string) error {
	const query = `
		UPDATE accounts
		SET connection_status = ?, access_token = ?, refresh_token = ?
		WHERE id = ?`

	res, err := r.db.Writer.ExecContext(ctx, query, string(model.ConnectionDisconnected), sealedAccess, sealedRefresh, id)
	if err != nil {
		return fmt.Errorf("disconnect account %d: %w", id, err)
	}
	return requireRow(res, driven.ErrAccountNotFound)
}

func (r *AccountRepo) list(ctx context.Context, query string, args ...any) ([]model.Account, error) {
	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []model.Account
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, *acct)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}

	return accounts, nil
}

func scanAccount(s scanner) (*model.Account, error) {
	var acct model.Account
	var platform, status, scopes, createdAt string
	var refreshedAt sql.NullString

	err := s.Scan(
		&acct.ID, &platform, &acct.ExternalID, &acct.DisplayName,
		&acct.SealedAccessToken, &acct.SealedRefreshToken,
		&scopes, &status, &refreshedAt, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	acct.Platform = model.Platform(platform)
	acct.ConnectionStatus = model.ConnectionStatus(status)

	if acct.Scopes, err = decodeStrings(scopes); err != nil {
		return nil, err
	}
	if acct.LastRefreshedAt, err = parseNullTime(refreshedAt); err != nil {
		return nil, fmt.Errorf("parse last_refreshed_at: %w", err)
	}
	if acct.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	return &acct, nil
}

// requireRow returns notFound when res reports zero affected rows.
func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
