package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/ports"
)

var _ ports.CredentialStore = (*CredentialStore)(nil)

// CredentialStore persists email/password accounts
type CredentialStore struct {
	store *Store
}

const credentialColumns = `id, email, password_hash, phone, created_at, updated_at, last_login_at`

func (c *CredentialStore) Create(ctx context.Context, credential *core.Credential) error {
	query := c.store.rebind(`
		INSERT INTO credentials (` + credentialColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)

	var lastLogin sql.NullInt64
	if credential.LastLoginAt != nil {
		lastLogin = sql.NullInt64{Int64: toMillis(*credential.LastLoginAt), Valid: true}
	}

	_, err := c.store.db.ExecContext(ctx, query,
		credential.ID,
		credential.Email,
		credential.PasswordHash,
		credential.Phone,
		toMillis(credential.CreatedAt),
		toMillis(credential.UpdatedAt),
		lastLogin,
	)
	if err != nil {
		if isUniqueViolation(err) {
			if strings.Contains(err.Error(), "phone") {
				return core.ErrPhoneTaken
			}
			if strings.Contains(err.Error(), "email") {
				return core.ErrEmailTaken
			}
			return fmt.Errorf("credential already exists: %w", core.ErrConflict)
		}
		return fmt.Errorf("%w: insert credential: %v", core.ErrStorageUnavailable, err)
	}

	return nil
}

func (c *CredentialStore) GetByEmail(ctx context.Context, email string) (*core.Credential, error) {
	query := c.store.rebind(`SELECT ` + credentialColumns + ` FROM credentials WHERE email = ?`)
	return c.scanOne(c.store.db.QueryRowContext(ctx, query, email))
}

func (c *CredentialStore) GetByPhone(ctx context.Context, phone string) (*core.Credential, error) {
	query := c.store.rebind(`SELECT ` + credentialColumns + ` FROM credentials WHERE phone = ?`)
	return c.scanOne(c.store.db.QueryRowContext(ctx, query, phone))
}

func (c *CredentialStore) UpdatePassword(ctx context.Context, email, passwordHash string, now time.Time) error {
	query := c.store.rebind(`UPDATE credentials SET password_hash = ?, updated_at = ? WHERE email = ?`)
	return c.execOne(ctx, query, passwordHash, toMillis(now), email)
}

func (c *CredentialStore) TouchLogin(ctx context.Context, email string, now time.Time) error {
	query := c.store.rebind(`UPDATE credentials SET last_login_at = ? WHERE email = ?`)
	return c.execOne(ctx, query, toMillis(now), email)
}

func (c *CredentialStore) execOne(ctx context.Context, query string, args ...interface{}) error {
	result, err := c.store.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%w: update credential: %v", core.ErrStorageUnavailable, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: update credential: %v", core.ErrStorageUnavailable, err)
	}
	if affected == 0 {
		return core.ErrAccountNotFound
	}
	return nil
}

func (c *CredentialStore) scanOne(row *sql.Row) (*core.Credential, error) {
	var (
		credential           core.Credential
		createdAt, updatedAt int64
		lastLogin            sql.NullInt64
	)

	err := row.Scan(
		&credential.ID,
		&credential.Email,
		&credential.PasswordHash,
		&credential.Phone,
		&createdAt,
		&updatedAt,
		&lastLogin,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrAccountNotFound
		}
		return nil, fmt.Errorf("%w: load credential: %v", core.ErrStorageUnavailable, err)
	}

	credential.CreatedAt = fromMillis(createdAt)
	credential.UpdatedAt = fromMillis(updatedAt)
	if lastLogin.Valid {
		at := fromMillis(lastLogin.Int64)
		credential.LastLoginAt = &at
	}

	return &credential, nil
}
