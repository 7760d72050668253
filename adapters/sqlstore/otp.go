package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/ports"
)

var _ ports.OtpStore = (*OtpStore)(nil)

// OtpStore persists outstanding password reset codes, one row per phone
type OtpStore struct {
	store *Store
}

func (o *OtpStore) Save(ctx context.Context, challenge *core.OtpChallenge) error {
	query := o.store.rebind(`
		INSERT INTO otp_challenges (phone, email, otp_hash, attempts, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (phone) DO UPDATE SET
			email = excluded.email,
			otp_hash = excluded.otp_hash,
			attempts = excluded.attempts,
			expires_at = excluded.expires_at,
			created_at = excluded.created_at`)

	_, err := o.store.db.ExecContext(ctx, query,
		challenge.Phone,
		challenge.Email,
		challenge.OtpHash,
		challenge.Attempts,
		toMillis(challenge.ExpiresAt),
		toMillis(challenge.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("%w: save otp challenge: %v", core.ErrStorageUnavailable, err)
	}
	return nil
}

const otpColumns = `phone, email, otp_hash, attempts, expires_at, created_at`

func (o *OtpStore) Get(ctx context.Context, phone string) (*core.OtpChallenge, error) {
	query := o.store.rebind(`SELECT ` + otpColumns + ` FROM otp_challenges WHERE phone = ?`)

	challenge, err := scanOtp(o.store.db.QueryRowContext(ctx, query, phone))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrOtpNotFound
		}
		return nil, fmt.Errorf("%w: load otp challenge: %v", core.ErrStorageUnavailable, err)
	}
	return challenge, nil
}

// ReserveAttempt counts the attempt in the UPDATE itself; concurrent callers never pass the limit
func (o *OtpStore) ReserveAttempt(ctx context.Context, phone string, maxAttempts int, now time.Time) (*core.OtpChallenge, error) {
	query := o.store.rebind(`
		UPDATE otp_challenges SET attempts = attempts + 1
		WHERE phone = ? AND attempts < ? AND expires_at > ?
		RETURNING ` + otpColumns)

	challenge, err := scanOtp(o.store.db.QueryRowContext(ctx, query, phone, maxAttempts, toMillis(now)))
	if err == nil {
		return challenge, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: reserve otp attempt: %v", core.ErrStorageUnavailable, err)
	}

	// nothing was counted, report why
	current, err := o.Get(ctx, phone)
	if err != nil {
		return nil, err
	}
	if !now.Before(current.ExpiresAt) {
		return nil, core.ErrOtpExpired
	}
	return nil, core.ErrTooManyAttempts
}

func scanOtp(row *sql.Row) (*core.OtpChallenge, error) {
	var (
		challenge            core.OtpChallenge
		expiresAt, createdAt int64
	)
	err := row.Scan(
		&challenge.Phone,
		&challenge.Email,
		&challenge.OtpHash,
		&challenge.Attempts,
		&expiresAt,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	challenge.ExpiresAt = fromMillis(expiresAt)
	challenge.CreatedAt = fromMillis(createdAt)
	return &challenge, nil
}

func (o *OtpStore) Delete(ctx context.Context, phone string) (bool, error) {
	query := o.store.rebind(`DELETE FROM otp_challenges WHERE phone = ?`)

	result, err := o.store.db.ExecContext(ctx, query, phone)
	if err != nil {
		return false, fmt.Errorf("%w: delete otp challenge: %v", core.ErrStorageUnavailable, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: delete otp challenge: %v", core.ErrStorageUnavailable, err)
	}
	return affected > 0, nil
}

func (o *OtpStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	query := o.store.rebind(`DELETE FROM otp_challenges WHERE expires_at <= ?`)

	result, err := o.store.db.ExecContext(ctx, query, toMillis(now))
	if err != nil {
		return 0, fmt.Errorf("%w: sweep otp challenges: %v", core.ErrStorageUnavailable, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: sweep otp challenges: %v", core.ErrStorageUnavailable, err)
	}
	return int(affected), nil
}
