package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/MrEthical07/bankauth/mfa"
)

// SaveMFASecret upserts the TOTP secret of email.
func (r repo) SaveMFASecret(ctx context.Context, email, secret string) error {
	_, err := r.q.ExecContext(ctx, `
INSERT INTO mfa_secrets (email, secret, updated_at) VALUES (?, ?, ?)
ON CONFLICT (email) DO UPDATE SET secret = excluded.secret, updated_at = excluded.updated_at`,
		email, secret, time.Now().UnixMilli(),
	)
	return err
}

func (r repo) MFASecret(ctx context.Context, email string) (string, error) {
	var secret string
	err := r.q.QueryRowContext(ctx, `SELECT secret FROM mfa_secrets WHERE email = ?`, email).Scan(&secret)
	if errors.Is(err, sql.ErrNoRows) {
		return "", mfa.ErrSecretNotFound
	}
	return secret, err
}

// DeleteMFASecret removes the TOTP secret of email, if any.
func (r repo) DeleteMFASecret(ctx context.Context, email string) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM mfa_secrets WHERE email = ?`, email)
	return err
}
