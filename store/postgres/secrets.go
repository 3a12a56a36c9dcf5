package postgres

import (
	"context"
	"errors"

	"github.com/MrEthical07/bankauth/mfa"
	"github.com/jackc/pgx/v5"
)

// SaveMFASecret upserts the TOTP secret of email.
func (r repo) SaveMFASecret(ctx context.Context, email, secret string) error {
	_, err := r.q.Exec(ctx, `
INSERT INTO mfa_secrets (email, secret, updated_at) VALUES ($1, $2, now())
ON CONFLICT (email) DO UPDATE SET secret = EXCLUDED.secret, updated_at = EXCLUDED.updated_at`,
		email, secret,
	)
	return err
}

func (r repo) MFASecret(ctx context.Context, email string) (string, error) {
	var secret string
	err := r.q.QueryRow(ctx, `SELECT secret FROM mfa_secrets WHERE email = $1`, email).Scan(&secret)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", mfa.ErrSecretNotFound
	}
	return secret, err
}

// DeleteMFASecret removes the TOTP secret of email, if any.
func (r repo) DeleteMFASecret(ctx context.Context, email string) error {
	_, err := r.q.Exec(ctx, `DELETE FROM mfa_secrets WHERE email = $1`, email)
	return err
}
