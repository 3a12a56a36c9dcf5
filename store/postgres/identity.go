package postgres

import (
	"context"
	"errors"

	"github.com/MrEthical07/bankauth"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const identityColumns = `id::text, email, name, password_hash, mfa_secret_ref, mfa_confirmed, created_at`

// CreateIdentity inserts ident; a unique violation on email or id becomes
// bankauth.ErrDuplicateEmail.
func (r repo) CreateIdentity(ctx context.Context, ident bankauth.Identity) error {
	_, err := r.q.Exec(ctx, `
INSERT INTO users (id, email, name, password_hash, mfa_secret_ref, mfa_confirmed, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ident.ID, ident.Email, ident.Name, ident.PasswordHash,
		ident.MFASecretRef, ident.MFAConfirmed, ident.CreatedAt,
	)
	if isUniqueViolation(err) {
		return bankauth.ErrDuplicateEmail
	}
	return err
}

func (r repo) IdentityByEmail(ctx context.Context, email string) (bankauth.Identity, error) {
	return scanIdentity(r.q.QueryRow(ctx, `SELECT `+identityColumns+` FROM users WHERE email = $1`, email))
}

func (r repo) IdentityByID(ctx context.Context, id string) (bankauth.Identity, error) {
	// A malformed UUID can never match; skip the round trip and the cast error.
	if !validID(id) {
		return bankauth.Identity{}, bankauth.ErrUserNotFound
	}
	return scanIdentity(r.q.QueryRow(ctx, `SELECT `+identityColumns+` FROM users WHERE id = $1`, id))
}

// SetMFASecretRef records the secret backend and clears the confirmation.
func (r repo) SetMFASecretRef(ctx context.Context, id, ref string) error {
	return r.updateUser(ctx, `UPDATE users SET mfa_secret_ref = $2, mfa_confirmed = FALSE WHERE id = $1`, id, ref)
}

func (r repo) ConfirmMFA(ctx context.Context, id string) error {
	return r.updateUser(ctx, `UPDATE users SET mfa_confirmed = TRUE WHERE id = $1`, id)
}

func (r repo) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	return r.updateUser(ctx, `UPDATE users SET password_hash = $2 WHERE id = $1`, id, hash)
}

func (r repo) updateUser(ctx context.Context, query, id string, args ...any) error {
	if !validID(id) {
		return bankauth.ErrUserNotFound
	}
	tag, err := r.q.Exec(ctx, query, append([]any{id}, args...)...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return bankauth.ErrUserNotFound
	}
	return nil
}

func scanIdentity(row pgx.Row) (bankauth.Identity, error) {
	var ident bankauth.Identity
	err := row.Scan(
		&ident.ID, &ident.Email, &ident.Name, &ident.PasswordHash,
		&ident.MFASecretRef, &ident.MFAConfirmed, &ident.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return bankauth.Identity{}, bankauth.ErrUserNotFound
	}
	if err != nil {
		return bankauth.Identity{}, err
	}
	ident.CreatedAt = ident.CreatedAt.UTC()
	return ident, nil
}

func validID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
