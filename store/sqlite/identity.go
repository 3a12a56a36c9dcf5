package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/MrEthical07/bankauth"
)

const identityColumns = `id, email, name, password_hash, mfa_secret_ref, mfa_confirmed, created_at`

// CreateIdentity inserts ident. An email or id conflict yields
// bankauth.ErrDuplicateEmail without aborting the surrounding transaction.
func (r repo) CreateIdentity(ctx context.Context, ident bankauth.Identity) error {
	res, err := r.q.ExecContext(ctx, `
INSERT INTO users (id, email, name, password_hash, mfa_secret_ref, mfa_confirmed, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT DO NOTHING`,
		ident.ID, ident.Email, ident.Name, ident.PasswordHash,
		ident.MFASecretRef, ident.MFAConfirmed, ident.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return bankauth.ErrDuplicateEmail
	}
	return nil
}

func (r repo) IdentityByEmail(ctx context.Context, email string) (bankauth.Identity, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+identityColumns+` FROM users WHERE email = ?`, email)
	return scanIdentity(row)
}

func (r repo) IdentityByID(ctx context.Context, id string) (bankauth.Identity, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+identityColumns+` FROM users WHERE id = ?`, id)
	return scanIdentity(row)
}

// SetMFASecretRef records the secret backend and clears the confirmation.
func (r repo) SetMFASecretRef(ctx context.Context, id, ref string) error {
	return r.updateUser(ctx, `UPDATE users SET mfa_secret_ref = ?, mfa_confirmed = 0 WHERE id = ?`, ref, id)
}

func (r repo) ConfirmMFA(ctx context.Context, id string) error {
	return r.updateUser(ctx, `UPDATE users SET mfa_confirmed = 1 WHERE id = ?`, id)
}

func (r repo) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	return r.updateUser(ctx, `UPDATE users SET password_hash = ? WHERE id = ?`, hash, id)
}

func (r repo) updateUser(ctx context.Context, query string, args ...any) error {
	res, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return bankauth.ErrUserNotFound
	}
	return nil
}

func scanIdentity(row *sql.Row) (bankauth.Identity, error) {
	var (
		ident     bankauth.Identity
		createdAt int64
	)
	err := row.Scan(
		&ident.ID, &ident.Email, &ident.Name, &ident.PasswordHash,
		&ident.MFASecretRef, &ident.MFAConfirmed, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return bankauth.Identity{}, bankauth.ErrUserNotFound
	}
	if err != nil {
		return bankauth.Identity{}, err
	}
	ident.CreatedAt = time.UnixMilli(createdAt).UTC()
	return ident, nil
}
