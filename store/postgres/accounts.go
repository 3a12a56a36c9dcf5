package postgres

import (
	"context"
	"errors"

	"github.com/MrEthical07/bankauth/ledger"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const accountColumns = `number, owner_id::text, balance::text, version, created_at`

// InsertAccount inserts acct. A number conflict is reported as
// ledger.ErrAccountNumberTaken and leaves an open transaction usable.
func (r repo) InsertAccount(ctx context.Context, acct ledger.Account) error {
	tag, err := r.q.Exec(ctx, `
INSERT INTO accounts (number, owner_id, balance, version, created_at)
VALUES ($1, $2, $3::numeric, $4, $5)
ON CONFLICT (number) DO NOTHING`,
		acct.Number, acct.OwnerID, acct.Balance.String(), acct.Version, acct.CreatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrAccountNumberTaken
	}
	return nil
}

func (r repo) AccountByNumber(ctx context.Context, number string) (ledger.Account, error) {
	acct, err := scanAccount(r.q.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE number = $1`, number))
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Account{}, ledger.ErrAccountNotFound
	}
	return acct, err
}

func (r repo) AccountsByOwner(ctx context.Context, ownerID string) ([]ledger.Account, error) {
	if !validID(ownerID) {
		return nil, nil
	}
	rows, err := r.q.Query(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE owner_id = $1 ORDER BY created_at, number`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.Account
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, acct)
	}
	return out, rows.Err()
}

func (r repo) AccountExists(ctx context.Context, number string) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE number = $1)`, number).Scan(&exists)
	return exists, err
}

// UpdateBalance writes balance only if the stored version still equals
// expectedVersion.
func (r repo) UpdateBalance(ctx context.Context, number string, balance decimal.Decimal, expectedVersion int64) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE accounts SET balance = $2::numeric, version = version + 1 WHERE number = $1 AND version = $3`,
		number, balance.String(), expectedVersion,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	exists, err := r.AccountExists(ctx, number)
	if err != nil {
		return err
	}
	if !exists {
		return ledger.ErrAccountNotFound
	}
	return ledger.ErrVersionConflict
}

func scanAccount(row pgx.Row) (ledger.Account, error) {
	var (
		acct    ledger.Account
		balance string
	)
	if err := row.Scan(&acct.Number, &acct.OwnerID, &balance, &acct.Version, &acct.CreatedAt); err != nil {
		return ledger.Account{}, err
	}
	b, err := decimal.NewFromString(balance)
	if err != nil {
		return ledger.Account{}, err
	}
	acct.Balance = b
	acct.CreatedAt = acct.CreatedAt.UTC()
	return acct, nil
}
