package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/MrEthical07/bankauth/ledger"
	"github.com/shopspring/decimal"
)

const accountColumns = `number, owner_id, balance, version, created_at`

// InsertAccount inserts acct, reporting ledger.ErrAccountNumberTaken when the
// number is already in use.
func (r repo) InsertAccount(ctx context.Context, acct ledger.Account) error {
	res, err := r.q.ExecContext(ctx, `
INSERT INTO accounts (number, owner_id, balance, version, created_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (number) DO NOTHING`,
		acct.Number, acct.OwnerID, acct.Balance.String(), acct.Version, acct.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ledger.ErrAccountNumberTaken
	}
	return nil
}

func (r repo) AccountByNumber(ctx context.Context, number string) (ledger.Account, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE number = ?`, number)
	acct, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Account{}, ledger.ErrAccountNotFound
	}
	return acct, err
}

func (r repo) AccountsByOwner(ctx context.Context, ownerID string) ([]ledger.Account, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE owner_id = ? ORDER BY created_at, number`, ownerID)
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
	var one int
	err := r.q.QueryRowContext(ctx, `SELECT 1 FROM accounts WHERE number = ?`, number).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// UpdateBalance writes balance only if the stored version still equals
// expectedVersion, bumping the version on success.
func (r repo) UpdateBalance(ctx context.Context, number string, balance decimal.Decimal, expectedVersion int64) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE accounts SET balance = ?, version = version + 1 WHERE number = ? AND version = ?`,
		balance.String(), number, expectedVersion,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
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

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(s scanner) (ledger.Account, error) {
	var (
		acct      ledger.Account
		balance   string
		createdAt int64
	)
	if err := s.Scan(&acct.Number, &acct.OwnerID, &balance, &acct.Version, &createdAt); err != nil {
		return ledger.Account{}, err
	}
	b, err := decimal.NewFromString(balance)
	if err != nil {
		return ledger.Account{}, err
	}
	acct.Balance = b
	acct.CreatedAt = time.UnixMilli(createdAt).UTC()
	return acct, nil
}
