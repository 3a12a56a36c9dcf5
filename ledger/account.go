package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// NumberDigits is the width of every account number.
const NumberDigits = 14

// Account is a balance owned by exactly one identity.
type Account struct {
	Number    string
	OwnerID   string
	Balance   decimal.Decimal
	CreatedAt time.Time
	Version   int64
}

// Store persists accounts. Implementations must make InsertAccount fail with
// [ErrAccountNumberTaken] on a duplicate number without aborting an
// enclosing transaction, and UpdateBalance fail with [ErrVersionConflict]
// when expectedVersion no longer matches.
type Store interface {
	InsertAccount(ctx context.Context, acct Account) error
	AccountByNumber(ctx context.Context, number string) (Account, error)
	AccountsByOwner(ctx context.Context, ownerID string) ([]Account, error)
	AccountExists(ctx context.Context, number string) (bool, error)
	UpdateBalance(ctx context.Context, number string, balance decimal.Decimal, expectedVersion int64) error
}

// TxStore is a Store that can run fn inside a single database transaction.
type TxStore interface {
	Store
	InLedgerTx(ctx context.Context, fn func(tx Store) error) error
}
