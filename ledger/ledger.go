package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/bankauth/internal"
	"github.com/shopspring/decimal"
)

// DefaultMaxAttempts bounds account-number draws and balance compare-and-swap
// retries.
const DefaultMaxAttempts = 16

// Config tunes a Ledger.
type Config struct {
	MaxAttempts int
}

// Ledger owns account identifiers and the non-negative balance invariant.
//
// Balance mutations on one account are serialized in-process and guarded by a
// version compare-and-swap in the store, so concurrent callers in other
// processes are detected and retried.
type Ledger struct {
	store       Store
	maxAttempts int
	locks       *keyedLocks
	newNumber   func() (string, error)
	now         func() time.Time
}

// New returns a Ledger backed by store.
func New(store Store, cfg Config) *Ledger {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	return &Ledger{
		store:       store,
		maxAttempts: cfg.MaxAttempts,
		locks:       newKeyedLocks(),
		newNumber:   func() (string, error) { return internal.NewNumericID(NumberDigits) },
		now:         time.Now,
	}
}

// WithStore returns a Ledger that shares l's locks and settings but writes
// through store, typically a transaction handle.
func (l *Ledger) WithStore(store Store) *Ledger {
	cp := *l
	cp.store = store
	return &cp
}

// CreateAccount opens an account for ownerID with the given opening balance.
// Number collisions are detected by the store insert and retried with a
// fresh draw up to the attempt budget.
func (l *Ledger) CreateAccount(ctx context.Context, ownerID string, initial decimal.Decimal) (Account, error) {
	if ownerID == "" {
		return Account{}, errors.New("ledger: owner id is required")
	}
	if initial.IsNegative() {
		return Account{}, ErrNegativeBalance
	}

	for attempt := 0; attempt < l.maxAttempts; attempt++ {
		number, err := l.newNumber()
		if err != nil {
			return Account{}, fmt.Errorf("ledger: draw account number: %w", err)
		}
		acct := Account{
			Number:    number,
			OwnerID:   ownerID,
			Balance:   initial,
			CreatedAt: l.now().UTC(),
			Version:   1,
		}

		err = l.store.InsertAccount(ctx, acct)
		if err == nil {
			return acct, nil
		}
		if !errors.Is(err, ErrAccountNumberTaken) {
			return Account{}, err
		}
		if ctx.Err() != nil {
			return Account{}, ctx.Err()
		}
	}
	return Account{}, fmt.Errorf("%w: no free account number after %d draws", ErrExhausted, l.maxAttempts)
}

// Exists reports whether an account with number exists.
func (l *Ledger) Exists(ctx context.Context, number string) (bool, error) {
	return l.store.AccountExists(ctx, number)
}

// Account returns the account with number.
func (l *Ledger) Account(ctx context.Context, number string) (Account, error) {
	return l.store.AccountByNumber(ctx, number)
}

// AccountsByOwner lists every account of ownerID.
func (l *Ledger) AccountsByOwner(ctx context.Context, ownerID string) ([]Account, error) {
	return l.store.AccountsByOwner(ctx, ownerID)
}

// Credit adds amount to the balance of number.
func (l *Ledger) Credit(ctx context.Context, number string, amount decimal.Decimal) (Account, error) {
	if !amount.IsPositive() {
		return Account{}, ErrInvalidAmount
	}
	unlock := l.locks.lock(number)
	defer unlock()

	return l.mutate(ctx, l.store, number, amount)
}

// Debit subtracts amount from the balance of number. It fails with
// [ErrInsufficientFunds] rather than leave the balance negative.
func (l *Ledger) Debit(ctx context.Context, number string, amount decimal.Decimal) (Account, error) {
	if !amount.IsPositive() {
		return Account{}, ErrInvalidAmount
	}
	unlock := l.locks.lock(number)
	defer unlock()

	return l.mutate(ctx, l.store, number, amount.Neg())
}

// Transfer moves amount from one account to another inside one store
// transaction. Both accounts are locked in a fixed order.
func (l *Ledger) Transfer(ctx context.Context, from, to string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if from == to {
		return ErrSameAccount
	}
	txStore, ok := l.store.(TxStore)
	if !ok {
		return ErrNoTransactions
	}

	unlock := l.locks.lock(from, to)
	defer unlock()

	return txStore.InLedgerTx(ctx, func(tx Store) error {
		if _, err := l.mutateOnce(ctx, tx, from, amount.Neg()); err != nil {
			return err
		}
		_, err := l.mutateOnce(ctx, tx, to, amount)
		return err
	})
}

func (l *Ledger) mutate(ctx context.Context, store Store, number string, delta decimal.Decimal) (Account, error) {
	for attempt := 0; attempt < l.maxAttempts; attempt++ {
		acct, err := l.mutateOnce(ctx, store, number, delta)
		if err == nil {
			return acct, nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return Account{}, err
		}
		if ctx.Err() != nil {
			return Account{}, ctx.Err()
		}
	}
	return Account{}, fmt.Errorf("%w: balance update on %s kept conflicting", ErrExhausted, number)
}

func (l *Ledger) mutateOnce(ctx context.Context, store Store, number string, delta decimal.Decimal) (Account, error) {
	acct, err := store.AccountByNumber(ctx, number)
	if err != nil {
		return Account{}, err
	}

	next := acct.Balance.Add(delta)
	if next.IsNegative() {
		return Account{}, ErrInsufficientFunds
	}

	if err := store.UpdateBalance(ctx, number, next, acct.Version); err != nil {
		return Account{}, err
	}
	acct.Balance = next
	acct.Version++
	return acct, nil
}
