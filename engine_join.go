package bankauth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/bankauth/ledger"
	"github.com/MrEthical07/bankauth/password"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Join registers a new identity and opens its first, zero-balance account.
// Both rows commit in one transaction or neither does. The returned Identity
// carries no password hash.
func (e *Engine) Join(ctx context.Context, email, name, plaintext string) (*Identity, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	email = normalizeEmail(email)
	name = strings.TrimSpace(name)
	if email == "" || !strings.Contains(email, "@") || plaintext == "" {
		return nil, ErrInvalidInput
	}

	if _, err := e.users.IdentityByEmail(ctx, email); err == nil {
		e.rejectJoin(ctx, email, ErrDuplicateEmail)
		return nil, ErrDuplicateEmail
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, e.classify(err)
	}

	hash, err := e.hasher.Hash(plaintext)
	if err != nil {
		if errors.Is(err, password.ErrPasswordLength) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		return nil, fmt.Errorf("hash password: %w", err)
	}

	ident := Identity{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		CreatedAt:    e.now().UTC(),
	}

	var acct ledger.Account
	err = e.users.InJoinTx(ctx, func(tx JoinTx) error {
		if err := tx.CreateIdentity(ctx, ident); err != nil {
			return err
		}
		var err error
		acct, err = e.ledger.WithStore(tx).CreateAccount(ctx, ident.ID, decimal.Zero)
		return err
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrDuplicateEmail):
			// Lost a race with a concurrent Join for the same email.
			e.rejectJoin(ctx, email, ErrDuplicateEmail)
			return nil, ErrDuplicateEmail
		case errors.Is(err, ledger.ErrExhausted):
			e.metricInc(MetricLedgerExhausted)
			err = fmt.Errorf("%w: %w", ErrLedgerExhausted, err)
		default:
			err = e.classify(err)
		}
		e.metricInc(MetricJoinFailure)
		e.emitAudit(ctx, auditEventJoin, false, "", email, err, nil)
		return nil, err
	}

	e.metricInc(MetricJoinSuccess)
	e.metricInc(MetricAccountCreated)
	e.emitAudit(ctx, auditEventJoin, true, ident.ID, email, nil, func() map[string]string {
		return map[string]string{"account_number": acct.Number}
	})
	e.logger.Info("join",
		zap.String("identity_id", ident.ID),
		zap.String("email", email),
		zap.String("account_number", acct.Number),
	)

	ident.PasswordHash = ""
	return &ident, nil
}

func (e *Engine) rejectJoin(ctx context.Context, email string, err error) {
	e.metricInc(MetricJoinDuplicate)
	e.emitAudit(ctx, auditEventJoin, false, "", email, err, nil)
	e.logger.Info("join rejected", zap.String("email", email), zap.Error(err))
}
