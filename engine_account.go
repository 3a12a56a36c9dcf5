package bankauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/bankauth/ledger"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreateAccount opens another account for the caller with the given opening
// balance.
func (e *Engine) CreateAccount(ctx context.Context, accessToken string, initial decimal.Decimal) (ledger.Account, error) {
	auth, err := e.Authenticate(ctx, accessToken)
	if err != nil {
		return ledger.Account{}, err
	}

	acct, err := e.ledger.CreateAccount(ctx, auth.IdentityID, initial)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrNegativeBalance):
			err = fmt.Errorf("%w: %w", ErrInvalidInput, err)
		case errors.Is(err, ledger.ErrExhausted):
			e.metricInc(MetricLedgerExhausted)
			err = fmt.Errorf("%w: %w", ErrLedgerExhausted, err)
		default:
			err = e.classify(err)
		}
		e.emitAudit(ctx, auditEventAccountCreate, false, auth.IdentityID, "", err, nil)
		return ledger.Account{}, err
	}

	e.metricInc(MetricAccountCreated)
	e.emitAudit(ctx, auditEventAccountCreate, true, auth.IdentityID, "", nil, func() map[string]string {
		return map[string]string{"account_number": acct.Number}
	})
	e.logger.Info("account created",
		zap.String("identity_id", auth.IdentityID),
		zap.String("account_number", acct.Number),
	)
	return acct, nil
}

// Accounts lists the caller's accounts.
func (e *Engine) Accounts(ctx context.Context, accessToken string) ([]ledger.Account, error) {
	auth, err := e.Authenticate(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	accts, err := e.ledger.AccountsByOwner(ctx, auth.IdentityID)
	if err != nil {
		return nil, e.classify(err)
	}
	return accts, nil
}

// IdentityIDByEmail resolves the id of the identity registered under email.
func (e *Engine) IdentityIDByEmail(ctx context.Context, email string) (string, error) {
	if err := e.ready(); err != nil {
		return "", err
	}
	ident, err := e.users.IdentityByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return "", e.classify(err)
	}
	return ident.ID, nil
}
