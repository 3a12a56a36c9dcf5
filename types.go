package bankauth

import (
	"context"
	"time"

	"github.com/MrEthical07/bankauth/ledger"
	"github.com/MrEthical07/bankauth/mfa"
)

// Identity is a registered user. It is created by Join and afterwards only
// changes to record MFA enrollment.
type Identity struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	// MFASecretRef names the secret backend holding the TOTP secret, empty
	// when the identity has not enrolled.
	MFASecretRef string
	MFAConfirmed bool
	CreatedAt    time.Time
}

// MFARegistered reports whether the identity has an enrolled secret.
func (i Identity) MFARegistered() bool {
	return i.MFASecretRef != ""
}

// UserStore persists identities. Lookups return [ErrUserNotFound] when no
// identity matches.
type UserStore interface {
	IdentityByEmail(ctx context.Context, email string) (Identity, error)
	IdentityByID(ctx context.Context, id string) (Identity, error)
	SetMFASecretRef(ctx context.Context, id, ref string) error
	ConfirmMFA(ctx context.Context, id string) error
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	// InJoinTx runs fn in one transaction: the identity and its first
	// account commit or roll back together.
	InJoinTx(ctx context.Context, fn func(tx JoinTx) error) error
}

// JoinTx is the transaction handle passed to UserStore.InJoinTx.
// CreateIdentity returns [ErrDuplicateEmail] on an email conflict.
type JoinTx interface {
	ledger.Store
	CreateIdentity(ctx context.Context, ident Identity) error
}

// Store is everything the Engine persists in its SQL database.
type Store interface {
	UserStore
	ledger.Store
	mfa.SecretStore
}

// PasswordHasher is the opaque password capability. Verify returns
// (false, nil) on a plain mismatch.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
}

type passwordUpgrader interface {
	NeedsUpgrade(encodedHash string) (bool, error)
}

// LoginResult is returned by Login and Refresh.
type LoginResult struct {
	IdentityID    string
	AccessToken   string
	RefreshToken  string
	MFARegistered bool
}

// AuthResult describes a validated, unrevoked access token.
type AuthResult struct {
	IdentityID  string
	MFAVerified bool
	ExpiresAt   time.Time
}
