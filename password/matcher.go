package password

import "strings"

// Matcher hashes new passwords with Argon2id and verifies stored hashes in
// either Argon2id or bcrypt format, chosen by the hash prefix.
type Matcher struct {
	argon  *Argon2
	bcrypt *Bcrypt
}

// NewMatcher returns a Matcher. bc may be nil to disable bcrypt verification.
func NewMatcher(argon *Argon2, bc *Bcrypt) *Matcher {
	return &Matcher{argon: argon, bcrypt: bc}
}

// Hash returns an Argon2id PHC string for password.
func (m *Matcher) Hash(password string) (string, error) {
	return m.argon.Hash(password)
}

// Verify reports whether password matches encodedHash.
func (m *Matcher) Verify(password, encodedHash string) (bool, error) {
	switch {
	case strings.HasPrefix(encodedHash, argon2Prefix):
		return m.argon.Verify(password, encodedHash)
	case isBcryptHash(encodedHash) && m.bcrypt != nil:
		return m.bcrypt.Verify(password, encodedHash)
	default:
		return false, ErrMalformedHash
	}
}

// NeedsUpgrade reports whether encodedHash should be replaced by a fresh
// Argon2id hash on the next successful login.
func (m *Matcher) NeedsUpgrade(encodedHash string) (bool, error) {
	if isBcryptHash(encodedHash) {
		return true, nil
	}
	return m.argon.NeedsUpgrade(encodedHash)
}
