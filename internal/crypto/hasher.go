// Package crypto provides the password hashing adapters and token-envelope
// primitives used by the Session/Token Engine (C4). Adapted from the
// teacher's pkg/infra/crypto/bcrypt_adapter.go and argon2id_adapter.go,
// generalized behind one PasswordHasher interface so the Config Store can
// select a scheme per tenant at runtime.
package crypto

import "context"

// PasswordHasher hashes and verifies passwords under one algorithm.
type PasswordHasher interface {
	HashPassword(ctx context.Context, password string) (string, error)
	ComparePassword(ctx context.Context, hashedPassword, password string) error
}

// Scheme names a hashing algorithm. The session engine obtains it from its
// PasswordSchemeResolver; the resolver wired in internal/ioc returns
// SchemeArgon2id for every tenant and reads no Config Store key.
type Scheme string

const (
	SchemeBcrypt   Scheme = "bcrypt"
	SchemeArgon2id Scheme = "argon2id"
)

// HasherFor returns the PasswordHasher for scheme, defaulting to argon2id
// when the value is unrecognized.
func HasherFor(scheme Scheme) PasswordHasher {
	switch scheme {
	case SchemeBcrypt:
		return NewBcryptHasher(12)
	default:
		return NewArgon2idHasher(nil)
	}
}
