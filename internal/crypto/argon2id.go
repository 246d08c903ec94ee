package crypto

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/coreledger/platform/internal/common"
)

// Argon2idParams controls the cost of the Argon2id KDF. Defaults follow
// OWASP's password-storage cheat sheet.
type Argon2idParams struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2idParams returns Memory: 64 MiB, Iterations: 3,
// Parallelism: 4, Salt: 16 bytes, Key: 32 bytes.
func DefaultArgon2idParams() *Argon2idParams {
	return &Argon2idParams{
		Memory:      64 * 1024,
		Iterations:  3,
		Parallelism: 4,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Argon2idHasher implements PasswordHasher with Argon2id, storing
// parameters in a PHC-format string so ComparePassword can rehash with
// whatever parameters a given hash was created under.
type Argon2idHasher struct {
	params *Argon2idParams
}

// NewArgon2idHasher builds an Argon2idHasher; nil params uses the defaults.
func NewArgon2idHasher(params *Argon2idParams) *Argon2idHasher {
	if params == nil {
		params = DefaultArgon2idParams()
	}
	return &Argon2idHasher{params: params}
}

// HashPassword returns an encoded "$argon2id$v=..$m=..,t=..,p=..$salt$hash" string.
func (a *Argon2idHasher) HashPassword(_ context.Context, password string) (string, error) {
	salt := make([]byte, a.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt, a.params.Iterations, a.params.Memory, a.params.Parallelism, a.params.KeyLength)
	return encodeArgon2idHash(a.params, salt, hash), nil
}

func (a *Argon2idHasher) ComparePassword(_ context.Context, hashedPassword, password string) error {
	params, salt, storedHash, err := decodeArgon2idHash(hashedPassword)
	if err != nil {
		return err
	}

	computed := argon2.IDKey([]byte(password), salt, params.Iterations, params.Memory, params.Parallelism, params.KeyLength)
	if subtle.ConstantTimeCompare(storedHash, computed) != 1 {
		return common.NewUnauthenticated("password does not match")
	}
	return nil
}

func encodeArgon2idHash(params *Argon2idParams, salt, hash []byte) string {
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, params.Memory, params.Iterations, params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	)
}

func decodeArgon2idHash(encoded string) (*Argon2idParams, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return nil, nil, nil, common.NewInvalidInput("malformed argon2id hash")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return nil, nil, nil, common.NewInvalidInput("unsupported argon2id version")
	}

	params := &Argon2idParams{}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.Memory, &params.Iterations, &params.Parallelism); err != nil {
		return nil, nil, nil, common.NewInvalidInput("malformed argon2id parameters")
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, nil, nil, common.NewInvalidInput("malformed argon2id salt")
	}
	hash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, nil, nil, common.NewInvalidInput("malformed argon2id hash body")
	}

	params.SaltLength = uint32(len(salt))
	params.KeyLength = uint32(len(hash))
	return params, salt, hash, nil
}
