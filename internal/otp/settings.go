package otp

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	"github.com/coreledger/platform/internal/common"
	"github.com/coreledger/platform/internal/repository"
)

// Status mirrors the teacher's MFA lifecycle states.
type Status string

const (
	StatusPending  Status = "pending"
	StatusActive   Status = "active"
	StatusDisabled Status = "disabled"
)

// Settings is one user's TOTP configuration plus hashed backup codes.
type Settings struct {
	common.BaseEntity `bson:",inline"`

	UserID          uuid.UUID  `json:"user_id" bson:"user_id"`
	Secret          string     `json:"-" bson:"secret"`
	Status          Status     `json:"status" bson:"status"`
	BackupCodeHashes []string  `json:"-" bson:"backup_code_hashes"`
	VerifiedAt      *time.Time `json:"verified_at,omitempty" bson:"verified_at,omitempty"`
	LastUsedAt      *time.Time `json:"last_used_at,omitempty" bson:"last_used_at,omitempty"`
}

// NewSettings generates a fresh pending TOTP configuration for userID.
func NewSettings(userID uuid.UUID, owner common.ResourceOwner) (*Settings, error) {
	secret, err := GenerateSecret()
	if err != nil {
		return nil, err
	}
	return &Settings{
		BaseEntity: common.NewEntity(owner),
		UserID:     userID,
		Secret:     secret,
		Status:     StatusPending,
	}, nil
}

// Activate marks setup complete after the user verifies their first code.
func (s *Settings) Activate() {
	now := time.Now().UTC()
	s.Status = StatusActive
	s.VerifiedAt = &now
	s.UpdatedAt = now
}

func hashBackupCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// ConsumeBackupCode removes a matching backup code hash and reports
// whether one was found; backup codes are single-use.
func (s *Settings) ConsumeBackupCode(code string) bool {
	hash := hashBackupCode(code)
	for i, h := range s.BackupCodeHashes {
		if h == hash {
			s.BackupCodeHashes = append(s.BackupCodeHashes[:i], s.BackupCodeHashes[i+1:]...)
			return true
		}
	}
	return false
}

// SetBackupCodes hashes and stores count fresh backup codes, returning the
// plaintext codes for one-time display to the user.
func (s *Settings) SetBackupCodes(count int) ([]string, error) {
	codes, err := GenerateBackupCodes(count)
	if err != nil {
		return nil, err
	}
	hashes := make([]string, len(codes))
	for i, c := range codes {
		hashes[i] = hashBackupCode(c)
	}
	s.BackupCodeHashes = hashes
	return codes, nil
}

// Repository persists Settings, one row per user.
type Repository interface {
	FindByUserID(ctx context.Context, userID uuid.UUID) (*Settings, error)
	Save(ctx context.Context, s *Settings) (*Settings, error)
}

type repoAdapter struct {
	repo repository.Repository[Settings]
}

// NewRepository wraps a generic repository.Repository[Settings].
func NewRepository(repo repository.Repository[Settings]) Repository {
	return &repoAdapter{repo: repo}
}

func (r *repoAdapter) FindByUserID(ctx context.Context, userID uuid.UUID) (*Settings, error) {
	return r.repo.FindOne(ctx, repository.Query{Filters: []repository.Filter{
		{Field: "user_id", Operator: repository.OpEquals, Value: userID.String()},
	}}, nil)
}

func (r *repoAdapter) Save(ctx context.Context, s *Settings) (*Settings, error) {
	if s.ID == uuid.Nil {
		return r.repo.Create(ctx, s, nil)
	}
	return r.repo.Update(ctx, s, nil)
}

// Verifier implements session.TwoFactorVerifier against a Settings
// Repository: a matching TOTP code or an unused backup code both satisfy
// it, the latter being consumed on success.
type Verifier struct {
	repo Repository
}

// NewVerifier builds a Verifier over repo.
func NewVerifier(repo Repository) *Verifier {
	return &Verifier{repo: repo}
}

// Verify implements session.TwoFactorVerifier.
func (v *Verifier) Verify(ctx context.Context, userID uuid.UUID, code string) (bool, error) {
	settings, err := v.repo.FindByUserID(ctx, userID)
	if err != nil {
		if common.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	if settings.Status != StatusActive {
		return false, nil
	}

	now := time.Now().UTC()
	if ok, err := Verify(settings.Secret, code, now); err != nil {
		return false, err
	} else if ok {
		settings.LastUsedAt = &now
		_, err := v.repo.Save(ctx, settings)
		return true, err
	}

	if settings.ConsumeBackupCode(code) {
		settings.LastUsedAt = &now
		_, err := v.repo.Save(ctx, settings)
		return true, err
	}

	return false, nil
}
