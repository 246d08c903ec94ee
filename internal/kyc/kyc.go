// Package kyc defines the outbound port to identity-verification providers
// (spec §1: "KYC verification" is a named capability, but §1 Non-goals
// treats KYC-provider adapters as an external collaborator). Only the
// interface and a no-op stub live here; a real provider integration is
// out of scope.
package kyc

import (
	"context"

	"github.com/google/uuid"
)

// Status is a verification outcome.
type Status string

const (
	StatusUnverified Status = "unverified"
	StatusPending    Status = "pending"
	StatusApproved   Status = "approved"
	StatusRejected   Status = "rejected"
)

// Document is one piece of identity evidence submitted for verification.
// URI points at wherever the caller already stored the file; this package
// never handles upload or storage.
type Document struct {
	Type string
	URI  string
}

// Provider verifies a user's submitted documents against an external
// identity-verification service. Mirrors the teacher's EmailSender-style
// outbound port: a narrow, single-purpose interface a concrete adapter
// implements outside this module.
type Provider interface {
	Verify(ctx context.Context, userID uuid.UUID, documents []Document) (Status, error)
}

// StubProvider always returns pending, since evaluating real documents
// requires a provider this module does not implement.
type StubProvider struct{}

func (StubProvider) Verify(_ context.Context, _ uuid.UUID, _ []Document) (Status, error) {
	return StatusPending, nil
}
