// Package recovery implements the Recovery Framework (spec component C9):
// pluggable per-operation-type handlers that reverse or delete operations
// left inconsistent by a crash or a failed step, plus a periodic sweep over
// operations the Operation State Tracker (C8) reports as stuck.
package recovery

import (
	"context"

	"github.com/coreledger/platform/internal/ledger"
	"github.com/coreledger/platform/internal/repository"
)

// Status is an operation's lifecycle stage as the recovery framework needs
// to reason about it — a subset shared across every operation type a
// Handler is built for (transfers, wallet transactions, bonus awards).
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusRecovered Status = "recovered"
)

// Handler supplies everything Recover needs to inspect and reverse one
// operation type T.
type Handler[T any] interface {
	GetOperationType() string
	FindOperation(ctx context.Context, operationID string) (*T, error)
	FindRelatedPostings(ctx context.Context, op *T) ([]ledger.Posting, error)
	StatusOf(op *T) Status
	// NeedsRecovery reports whether op's current state actually requires
	// intervention. Handlers can override the default policy (see
	// DefaultNeedsRecovery) for operation-type-specific rules.
	NeedsRecovery(op *T, postings []ledger.Posting) bool
	// ReverseOperation creates the opposite operation (e.g. a reversing
	// ledger posting) and returns its id.
	ReverseOperation(ctx context.Context, op *T, sess repository.Session) (string, error)
	DeleteOperation(ctx context.Context, operationID string, sess repository.Session) error
	UpdateStatus(ctx context.Context, operationID string, status Status, meta map[string]any, sess repository.Session) error
}

// DefaultNeedsRecovery implements spec §4.9's default policy: pending or
// failed operations that already have postings need recovery, as do any
// approved/completed operations a caller flags (those are always reversed
// when Recover is invoked against them directly).
func DefaultNeedsRecovery(status Status, postings []ledger.Posting) bool {
	switch status {
	case StatusApproved, StatusCompleted:
		return true
	case StatusPending, StatusFailed:
		return len(postings) > 0
	default:
		return false
	}
}
