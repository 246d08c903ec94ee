// Package opstate implements the Operation State Tracker (spec component
// C8): short-TTL per-operation heartbeat records in the shared cache, and
// discovery of operations stuck mid-flight so the Recovery Framework (C9)
// can reverse or delete them.
package opstate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/coreledger/platform/internal/cache"
	"github.com/coreledger/platform/internal/common"
)

// Status is the lifecycle stage of a tracked operation.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusRecovered  Status = "recovered"
)

const (
	inFlightTTL = 60 * time.Second
	restingTTL  = 300 * time.Second
	keyPrefix   = "operation_state:"
)

// State is the ephemeral, cache-backed record of one operation's progress.
// Timestamps are serialised as ISO-8601 strings (time.Time's default JSON
// encoding) so any reader, not just this package, can parse them back.
type State struct {
	OperationID   string    `json:"operation_id"`
	OperationType string    `json:"operation_type"`
	Status        Status    `json:"status"`
	StartedAt     time.Time `json:"started_at"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
	Steps         []string  `json:"steps,omitempty"`
	CurrentStep   string    `json:"current_step,omitempty"`
	Error         string    `json:"error,omitempty"`
}

func ttlFor(status Status) time.Duration {
	switch status {
	case StatusPending, StatusInProgress:
		return inFlightTTL
	default:
		return restingTTL
	}
}

func key(operationType, operationID string) string {
	return keyPrefix + operationType + ":" + operationID
}

// Tracker reads and writes State records against the shared cache (spec
// §4.8: "uses the shared cache keyed operation_state:<type>:<id>").
type Tracker struct {
	cache cache.Cache
}

// NewTracker builds a Tracker over c.
func NewTracker(c cache.Cache) *Tracker {
	return &Tracker{cache: c}
}

// SetState creates or overwrites the record for (operationType, operationID).
func (t *Tracker) SetState(ctx context.Context, operationType, operationID string, status Status, steps []string, currentStep string) (*State, error) {
	now := time.Now().UTC()
	state := &State{
		OperationID:   operationID,
		OperationType: operationType,
		Status:        status,
		StartedAt:     now,
		LastHeartbeat: now,
		Steps:         steps,
		CurrentStep:   currentStep,
	}
	if err := t.save(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}

// UpdateHeartbeat bumps LastHeartbeat (and refreshes the TTL) without
// changing status, proving the operation is still alive.
func (t *Tracker) UpdateHeartbeat(ctx context.Context, operationType, operationID string) error {
	state, err := t.Get(ctx, operationType, operationID)
	if err != nil {
		return err
	}
	state.LastHeartbeat = time.Now().UTC()
	return t.save(ctx, state)
}

// MarkCompleted transitions the record to completed.
func (t *Tracker) MarkCompleted(ctx context.Context, operationType, operationID string) error {
	state, err := t.Get(ctx, operationType, operationID)
	if err != nil {
		return err
	}
	state.Status = StatusCompleted
	state.LastHeartbeat = time.Now().UTC()
	return t.save(ctx, state)
}

// MarkFailed transitions the record to failed, recording message.
func (t *Tracker) MarkFailed(ctx context.Context, operationType, operationID, message string) error {
	state, err := t.Get(ctx, operationType, operationID)
	if err != nil {
		return err
	}
	state.Status = StatusFailed
	state.Error = message
	state.LastHeartbeat = time.Now().UTC()
	return t.save(ctx, state)
}

// MarkRecovered transitions the record to recovered, used by the Recovery
// Framework (C9) once it has reversed or deleted the underlying operation.
func (t *Tracker) MarkRecovered(ctx context.Context, operationType, operationID string) error {
	state, err := t.Get(ctx, operationType, operationID)
	if err != nil {
		return err
	}
	state.Status = StatusRecovered
	state.LastHeartbeat = time.Now().UTC()
	return t.save(ctx, state)
}

// SetHeartbeatAt overwrites LastHeartbeat to an explicit timestamp, refreshing
// the TTL from that status. Used by tests that simulate an operation stuck
// since a past point in time; production callers should prefer UpdateHeartbeat.
func (t *Tracker) SetHeartbeatAt(ctx context.Context, operationType, operationID string, at time.Time) error {
	state, err := t.Get(ctx, operationType, operationID)
	if err != nil {
		return err
	}
	state.LastHeartbeat = at
	return t.save(ctx, state)
}

// Get reads the current record for (operationType, operationID).
func (t *Tracker) Get(ctx context.Context, operationType, operationID string) (*State, error) {
	raw, hit, err := t.cache.Get(ctx, key(operationType, operationID))
	if err != nil {
		return nil, err
	}
	if !hit {
		return nil, common.NewNotFound("operation state not found", "operation_type", operationType, "operation_id", operationID)
	}
	var state State
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// DeleteState removes the record, e.g. once recovery has fully cleaned up.
func (t *Tracker) DeleteState(ctx context.Context, operationType, operationID string) error {
	return t.cache.Delete(ctx, key(operationType, operationID))
}

// FindStuck returns every pending/in_progress record of operationType whose
// LastHeartbeat is older than maxAge, via a non-blocking prefix scan (spec
// §4.8: "no full keyspace enumeration").
func (t *Tracker) FindStuck(ctx context.Context, operationType string, maxAge time.Duration) ([]State, error) {
	prefix := keyPrefix + operationType + ":"
	keys, err := t.cache.ScanPrefix(ctx, prefix)
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().UTC().Add(-maxAge)
	stuck := make([]State, 0)
	for _, k := range keys {
		operationID := strings.TrimPrefix(k, prefix)
		state, err := t.Get(ctx, operationType, operationID)
		if err != nil {
			if common.IsNotFound(err) {
				continue // expired between scan and read
			}
			return nil, err
		}
		if (state.Status == StatusPending || state.Status == StatusInProgress) && state.LastHeartbeat.Before(cutoff) {
			stuck = append(stuck, *state)
		}
	}
	if len(stuck) > 0 {
		stuckOperationsTotal.WithLabelValues(operationType).Add(float64(len(stuck)))
	}
	return stuck, nil
}

func (t *Tracker) save(ctx context.Context, state *State) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	tag := fmt.Sprintf("operation_state:%s", state.OperationType)
	return t.cache.Set(ctx, key(state.OperationType, state.OperationID), raw, ttlFor(state.Status), tag)
}
