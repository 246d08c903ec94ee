package saga

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/coreledger/platform/internal/cache"
)

// idempotencyTTL bounds how long a completed Run's result is replayed for a
// repeated sagaId, per spec §4.7 ("cached for a bounded window").
const idempotencyTTL = 24 * time.Hour

func idempotencyKey(sagaID string) string {
	return "saga:result:" + sagaID
}

// Orchestrator runs Sagas, enforcing per-sagaId idempotency via a shared
// cache (the same abstraction backing C1's TTL cache and C8's state
// tracker).
type Orchestrator struct {
	cache cache.Cache
}

// NewOrchestrator builds an Orchestrator over c.
func NewOrchestrator(c cache.Cache) *Orchestrator {
	return &Orchestrator{cache: c}
}

// Run executes saga's steps in order, threading a shared state map built
// from input. Repeated calls with the same sagaID short-circuit to the
// first call's Result without re-running any step.
func (o *Orchestrator) Run(ctx context.Context, sagaID string, s *Saga, input map[string]any) (*Result, error) {
	if cached, hit, err := o.lookupCached(ctx, sagaID); err != nil {
		return nil, err
	} else if hit {
		return cached, nil
	}

	state := cloneState(input)
	executed := make([]Step, 0, len(s.Steps))
	var errs []string

	for _, step := range s.Steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		next, err := step.Execute(ctx, state)
		if err != nil {
			if step.Critical {
				o.compensate(ctx, executed, state)
				result := &Result{
					Success:     false,
					Errors:      append(errs, err.Error()),
					StepName:    step.Name,
					Compensated: true,
					State:       state,
				}
				o.cacheResult(ctx, sagaID, result)
				return result, nil
			}
			errs = append(errs, step.Name+": "+err.Error())
			executed = append(executed, step)
			continue
		}

		state = next
		executed = append(executed, step)
	}

	result := &Result{Success: true, Errors: errs, State: state}
	o.cacheResult(ctx, sagaID, result)
	return result, nil
}

// compensate runs Compensate for every executed step in reverse order, each
// call isolated from the others' errors (a failing compensation is logged
// and does not stop the rest from running).
func (o *Orchestrator) compensate(ctx context.Context, executed []Step, state map[string]any) {
	for i := len(executed) - 1; i >= 0; i-- {
		step := executed[i]
		if step.Compensate == nil {
			continue
		}
		if err := step.Compensate(ctx, state); err != nil {
			slog.ErrorContext(ctx, "saga compensation failed", "step", step.Name, "err", err)
		}
	}
}

func (o *Orchestrator) lookupCached(ctx context.Context, sagaID string) (*Result, bool, error) {
	raw, hit, err := o.cache.Get(ctx, idempotencyKey(sagaID))
	if err != nil || !hit {
		return nil, false, err
	}
	var result Result
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, false, err
	}
	return &result, true, nil
}

func (o *Orchestrator) cacheResult(ctx context.Context, sagaID string, result *Result) {
	raw, err := json.Marshal(result)
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal saga result for idempotency cache", "saga_id", sagaID, "err", err)
		return
	}
	if err := o.cache.Set(ctx, idempotencyKey(sagaID), raw, idempotencyTTL); err != nil {
		slog.ErrorContext(ctx, "failed to cache saga result", "saga_id", sagaID, "err", err)
	}
}

func cloneState(input map[string]any) map[string]any {
	state := make(map[string]any, len(input))
	for k, v := range input {
		state[k] = v
	}
	return state
}
