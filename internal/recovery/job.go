package recovery

import (
	"context"
	"log/slog"
	"time"

	"github.com/coreledger/platform/internal/ledger"
	"github.com/coreledger/platform/internal/observability"
	"github.com/coreledger/platform/internal/opstate"
)

// registeredSweep is the type-erased closure RegisterHandler produces so
// Job can hold handlers for different operation types T in one slice.
type registeredSweep struct {
	operationType string
	run           func(ctx context.Context, maxAge time.Duration) error
}

// Job runs a periodic sweep that calls RecoverStuck for every registered
// handler (spec §4.9's RecoveryJob).
type Job struct {
	tracker    *opstate.Tracker
	newSession ledger.SessionFactory
	sweeps     []registeredSweep
}

// NewJob builds an empty Job; call RegisterHandler for each operation type
// before Run.
func NewJob(tracker *opstate.Tracker, newSession ledger.SessionFactory) *Job {
	return &Job{tracker: tracker, newSession: newSession}
}

// RegisterHandler adds handler's operation type to the sweep rotation.
func RegisterHandler[T any](job *Job, handler Handler[T]) {
	job.sweeps = append(job.sweeps, registeredSweep{
		operationType: handler.GetOperationType(),
		run: func(ctx context.Context, maxAge time.Duration) error {
			return RecoverStuck(ctx, handler, job.tracker, job.newSession, maxAge)
		},
	})
}

// RecoverStuck finds every stuck operation of handler's type and recovers
// each one individually; one operation's failure is logged and does not
// stop the rest (spec §4.9: "a failure for one operation logs and
// continues with the next").
func RecoverStuck[T any](ctx context.Context, handler Handler[T], tracker *opstate.Tracker, newSession ledger.SessionFactory, maxAge time.Duration) error {
	stuck, err := tracker.FindStuck(ctx, handler.GetOperationType(), maxAge)
	if err != nil {
		return err
	}
	for _, state := range stuck {
		outcome, err := Recover(ctx, state.OperationID, handler, newSession, tracker)
		if err != nil {
			observability.RecordRecoveryReplay(handler.GetOperationType(), "error")
			slog.ErrorContext(ctx, "recovery failed for stuck operation",
				"operation_type", handler.GetOperationType(), "operation_id", state.OperationID, "err", err)
			continue
		}
		observability.RecordRecoveryReplay(handler.GetOperationType(), string(outcome.Action))
		slog.InfoContext(ctx, "recovered stuck operation",
			"operation_type", handler.GetOperationType(), "operation_id", state.OperationID, "action", outcome.Action)
	}
	return nil
}

// RunOnce sweeps every registered handler's operation type exactly once.
// One handler's failure is logged and does not stop the others.
func (j *Job) RunOnce(ctx context.Context, maxAge time.Duration) {
	for _, sweep := range j.sweeps {
		if err := sweep.run(ctx, maxAge); err != nil {
			slog.ErrorContext(ctx, "recovery sweep failed", "operation_type", sweep.operationType, "err", err)
		}
	}
}

// Run starts the periodic sweep, ticking every interval until ctx is
// cancelled. Each tick sweeps every registered handler's operation type for
// operations stuck longer than maxAge.
func (j *Job) Run(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.RunOnce(ctx, maxAge)
		}
	}
}
