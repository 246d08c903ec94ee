package recovery

import (
	"context"

	"github.com/coreledger/platform/internal/common"
	"github.com/coreledger/platform/internal/ledger"
	"github.com/coreledger/platform/internal/opstate"
	"github.com/coreledger/platform/internal/repository"
)

// Action names the outcome of a Recover call, per spec §4.9.
type Action string

const (
	ActionNoActionNeeded Action = "no_action_needed"
	ActionReversed       Action = "reversed"
	ActionDeleted        Action = "deleted"
	ActionAlreadyFailed  Action = "already_failed"
)

// Outcome is what Recover returns.
type Outcome struct {
	Action              Action
	Reason              string
	RecoveryOperationID string
}

// Recover runs the five-step procedure of spec §4.9 for one operationID
// against handler. newSession opens the atomic scope steps 2-4 must run in
// when a reversal is produced; tracker, if non-nil, is marked completed in
// step 5 regardless of which branch was taken.
func Recover[T any](ctx context.Context, operationID string, handler Handler[T], newSession ledger.SessionFactory, tracker *opstate.Tracker) (*Outcome, error) {
	op, err := handler.FindOperation(ctx, operationID)
	if err != nil {
		if common.IsNotFound(err) {
			markTrackerCompleted(ctx, tracker, handler.GetOperationType(), operationID)
			return &Outcome{Action: ActionNoActionNeeded, Reason: "operation_not_found"}, nil
		}
		return nil, err
	}

	postings, err := handler.FindRelatedPostings(ctx, op)
	if err != nil {
		return nil, err
	}

	if !handler.NeedsRecovery(op, postings) {
		markTrackerCompleted(ctx, tracker, handler.GetOperationType(), operationID)
		return &Outcome{Action: ActionNoActionNeeded, Reason: "operation_consistent"}, nil
	}

	status := handler.StatusOf(op)

	var outcome *Outcome
	switch status {
	case StatusApproved, StatusCompleted:
		outcome, err = reverse(ctx, operationID, op, handler, newSession)
	case StatusPending:
		if len(postings) > 0 {
			outcome, err = reverse(ctx, operationID, op, handler, newSession)
		} else {
			err = withSession(ctx, newSession, func(sessCtx context.Context, sess repository.Session) error {
				return handler.DeleteOperation(sessCtx, operationID, sess)
			})
			outcome = &Outcome{Action: ActionDeleted}
		}
	case StatusFailed:
		if len(postings) > 0 {
			outcome, err = reverse(ctx, operationID, op, handler, newSession)
		} else {
			outcome = &Outcome{Action: ActionAlreadyFailed}
		}
	default:
		outcome = &Outcome{Action: ActionNoActionNeeded, Reason: "operation_consistent"}
	}
	if err != nil {
		return nil, err
	}

	markTrackerCompleted(ctx, tracker, handler.GetOperationType(), operationID)
	return outcome, nil
}

func reverse[T any](ctx context.Context, operationID string, op *T, handler Handler[T], newSession ledger.SessionFactory) (*Outcome, error) {
	var recoveryOpID string
	err := withSession(ctx, newSession, func(sessCtx context.Context, sess repository.Session) error {
		newOpID, err := handler.ReverseOperation(sessCtx, op, sess)
		if err != nil {
			return err
		}
		recoveryOpID = newOpID
		return handler.UpdateStatus(sessCtx, operationID, StatusRecovered, map[string]any{
			"recovery_operation_id": newOpID,
		}, sess)
	})
	if err != nil {
		return nil, err
	}
	return &Outcome{Action: ActionReversed, RecoveryOperationID: recoveryOpID}, nil
}

func withSession(ctx context.Context, newSession ledger.SessionFactory, fn func(sessCtx context.Context, sess repository.Session) error) error {
	sess, err := newSession(ctx)
	if err != nil {
		return err
	}
	defer sess.EndSession(ctx)
	_, err = sess.WithTransaction(ctx, func(sessCtx context.Context) (any, error) {
		return nil, fn(sessCtx, sess)
	})
	return err
}

func markTrackerCompleted(ctx context.Context, tracker *opstate.Tracker, operationType, operationID string) {
	if tracker == nil {
		return
	}
	_ = tracker.MarkCompleted(ctx, operationType, operationID)
}
