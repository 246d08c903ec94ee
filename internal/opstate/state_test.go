package opstate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreledger/platform/internal/cache"
	"github.com/coreledger/platform/internal/common"
)

func TestTracker_SetStateThenGet(t *testing.T) {
	tracker := NewTracker(cache.NewInProcess())

	_, err := tracker.SetState(context.Background(), "transfer", "op-1", StatusInProgress, []string{"debit", "credit"}, "debit")
	require.NoError(t, err)

	state, err := tracker.Get(context.Background(), "transfer", "op-1")
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, state.Status)
	assert.Equal(t, "debit", state.CurrentStep)
}

func TestTracker_UpdateHeartbeat_AdvancesTimestamp(t *testing.T) {
	tracker := NewTracker(cache.NewInProcess())
	_, err := tracker.SetState(context.Background(), "transfer", "op-1", StatusPending, nil, "")
	require.NoError(t, err)

	first, err := tracker.Get(context.Background(), "transfer", "op-1")
	require.NoError(t, err)

	time.Sleep(2 * time.Millisecond)
	require.NoError(t, tracker.UpdateHeartbeat(context.Background(), "transfer", "op-1"))

	second, err := tracker.Get(context.Background(), "transfer", "op-1")
	require.NoError(t, err)
	assert.True(t, second.LastHeartbeat.After(first.LastHeartbeat))
}

func TestTracker_MarkCompleted(t *testing.T) {
	tracker := NewTracker(cache.NewInProcess())
	_, err := tracker.SetState(context.Background(), "transfer", "op-1", StatusInProgress, nil, "")
	require.NoError(t, err)

	require.NoError(t, tracker.MarkCompleted(context.Background(), "transfer", "op-1"))

	state, err := tracker.Get(context.Background(), "transfer", "op-1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, state.Status)
}

func TestTracker_MarkFailed_RecordsError(t *testing.T) {
	tracker := NewTracker(cache.NewInProcess())
	_, err := tracker.SetState(context.Background(), "transfer", "op-1", StatusInProgress, nil, "")
	require.NoError(t, err)

	require.NoError(t, tracker.MarkFailed(context.Background(), "transfer", "op-1", "ledger post failed"))

	state, err := tracker.Get(context.Background(), "transfer", "op-1")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, state.Status)
	assert.Equal(t, "ledger post failed", state.Error)
}

func TestTracker_DeleteState(t *testing.T) {
	tracker := NewTracker(cache.NewInProcess())
	_, err := tracker.SetState(context.Background(), "transfer", "op-1", StatusPending, nil, "")
	require.NoError(t, err)

	require.NoError(t, tracker.DeleteState(context.Background(), "transfer", "op-1"))

	_, err = tracker.Get(context.Background(), "transfer", "op-1")
	assert.True(t, common.IsNotFound(err))
}

func TestTracker_FindStuck_FiltersByAgeAndStatus(t *testing.T) {
	c := cache.NewInProcess()
	tracker := NewTracker(c)

	_, err := tracker.SetState(context.Background(), "transfer", "stale", StatusInProgress, nil, "")
	require.NoError(t, err)
	_, err = tracker.SetState(context.Background(), "transfer", "fresh", StatusInProgress, nil, "")
	require.NoError(t, err)
	_, err = tracker.SetState(context.Background(), "transfer", "done", StatusCompleted, nil, "")
	require.NoError(t, err)

	stale, err := tracker.Get(context.Background(), "transfer", "stale")
	require.NoError(t, err)
	stale.LastHeartbeat = time.Now().UTC().Add(-2 * time.Minute)
	require.NoError(t, tracker.save(context.Background(), stale))

	stuck, err := tracker.FindStuck(context.Background(), "transfer", 30*time.Second)
	require.NoError(t, err)
	require.Len(t, stuck, 1)
	assert.Equal(t, "stale", stuck[0].OperationID)
}

func TestTracker_FindStuck_IgnoresOtherOperationTypes(t *testing.T) {
	tracker := NewTracker(cache.NewInProcess())
	_, err := tracker.SetState(context.Background(), "bonus_award", "op-1", StatusInProgress, nil, "")
	require.NoError(t, err)

	stuck, err := tracker.FindStuck(context.Background(), "transfer", 0)
	require.NoError(t, err)
	assert.Empty(t, stuck)
}
