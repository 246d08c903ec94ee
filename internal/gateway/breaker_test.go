package gateway_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreledger/platform/internal/common"
	"github.com/coreledger/platform/internal/gateway"
)

func TestCircuitBreaker_OpensAfterThresholdFailures(t *testing.T) {
	cb := gateway.NewCircuitBreaker()

	var lastErr error
	for i := 0; i < 5; i++ {
		lastErr = cb.Call(func() error {
			return common.NewDependencyUnavailable("downstream unreachable")
		})
	}
	require.Error(t, lastErr)
	assert.Equal(t, "open", cb.State())

	err := cb.Call(func() error {
		t.Fatal("fn must not be invoked while breaker is open")
		return nil
	})
	require.Error(t, err)
	assert.True(t, common.IsDependencyUnavailable(err))
}

func TestCircuitBreaker_IgnoresUnrelatedErrorKinds(t *testing.T) {
	cb := gateway.NewCircuitBreaker()

	for i := 0; i < 10; i++ {
		_ = cb.Call(func() error {
			return common.NewInvalidInput("bad request")
		})
	}
	assert.Equal(t, "closed", cb.State())
}

func TestCircuitBreaker_StaysOpenBeforeCooldownElapses(t *testing.T) {
	cb := gateway.NewCircuitBreaker()

	for i := 0; i < 5; i++ {
		_ = cb.Call(func() error { return common.NewDependencyUnavailable("down") })
	}
	require.Equal(t, "open", cb.State())

	calls := 0
	err := cb.Call(func() error {
		calls++
		return errors.New("unused")
	})
	require.Error(t, err)
	assert.True(t, common.IsDependencyUnavailable(err))
	assert.Zero(t, calls, "fn must not run while the 60s cooldown has not elapsed")
}
