package ioc_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreledger/platform/internal/cache"
	"github.com/coreledger/platform/internal/eventbus"
	"github.com/coreledger/platform/internal/ioc"
)

// TestContainerBuilder_CacheAndEventBusFallBackToInProcess exercises the
// parts of the container that don't need a live MongoDB: with no
// REDIS_ADDR/KAFKA_BOOTSTRAP_SERVERS set, WithCache/WithEventBus must
// resolve to the in-process/in-memory implementations rather than fail.
// A MongoDB-backed resolution pass is exercised only by the teacher-style
// integration suite, not here.
func TestContainerBuilder_CacheAndEventBusFallBackToInProcess(t *testing.T) {
	clearEnv(t, "REDIS_ADDR", "KAFKA_BOOTSTRAP_SERVERS", "DEV_ENV")

	c := ioc.NewContainerBuilder().WithEnvFile().WithCache().WithEventBus().Build()

	var ca cache.Cache
	require.NoError(t, c.Resolve(&ca))
	assert.IsType(t, &cache.InProcess{}, ca)

	var bus eventbus.Bus
	require.NoError(t, c.Resolve(&bus))
	assert.IsType(t, &eventbus.InMemory{}, bus)
}

func TestContainerBuilder_CacheUsesRedisWhenAddrSet(t *testing.T) {
	clearEnv(t, "REDIS_ADDR")
	os.Setenv("REDIS_ADDR", "127.0.0.1:6379")

	c := ioc.NewContainerBuilder().WithEnvFile().WithCache().Build()

	var ca cache.Cache
	require.NoError(t, c.Resolve(&ca))
	assert.IsType(t, &cache.Redis{}, ca)
}

func TestContainerBuilder_BuildReturnsUsableContainer(t *testing.T) {
	clearEnv(t, "REDIS_ADDR", "KAFKA_BOOTSTRAP_SERVERS")

	b := ioc.NewContainerBuilder()
	built := b.Build()

	var resolved *ioc.ContainerBuilder
	require.NoError(t, built.Resolve(&resolved))
	assert.Same(t, b, resolved)
}
