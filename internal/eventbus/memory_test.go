package eventbus

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemory_PublishDeliversToAllSubscribers(t *testing.T) {
	b := NewInMemory()

	var mu sync.Mutex
	var gotA, gotB []string

	b.Subscribe("ch", func(env Envelope) error {
		mu.Lock()
		gotA = append(gotA, env.EventType)
		mu.Unlock()
		return nil
	})
	b.Subscribe("ch", func(env Envelope) error {
		mu.Lock()
		gotB = append(gotB, env.EventType)
		mu.Unlock()
		return nil
	})

	require.NoError(t, b.Publish("ch", NewEnvelope("deposit.created", nil)))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(gotA) == 1 && len(gotB) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestInMemory_PreservesPerChannelOrder(t *testing.T) {
	b := NewInMemory()

	var mu sync.Mutex
	var seen []string

	b.Subscribe("ordered", func(env Envelope) error {
		mu.Lock()
		seen = append(seen, env.EventType)
		mu.Unlock()
		return nil
	})

	for i := 0; i < 50; i++ {
		require.NoError(t, b.Publish("ordered", NewEnvelope(indexName(i), nil)))
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 50
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for i, name := range seen {
		assert.Equal(t, indexName(i), name)
	}
}

func indexName(i int) string {
	return "event-" + string(rune('A'+i%26)) + string(rune('0'+i/26))
}

func TestInMemory_PanickingHandlerDoesNotBlockOthers(t *testing.T) {
	b := NewInMemory()

	var mu sync.Mutex
	otherRan := false

	b.Subscribe("ch", func(Envelope) error {
		panic("boom")
	})
	b.Subscribe("ch", func(Envelope) error {
		mu.Lock()
		otherRan = true
		mu.Unlock()
		return nil
	})

	require.NoError(t, b.Publish("ch", NewEnvelope("x", nil)))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return otherRan
	}, time.Second, 5*time.Millisecond)
}

func TestInMemory_ErroringHandlerIsLoggedNotFatal(t *testing.T) {
	b := NewInMemory()
	done := make(chan struct{})

	b.Subscribe("ch", func(Envelope) error {
		defer close(done)
		return errors.New("handler failed")
	})

	require.NoError(t, b.Publish("ch", NewEnvelope("x", nil)))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler never ran")
	}
}

func TestInMemory_Unsubscribe(t *testing.T) {
	b := NewInMemory()

	var mu sync.Mutex
	count := 0

	unsub := b.Subscribe("ch", func(Envelope) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	})

	require.NoError(t, b.Publish("ch", NewEnvelope("x", nil)))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count == 1
	}, time.Second, 5*time.Millisecond)

	unsub()

	require.NoError(t, b.Publish("ch", NewEnvelope("y", nil)))
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, count, "unsubscribed handler must not receive further events")
}
