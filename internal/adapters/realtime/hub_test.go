package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyporter/luggage-api/internal/ports/out/events"
)

func event(topic string) events.Event {
	return events.Event{Type: events.MessageCreated, Topic: topic}
}

func TestHub_DeliversByTopic(t *testing.T) {
	t.Parallel()

	h := NewHub(zerolog.Nop())
	ctx := context.Background()
	a := h.Subscribe(ctx, "conversation:a")
	both := h.Subscribe(ctx, "conversation:a", "contract:k1")
	defer a.Close()
	defer both.Close()

	require.NoError(t, h.Publish(ctx, event("conversation:a")))
	require.NoError(t, h.Publish(ctx, event("contract:k1")))
	require.NoError(t, h.Publish(ctx, event("conversation:b")))

	assert.Len(t, a.Events(), 1)
	assert.Len(t, both.Events(), 2)
}

func TestHub_DropsWhenBufferFull(t *testing.T) {
	t.Parallel()

	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "subs"})
	dropped := prometheus.NewCounter(prometheus.CounterOpts{Name: "dropped"})
	h := NewHub(zerolog.Nop(), WithBuffer(2), WithMetrics(gauge, dropped))

	s := h.Subscribe(context.Background(), "t")
	assert.Equal(t, 1.0, testutil.ToFloat64(gauge))

	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			_ = h.Publish(context.Background(), event("t"))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}

	assert.Len(t, s.Events(), 2)
	assert.Equal(t, 3.0, testutil.ToFloat64(dropped))

	s.Close()
	s.Close()
	assert.Equal(t, 0.0, testutil.ToFloat64(gauge))

	// Buffered events stay readable after Close; then the channel reports closed.
	for i := 0; i < 2; i++ {
		_, open := <-s.Events()
		assert.True(t, open)
	}
	_, open := <-s.Events()
	assert.False(t, open)
}

func TestHub_ClosesOnContextCancel(t *testing.T) {
	t.Parallel()

	h := NewHub(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	s := h.Subscribe(ctx, "t")
	cancel()

	select {
	case _, open := <-s.Events():
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("subscription not closed after cancel")
	}
	assert.Eventually(t, func() bool { return h.Subscribers() == 0 }, time.Second, 10*time.Millisecond)
}

func TestHub_ConcurrentPublishAndClose(t *testing.T) {
	t.Parallel()

	h := NewHub(zerolog.Nop(), WithBuffer(1))
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		s := h.Subscribe(context.Background(), "t")
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = h.Publish(context.Background(), event("t"))
		}()
		go func() {
			defer wg.Done()
			s.Close()
		}()
	}
	wg.Wait()
	assert.Zero(t, h.Subscribers())
}

type failingPublisher struct{ err error }

func (p failingPublisher) Publish(context.Context, events.Event) error { return p.err }

func TestFanout(t *testing.T) {
	t.Parallel()

	h := NewHub(zerolog.Nop())
	s := h.Subscribe(context.Background(), "t")
	defer s.Close()

	boom := errors.New("broker down")
	err := Fanout{h, nil, failingPublisher{boom}}.Publish(context.Background(), event("t"))
	assert.ErrorIs(t, err, boom)
	assert.Len(t, s.Events(), 1, "hub delivery is not affected by a failing sibling")
}

func TestHub_CloseEndsAllSubscriptions(t *testing.T) {
	t.Parallel()

	h := NewHub(zerolog.Nop())
	a := h.Subscribe(context.Background(), "t")
	b := h.Subscribe(context.Background(), "u")
	h.Close()

	for _, s := range []*Subscription{a, b} {
		_, open := <-s.Events()
		assert.False(t, open)
	}
	assert.Equal(t, 0, h.Subscribers())
}
