// Package realtime fans row-change events out to in-process subscribers.
package realtime

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/skyporter/luggage-api/internal/ports/out/events"
)

const DefaultBuffer = 64

// Hub is an events.Publisher that delivers to subscribers without blocking.
// A subscriber whose buffer is full misses the event.
type Hub struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	buffer int
	log    zerolog.Logger

	gauge   prometheus.Gauge
	dropped prometheus.Counter
}

type Option func(*Hub)

func WithBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

func WithMetrics(subscribers prometheus.Gauge, dropped prometheus.Counter) Option {
	return func(h *Hub) {
		h.gauge = subscribers
		h.dropped = dropped
	}
}

func NewHub(log zerolog.Logger, opts ...Option) *Hub {
	h := &Hub{
		subs:   make(map[*Subscription]struct{}),
		buffer: DefaultBuffer,
		log:    log,
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Subscription receives events whose topic is in its topic set.
type Subscription struct {
	hub    *Hub
	topics map[string]struct{}
	ch     chan events.Event
	done   chan struct{}
	once   sync.Once
}

func (s *Subscription) Events() <-chan events.Event { return s.ch }

// Close detaches the subscription and closes its channel. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subs, s)
		close(s.ch)
		close(s.done)
		n := len(s.hub.subs)
		s.hub.mu.Unlock()
		if s.hub.gauge != nil {
			s.hub.gauge.Set(float64(n))
		}
	})
}

// Subscribe registers interest in topics. The subscription closes when ctx is done.
func (h *Hub) Subscribe(ctx context.Context, topics ...string) *Subscription {
	s := &Subscription{
		hub:    h,
		topics: make(map[string]struct{}, len(topics)),
		ch:     make(chan events.Event, h.buffer),
		done:   make(chan struct{}),
	}
	for _, t := range topics {
		s.topics[t] = struct{}{}
	}

	h.mu.Lock()
	h.subs[s] = struct{}{}
	n := len(h.subs)
	h.mu.Unlock()
	if h.gauge != nil {
		h.gauge.Set(float64(n))
	}

	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.done:
		}
	}()
	return s
}

// Close ends every live subscription. Streams reading from them see their channel close.
func (h *Hub) Close() {
	h.mu.RLock()
	subs := make([]*Subscription, 0, len(h.subs))
	for s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.RUnlock()
	for _, s := range subs {
		s.Close()
	}
}

func (h *Hub) Publish(ctx context.Context, e events.Event) error {
	_ = ctx
	h.mu.RLock()
	defer h.mu.RUnlock()

	for s := range h.subs {
		if _, ok := s.topics[e.Topic]; !ok {
			continue
		}
		select {
		case s.ch <- e:
		default:
			if h.dropped != nil {
				h.dropped.Inc()
			}
			h.log.Warn().Str("topic", e.Topic).Str("event", string(e.Type)).Msg("realtime subscriber buffer full; event dropped")
		}
	}
	return nil
}

// Subscribers reports the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
