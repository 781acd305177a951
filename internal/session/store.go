package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"nextsteps-go/internal/clock"
	"nextsteps-go/internal/flow"
)

const DefaultSweepInterval = time.Minute

type Store interface {
	Put(ctx context.Context, controller *flow.Controller) (uuid.UUID, error)
	Get(ctx context.Context, id uuid.UUID) (*flow.Controller, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Close() error
}

type entry struct {
	controller *flow.Controller
	expireAt   time.Time
}

// InMemoryStore keeps flow controllers for a sliding TTL. Every successful Get
// pushes the expiry forward.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*entry
	ttl     time.Duration
	clock   clock.Clock
	tracer  trace.Tracer

	stop     chan struct{}
	stopOnce sync.Once
}

func NewInMemoryStore(ttl, sweepInterval time.Duration, clk clock.Clock) *InMemoryStore {
	if clk == nil {
		clk = clock.RealClock{}
	}
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}

	s := &InMemoryStore{
		entries: make(map[uuid.UUID]*entry),
		ttl:     ttl,
		clock:   clk,
		tracer:  otel.Tracer("session"),
		stop:    make(chan struct{}),
	}

	go s.cleanup(sweepInterval)
	return s
}

func (s *InMemoryStore) Put(ctx context.Context, controller *flow.Controller) (uuid.UUID, error) {
	id := uuid.New()

	_, span := s.tracer.Start(ctx, "session.put",
		trace.WithAttributes(
			attribute.String("session.id", id.String()),
			attribute.String("operation", "session.write"),
			attribute.String("ttl", s.ttl.String()),
		))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[id] = &entry{
		controller: controller,
		expireAt:   s.clock.Now().Add(s.ttl),
	}

	span.SetAttributes(attribute.Bool("success", true))
	return id, nil
}

func (s *InMemoryStore) Get(ctx context.Context, id uuid.UUID) (*flow.Controller, error) {
	_, span := s.tracer.Start(ctx, "session.get",
		trace.WithAttributes(
			attribute.String("session.id", id.String()),
			attribute.String("operation", "session.read"),
		))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, exists := s.entries[id]
	if !exists {
		span.SetAttributes(attribute.String("session.result", "miss"))
		return nil, ErrNotFound
	}

	now := s.clock.Now()
	if now.After(e.expireAt) {
		delete(s.entries, id)
		span.SetAttributes(attribute.String("session.result", "expired"))
		return nil, ErrExpired
	}

	e.expireAt = now.Add(s.ttl)
	span.SetAttributes(attribute.String("session.result", "hit"))
	return e.controller, nil
}

func (s *InMemoryStore) Delete(ctx context.Context, id uuid.UUID) error {
	_, span := s.tracer.Start(ctx, "session.delete",
		trace.WithAttributes(
			attribute.String("session.id", id.String()),
			attribute.String("operation", "session.write"),
		))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	_, exists := s.entries[id]
	delete(s.entries, id)

	span.SetAttributes(attribute.Bool("key.existed", exists))
	return nil
}

func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Close stops the sweeper. It is safe to call more than once.
func (s *InMemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}

func (s *InMemoryStore) sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	removed := 0
	for id, e := range s.entries {
		if now.After(e.expireAt) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}

func (s *InMemoryStore) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stop:
			return
		}
	}
}
