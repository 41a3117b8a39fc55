package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"opsglue/internal/resilience/result"
)

// Managed is the lifecycle and health surface shared by Base and API.
type Managed interface {
	Name() string
	Initialize(ctx context.Context) result.Envelope
	HealthCheck() Health
	ResetCircuitBreaker()
	Close() error
}

// ErrUnknownService is returned by Set lookups for an unregistered name.
var ErrUnknownService = errors.New("unknown service")

// Set is a named collection of services owned by one process.
type Set struct {
	mu    sync.RWMutex
	items map[string]Managed
}

// NewSet creates an empty set.
func NewSet() *Set {
	return &Set{items: make(map[string]Managed)}
}

// Add registers m under its name. Names must be unique.
func (s *Set) Add(m Managed) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[m.Name()]; exists {
		return fmt.Errorf("service %q already registered", m.Name())
	}
	s.items[m.Name()] = m
	return nil
}

// Get returns the named service.
func (s *Set) Get(name string) (Managed, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.items[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownService, name)
	}
	return m, nil
}

// Names returns the registered names in sorted order.
func (s *Set) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.items))
	for name := range s.items {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Len returns the number of services.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *Set) list() []Managed {
	names := s.Names()

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Managed, 0, len(names))
	for _, name := range names {
		if m, ok := s.items[name]; ok {
			out = append(out, m)
		}
	}
	return out
}

// InitializeAll initializes every service concurrently and returns each envelope by name.
func (s *Set) InitializeAll(ctx context.Context) map[string]result.Envelope {
	services := s.list()
	envs := make([]result.Envelope, len(services))

	var g errgroup.Group
	for i, m := range services {
		g.Go(func() error {
			envs[i] = m.Initialize(ctx)
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]result.Envelope, len(services))
	for i, m := range services {
		out[m.Name()] = envs[i]
	}
	return out
}

// HealthAll returns the health of every service, sorted by name.
func (s *Set) HealthAll() []Health {
	services := s.list()
	out := make([]Health, 0, len(services))
	for _, m := range services {
		out = append(out, m.HealthCheck())
	}
	return out
}

// Close closes every service and joins their errors.
func (s *Set) Close() error {
	var errs []error
	for _, m := range s.list() {
		if err := m.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", m.Name(), err))
		}
	}
	return errors.Join(errs...)
}
