package store

import (
	"context"
	"sort"
	"sync"
)

// memoryStore is an in-process Store used when no coordination store is
// configured and in tests.
type memoryStore struct {
	mu      sync.RWMutex
	routes  map[string]RouteDefinition
	reports map[string]HealthReport
}

// NewMemory creates an in-memory store.
func NewMemory() Store {
	return &memoryStore{
		routes:  make(map[string]RouteDefinition),
		reports: make(map[string]HealthReport),
	}
}

func (s *memoryStore) SaveRoute(_ context.Context, def RouteDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[def.Name] = def
	return nil
}

func (s *memoryStore) LoadRoute(_ context.Context, name string) (RouteDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	def, ok := s.routes[name]
	if !ok {
		return RouteDefinition{}, ErrNotFound
	}
	return def, nil
}

func (s *memoryStore) LoadRoutes(_ context.Context) ([]RouteDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	defs := make([]RouteDefinition, 0, len(s.routes))
	for _, def := range s.routes {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs, nil
}

func (s *memoryStore) DeleteRoute(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.routes, name)
	return nil
}

func (s *memoryStore) SaveHealth(_ context.Context, report HealthReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[report.Instance] = report
	return nil
}

func (s *memoryStore) LoadHealth(_ context.Context) ([]HealthReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	reports := make([]HealthReport, 0, len(s.reports))
	for _, report := range s.reports {
		reports = append(reports, report)
	}
	sort.Slice(reports, func(i, j int) bool { return reports[i].Instance < reports[j].Instance })
	return reports, nil
}

func (s *memoryStore) Close() error {
	return nil
}
