package health

import (
	"context"
	"sort"
	"sync"
	"time"
)

const defaultTimeout = 2 * time.Second

// Check probes one dependency. A nil error means it is ready.
type Check func(ctx context.Context) error

// Service runs readiness checks against the process's dependencies.
type Service struct {
	mu      sync.RWMutex
	checks  map[string]Check
	Timeout time.Duration
}

// NewService constructs a health service with no checks.
func NewService() *Service {
	return &Service{checks: map[string]Check{}, Timeout: defaultTimeout}
}

// Add registers check under name, replacing any earlier one.
func (s *Service) Add(name string, check Check) {
	s.mu.Lock()
	s.checks[name] = check
	s.mu.Unlock()
}

// Names lists registered checks in order.
func (s *Service) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Status runs every check concurrently and reports "ok" or the error text per
// check, plus whether all passed.
func (s *Service) Status(ctx context.Context) (map[string]string, bool) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	s.mu.RLock()
	checks := make(map[string]Check, len(s.checks))
	for name, check := range s.checks {
		checks[name] = check
	}
	s.mu.RUnlock()

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		out = make(map[string]string, len(checks))
		ok  = true
	)
	for name, check := range checks {
		wg.Add(1)
		go func(name string, check Check) {
			defer wg.Done()
			result := "ok"
			if err := check(ctx); err != nil {
				result = err.Error()
			}
			mu.Lock()
			out[name] = result
			if result != "ok" {
				ok = false
			}
			mu.Unlock()
		}(name, check)
	}
	wg.Wait()
	return out, ok
}
