package analysis

import (
	"sync"

	"resumind-backend/internal/shared/util"
)

// InFlight allows one running submission per user. Users are tracked by
// principal digest, not raw ID.
type InFlight struct {
	mu     sync.Mutex
	active map[string]string
}

func inFlightKey(user string) string {
	return util.PrincipalKey("user", user)
}

// NewInFlight returns an empty guard.
func NewInFlight() *InFlight {
	return &InFlight{active: make(map[string]string)}
}

// Acquire marks user busy. It returns false when the user already has a run.
func (g *InFlight) Acquire(user string) bool {
	if g == nil {
		return true
	}
	key := inFlightKey(user)
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.active[key]; busy {
		return false
	}
	g.active[key] = ""
	return true
}

// Bind records the analysis ID running for user, for diagnostics.
func (g *InFlight) Bind(user, analysisID string) {
	if g == nil {
		return
	}
	key := inFlightKey(user)
	g.mu.Lock()
	if _, ok := g.active[key]; ok {
		g.active[key] = analysisID
	}
	g.mu.Unlock()
}

// Current returns the analysis ID bound to user, if any.
func (g *InFlight) Current(user string) (string, bool) {
	if g == nil {
		return "", false
	}
	key := inFlightKey(user)
	g.mu.Lock()
	defer g.mu.Unlock()
	id, ok := g.active[key]
	return id, ok
}

// Release frees user.
func (g *InFlight) Release(user string) {
	if g == nil {
		return
	}
	key := inFlightKey(user)
	g.mu.Lock()
	delete(g.active, key)
	g.mu.Unlock()
}
