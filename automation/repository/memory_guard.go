package repository

import (
	"context"
	"sync"
)

// MemoryGuard implements domain.Guard with process-lifetime sets.
// Everything is lost on restart; the persisted claim and the unique
// log index cover that gap.
type MemoryGuard struct {
	mu      sync.Mutex
	seen    map[string]struct{}
	claimed map[string]struct{}
}

func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{
		seen:    make(map[string]struct{}),
		claimed: make(map[string]struct{}),
	}
}

func (g *MemoryGuard) AdmitSource(_ context.Context, key string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.seen[key]; ok {
		return false, nil
	}
	g.seen[key] = struct{}{}
	return true, nil
}

func (g *MemoryGuard) ForgetSource(_ context.Context, key string) error {
	g.mu.Lock()
	delete(g.seen, key)
	g.mu.Unlock()
	return nil
}

func (g *MemoryGuard) Claim(_ context.Context, actionID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.claimed[actionID]; ok {
		return false, nil
	}
	g.claimed[actionID] = struct{}{}
	return true, nil
}

func (g *MemoryGuard) Release(_ context.Context, actionID string) error {
	g.mu.Lock()
	delete(g.claimed, actionID)
	g.mu.Unlock()
	return nil
}

// InFlight returns the number of currently claimed actions.
func (g *MemoryGuard) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.claimed)
}
