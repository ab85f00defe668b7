package game

import "sync"

// Registry tracks the live runner per game id. A runner deregisters
// itself when its loop exits, so a finished or reclaimed game stops being
// routable.
type Registry struct {
	mu      sync.Mutex
	runners map[int64]*Runner
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{runners: make(map[int64]*Runner)}
}

// Start registers r and launches its event loop.
func (g *Registry) Start(r *Runner) {
	g.mu.Lock()
	g.runners[r.gameID] = r
	g.mu.Unlock()

	go func() {
		r.run()
		g.mu.Lock()
		delete(g.runners, r.gameID)
		g.mu.Unlock()
	}()
}

// Lookup returns the live runner for gameID.
func (g *Registry) Lookup(gameID int64) (*Runner, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.runners[gameID]
	return r, ok
}

// Len returns the number of live runners.
func (g *Registry) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.runners)
}
