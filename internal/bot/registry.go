package bot

import (
	"context"
	"sync"

	"repost_monitor/internal/domain"
)

// Registry tracks every live monitoring run by its id.
type Registry struct {
	mu   sync.RWMutex
	runs map[string]*Controller
}

func NewRegistry() *Registry {
	return &Registry{runs: make(map[string]*Controller)}
}

func (r *Registry) Add(c *Controller) {
	r.mu.Lock()
	r.runs[c.ID()] = c
	r.mu.Unlock()
}

func (r *Registry) Get(id string) (*Controller, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.runs[id]
	return c, ok
}

func (r *Registry) Remove(id string) (*Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.runs[id]
	if ok {
		delete(r.runs, id)
	}
	return c, ok
}

func (r *Registry) List() []domain.RunInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.RunInfo, 0, len(r.runs))
	for _, c := range r.runs {
		out = append(out, c.Info())
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.runs)
}

// StopAll stops every registered run. Used during shutdown.
func (r *Registry) StopAll(ctx context.Context) {
	r.mu.RLock()
	controllers := make([]*Controller, 0, len(r.runs))
	for _, c := range r.runs {
		controllers = append(controllers, c)
	}
	r.mu.RUnlock()

	for _, c := range controllers {
		c.Stop(ctx)
	}
}
