package payment

import (
	"sort"
	"sync"
)

// Registry selects a processor by its payment method code.
type Registry struct {
	mu         sync.RWMutex
	processors map[string]Processor
}

func NewRegistry(ps ...Processor) *Registry {
	r := &Registry{processors: make(map[string]Processor)}
	for _, p := range ps {
		r.Register(p)
	}
	return r
}

func (r *Registry) Register(p Processor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.processors[p.Name()] = p
}

func (r *Registry) Get(name string) (Processor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.processors[name]
	return p, ok
}

// Names returns the registered codes in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.processors))
	for name := range r.processors {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
