package runner

import (
	"sort"
	"sync"
)

// Registry is the single source of truth for which scripts are running.
type Registry struct {
	mx     sync.Mutex
	active map[string]*Supervisor
}

func NewRegistry() *Registry {
	return &Registry{
		active: make(map[string]*Supervisor),
	}
}

// TryRegister inserts sup under id unless the id is already taken.
// The check and the insert are one atomic step, so two concurrent
// starts of the same script cannot both win.
func (r *Registry) TryRegister(id string, sup *Supervisor) bool {
	r.mx.Lock()
	defer r.mx.Unlock()
	if _, ok := r.active[id]; ok {
		return false
	}
	r.active[id] = sup
	return true
}

// Unregister removes id. Removing an absent id is a no-op.
func (r *Registry) Unregister(id string) {
	r.mx.Lock()
	defer r.mx.Unlock()
	delete(r.active, id)
}

// Get returns the active supervisor for id, if any.
func (r *Registry) Get(id string) (*Supervisor, bool) {
	r.mx.Lock()
	defer r.mx.Unlock()
	sup, ok := r.active[id]
	return sup, ok
}

// Active returns a sorted snapshot of running identifiers.
func (r *Registry) Active() []string {
	r.mx.Lock()
	defer r.mx.Unlock()
	ids := make([]string, 0, len(r.active))
	for id := range r.active {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
