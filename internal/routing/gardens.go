package routing

import (
	"strings"
	"sync"

	"github.com/danmuck/gardenctl/internal/model"
)

// GardenRegistry holds connection descriptors for remote gardens. The local
// garden and gardens without a usable connection type are never stored.
type GardenRegistry struct {
	mu        sync.RWMutex
	localName string
	gardens   map[string]model.Garden
}

func NewGardenRegistry(localName string) *GardenRegistry {
	return &GardenRegistry{
		localName: strings.TrimSpace(localName),
		gardens:   make(map[string]model.Garden),
	}
}

// Get returns a copy of the named garden.
func (r *GardenRegistry) Get(name string) (*model.Garden, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.gardens[strings.TrimSpace(name)]
	if !ok {
		return nil, false
	}
	out := cloneGarden(g)
	return &out, true
}

// Put inserts or replaces garden. It reports false, storing nothing, when the
// garden is local or has no forwardable connection.
func (r *GardenRegistry) Put(garden *model.Garden) bool {
	if garden == nil {
		return false
	}
	name := strings.TrimSpace(garden.Name)
	if name == "" || name == r.localName || !garden.Forwardable() {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gardens[name] = cloneGarden(*garden)
	return true
}

// Delete removes the named garden if present.
func (r *GardenRegistry) Delete(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.gardens, strings.TrimSpace(name))
}

// List returns copies of all stored gardens in no particular order.
func (r *GardenRegistry) List() []model.Garden {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Garden, 0, len(r.gardens))
	for _, g := range r.gardens {
		out = append(out, cloneGarden(g))
	}
	return out
}

func (r *GardenRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.gardens)
}

func cloneGarden(g model.Garden) model.Garden {
	if len(g.Systems) > 0 {
		systems := make([]model.System, len(g.Systems))
		copy(systems, g.Systems)
		g.Systems = systems
	}
	return g
}
