package routing

import (
	"strings"
	"sync"

	"github.com/danmuck/gardenctl/internal/model"
)

// Tables maps system names, system ids and instance ids to the garden that
// owns them. All three maps share one lock so a system's entries change together.
type Tables struct {
	mu           sync.RWMutex
	bySystemName map[string]string
	bySystemID   map[string]string
	byInstanceID map[string]string
}

// TablesSnapshot reports entry counts per map.
type TablesSnapshot struct {
	SystemNames int
	SystemIDs   int
	InstanceIDs int
}

func NewTables() *Tables {
	return &Tables{
		bySystemName: make(map[string]string),
		bySystemID:   make(map[string]string),
		byInstanceID: make(map[string]string),
	}
}

func (t *Tables) LookupBySystemName(key string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	garden, ok := t.bySystemName[key]
	return garden, ok
}

func (t *Tables) LookupBySystemID(id string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	garden, ok := t.bySystemID[strings.TrimSpace(id)]
	return garden, ok
}

func (t *Tables) LookupByInstanceID(id string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	garden, ok := t.byInstanceID[strings.TrimSpace(id)]
	return garden, ok
}

// AddSystem records system and each of its instances under gardenName,
// replacing any previous owner.
func (t *Tables) AddSystem(system *model.System, gardenName string) {
	if system == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.bySystemName[system.Key()] = gardenName
	if id := strings.TrimSpace(system.ID); id != "" {
		t.bySystemID[id] = gardenName
	}
	for _, inst := range system.Instances {
		if id := strings.TrimSpace(inst.ID); id != "" {
			t.byInstanceID[id] = gardenName
		}
	}
}

// RemoveSystem drops every entry belonging to system. Missing keys are ignored.
func (t *Tables) RemoveSystem(system *model.System) {
	if system == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.bySystemName, system.Key())
	delete(t.bySystemID, strings.TrimSpace(system.ID))
	for _, inst := range system.Instances {
		delete(t.byInstanceID, strings.TrimSpace(inst.ID))
	}
}

func (t *Tables) Snapshot() TablesSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return TablesSnapshot{
		SystemNames: len(t.bySystemName),
		SystemIDs:   len(t.bySystemID),
		InstanceIDs: len(t.byInstanceID),
	}
}
