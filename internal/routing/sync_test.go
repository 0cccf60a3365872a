package routing

import (
	"bytes"
	"strings"
	"testing"

	"github.com/danmuck/gardenctl/internal/model"
	"github.com/danmuck/gardenctl/internal/testutil/testlog"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func newSynchronizer() (*EventSynchronizer, *Tables, *GardenRegistry) {
	tables := NewTables()
	gardens := NewGardenRegistry("parent")
	return NewEventSynchronizer("parent", tables, gardens, NewWaitMap()), tables, gardens
}

func TestSyncSystemEventsFromChildren(t *testing.T) {
	testlog.Start(t)

	s, tables, _ := newSynchronizer()
	s.HandleEvent(model.Event{Name: model.EventSystemCreated, Garden: "child1", Payload: echoSystem()})
	if g, ok := tables.LookupByInstanceID("inst-default"); !ok || g != "child1" {
		t.Fatalf("unexpected instance owner after create: %q %v", g, ok)
	}

	moved := echoSystem()
	s.HandleEvent(model.Event{Name: model.EventSystemUpdated, Garden: "child2", Payload: *moved})
	if g, _ := tables.LookupBySystemName(moved.Key()); g != "child2" {
		t.Fatalf("unexpected owner after update: %q", g)
	}

	removed := model.Event{Name: model.EventSystemRemoved, Garden: "child2", Payload: echoSystem()}
	s.HandleEvent(removed)
	if snap := tables.Snapshot(); snap != (TablesSnapshot{}) {
		t.Fatalf("unexpected snapshot after remove: %+v", snap)
	}
	s.HandleEvent(removed)
}

func TestSyncIgnoresLocalSystemEvents(t *testing.T) {
	testlog.Start(t)

	s, tables, _ := newSynchronizer()
	s.HandleEvent(model.Event{Name: model.EventSystemCreated, Garden: "parent", Payload: echoSystem()})
	if snap := tables.Snapshot(); snap != (TablesSnapshot{}) {
		t.Fatalf("local system event changed tables: %+v", snap)
	}
}

func TestSyncGardenEventsFromLocalGarden(t *testing.T) {
	testlog.Start(t)

	s, _, gardens := newSynchronizer()

	// Garden changes reported by children are not trusted.
	s.HandleEvent(model.Event{Name: model.EventGardenUpdated, Garden: "child1", Payload: httpGarden("child1")})
	if gardens.Len() != 0 {
		t.Fatalf("child garden event changed registry")
	}

	s.HandleEvent(model.Event{Name: model.EventGardenUpdated, Garden: "parent", Payload: httpGarden("child1")})
	if _, ok := gardens.Get("child1"); !ok {
		t.Fatalf("child1 not registered")
	}

	s.HandleEvent(model.Event{Name: model.EventGardenStopped, Garden: "parent", Payload: httpGarden("child1")})
	if _, ok := gardens.Get("child1"); !ok {
		t.Fatalf("garden stopped event changed registry")
	}

	s.HandleEvent(model.Event{Name: model.EventGardenUpdated, Garden: "parent", Payload: &model.Garden{Name: "child1"}})
	if _, ok := gardens.Get("child1"); ok {
		t.Fatalf("garden without connection kept in registry")
	}

	s.HandleEvent(model.Event{Name: model.EventGardenUpdated, Garden: "parent", Payload: httpGarden("child2")})
	s.HandleEvent(model.Event{Name: model.EventGardenRemoved, Garden: "parent", Payload: httpGarden("child2")})
	if gardens.Len() != 0 {
		t.Fatalf("unexpected registry size: %d", gardens.Len())
	}
}

func TestSyncRemovingUnknownGardenIsNoop(t *testing.T) {
	testlog.Start(t)

	s, _, gardens := newSynchronizer()
	s.HandleEvent(model.Event{Name: model.EventGardenRemoved, Garden: "parent", Payload: httpGarden("never")})
	s.HandleEvent(model.Event{Name: model.EventGardenRemoved, Garden: "parent", Payload: httpGarden("never")})
	if gardens.Len() != 0 {
		t.Fatalf("unexpected registry size: %d", gardens.Len())
	}
}

func TestSyncToleratesBadPayloads(t *testing.T) {
	testlog.Start(t)

	s, tables, gardens := newSynchronizer()
	s.HandleEvent(model.Event{Name: model.EventSystemCreated, Garden: "child1", Payload: httpGarden("child1")})
	s.HandleEvent(model.Event{Name: model.EventGardenUpdated, Garden: "parent"})
	s.HandleEvent(model.Event{Name: model.EventRequestCompleted, Garden: "child1", Payload: "req-1"})
	if tables.Snapshot() != (TablesSnapshot{}) || gardens.Len() != 0 {
		t.Fatalf("bad payload changed state")
	}
}

func TestSyncSkipsLocalGardenUpdateQuietly(t *testing.T) {
	testlog.Start(t)

	previous := log.Logger
	t.Cleanup(func() { log.Logger = previous })
	var out bytes.Buffer
	log.Logger = zerolog.New(&out)

	s, _, gardens := newSynchronizer()
	s.HandleEvent(model.Event{Name: model.EventGardenUpdated, Garden: "parent", Payload: httpGarden("child1")})
	s.HandleEvent(model.Event{
		Name:    model.EventGardenUpdated,
		Garden:  "parent",
		Payload: &model.Garden{Name: "parent", ConnectionType: model.ConnectionTypeLocal},
	})

	if _, ok := gardens.Get("parent"); ok {
		t.Fatalf("local garden entered the registry")
	}
	if _, ok := gardens.Get("child1"); !ok {
		t.Fatalf("child1 lost from registry")
	}
	if strings.Contains(out.String(), "garden_invalid_connection") {
		t.Fatalf("unexpected warning for the local garden: %s", out.String())
	}
}
