package routing

import (
	"sync"
	"testing"

	"github.com/danmuck/gardenctl/internal/model"
	"github.com/danmuck/gardenctl/internal/testutil/testlog"
)

func TestTablesAddAndRemoveSystem(t *testing.T) {
	testlog.Start(t)

	tables := NewTables()
	system := echoSystem()
	tables.AddSystem(system, "child1")

	if g, ok := tables.LookupBySystemName("ns:echo-1.0.0"); !ok || g != "child1" {
		t.Fatalf("unexpected system name lookup: %q %v", g, ok)
	}
	if g, ok := tables.LookupBySystemID("sys-echo"); !ok || g != "child1" {
		t.Fatalf("unexpected system id lookup: %q %v", g, ok)
	}
	for _, inst := range system.Instances {
		if g, ok := tables.LookupByInstanceID(inst.ID); !ok || g != "child1" {
			t.Fatalf("unexpected instance lookup for %q: %q %v", inst.ID, g, ok)
		}
	}

	tables.RemoveSystem(system)
	if _, ok := tables.LookupBySystemName(system.Key()); ok {
		t.Fatalf("system name still routed")
	}
	if _, ok := tables.LookupBySystemID(system.ID); ok {
		t.Fatalf("system id still routed")
	}
	for _, inst := range system.Instances {
		if _, ok := tables.LookupByInstanceID(inst.ID); ok {
			t.Fatalf("instance %q still routed", inst.ID)
		}
	}
	if snap := tables.Snapshot(); snap != (TablesSnapshot{}) {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}

	// Removing again is a no-op.
	tables.RemoveSystem(system)
}

func TestTablesAddSystemReplacesOwner(t *testing.T) {
	testlog.Start(t)

	tables := NewTables()
	tables.AddSystem(echoSystem(), "child1")
	tables.AddSystem(echoSystem(), "child2")

	if g, _ := tables.LookupBySystemID("sys-echo"); g != "child2" {
		t.Fatalf("unexpected owner: %q", g)
	}
	if snap := tables.Snapshot(); snap.SystemNames != 1 || snap.SystemIDs != 1 || snap.InstanceIDs != 2 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestTablesSkipEmptyIDs(t *testing.T) {
	testlog.Start(t)

	tables := NewTables()
	tables.AddSystem(&model.System{
		Namespace: "ns",
		Name:      "bare",
		Version:   "0.1.0",
		Instances: []model.Instance{{Name: "nameless"}},
	}, "child1")
	tables.AddSystem(nil, "child1")

	if snap := tables.Snapshot(); snap.SystemNames != 1 || snap.SystemIDs != 0 || snap.InstanceIDs != 0 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestTablesConcurrentAccess(t *testing.T) {
	testlog.Start(t)

	tables := NewTables()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				tables.AddSystem(echoSystem(), "child1")
				tables.RemoveSystem(echoSystem())
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				tables.LookupBySystemName("ns:echo-1.0.0")
				tables.LookupByInstanceID("inst-default")
			}
		}()
	}
	wg.Wait()
}

func TestGardenRegistryRejectsLocalAndUnconnected(t *testing.T) {
	testlog.Start(t)

	reg := NewGardenRegistry("parent")
	if reg.Put(httpGarden("parent")) {
		t.Fatalf("local garden accepted")
	}
	if reg.Put(&model.Garden{Name: "child0"}) {
		t.Fatalf("garden without connection type accepted")
	}
	if reg.Put(&model.Garden{Name: "child0", ConnectionType: "local"}) {
		t.Fatalf("local connection type accepted")
	}
	if !reg.Put(httpGarden("child1")) {
		t.Fatalf("http garden rejected")
	}
	if reg.Len() != 1 {
		t.Fatalf("unexpected registry size: %d", reg.Len())
	}

	got, ok := reg.Get("child1")
	if !ok {
		t.Fatalf("child1 missing")
	}
	got.ConnectionParams.Host = "mutated"
	again, _ := reg.Get("child1")
	if again.ConnectionParams.Host != "child1.example" {
		t.Fatalf("registry returned shared garden: %q", again.ConnectionParams.Host)
	}

	reg.Delete("child1")
	reg.Delete("child1")
	reg.Delete("never-registered")
	if _, ok := reg.Get("child1"); ok {
		t.Fatalf("child1 not deleted")
	}
}
