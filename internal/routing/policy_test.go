package routing

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/danmuck/gardenctl/internal/model"
	"github.com/danmuck/gardenctl/internal/testutil/testlog"
)

// namePolicy derives a kind's policy from its name the way gardens have
// always matched kinds; the explicit table must agree with it for every kind.
func namePolicy(kind model.OperationType) targetPolicy {
	name := string(kind)
	switch {
	case strings.Contains(name, "READ"),
		strings.Contains(name, "GARDEN"),
		strings.Contains(name, "JOB"),
		kind == model.PluginLogReload,
		kind == model.SystemCreate,
		kind == model.SystemRescan:
		return targetLocal
	case kind == model.SystemDelete, kind == model.SystemReload, kind == model.SystemUpdate:
		return targetSystemID
	case strings.Contains(name, "INSTANCE"):
		return targetInstance
	case kind == model.RequestCreate:
		return targetRequestSystem
	case strings.HasPrefix(name, "REQUEST"):
		return targetRequestLookup
	case kind == model.QueueDelete:
		return targetQueueName
	default:
		return targetUnroutable
	}
}

func TestTargetPoliciesMatchNameRules(t *testing.T) {
	testlog.Start(t)

	if len(targetPolicies) != len(model.OperationTypes()) {
		t.Fatalf("unexpected policy count: %d kinds=%d", len(targetPolicies), len(model.OperationTypes()))
	}
	for _, kind := range model.OperationTypes() {
		got, ok := targetPolicies[kind]
		if !ok {
			t.Fatalf("missing policy for %q", kind)
		}
		if want := namePolicy(kind); got != want {
			t.Fatalf("unexpected policy for %q: got=%d want=%d", kind, got, want)
		}
	}
}

func TestLocalKindsIgnoreTables(t *testing.T) {
	testlog.Start(t)

	fx := newRouterFixture(t, "parent")
	// Point every identifier the operations carry at a child garden.
	fx.router.Tables().AddSystem(echoSystem(), "child1")

	for _, kind := range model.OperationTypes() {
		if targetPolicies[kind] != targetLocal {
			continue
		}
		op := &model.Operation{
			OperationType: kind,
			Args:          []any{"sys-echo"},
			Kwargs:        map[string]any{KwargSystemID: "sys-echo", KwargInstanceName: "default"},
		}
		target, err := fx.router.determineTarget(context.Background(), op)
		if err != nil {
			t.Fatalf("determine target for %q: %v", kind, err)
		}
		if target != "parent" {
			t.Fatalf("unexpected target for %q: %q", kind, target)
		}
	}
}

func TestQueueDeleteAllNeedsExplicitTarget(t *testing.T) {
	testlog.Start(t)

	fx := newRouterFixture(t, "parent")
	_, err := fx.router.Route(context.Background(), &model.Operation{OperationType: model.QueueDeleteAll})
	if !errors.Is(err, ErrRoutingRequest) {
		t.Fatalf("expected ErrRoutingRequest, got %v", err)
	}

	got, err := fx.router.Route(context.Background(), &model.Operation{
		OperationType:    model.QueueDeleteAll,
		TargetGardenName: "parent",
	})
	if err != nil {
		t.Fatalf("route with explicit target: %v", err)
	}
	if got != "QUEUE_DELETE_ALL:ok" {
		t.Fatalf("unexpected result: %v", got)
	}
}

func TestForwardableWhitelist(t *testing.T) {
	testlog.Start(t)

	want := map[model.OperationType]bool{
		model.InstanceStart: true,
		model.InstanceStop:  true,
		model.RequestCreate: true,
		model.SystemDelete:  true,
		model.GardenSync:    true,
	}
	for _, kind := range model.OperationTypes() {
		if got := Forwardable(kind); got != want[kind] {
			t.Fatalf("unexpected forwardable for %q: %v", kind, got)
		}
	}
}

func TestParseQueueName(t *testing.T) {
	testlog.Start(t)

	ns, name, version, err := parseQueueName("ns.echo.1-0-0.default")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ns != "ns" || name != "echo" || version != "1.0.0" {
		t.Fatalf("unexpected parse: %q %q %q", ns, name, version)
	}
	if model.SystemKey(ns, name, version) != echoSystem().Key() {
		t.Fatalf("unexpected key: %q", model.SystemKey(ns, name, version))
	}

	if _, _, _, err := parseQueueName("ns.echo"); !errors.Is(err, ErrRoutingRequest) {
		t.Fatalf("expected ErrRoutingRequest, got %v", err)
	}
}
