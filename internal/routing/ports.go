package routing

import (
	"context"
	"time"

	"github.com/danmuck/gardenctl/internal/model"
)

// Store is the durable-store surface the router reads and writes.
type Store interface {
	// LocalSystems returns systems flagged as owned by this garden.
	LocalSystems(ctx context.Context) ([]model.System, error)
	// RemoteGardens returns every garden other than localName, with systems.
	RemoteGardens(ctx context.Context, localName string) ([]model.Garden, error)
	// GetGarden returns nil without error when the garden does not exist.
	GetGarden(ctx context.Context, name string) (*model.Garden, error)
	// GetRequest returns nil without error when the request does not exist.
	GetRequest(ctx context.Context, id string) (*model.Request, error)
	// CreateRequest persists req and returns it with a durable id.
	CreateRequest(ctx context.Context, req *model.Request) (*model.Request, error)
	// UpdateRequestStatus sets status, and output when non-empty.
	UpdateRequestStatus(ctx context.Context, id, status, output string) (*model.Request, error)
}

// Gateway delivers an operation to a garden over one connection type.
type Gateway interface {
	Forward(ctx context.Context, op *model.Operation, params model.ConnectionParams) error
}

// RequestValidator checks and normalizes a request before it leaves this garden.
type RequestValidator interface {
	ValidateRequest(ctx context.Context, req *model.Request) (*model.Request, error)
}

// TopologyPublisher announces the local garden's topology to its parent.
type TopologyPublisher interface {
	PublishGarden(ctx context.Context) error
}

// ForwardOutcome is the result of one delivery attempt from the forward queue.
type ForwardOutcome struct {
	Operation *model.Operation
	Garden    string
	Err       error
	Duration  time.Duration
	At        time.Time
}

// ForwardObserver receives delivery results. It runs on the drain goroutine.
type ForwardObserver interface {
	ObserveForward(outcome ForwardOutcome)
}

// ForwardObserverFunc adapts a function to ForwardObserver.
type ForwardObserverFunc func(outcome ForwardOutcome)

func (f ForwardObserverFunc) ObserveForward(outcome ForwardOutcome) {
	f(outcome)
}

type nopObserver struct{}

func (nopObserver) ObserveForward(ForwardOutcome) {}

type passthroughValidator struct{}

func (passthroughValidator) ValidateRequest(_ context.Context, req *model.Request) (*model.Request, error) {
	return req, nil
}
