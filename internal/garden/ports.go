package garden

import (
	"context"

	"github.com/danmuck/gardenctl/internal/model"
	"github.com/danmuck/gardenctl/internal/routing"
)

// Store is everything the garden's handlers and router need from persistence.
type Store interface {
	routing.Store
	ListGardens(ctx context.Context) ([]model.Garden, error)
	UpsertGarden(ctx context.Context, garden *model.Garden) error
	DeleteGarden(ctx context.Context, name string) error
	ListSystems(ctx context.Context) ([]model.System, error)
	GetSystem(ctx context.Context, id string) (*model.System, error)
	UpsertSystem(ctx context.Context, system *model.System) error
	DeleteSystem(ctx context.Context, id string) (*model.System, error)
	Namespaces(ctx context.Context) ([]string, error)
	ListRequests(ctx context.Context) ([]model.Request, error)
}

// EventPublisher announces events to every garden listening on the bus.
type EventPublisher interface {
	Publish(ctx context.Context, event model.Event) error
}

// EventHandler consumes events delivered by the bus.
type EventHandler func(ctx context.Context, event model.Event)

// loopback delivers events straight to the local handler when no bus is
// configured. Only this garden sees them.
type loopback struct {
	handle EventHandler
}

func (l loopback) Publish(ctx context.Context, event model.Event) error {
	l.handle(ctx, event)
	return nil
}
