package garden

import (
	"context"
	"fmt"

	"github.com/danmuck/gardenctl/internal/model"
)

// TopologyPublisher announces this garden and its local systems with a
// GARDEN_SYNC event so parents can route to them.
type TopologyPublisher struct {
	name   string
	store  Store
	events EventPublisher
}

func NewTopologyPublisher(name string, store Store, events EventPublisher) *TopologyPublisher {
	return &TopologyPublisher{name: name, store: store, events: events}
}

func (p *TopologyPublisher) PublishGarden(ctx context.Context) error {
	garden, err := p.LocalGarden(ctx)
	if err != nil {
		return err
	}
	return p.events.Publish(ctx, model.Event{
		Name:    model.EventGardenSync,
		Garden:  p.name,
		Payload: garden,
	})
}

// LocalGarden describes this garden as its parent should see it. Connection
// details are the parent's to configure and are left empty.
func (p *TopologyPublisher) LocalGarden(ctx context.Context) (*model.Garden, error) {
	systems, err := p.store.LocalSystems(ctx)
	if err != nil {
		return nil, fmt.Errorf("garden: load local systems: %w", err)
	}
	return &model.Garden{
		Name:           p.name,
		Status:         "RUNNING",
		ConnectionType: model.ConnectionTypeLocal,
		Systems:        systems,
	}, nil
}
