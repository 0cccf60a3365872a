package routing

import (
	"strings"

	"github.com/danmuck/gardenctl/internal/model"
	"github.com/rs/zerolog/log"
)

// EventSynchronizer keeps Tables and GardenRegistry in step with topology events.
type EventSynchronizer struct {
	localName string
	tables    *Tables
	gardens   *GardenRegistry
	waits     *WaitMap
}

func NewEventSynchronizer(localName string, tables *Tables, gardens *GardenRegistry, waits *WaitMap) *EventSynchronizer {
	return &EventSynchronizer{
		localName: strings.TrimSpace(localName),
		tables:    tables,
		gardens:   gardens,
		waits:     waits,
	}
}

// NewRouterSynchronizer builds a synchronizer over the router's own state.
func NewRouterSynchronizer(r *Router) *EventSynchronizer {
	return NewEventSynchronizer(r.localName, r.tables, r.gardens, r.waits)
}

// HandleEvent applies one event. System changes are taken only from child
// gardens; garden changes only from the local garden, whose garden
// bookkeeping has already reconciled the downstream change. GARDEN_STARTED
// and GARDEN_STOPPED are left to that bookkeeping.
func (s *EventSynchronizer) HandleEvent(event model.Event) {
	if event.Name == model.EventRequestCompleted {
		s.handleRequestCompleted(event)
		return
	}

	if event.Garden != s.localName {
		switch event.Name {
		case model.EventSystemCreated, model.EventSystemUpdated:
			system, ok := event.SystemPayload()
			if !ok {
				s.warnPayload(event)
				return
			}
			s.tables.AddSystem(system, event.Garden)
			log.Debug().
				Str("event", string(event.Name)).
				Str("garden", event.Garden).
				Str("system", system.Key()).
				Msg("routing_system_added")
		case model.EventSystemRemoved:
			system, ok := event.SystemPayload()
			if !ok {
				s.warnPayload(event)
				return
			}
			s.tables.RemoveSystem(system)
			log.Debug().
				Str("garden", event.Garden).
				Str("system", system.Key()).
				Msg("routing_system_removed")
		}
		return
	}

	switch event.Name {
	case model.EventGardenUpdated:
		garden, ok := event.GardenPayload()
		if !ok {
			s.warnPayload(event)
			return
		}
		if garden.Name == s.localName {
			return
		}
		if !s.gardens.Put(garden) {
			// A garden whose connection is no longer usable must not stay routable.
			s.gardens.Delete(garden.Name)
			log.Warn().
				Str("garden", garden.Name).
				Str("connection_type", garden.ConnectionType).
				Msg("garden_invalid_connection")
		}
	case model.EventGardenRemoved:
		garden, ok := event.GardenPayload()
		if !ok {
			s.warnPayload(event)
			return
		}
		s.gardens.Delete(garden.Name)
	}
}

func (s *EventSynchronizer) handleRequestCompleted(event model.Event) {
	if s.waits == nil {
		return
	}
	req, ok := event.RequestPayload()
	if !ok {
		s.warnPayload(event)
		return
	}
	if s.waits.Complete(req.ID) {
		log.Debug().Str("request_id", req.ID).Msg("request_wait_released")
	}
}

func (s *EventSynchronizer) warnPayload(event model.Event) {
	log.Warn().
		Str("event", string(event.Name)).
		Str("garden", event.Garden).
		Msgf("unexpected payload %T", event.Payload)
}
