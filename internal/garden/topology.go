package garden

import (
	"context"

	"github.com/danmuck/gardenctl/internal/model"
	"github.com/danmuck/gardenctl/internal/routing"
	"github.com/rs/zerolog/log"
)

// TopologyReconciler folds GARDEN_SYNC announcements from other gardens into
// the store and routing tables. Systems the announcing garden no longer
// reports are dropped.
type TopologyReconciler struct {
	localName string
	store     Store
	tables    *routing.Tables
}

func NewTopologyReconciler(localName string, store Store, tables *routing.Tables) *TopologyReconciler {
	return &TopologyReconciler{localName: localName, store: store, tables: tables}
}

func (r *TopologyReconciler) HandleEvent(ctx context.Context, event model.Event) {
	if event.Name != model.EventGardenSync || event.Garden == r.localName {
		return
	}
	announced, ok := event.GardenPayload()
	if !ok {
		log.Warn().Str("garden", event.Garden).Msgf("unexpected payload %T", event.Payload)
		return
	}
	if err := r.reconcile(ctx, event.Garden, announced); err != nil {
		log.Error().Err(err).Str("garden", event.Garden).Msg("topology_reconcile_failed")
	}
}

func (r *TopologyReconciler) reconcile(ctx context.Context, name string, announced *model.Garden) error {
	known, err := r.store.GetGarden(ctx, name)
	if err != nil {
		return err
	}
	if known == nil {
		known = &model.Garden{Name: name}
	}
	previous := known.Systems
	known.Systems = nil
	known.Status = announced.Status
	if err := r.store.UpsertGarden(ctx, known); err != nil {
		return err
	}

	current := make(map[string]struct{}, len(announced.Systems))
	for i := range announced.Systems {
		system := announced.Systems[i]
		system.Local = false
		system.GardenName = name
		if err := r.store.UpsertSystem(ctx, &system); err != nil {
			return err
		}
		r.tables.AddSystem(&system, name)
		current[system.ID] = struct{}{}
	}

	removed := 0
	for i := range previous {
		stale := previous[i]
		if _, ok := current[stale.ID]; ok {
			continue
		}
		if _, err := r.store.DeleteSystem(ctx, stale.ID); err != nil {
			return err
		}
		r.tables.RemoveSystem(&stale)
		removed++
	}

	log.Info().
		Str("garden", name).
		Int("systems", len(announced.Systems)).
		Int("removed", removed).
		Msg("topology_reconciled")
	return nil
}
