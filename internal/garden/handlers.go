package garden

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/danmuck/gardenctl/internal/model"
	"github.com/danmuck/gardenctl/internal/routing"
	"github.com/danmuck/gardenctl/internal/store"
)

var (
	// ErrHandlerUnavailable is returned for kinds this garden cannot execute
	// itself, such as plugin, job and queue management.
	ErrHandlerUnavailable = errors.New("garden: handler unavailable")
	ErrBadArguments       = errors.New("garden: bad arguments")
)

// KwargOutput carries a request's output for REQUEST_COMPLETE.
const KwargOutput = "output"

// localHandlers executes operations whose target is this garden. The router
// is bound after construction because GARDEN_SYNC routes back through it.
type localHandlers struct {
	name   string
	store  Store
	events EventPublisher
	router *routing.Router
}

func newLocalHandlers(name string, st Store, events EventPublisher) *localHandlers {
	return &localHandlers{name: name, store: st, events: events}
}

func (h *localHandlers) bind(router *routing.Router) {
	h.router = router
}

// table returns a handler for every operation kind.
func (h *localHandlers) table() map[model.OperationType]routing.Handler {
	out := make(map[model.OperationType]routing.Handler, len(model.OperationTypes()))
	for _, kind := range model.OperationTypes() {
		out[kind] = unavailable(kind)
	}

	out[model.RequestCreate] = h.requestCreate
	out[model.RequestStart] = h.requestStart
	out[model.RequestComplete] = h.requestComplete
	out[model.RequestRead] = h.requestRead
	out[model.RequestReadAll] = h.requestReadAll

	out[model.SystemCreate] = h.systemUpsert(model.EventSystemCreated)
	out[model.SystemUpdate] = h.systemUpsert(model.EventSystemUpdated)
	out[model.SystemRead] = h.systemRead
	out[model.SystemReadAll] = h.systemReadAll
	out[model.SystemDelete] = h.systemDelete

	out[model.GardenCreate] = h.gardenCreate
	out[model.GardenRead] = h.gardenRead
	out[model.GardenReadAll] = h.gardenReadAll
	out[model.GardenUpdateStatus] = h.gardenUpdateStatus
	out[model.GardenUpdateConfig] = h.gardenUpdateConfig
	out[model.GardenDelete] = h.gardenDelete
	out[model.GardenSync] = h.gardenSync

	out[model.NamespaceReadAll] = h.namespaceReadAll
	return out
}

func unavailable(kind model.OperationType) routing.Handler {
	return func(context.Context, []any, map[string]any) (any, error) {
		return nil, fmt.Errorf("%w: %s", ErrHandlerUnavailable, kind)
	}
}

func (h *localHandlers) requestCreate(ctx context.Context, args []any, _ map[string]any) (any, error) {
	req, err := argAs[*model.Request](args, 0)
	if err != nil {
		return nil, err
	}
	validated, err := RequestValidator{}.ValidateRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	return h.store.CreateRequest(ctx, validated)
}

func (h *localHandlers) requestStart(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
	req, err := h.attachedRequest(ctx, args, kwargs)
	if err != nil {
		return nil, err
	}
	return h.store.UpdateRequestStatus(ctx, req.ID, model.RequestStatusInProgress, "")
}

// requestComplete marks the request successful and announces completion so
// whoever is waiting on it, here or in a parent garden, is released.
func (h *localHandlers) requestComplete(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
	req, err := h.attachedRequest(ctx, args, kwargs)
	if err != nil {
		return nil, err
	}
	status := model.RequestStatusSuccess
	if raw, ok := kwargs["status"]; ok {
		status = strings.ToUpper(strings.TrimSpace(fmt.Sprint(raw)))
	}
	output := ""
	if raw, ok := kwargs[KwargOutput]; ok {
		output = fmt.Sprint(raw)
	}
	updated, err := h.store.UpdateRequestStatus(ctx, req.ID, status, output)
	if err != nil {
		return nil, err
	}
	if err := h.publish(ctx, model.EventRequestCompleted, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

func (h *localHandlers) requestRead(ctx context.Context, args []any, _ map[string]any) (any, error) {
	id, err := stringArg(args, 0)
	if err != nil {
		return nil, err
	}
	req, err := h.store.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, fmt.Errorf("%w: %s", store.ErrRequestNotFound, id)
	}
	return req, nil
}

func (h *localHandlers) requestReadAll(ctx context.Context, _ []any, _ map[string]any) (any, error) {
	return h.store.ListRequests(ctx)
}

func (h *localHandlers) systemUpsert(event model.EventName) routing.Handler {
	return func(ctx context.Context, args []any, _ map[string]any) (any, error) {
		system, err := argAs[*model.System](args, 0)
		if err != nil {
			return nil, err
		}
		system.Local = true
		system.GardenName = h.name
		if err := h.store.UpsertSystem(ctx, system); err != nil {
			return nil, err
		}
		if h.router != nil {
			h.router.Tables().AddSystem(system, h.name)
		}
		if err := h.publish(ctx, event, system); err != nil {
			return nil, err
		}
		return system, nil
	}
}

func (h *localHandlers) systemRead(ctx context.Context, args []any, _ map[string]any) (any, error) {
	id, err := stringArg(args, 0)
	if err != nil {
		return nil, err
	}
	return h.store.GetSystem(ctx, id)
}

func (h *localHandlers) systemReadAll(ctx context.Context, _ []any, _ map[string]any) (any, error) {
	return h.store.ListSystems(ctx)
}

func (h *localHandlers) systemDelete(ctx context.Context, args []any, _ map[string]any) (any, error) {
	id, err := stringArg(args, 0)
	if err != nil {
		return nil, err
	}
	system, err := h.store.DeleteSystem(ctx, id)
	if err != nil {
		return nil, err
	}
	if h.router != nil {
		h.router.Tables().RemoveSystem(system)
	}
	if err := h.publish(ctx, model.EventSystemRemoved, system); err != nil {
		return nil, err
	}
	return system, nil
}

// gardenCreate stores the garden and announces it. The GARDEN_UPDATED that
// follows is what makes the new garden routable.
func (h *localHandlers) gardenCreate(ctx context.Context, args []any, _ map[string]any) (any, error) {
	garden, err := argAs[*model.Garden](args, 0)
	if err != nil {
		return nil, err
	}
	if err := h.store.UpsertGarden(ctx, garden); err != nil {
		return nil, err
	}
	if err := h.publish(ctx, model.EventGardenCreated, garden); err != nil {
		return nil, err
	}
	if err := h.publish(ctx, model.EventGardenUpdated, garden); err != nil {
		return nil, err
	}
	return garden, nil
}

func (h *localHandlers) gardenRead(ctx context.Context, args []any, _ map[string]any) (any, error) {
	name, err := stringArg(args, 0)
	if err != nil {
		return nil, err
	}
	garden, err := h.store.GetGarden(ctx, name)
	if err != nil {
		return nil, err
	}
	if garden == nil {
		return nil, fmt.Errorf("%w: %s", store.ErrGardenNotFound, name)
	}
	return garden, nil
}

func (h *localHandlers) gardenReadAll(ctx context.Context, _ []any, _ map[string]any) (any, error) {
	return h.store.ListGardens(ctx)
}

func (h *localHandlers) gardenUpdateStatus(ctx context.Context, args []any, _ map[string]any) (any, error) {
	name, err := stringArg(args, 0)
	if err != nil {
		return nil, err
	}
	status, err := stringArg(args, 1)
	if err != nil {
		return nil, err
	}
	garden, err := h.gardenRead(ctx, []any{name}, nil)
	if err != nil {
		return nil, err
	}
	updated := garden.(*model.Garden)
	updated.Status = strings.ToUpper(status)
	return h.saveGarden(ctx, updated)
}

func (h *localHandlers) gardenUpdateConfig(ctx context.Context, args []any, _ map[string]any) (any, error) {
	garden, err := argAs[*model.Garden](args, 0)
	if err != nil {
		return nil, err
	}
	return h.saveGarden(ctx, garden)
}

func (h *localHandlers) saveGarden(ctx context.Context, garden *model.Garden) (*model.Garden, error) {
	garden.Systems = nil
	if err := h.store.UpsertGarden(ctx, garden); err != nil {
		return nil, err
	}
	if err := h.publish(ctx, model.EventGardenUpdated, garden); err != nil {
		return nil, err
	}
	return garden, nil
}

func (h *localHandlers) gardenDelete(ctx context.Context, args []any, _ map[string]any) (any, error) {
	name, err := stringArg(args, 0)
	if err != nil {
		return nil, err
	}
	if err := h.store.DeleteGarden(ctx, name); err != nil {
		return nil, err
	}
	garden := &model.Garden{Name: name}
	if err := h.publish(ctx, model.EventGardenRemoved, garden); err != nil {
		return nil, err
	}
	return garden, nil
}

// gardenSync asks args[0], or every known garden when it is empty, to
// publish its topology.
func (h *localHandlers) gardenSync(ctx context.Context, args []any, _ map[string]any) (any, error) {
	if h.router == nil {
		return nil, fmt.Errorf("%w: %s before router is bound", ErrHandlerUnavailable, model.GardenSync)
	}
	target := ""
	if len(args) > 0 && args[0] != nil {
		target = strings.TrimSpace(fmt.Sprint(args[0]))
	}
	return nil, h.router.RouteGardenSync(ctx, target)
}

func (h *localHandlers) namespaceReadAll(ctx context.Context, _ []any, _ map[string]any) (any, error) {
	return h.store.Namespaces(ctx)
}

func (h *localHandlers) publish(ctx context.Context, name model.EventName, payload any) error {
	if h.events == nil {
		return nil
	}
	return h.events.Publish(ctx, model.Event{Name: name, Garden: h.name, Payload: payload})
}

// attachedRequest prefers the request the router loaded into kwargs and
// falls back to loading the id in args[0]. Operations posted with an explicit
// target skip the router's lookup and take the fallback.
func (h *localHandlers) attachedRequest(ctx context.Context, args []any, kwargs map[string]any) (*model.Request, error) {
	if req, ok := kwargs[routing.KwargRequest].(*model.Request); ok && req != nil {
		return req, nil
	}
	id, err := stringArg(args, 0)
	if err != nil {
		return nil, err
	}
	req, err := h.store.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, fmt.Errorf("%w: %s", store.ErrRequestNotFound, id)
	}
	return req, nil
}

func argAs[T any](args []any, i int) (T, error) {
	var zero T
	if i >= len(args) {
		return zero, fmt.Errorf("%w: missing argument %d", ErrBadArguments, i)
	}
	v, ok := args[i].(T)
	if !ok {
		return zero, fmt.Errorf("%w: argument %d is %T, want %T", ErrBadArguments, i, args[i], zero)
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && rv.IsNil() {
		return zero, fmt.Errorf("%w: argument %d is nil", ErrBadArguments, i)
	}
	return v, nil
}

func stringArg(args []any, i int) (string, error) {
	if i >= len(args) || args[i] == nil {
		return "", fmt.Errorf("%w: missing argument %d", ErrBadArguments, i)
	}
	s := strings.TrimSpace(fmt.Sprint(args[i]))
	if s == "" {
		return "", fmt.Errorf("%w: empty argument %d", ErrBadArguments, i)
	}
	return s, nil
}
