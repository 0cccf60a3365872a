package routing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/danmuck/gardenctl/internal/model"
	"github.com/danmuck/gardenctl/internal/observability"
	"github.com/rs/zerolog/log"
)

// Kwargs keys read or written by target determination.
const (
	KwargSystemID     = "system_id"
	KwargInstanceName = "instance_name"
	KwargRequest      = "request"
)

const (
	dispositionLocal   = "local"
	dispositionForward = "forward"
)

// RouterConfig wires the router to its tables and collaborators.
type RouterConfig struct {
	LocalGardenName string
	Tables          *Tables
	Gardens         *GardenRegistry
	Handlers        *HandlerRegistry
	Store           Store
	Queue           *ForwardQueue
	Waits           *WaitMap

	// Gateways is keyed by connection type; lookups ignore case.
	Gateways  map[string]Gateway
	Validator RequestValidator
	Publisher TopologyPublisher
	Observer  ForwardObserver
}

// Router decides where an operation runs and either executes it locally or
// queues it for delivery to the owning garden.
type Router struct {
	localName string
	tables    *Tables
	gardens   *GardenRegistry
	handlers  *HandlerRegistry
	store     Store
	queue     *ForwardQueue
	waits     *WaitMap
	gateways  map[string]Gateway
	validator RequestValidator
	publisher TopologyPublisher
	observer  ForwardObserver
}

func NewRouter(cfg RouterConfig) (*Router, error) {
	localName := strings.TrimSpace(cfg.LocalGardenName)
	if localName == "" {
		return nil, errors.New("routing: local garden name required")
	}
	if cfg.Handlers == nil {
		return nil, fmt.Errorf("%w: no handler registry", ErrIncompleteHandlers)
	}
	if cfg.Store == nil {
		return nil, errors.New("routing: store required")
	}
	r := &Router{
		localName: localName,
		tables:    cfg.Tables,
		gardens:   cfg.Gardens,
		handlers:  cfg.Handlers,
		store:     cfg.Store,
		queue:     cfg.Queue,
		waits:     cfg.Waits,
		gateways:  make(map[string]Gateway, len(cfg.Gateways)),
		validator: cfg.Validator,
		publisher: cfg.Publisher,
		observer:  cfg.Observer,
	}
	if r.tables == nil {
		r.tables = NewTables()
	}
	if r.gardens == nil {
		r.gardens = NewGardenRegistry(localName)
	}
	if r.queue == nil {
		r.queue = NewForwardQueue(DefaultQueueSize)
	}
	if r.waits == nil {
		r.waits = NewWaitMap()
	}
	if r.validator == nil {
		r.validator = passthroughValidator{}
	}
	if r.observer == nil {
		r.observer = nopObserver{}
	}
	for kind, gw := range cfg.Gateways {
		if gw == nil {
			continue
		}
		r.gateways[strings.ToLower(strings.TrimSpace(kind))] = gw
	}
	return r, nil
}

func (r *Router) LocalGardenName() string {
	return r.localName
}

func (r *Router) Tables() *Tables {
	return r.tables
}

func (r *Router) Gardens() *GardenRegistry {
	return r.gardens
}

func (r *Router) Waits() *WaitMap {
	return r.waits
}

// Setup loads routing state from the store: local systems under the local
// garden name, then every remote garden's systems under that garden's name.
func (r *Router) Setup(ctx context.Context) error {
	local, err := r.store.LocalSystems(ctx)
	if err != nil {
		return fmt.Errorf("routing: load local systems: %w", err)
	}
	for i := range local {
		r.tables.AddSystem(&local[i], r.localName)
	}

	gardens, err := r.store.RemoteGardens(ctx, r.localName)
	if err != nil {
		return fmt.Errorf("routing: load gardens: %w", err)
	}
	for i := range gardens {
		garden := &gardens[i]
		if garden.Name == r.localName {
			continue
		}
		for j := range garden.Systems {
			r.tables.AddSystem(&garden.Systems[j], garden.Name)
		}
		if !r.gardens.Put(garden) {
			log.Warn().
				Str("garden", garden.Name).
				Str("connection_type", garden.ConnectionType).
				Msg("garden_invalid_connection")
		}
	}

	snap := r.tables.Snapshot()
	log.Info().
		Str("garden", r.localName).
		Int("system_routes", snap.SystemNames).
		Int("instance_routes", snap.InstanceIDs).
		Int("gardens", r.gardens.Len()).
		Msg("routing_setup")
	return nil
}

// Route is the entry point for every operation. It returns the local
// handler's result, or for forwarded operations the persisted request model
// (REQUEST_CREATE) or nil.
func (r *Router) Route(ctx context.Context, op *model.Operation) (any, error) {
	if op == nil {
		return nil, fmt.Errorf("%w: nil operation", ErrRoutingRequest)
	}
	r.preRoute(op)

	log.Debug().Str("operation", op.String()).Msg("route")

	if op.OperationType == "" {
		return nil, fmt.Errorf("%w: missing operation type", ErrRoutingRequest)
	}
	if !op.OperationType.Valid() {
		return nil, fmt.Errorf("%w: unknown operation type %q", ErrRoutingRequest, op.OperationType)
	}

	if op.TargetGardenName == "" {
		target, err := r.determineTarget(ctx, op)
		if err != nil {
			return nil, err
		}
		op.TargetGardenName = target
	}
	if op.TargetGardenName == "" {
		return nil, fmt.Errorf("%w: could not determine the target garden for %s", ErrUnknownGarden, op)
	}

	if op.TargetGardenName == r.localName {
		observability.RecordOperationRouted(string(op.OperationType), dispositionLocal)
		return r.ExecuteLocal(ctx, op)
	}
	observability.RecordOperationRouted(string(op.OperationType), dispositionForward)
	return r.InitiateForward(ctx, op)
}

// ExecuteLocal runs op through its registered handler. Handler errors are
// returned unchanged.
func (r *Router) ExecuteLocal(ctx context.Context, op *model.Operation) (any, error) {
	r.preExecute(op)
	handler, ok := r.handlers.Get(op.OperationType)
	if !ok {
		return nil, fmt.Errorf("%w: no handler for %q", ErrRoutingRequest, op.OperationType)
	}
	return handler(ctx, op.Args, op.Kwargs)
}

// InitiateForward prepares op for another garden and queues it. It returns
// once the operation is queued; delivery happens on the drain loop.
func (r *Router) InitiateForward(ctx context.Context, op *model.Operation) (any, error) {
	if err := r.preForward(ctx, op); err != nil {
		return nil, err
	}
	if err := r.queue.Enqueue(ctx, op); err != nil {
		r.abandonForward(ctx, op, err)
		return nil, fmt.Errorf("routing: enqueue %s: %w", op, err)
	}
	if op.OperationType == model.RequestCreate {
		return op.Model, nil
	}
	return nil, nil
}

// Forward delivers op to its target garden over the garden's connection type.
func (r *Router) Forward(ctx context.Context, op *model.Operation) error {
	name := op.TargetGardenName
	garden, ok := r.gardens.Get(name)
	if !ok {
		loaded, err := r.store.GetGarden(ctx, name)
		if err != nil {
			return fmt.Errorf("routing: load garden %q: %w", name, err)
		}
		garden = loaded
	}
	if garden == nil {
		return fmt.Errorf("%w: unknown child garden %q", ErrUnknownGarden, name)
	}

	connType := strings.TrimSpace(garden.ConnectionType)
	if connType == "" {
		return fmt.Errorf(
			"%w: connection type for garden %q is not configured",
			ErrRoutingRequest,
			name,
		)
	}
	gw, ok := r.gateways[strings.ToLower(connType)]
	if !ok {
		return fmt.Errorf("%w: unknown connection type %q", ErrRoutingRequest, connType)
	}
	return gw.Forward(ctx, op, garden.ConnectionParams)
}

// RunForwarder drains the forward queue until ctx ends. Delivery failures are
// reported to the observer and never stop the loop.
func (r *Router) RunForwarder(ctx context.Context) error {
	log.Info().Str("garden", r.localName).Msg("forwarder_started")
	defer log.Info().Str("garden", r.localName).Msg("forwarder_stopped")
	return r.queue.Drain(ctx, r.deliver)
}

// RouteGardenSync asks gardens to publish their topology. An empty name fans
// out to every known garden.
func (r *Router) RouteGardenSync(ctx context.Context, targetName string) error {
	targetName = strings.TrimSpace(targetName)
	if targetName != "" {
		return r.syncOne(ctx, targetName)
	}
	var errs []error
	for _, garden := range r.gardens.List() {
		if err := r.syncOne(ctx, garden.Name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Router) syncOne(ctx context.Context, name string) error {
	if name == r.localName {
		if r.publisher == nil {
			return nil
		}
		return r.publisher.PublishGarden(ctx)
	}
	_, err := r.InitiateForward(ctx, &model.Operation{
		OperationType:    model.GardenSync,
		SourceGardenName: r.localName,
		TargetGardenName: name,
		Args:             []any{name},
		Kwargs:           map[string]any{},
	})
	return err
}

func (r *Router) deliver(ctx context.Context, op *model.Operation) {
	start := time.Now()
	err := r.safeForward(ctx, op)
	outcome := ForwardOutcome{
		Operation: op,
		Garden:    op.TargetGardenName,
		Err:       err,
		Duration:  time.Since(start),
		At:        start,
	}
	r.observer.ObserveForward(outcome)
}

func (r *Router) safeForward(ctx context.Context, op *model.Operation) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("routing: forward panic: %v", rec)
		}
	}()
	return r.Forward(ctx, op)
}

func (r *Router) preRoute(op *model.Operation) {
	if op.SourceGardenName == "" {
		op.SourceGardenName = r.localName
	}
	if op.Kwargs == nil {
		op.Kwargs = map[string]any{}
	}
}

func (r *Router) preExecute(op *model.Operation) {
	if op.Model != nil {
		args := make([]any, 0, len(op.Args)+1)
		args = append(args, op.Model)
		op.Args = append(args, op.Args...)
	}
	if op.Kwargs == nil {
		op.Kwargs = map[string]any{}
	}
}

func (r *Router) preForward(ctx context.Context, op *model.Operation) error {
	if !Forwardable(op.OperationType) {
		return fmt.Errorf("%w: operation type %q can not be forwarded", ErrRoutingRequest, op.OperationType)
	}
	if op.OperationType != model.RequestCreate {
		return nil
	}

	req, ok := op.Model.(*model.Request)
	if !ok || req == nil {
		return fmt.Errorf("%w: %s requires a request model", ErrRoutingRequest, op.OperationType)
	}
	validated, err := r.validator.ValidateRequest(ctx, req)
	if err != nil {
		return err
	}
	persisted, err := r.store.CreateRequest(ctx, validated)
	if err != nil {
		return fmt.Errorf("routing: persist request: %w", err)
	}

	// The child cannot resolve a parent that only exists here.
	persisted.Parent = nil
	persisted.ParentID = ""
	persisted.HasParent = false
	op.Model = persisted

	if raw, ok := op.Kwargs[WaitKwarg]; ok {
		delete(op.Kwargs, WaitKwarg)
		if w, ok := raw.(*WaitEvent); ok && w != nil {
			r.waits.Register(persisted.ID, w)
		}
	}
	return nil
}

// abandonForward undoes what preForward set up for an operation that never
// reached the queue: the wait handle is dropped and the persisted request is
// marked as failed so it does not sit in CREATED forever.
func (r *Router) abandonForward(ctx context.Context, op *model.Operation, cause error) {
	if op.OperationType != model.RequestCreate {
		return
	}
	req, ok := op.Model.(*model.Request)
	if !ok || req == nil || req.ID == "" {
		return
	}
	r.waits.Forget(req.ID)

	output := fmt.Sprintf("not forwarded to %s: %v", op.TargetGardenName, cause)
	if _, err := r.store.UpdateRequestStatus(context.WithoutCancel(ctx), req.ID, model.RequestStatusError, output); err != nil {
		log.Error().
			Err(err).
			Str("request_id", req.ID).
			Str("target", op.TargetGardenName).
			Msg("request_abandon_failed")
		return
	}
	log.Warn().
		Err(cause).
		Str("request_id", req.ID).
		Str("target", op.TargetGardenName).
		Msg("request_not_forwarded")
}

func (r *Router) determineTarget(ctx context.Context, op *model.Operation) (string, error) {
	policy, ok := targetPolicies[op.OperationType]
	if !ok {
		return "", fmt.Errorf("%w: bad operation type %q", ErrRoutingRequest, op.OperationType)
	}

	switch policy {
	case targetLocal:
		return r.localName, nil

	case targetSystemID:
		id, ok := op.StringArg(0)
		if !ok {
			return "", fmt.Errorf("%w: %s requires a system id argument", ErrRoutingRequest, op.OperationType)
		}
		return r.systemIDLookup(id)

	case targetInstance:
		systemID, hasSystem := op.Kwarg(KwargSystemID)
		_, hasInstance := op.Kwarg(KwargInstanceName)
		if hasSystem && hasInstance {
			return r.systemIDLookup(fmt.Sprint(systemID))
		}
		id, ok := op.StringArg(0)
		if !ok {
			return "", fmt.Errorf("%w: %s requires an instance id argument", ErrRoutingRequest, op.OperationType)
		}
		if garden, ok := r.tables.LookupByInstanceID(id); ok {
			return garden, nil
		}
		return "", fmt.Errorf("%w: no route for instance id %q", ErrUnknownGarden, id)

	case targetRequestSystem:
		req, ok := op.Model.(*model.Request)
		if !ok || req == nil {
			return "", fmt.Errorf("%w: %s requires a request model", ErrRoutingRequest, op.OperationType)
		}
		return r.systemNameLookup(model.SystemKey(req.Namespace, req.System, req.SystemVersion))

	case targetRequestLookup:
		id, ok := op.StringArg(0)
		if !ok {
			return "", fmt.Errorf("%w: %s requires a request id argument", ErrRoutingRequest, op.OperationType)
		}
		req, err := r.store.GetRequest(ctx, id)
		if err != nil {
			return "", fmt.Errorf("routing: load request %q: %w", id, err)
		}
		op.Kwargs[KwargRequest] = req
		return r.localName, nil

	case targetQueueName:
		name, ok := op.StringArg(0)
		if !ok {
			return "", fmt.Errorf("%w: %s requires a queue name argument", ErrRoutingRequest, op.OperationType)
		}
		namespace, system, version, err := parseQueueName(name)
		if err != nil {
			return "", err
		}
		return r.systemNameLookup(model.SystemKey(namespace, system, version))
	}

	return "", fmt.Errorf("%w: bad operation type %q", ErrRoutingRequest, op.OperationType)
}

func (r *Router) systemNameLookup(key string) (string, error) {
	if garden, ok := r.tables.LookupBySystemName(key); ok {
		return garden, nil
	}
	return "", fmt.Errorf("%w: no route for system %q", ErrUnknownGarden, key)
}

func (r *Router) systemIDLookup(id string) (string, error) {
	if garden, ok := r.tables.LookupBySystemID(id); ok {
		return garden, nil
	}
	return "", fmt.Errorf("%w: no route for system id %q", ErrUnknownGarden, id)
}

// parseQueueName splits "namespace.name.1-0-0.instance" into its system
// identity. Versions are dash-encoded in queue names.
func parseQueueName(name string) (string, string, string, error) {
	parts := strings.Split(name, ".")
	if len(parts) < 3 {
		return "", "", "", fmt.Errorf("%w: malformed queue name %q", ErrRoutingRequest, name)
	}
	return parts[0], parts[1], strings.ReplaceAll(parts[2], "-", "."), nil
}
