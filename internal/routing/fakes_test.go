package routing

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/danmuck/gardenctl/internal/model"
)

type fakeStore struct {
	mu       sync.Mutex
	local    []model.System
	gardens  map[string]*model.Garden
	requests map[string]*model.Request
	created  []*model.Request
	nextID   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		gardens:  make(map[string]*model.Garden),
		requests: make(map[string]*model.Request),
	}
}

func (s *fakeStore) LocalSystems(context.Context) ([]model.System, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.System(nil), s.local...), nil
}

func (s *fakeStore) RemoteGardens(_ context.Context, localName string) ([]model.Garden, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Garden, 0, len(s.gardens))
	for name, g := range s.gardens {
		if name == localName {
			continue
		}
		out = append(out, *g)
	}
	return out, nil
}

func (s *fakeStore) GetGarden(_ context.Context, name string) (*model.Garden, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.gardens[name]
	if !ok {
		return nil, nil
	}
	out := *g
	return &out, nil
}

func (s *fakeStore) GetRequest(_ context.Context, id string) (*model.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return nil, nil
	}
	out := *req
	return &out, nil
}

func (s *fakeStore) CreateRequest(_ context.Context, req *model.Request) (*model.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	out := *req
	out.ID = fmt.Sprintf("req-%d", s.nextID)
	s.requests[out.ID] = &out
	s.created = append(s.created, &out)
	ret := out
	return &ret, nil
}

func (s *fakeStore) UpdateRequestStatus(_ context.Context, id, status, output string) (*model.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return nil, fmt.Errorf("fake store: request %s not found", id)
	}
	req.Status = status
	if output != "" {
		req.Output = output
	}
	out := *req
	return &out, nil
}

type gatewayCall struct {
	op     *model.Operation
	params model.ConnectionParams
}

type fakeGateway struct {
	mu    sync.Mutex
	calls []gatewayCall
	err   error
	panic bool
}

func (g *fakeGateway) Forward(_ context.Context, op *model.Operation, params model.ConnectionParams) error {
	if g.panic {
		panic("transport exploded")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, gatewayCall{op: op, params: params})
	return g.err
}

func (g *fakeGateway) Calls() []gatewayCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]gatewayCall(nil), g.calls...)
}

type fakePublisher struct {
	mu    sync.Mutex
	count int
}

func (p *fakePublisher) PublishGarden(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.count++
	return nil
}

func (p *fakePublisher) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}

type handlerCall struct {
	kind   model.OperationType
	args   []any
	kwargs map[string]any
}

// recordingHandlers registers a handler for every kind that records its call.
func recordingHandlers() (map[model.OperationType]Handler, *[]handlerCall, *sync.Mutex) {
	var (
		mu    sync.Mutex
		calls []handlerCall
	)
	handlers := make(map[model.OperationType]Handler)
	for _, kind := range model.OperationTypes() {
		kind := kind
		handlers[kind] = func(_ context.Context, args []any, kwargs map[string]any) (any, error) {
			mu.Lock()
			defer mu.Unlock()
			calls = append(calls, handlerCall{kind: kind, args: args, kwargs: kwargs})
			return string(kind) + ":ok", nil
		}
	}
	return handlers, &calls, &mu
}

type routerFixture struct {
	router   *Router
	store    *fakeStore
	gateway  *fakeGateway
	pub      *fakePublisher
	calls    *[]handlerCall
	callsMu  *sync.Mutex
	outcomes chan ForwardOutcome
}

func newRouterFixture(t testing.TB, localName string) *routerFixture {
	t.Helper()
	handlers, calls, mu := recordingHandlers()
	registry, err := NewHandlerRegistry(handlers)
	if err != nil {
		t.Fatalf("new handler registry: %v", err)
	}
	fx := &routerFixture{
		store:    newFakeStore(),
		gateway:  &fakeGateway{},
		pub:      &fakePublisher{},
		calls:    calls,
		callsMu:  mu,
		outcomes: make(chan ForwardOutcome, 16),
	}
	fx.router, err = NewRouter(RouterConfig{
		LocalGardenName: localName,
		Handlers:        registry,
		Store:           fx.store,
		Gateways:        map[string]Gateway{"HTTP": fx.gateway},
		Publisher:       fx.pub,
		Observer: ForwardObserverFunc(func(o ForwardOutcome) {
			fx.outcomes <- o
		}),
	})
	if err != nil {
		t.Fatalf("new router: %v", err)
	}
	return fx
}

func (fx *routerFixture) handlerCalls() []handlerCall {
	fx.callsMu.Lock()
	defer fx.callsMu.Unlock()
	return append([]handlerCall(nil), (*fx.calls)...)
}

func echoSystem() *model.System {
	return &model.System{
		ID:        "sys-echo",
		Namespace: "ns",
		Name:      "echo",
		Version:   "1.0.0",
		Instances: []model.Instance{
			{ID: "inst-default", Name: "default"},
			{ID: "inst-second", Name: "second"},
		},
	}
}

func httpGarden(name string) *model.Garden {
	return &model.Garden{
		Name:             name,
		ConnectionType:   model.ConnectionTypeHTTP,
		ConnectionParams: model.ConnectionParams{Host: name + ".example", Port: 2337},
	}
}
