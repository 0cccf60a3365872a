package garden

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/danmuck/gardenctl/internal/api"
	"github.com/danmuck/gardenctl/internal/config"
	"github.com/danmuck/gardenctl/internal/events"
	"github.com/danmuck/gardenctl/internal/forward"
	"github.com/danmuck/gardenctl/internal/model"
	"github.com/danmuck/gardenctl/internal/routing"
	"github.com/danmuck/gardenctl/internal/store"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Service is one running garden.
type Service struct {
	cfg config.GardenConfig

	store     *store.Store
	bus       *events.Bus
	router    *routing.Router
	sync      *routing.EventSynchronizer
	topology  *TopologyReconciler
	publisher *TopologyPublisher
	api       *api.Server
}

// NewService opens the configured store and wires a garden around it.
func NewService(cfg config.GardenConfig) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	st, err := store.Open(cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	svc, err := NewServiceWithStore(cfg, st)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	return svc, nil
}

// NewServiceWithStore wires a garden around an already open store. The
// service owns st from here on.
func NewServiceWithStore(cfg config.GardenConfig, st *store.Store) (*Service, error) {
	name := strings.TrimSpace(cfg.Name)
	s := &Service{cfg: cfg, store: st}

	tables := routing.NewTables()
	gardens := routing.NewGardenRegistry(name)
	waits := routing.NewWaitMap()
	s.sync = routing.NewEventSynchronizer(name, tables, gardens, waits)
	s.topology = NewTopologyReconciler(name, st, tables)

	var publisher EventPublisher = loopback{handle: s.HandleEvent}
	if addr := strings.TrimSpace(cfg.Events.RedisAddr); addr != "" {
		s.bus = events.New(addr, events.WithChannel(cfg.Events.Channel))
		publisher = s.bus
	}
	s.publisher = NewTopologyPublisher(name, st, publisher)

	handlers := newLocalHandlers(name, st, publisher)
	registry, err := routing.NewHandlerRegistry(handlers.table())
	if err != nil {
		return nil, err
	}

	gateway, err := forward.NewHTTPGateway(forward.HTTPConfig{
		Timeout:  cfg.Forward.Timeout,
		CertFile: cfg.Forward.ClientCertFile,
		KeyFile:  cfg.Forward.ClientKeyFile,
		CAFile:   cfg.Forward.CAFile,
	})
	if err != nil {
		return nil, err
	}

	s.router, err = routing.NewRouter(routing.RouterConfig{
		LocalGardenName: name,
		Tables:          tables,
		Gardens:         gardens,
		Handlers:        registry,
		Store:           st,
		Queue:           routing.NewForwardQueue(cfg.Forward.QueueSize),
		Waits:           waits,
		Gateways:        map[string]routing.Gateway{model.ConnectionTypeHTTP: gateway},
		Validator:       RequestValidator{},
		Publisher:       s.publisher,
		Observer:        ForwardReporter{GardenName: name},
	})
	if err != nil {
		return nil, err
	}
	handlers.bind(s.router)

	s.api = api.New(api.Config{
		GardenName:  name,
		ListenAddr:  cfg.HTTP.ListenAddr,
		URLPrefix:   cfg.HTTP.URLPrefix,
		CorsOrigins: cfg.HTTP.CorsOrigins,
		TLSEnabled:  cfg.HTTP.TLSEnabled,
		TLSMutual:   cfg.HTTP.TLSMutual,
		TLSCertFile: cfg.HTTP.TLSCertFile,
		TLSKeyFile:  cfg.HTTP.TLSKeyFile,
		TLSCAFile:   cfg.HTTP.TLSCAFile,
	}, s.router)
	return s, nil
}

func (s *Service) Router() *routing.Router {
	return s.router
}

func (s *Service) Store() *store.Store {
	return s.store
}

func (s *Service) API() *api.Server {
	return s.api
}

// HandleEvent applies one bus event to routing state and stored topology.
func (s *Service) HandleEvent(ctx context.Context, event model.Event) {
	s.sync.HandleEvent(event)
	s.topology.HandleEvent(ctx, event)
}

// Run serves until SIGINT, SIGTERM or ctx ends.
func (s *Service) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	defer s.Close()
	return s.serve(ctx, s.api.Run)
}

// serve loads routing state, then runs the forward drain loop, the event
// subscriber and, when given, the HTTP server until one fails or ctx ends.
func (s *Service) serve(ctx context.Context, runHTTP func(context.Context) error) error {
	if err := s.router.Setup(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	if s.bus != nil {
		sub, err := s.bus.Subscribe(gctx)
		if err != nil {
			return err
		}
		g.Go(func() error {
			defer sub.Close()
			err := sub.Run(gctx, s.HandleEvent)
			if errors.Is(err, events.ErrSubscriptionClosed) && gctx.Err() != nil {
				return nil
			}
			return err
		})
	}

	g.Go(func() error {
		return s.router.RunForwarder(gctx)
	})

	if runHTTP != nil {
		g.Go(func() error {
			return runHTTP(gctx)
		})
	}

	if err := s.publisher.PublishGarden(gctx); err != nil {
		log.Warn().Err(err).Str("garden", s.cfg.Name).Msg("garden_publish_failed")
	}
	log.Info().Str("garden", s.cfg.Name).Msg("garden_started")

	err := g.Wait()
	log.Info().Str("garden", s.cfg.Name).Msg("garden_stopped")
	return err
}

// Close releases the bus and the store.
func (s *Service) Close() error {
	var errs []error
	if s.bus != nil {
		if err := s.bus.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close event bus: %w", err))
		}
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	return errors.Join(errs...)
}
