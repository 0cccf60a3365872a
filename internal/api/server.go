// Package api is a garden's HTTP surface: the forward endpoint other gardens
// post operations to, plus health and metrics.
package api

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/danmuck/gardenctl/internal/model"
	"github.com/danmuck/gardenctl/internal/observability"
	"github.com/danmuck/gardenctl/internal/routing"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 5 * time.Second

// Router is the routing entry point the forward endpoint hands operations to.
type Router interface {
	Route(ctx context.Context, op *model.Operation) (any, error)
}

type Config struct {
	GardenName  string
	ListenAddr  string
	URLPrefix   string
	CorsOrigins []string
	TLSEnabled  bool
	TLSMutual   bool
	TLSCertFile string
	TLSKeyFile  string
	TLSCAFile   string
}

type Server struct {
	cfg     Config
	router  Router
	engine  *gin.Engine
	started time.Time
}

func New(cfg Config, router Router) *Server {
	observability.RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(cfg.GardenName, log.Logger))
	r.Use(observability.RequestMetricsMiddleware(cfg.GardenName))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(cfg.CorsOrigins),
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		cfg:     cfg,
		router:  router,
		engine:  r,
		started: time.Now(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) registerRoutes() {
	routes := s.engine.Group(normalizePrefix(s.cfg.URLPrefix))

	routes.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"uptime": time.Since(s.started).String(),
			"garden": s.cfg.GardenName,
		})
	})

	routes.GET("/metrics", gin.WrapH(promhttp.Handler()))

	routes.POST("/api/v1/forward", s.handleForward)
}

func (s *Server) handleForward(c *gin.Context) {
	var op model.Operation
	if err := c.ShouldBindJSON(&op); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("decode operation: %v", err)})
		return
	}
	observability.MarkOperation(c, &op)

	result, err := s.router.Route(c.Request.Context(), &op)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, routing.ErrRoutingRequest):
		return http.StatusBadRequest
	case errors.Is(err, routing.ErrUnknownGarden):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Run serves until ctx ends, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if s.cfg.TLSEnabled {
		tlsCfg, err := ServerTLSConfig(s.cfg)
		if err != nil {
			return fmt.Errorf("api: tls config: %w", err)
		}
		srv.TLSConfig = tlsCfg
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("garden", s.cfg.GardenName).
			Str("addr", s.cfg.ListenAddr).
			Bool("tls", s.cfg.TLSEnabled).
			Msg("http_listening")
		var err error
		if s.cfg.TLSEnabled {
			err = srv.ListenAndServeTLS("", "")
		} else {
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api: shutdown: %w", err)
	}
	return <-errCh
}

// ServerTLSConfig loads the server key pair and, for mutual TLS, the CA used
// to verify client certificates.
func ServerTLSConfig(cfg Config) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(cfg.TLSCertFile, cfg.TLSKeyFile)
	if err != nil {
		return nil, err
	}
	out := &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{cert},
		ClientAuth:   tls.NoClientCert,
	}
	if cfg.TLSMutual {
		out.ClientAuth = tls.RequireAndVerifyClientCert
		caPEM, err := os.ReadFile(cfg.TLSCAFile)
		if err != nil {
			return nil, err
		}
		pool := x509.NewCertPool()
		if ok := pool.AppendCertsFromPEM(caPEM); !ok {
			return nil, fmt.Errorf("api: parse tls ca bundle: %s", cfg.TLSCAFile)
		}
		out.ClientCAs = pool
	}
	return out, nil
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}

func normalizePrefix(prefix string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return "/"
	}
	return "/" + prefix
}
