package forward

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/danmuck/gardenctl/internal/model"
	"github.com/rs/zerolog/log"
)

// ForwardPath is appended to a garden's url prefix.
const ForwardPath = "api/v1/forward"

const maxResponseBytes = 4 << 20

var (
	ErrHostRequired       = errors.New("forward: target host required")
	ErrTLSNotConfigured   = errors.New("forward: target requires tls but no client tls is configured")
	ErrForwardRejected    = errors.New("forward: target rejected operation")
	ErrTLSCertFileMissing = errors.New("forward: tls cert file required")
	ErrTLSKeyFileMissing  = errors.New("forward: tls key file required")
)

// HTTPConfig configures the HTTP gateway. The TLS files are only used for
// targets whose connection params request SSL.
type HTTPConfig struct {
	Timeout  time.Duration
	CertFile string
	KeyFile  string
	CAFile   string
}

func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{Timeout: 10 * time.Second}
}

// HTTPGateway forwards operations over HTTP or HTTPS with client certificates.
type HTTPGateway struct {
	cfg       HTTPConfig
	plain     *http.Client
	mutualTLS *http.Client
}

func NewHTTPGateway(cfg HTTPConfig) (*HTTPGateway, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultHTTPConfig().Timeout
	}
	gw := &HTTPGateway{
		cfg:   cfg,
		plain: &http.Client{Timeout: cfg.Timeout},
	}
	if strings.TrimSpace(cfg.CertFile) != "" || strings.TrimSpace(cfg.CAFile) != "" {
		tlsCfg, err := clientTLSConfig(cfg)
		if err != nil {
			return nil, err
		}
		gw.mutualTLS = &http.Client{
			Timeout:   cfg.Timeout,
			Transport: &http.Transport{TLSClientConfig: tlsCfg},
		}
	}
	return gw, nil
}

// Endpoint renders the forward URL for params.
func Endpoint(params model.ConnectionParams) string {
	scheme := "http"
	if params.SSL {
		scheme = "https"
	}
	return fmt.Sprintf(
		"%s://%s:%d%s%s",
		scheme,
		strings.TrimSpace(params.Host),
		params.Port,
		NormalizeURLPrefix(params.URLPrefix),
		ForwardPath,
	)
}

// NormalizeURLPrefix returns prefix with exactly one leading and trailing slash.
func NormalizeURLPrefix(prefix string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return "/"
	}
	return "/" + prefix + "/"
}

// Forward sends op to the garden described by params.
func (g *HTTPGateway) Forward(ctx context.Context, op *model.Operation, params model.ConnectionParams) error {
	_, err := g.Post(ctx, op, params)
	return err
}

// Post sends op to the garden described by params and returns the response
// body.
func (g *HTTPGateway) Post(ctx context.Context, op *model.Operation, params model.ConnectionParams) ([]byte, error) {
	if strings.TrimSpace(params.Host) == "" {
		return nil, ErrHostRequired
	}
	client := g.plain
	if params.SSL {
		if g.mutualTLS == nil {
			return nil, ErrTLSNotConfigured
		}
		client = g.mutualTLS
	}

	body, err := json.Marshal(op)
	if err != nil {
		return nil, fmt.Errorf("forward: encode operation: %w", err)
	}
	url := Endpoint(params)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("forward: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/plain")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("forward: post %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf(
			"%w: %s returned %d: %s",
			ErrForwardRejected,
			url,
			resp.StatusCode,
			strings.TrimSpace(string(snippet)),
		)
	}
	out, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("forward: read response: %w", err)
	}

	log.Debug().
		Str("url", url).
		Str("type", string(op.OperationType)).
		Int("status", resp.StatusCode).
		Msg("forward_post")
	return out, nil
}

func clientTLSConfig(cfg HTTPConfig) (*tls.Config, error) {
	tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12}

	if caPath := strings.TrimSpace(cfg.CAFile); caPath != "" {
		caPEM, err := os.ReadFile(caPath)
		if err != nil {
			return nil, err
		}
		pool := x509.NewCertPool()
		if ok := pool.AppendCertsFromPEM(caPEM); !ok {
			return nil, fmt.Errorf("forward: parse tls ca bundle: %s", caPath)
		}
		tlsCfg.RootCAs = pool
	}

	certFile := strings.TrimSpace(cfg.CertFile)
	keyFile := strings.TrimSpace(cfg.KeyFile)
	if certFile == "" && keyFile == "" {
		return tlsCfg, nil
	}
	if certFile == "" {
		return nil, ErrTLSCertFileMissing
	}
	if keyFile == "" {
		return nil, ErrTLSKeyFileMissing
	}
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, err
	}
	tlsCfg.Certificates = []tls.Certificate{cert}
	return tlsCfg, nil
}
