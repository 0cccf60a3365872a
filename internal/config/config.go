package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

var ErrInvalidConfig = errors.New("config: invalid")

// GardenConfig is the runtime configuration of one garden process.
type GardenConfig struct {
	// Name is the local garden name every routing decision compares against.
	Name     string
	HTTP     HTTPConfig
	Forward  ForwardConfig
	Database DatabaseConfig
	Events   EventsConfig
}

type HTTPConfig struct {
	ListenAddr  string
	URLPrefix   string
	CorsOrigins []string
	TLSEnabled  bool
	TLSMutual   bool
	TLSCertFile string
	TLSKeyFile  string
	TLSCAFile   string
}

type ForwardConfig struct {
	QueueSize      int
	Timeout        time.Duration
	ClientCertFile string
	ClientKeyFile  string
	CAFile         string
}

type DatabaseConfig struct {
	DSN string
}

// EventsConfig selects the event bus. An empty RedisAddr keeps events in process.
type EventsConfig struct {
	RedisAddr string
	Channel   string
}

func DefaultGardenConfig() GardenConfig {
	return GardenConfig{
		Name: "default",
		HTTP: HTTPConfig{
			ListenAddr:  ":2337",
			URLPrefix:   "/",
			CorsOrigins: []string{"http://localhost:3000"},
		},
		Forward: ForwardConfig{
			QueueSize: 256,
			Timeout:   10 * time.Second,
		},
		Database: DatabaseConfig{DSN: "gardenctl.db"},
		Events:   EventsConfig{Channel: "gardenctl:events"},
	}
}

// gardenctl config.toml key mapping.
type fileConfig struct {
	Name     string       `toml:"name"`
	HTTP     fileHTTP     `toml:"http"`
	Forward  fileForward  `toml:"forward"`
	Database fileDatabase `toml:"database"`
	Events   fileEvents   `toml:"events"`
}

type fileHTTP struct {
	ListenAddr  string   `toml:"listen_addr"`
	URLPrefix   string   `toml:"url_prefix"`
	CorsOrigins []string `toml:"cors_origins"`
	TLSEnabled  bool     `toml:"tls_enabled"`
	TLSMutual   bool     `toml:"tls_mutual"`
	TLSCertFile string   `toml:"tls_cert_file"`
	TLSKeyFile  string   `toml:"tls_key_file"`
	TLSCAFile   string   `toml:"tls_ca_file"`
}

type fileForward struct {
	QueueSize      int    `toml:"queue_size"`
	Timeout        string `toml:"timeout"`
	ClientCertFile string `toml:"client_cert_file"`
	ClientKeyFile  string `toml:"client_key_file"`
	CAFile         string `toml:"ca_file"`
}

type fileDatabase struct {
	DSN string `toml:"dsn"`
}

type fileEvents struct {
	RedisAddr string `toml:"redis_addr"`
	Channel   string `toml:"channel"`
}

// Load reads path over DefaultGardenConfig. Keys absent from the file keep
// their defaults.
func Load(path string) (GardenConfig, error) {
	cfg := DefaultGardenConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return GardenConfig{}, fmt.Errorf("load garden config: %w", err)
	}

	if meta.IsDefined("name") {
		cfg.Name = strings.TrimSpace(raw.Name)
	}

	if meta.IsDefined("http", "listen_addr") {
		cfg.HTTP.ListenAddr = strings.TrimSpace(raw.HTTP.ListenAddr)
	}
	if meta.IsDefined("http", "url_prefix") {
		cfg.HTTP.URLPrefix = strings.TrimSpace(raw.HTTP.URLPrefix)
	}
	if meta.IsDefined("http", "cors_origins") {
		cfg.HTTP.CorsOrigins = raw.HTTP.CorsOrigins
	}
	if meta.IsDefined("http", "tls_enabled") {
		cfg.HTTP.TLSEnabled = raw.HTTP.TLSEnabled
	}
	if meta.IsDefined("http", "tls_mutual") {
		cfg.HTTP.TLSMutual = raw.HTTP.TLSMutual
	}
	if meta.IsDefined("http", "tls_cert_file") {
		cfg.HTTP.TLSCertFile = strings.TrimSpace(raw.HTTP.TLSCertFile)
	}
	if meta.IsDefined("http", "tls_key_file") {
		cfg.HTTP.TLSKeyFile = strings.TrimSpace(raw.HTTP.TLSKeyFile)
	}
	if meta.IsDefined("http", "tls_ca_file") {
		cfg.HTTP.TLSCAFile = strings.TrimSpace(raw.HTTP.TLSCAFile)
	}

	if meta.IsDefined("forward", "queue_size") {
		cfg.Forward.QueueSize = raw.Forward.QueueSize
	}
	if meta.IsDefined("forward", "timeout") {
		timeout, err := time.ParseDuration(strings.TrimSpace(raw.Forward.Timeout))
		if err != nil {
			return GardenConfig{}, fmt.Errorf("load garden config: forward.timeout: %w", err)
		}
		cfg.Forward.Timeout = timeout
	}
	if meta.IsDefined("forward", "client_cert_file") {
		cfg.Forward.ClientCertFile = strings.TrimSpace(raw.Forward.ClientCertFile)
	}
	if meta.IsDefined("forward", "client_key_file") {
		cfg.Forward.ClientKeyFile = strings.TrimSpace(raw.Forward.ClientKeyFile)
	}
	if meta.IsDefined("forward", "ca_file") {
		cfg.Forward.CAFile = strings.TrimSpace(raw.Forward.CAFile)
	}

	if meta.IsDefined("database", "dsn") {
		cfg.Database.DSN = strings.TrimSpace(raw.Database.DSN)
	}
	if meta.IsDefined("events", "redis_addr") {
		cfg.Events.RedisAddr = strings.TrimSpace(raw.Events.RedisAddr)
	}
	if meta.IsDefined("events", "channel") {
		cfg.Events.Channel = strings.TrimSpace(raw.Events.Channel)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return GardenConfig{}, fmt.Errorf("load garden config: unknown keys %s", strings.Join(keys, ", "))
	}

	if err := cfg.Validate(); err != nil {
		return GardenConfig{}, err
	}
	return cfg, nil
}

func (c GardenConfig) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidConfig)
	}
	if strings.TrimSpace(c.HTTP.ListenAddr) == "" {
		return fmt.Errorf("%w: http.listen_addr is required", ErrInvalidConfig)
	}
	if c.HTTP.TLSEnabled {
		if c.HTTP.TLSCertFile == "" || c.HTTP.TLSKeyFile == "" {
			return fmt.Errorf("%w: http.tls_cert_file and http.tls_key_file are required when tls is enabled", ErrInvalidConfig)
		}
		if c.HTTP.TLSMutual && c.HTTP.TLSCAFile == "" {
			return fmt.Errorf("%w: http.tls_ca_file is required for mutual tls", ErrInvalidConfig)
		}
	} else if c.HTTP.TLSMutual {
		return fmt.Errorf("%w: http.tls_mutual requires http.tls_enabled", ErrInvalidConfig)
	}
	if c.Forward.QueueSize <= 0 {
		return fmt.Errorf("%w: forward.queue_size must be positive", ErrInvalidConfig)
	}
	if c.Forward.Timeout <= 0 {
		return fmt.Errorf("%w: forward.timeout must be positive", ErrInvalidConfig)
	}
	if (c.Forward.ClientCertFile == "") != (c.Forward.ClientKeyFile == "") {
		return fmt.Errorf("%w: forward.client_cert_file and forward.client_key_file go together", ErrInvalidConfig)
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		return fmt.Errorf("%w: database.dsn is required", ErrInvalidConfig)
	}
	return nil
}
