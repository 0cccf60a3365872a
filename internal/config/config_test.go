package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danmuck/gardenctl/internal/testutil/testlog"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "garden.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadOverlaysDefaults(t *testing.T) {
	testlog.Start(t)

	path := writeConfig(t, `
name = "child1"

[http]
listen_addr = "127.0.0.1:2338"
url_prefix = "/child1/"

[forward]
queue_size = 16
timeout = "3s"

[events]
redis_addr = "127.0.0.1:6379"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Name != "child1" || cfg.HTTP.ListenAddr != "127.0.0.1:2338" || cfg.HTTP.URLPrefix != "/child1/" {
		t.Fatalf("unexpected http config: %+v", cfg)
	}
	if cfg.Forward.QueueSize != 16 || cfg.Forward.Timeout != 3*time.Second {
		t.Fatalf("unexpected forward config: %+v", cfg.Forward)
	}
	def := DefaultGardenConfig()
	if cfg.Database.DSN != def.Database.DSN {
		t.Fatalf("unexpected database dsn: %q", cfg.Database.DSN)
	}
	if cfg.Events.RedisAddr != "127.0.0.1:6379" || cfg.Events.Channel != def.Events.Channel {
		t.Fatalf("unexpected events config: %+v", cfg.Events)
	}
	if len(cfg.HTTP.CorsOrigins) != 1 {
		t.Fatalf("unexpected cors origins: %v", cfg.HTTP.CorsOrigins)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	testlog.Start(t)

	cases := map[string]string{
		"empty name":       `name = ""`,
		"zero queue":       "[forward]\nqueue_size = 0",
		"bad timeout":      "[forward]\ntimeout = \"soon\"",
		"mutual no tls":    "[http]\ntls_mutual = true",
		"tls no key":       "[http]\ntls_enabled = true\ntls_cert_file = \"server.crt\"",
		"half client pair": "[forward]\nclient_cert_file = \"client.crt\"",
		"unknown key":      "[http]\nlisten = \":1\"",
	}
	for name, body := range cases {
		if _, err := Load(writeConfig(t, body)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}

	_, err := Load(writeConfig(t, `name = "  "`))
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestTemplateRoundTrips(t *testing.T) {
	testlog.Start(t)

	path := filepath.Join(t.TempDir(), "garden.toml")
	if err := WriteTemplate(path, "parent", false); err != nil {
		t.Fatalf("write template: %v", err)
	}
	if err := WriteTemplate(path, "parent", false); err == nil {
		t.Fatalf("expected error overwriting existing config")
	}
	if err := WriteTemplate(path, "parent", true); err != nil {
		t.Fatalf("overwrite template: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load template: %v", err)
	}
	want := DefaultGardenConfig()
	want.Name = "parent"
	if cfg.Name != want.Name ||
		cfg.HTTP.ListenAddr != want.HTTP.ListenAddr ||
		cfg.Forward.Timeout != want.Forward.Timeout ||
		cfg.Forward.QueueSize != want.Forward.QueueSize ||
		cfg.Database.DSN != want.Database.DSN ||
		cfg.Events.Channel != want.Events.Channel {
		t.Fatalf("unexpected template config: %+v", cfg)
	}
}
