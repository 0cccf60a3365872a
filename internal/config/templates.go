package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Template renders DefaultGardenConfig as TOML, with name set when non-empty.
func Template(name string) (string, error) {
	cfg := DefaultGardenConfig()
	if name != "" {
		cfg.Name = name
	}
	data, err := toml.Marshal(toFile(cfg))
	if err != nil {
		return "", fmt.Errorf("render garden config: %w", err)
	}
	return string(data), nil
}

func WriteTemplate(path, name string, overwrite bool) error {
	template, err := Template(name)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

func toFile(cfg GardenConfig) fileConfig {
	return fileConfig{
		Name: cfg.Name,
		HTTP: fileHTTP{
			ListenAddr:  cfg.HTTP.ListenAddr,
			URLPrefix:   cfg.HTTP.URLPrefix,
			CorsOrigins: cfg.HTTP.CorsOrigins,
			TLSEnabled:  cfg.HTTP.TLSEnabled,
			TLSMutual:   cfg.HTTP.TLSMutual,
			TLSCertFile: cfg.HTTP.TLSCertFile,
			TLSKeyFile:  cfg.HTTP.TLSKeyFile,
			TLSCAFile:   cfg.HTTP.TLSCAFile,
		},
		Forward: fileForward{
			QueueSize:      cfg.Forward.QueueSize,
			Timeout:        cfg.Forward.Timeout.String(),
			ClientCertFile: cfg.Forward.ClientCertFile,
			ClientKeyFile:  cfg.Forward.ClientKeyFile,
			CAFile:         cfg.Forward.CAFile,
		},
		Database: fileDatabase{DSN: cfg.Database.DSN},
		Events: fileEvents{
			RedisAddr: cfg.Events.RedisAddr,
			Channel:   cfg.Events.Channel,
		},
	}
}
