// Package config loads the settings of the halley server binary.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/freekieb7/halley/filesystem"
	"github.com/freekieb7/halley/http"
	"github.com/freekieb7/halley/telemetry"
)

const envPrefix = "HALLEY_"

type Config struct {
	Name          string `json:"name"`
	Addr          string `json:"addr"`
	AllowedOrigin string `json:"allowed_origin"`
	ContentType   string `json:"content_type"`
	Concurrent    bool   `json:"concurrent"`

	ReadTimeoutSeconds  int `json:"read_timeout_seconds"`
	WriteTimeoutSeconds int `json:"write_timeout_seconds"`

	// PublicDir confines SendFile to one directory. Empty serves paths as given.
	PublicDir string `json:"public_dir"`

	// StdAddr serves the router through net/http when set.
	StdAddr string `json:"std_addr"`

	// QUIC is served only when an address and a key pair are configured.
	QUICAddr string `json:"quic_addr"`
	CertFile string `json:"cert_file"`
	KeyFile  string `json:"key_file"`

	Telemetry         bool   `json:"telemetry"`
	ServiceName       string `json:"service_name"`
	TelemetryAddr     string `json:"telemetry_addr"`
	TelemetryInsecure bool   `json:"telemetry_insecure"`
}

func defaultConfig() Config {
	return Config{
		Name:                "halley",
		Addr:                "0.0.0.0:8080",
		AllowedOrigin:       http.DefaultAllowedOrigin,
		ContentType:         http.DefaultContentType,
		ReadTimeoutSeconds:  30,
		WriteTimeoutSeconds: 30,
		ServiceName:         "halley",
	}
}

// Load reads the configuration. Precedence: env > file > defaults. A missing
// file at path is not an error.
func Load(path string) (Config, error) {
	cfg := defaultConfig()

	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, err
		default:
			if err := json.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("config: parsing %s: %w", path, err)
			}
		}
	}

	if v := env("NAME"); v != "" {
		cfg.Name = v
	}
	if v := env("ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := env("ALLOWED_ORIGIN"); v != "" {
		cfg.AllowedOrigin = v
	}
	if v := env("CONTENT_TYPE"); v != "" {
		cfg.ContentType = v
	}
	if v := env("CONCURRENT"); v != "" {
		cfg.Concurrent = parseBool(v, cfg.Concurrent)
	}
	if v := env("READ_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.ReadTimeoutSeconds = n
		}
	}
	if v := env("WRITE_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.WriteTimeoutSeconds = n
		}
	}
	if v := env("PUBLIC_DIR"); v != "" {
		cfg.PublicDir = v
	}
	if v := env("STD_ADDR"); v != "" {
		cfg.StdAddr = v
	}
	if v := env("QUIC_ADDR"); v != "" {
		cfg.QUICAddr = v
	}
	if v := env("CERT_FILE"); v != "" {
		cfg.CertFile = v
	}
	if v := env("KEY_FILE"); v != "" {
		cfg.KeyFile = v
	}
	if v := env("TELEMETRY"); v != "" {
		cfg.Telemetry = parseBool(v, cfg.Telemetry)
	}
	if v := env("SERVICE_NAME"); v != "" {
		cfg.ServiceName = v
	}
	if v := env("TELEMETRY_ADDR"); v != "" {
		cfg.TelemetryAddr = v
	}
	if v := env("TELEMETRY_INSECURE"); v != "" {
		cfg.TelemetryInsecure = parseBool(v, cfg.TelemetryInsecure)
	}

	return cfg, nil
}

// ServerConfig converts cfg into the http server's settings.
func (cfg Config) ServerConfig() http.Config {
	serverConfig := http.Config{
		Name:          cfg.Name,
		AllowedOrigin: cfg.AllowedOrigin,
		ContentType:   cfg.ContentType,
		Concurrent:    cfg.Concurrent,
		ReadTimeout:   time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout:  time.Duration(cfg.WriteTimeoutSeconds) * time.Second,
	}
	if cfg.PublicDir != "" {
		serverConfig.Filesystem = filesystem.NewDirFileSystem(cfg.PublicDir)
	}
	return serverConfig
}

func (cfg Config) TelemetryConfig() telemetry.Config {
	return telemetry.Config{
		Enabled:     cfg.Telemetry,
		ServiceName: cfg.ServiceName,
		Endpoint:    cfg.TelemetryAddr,
		Insecure:    cfg.TelemetryInsecure,
	}
}

// QUICEnabled reports whether the QUIC listener should be started.
func (cfg Config) QUICEnabled() bool {
	return cfg.QUICAddr != "" && cfg.CertFile != "" && cfg.KeyFile != ""
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(envPrefix + key))
}

func parseBool(v string, fallback bool) bool {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
