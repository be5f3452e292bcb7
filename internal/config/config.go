package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/danmuck/bboard/internal/board"
	"github.com/danmuck/bboard/internal/logging"
	"github.com/danmuck/bboard/internal/server"
	"github.com/danmuck/bboard/internal/session"
	"github.com/danmuck/bboard/internal/transport"
	"github.com/pelletier/go-toml/v2"
)

var ErrInvalid = errors.New("config: invalid")

// DaemonConfig is the bboardd file format.
type DaemonConfig struct {
	Addr         string              `toml:"addr"`
	AdminAddr    string              `toml:"admin_addr"`
	Heartbeat    string              `toml:"heartbeat"`
	MaxLineBytes int                 `toml:"max_line_bytes"`
	LogLevel     string              `toml:"log_level"`
	CorsOrigins  []string            `toml:"cors_origins"`
	Board        board.Config        `toml:"board"`
	TLS          transport.TLSConfig `toml:"tls"`
}

// Defaults fills every optional field. The board section has no defaults.
func Defaults() DaemonConfig {
	def := server.DefaultConfig()
	return DaemonConfig{
		Addr:         def.ListenAddr,
		Heartbeat:    def.HeartbeatInterval.String(),
		MaxLineBytes: session.DefaultConfig().MaxLineBytes,
		LogLevel:     "info",
	}
}

// Load decodes path over Defaults and validates the result. Unknown keys are rejected.
func Load(path string) (DaemonConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DaemonConfig{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	return Parse(data, path)
}

// Parse decodes data the same way Load does; name labels errors.
func Parse(data []byte, name string) (DaemonConfig, error) {
	cfg := Defaults()
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return DaemonConfig{}, fmt.Errorf("config parse failed (%s): %w", name, err)
	}
	cfg.Addr = strings.TrimSpace(cfg.Addr)
	cfg.AdminAddr = strings.TrimSpace(cfg.AdminAddr)
	if err := cfg.Validate(); err != nil {
		return DaemonConfig{}, err
	}
	return cfg, nil
}

func (c DaemonConfig) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("%w: addr is required", ErrInvalid)
	}
	if _, err := c.HeartbeatInterval(); err != nil {
		return err
	}
	if c.MaxLineBytes <= 0 {
		return fmt.Errorf("%w: max_line_bytes must be positive", ErrInvalid)
	}
	if _, ok := logging.ParseLevel(c.LogLevel); !ok {
		return fmt.Errorf("%w: unknown log_level %q", ErrInvalid, c.LogLevel)
	}
	if err := server.ValidateOrigins(c.CorsOrigins); err != nil {
		return fmt.Errorf("%w: cors_origins: %w", ErrInvalid, err)
	}
	if err := c.Board.Validate(); err != nil {
		return err
	}
	if err := c.TLS.ValidateServer(); err != nil {
		return err
	}
	return nil
}

func (c DaemonConfig) HeartbeatInterval() (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(c.Heartbeat))
	if err != nil {
		return 0, fmt.Errorf("%w: parse heartbeat: %v", ErrInvalid, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w: heartbeat must be positive", ErrInvalid)
	}
	return d, nil
}

// ServerConfig maps the file onto the runtime server configuration.
func (c DaemonConfig) ServerConfig() (server.Config, error) {
	hb, err := c.HeartbeatInterval()
	if err != nil {
		return server.Config{}, err
	}
	cfg := server.DefaultConfig()
	cfg.ListenAddr = c.Addr
	cfg.AdminListenAddr = c.AdminAddr
	cfg.HeartbeatInterval = hb
	cfg.CorsOrigins = append([]string(nil), c.CorsOrigins...)
	cfg.Session.MaxLineBytes = c.MaxLineBytes
	cfg.Session.Transport = c.TLS.Name()
	cfg.TLS = c.TLS
	return cfg, nil
}
