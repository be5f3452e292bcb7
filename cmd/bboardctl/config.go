package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/bboard/internal/transport"
)

// profile is the resolved connection target for one invocation.
type profile struct {
	Addr    string
	Timeout time.Duration
	TLS     transport.TLSConfig
}

func defaultProfile() profile {
	return profile{
		Addr:    "127.0.0.1:7777",
		Timeout: 5 * time.Second,
	}
}

// bboardctl profile file key mapping.
type fileConfig struct {
	Addr    string `toml:"addr"`
	Timeout string `toml:"timeout"`
	TLS     struct {
		Enabled            bool   `toml:"enabled"`
		Mutual             bool   `toml:"mutual"`
		CertFile           string `toml:"cert_file"`
		KeyFile            string `toml:"key_file"`
		CAFile             string `toml:"ca_file"`
		ServerName         string `toml:"server_name"`
		InsecureSkipVerify bool   `toml:"insecure_skip_verify"`
	} `toml:"tls"`
}

// loadProfile overlays the keys present in path onto defaultProfile.
func loadProfile(path string) (profile, error) {
	cfg := defaultProfile()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return profile{}, fmt.Errorf("load bboardctl config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return profile{}, fmt.Errorf("load bboardctl config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("addr") {
		cfg.Addr = strings.TrimSpace(raw.Addr)
	}
	if meta.IsDefined("timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Timeout))
		if err != nil {
			return profile{}, fmt.Errorf("parse timeout: %w", err)
		}
		cfg.Timeout = d
	}
	if meta.IsDefined("tls", "enabled") {
		cfg.TLS.Enabled = raw.TLS.Enabled
	}
	if meta.IsDefined("tls", "mutual") {
		cfg.TLS.Mutual = raw.TLS.Mutual
	}
	if meta.IsDefined("tls", "cert_file") {
		cfg.TLS.CertFile = strings.TrimSpace(raw.TLS.CertFile)
	}
	if meta.IsDefined("tls", "key_file") {
		cfg.TLS.KeyFile = strings.TrimSpace(raw.TLS.KeyFile)
	}
	if meta.IsDefined("tls", "ca_file") {
		cfg.TLS.CAFile = strings.TrimSpace(raw.TLS.CAFile)
	}
	if meta.IsDefined("tls", "server_name") {
		cfg.TLS.ServerName = strings.TrimSpace(raw.TLS.ServerName)
	}
	if meta.IsDefined("tls", "insecure_skip_verify") {
		cfg.TLS.InsecureSkipVerify = raw.TLS.InsecureSkipVerify
	}

	if err := cfg.validate(); err != nil {
		return profile{}, err
	}
	return cfg, nil
}

func (p profile) validate() error {
	if p.Addr == "" {
		return fmt.Errorf("bboardctl: addr is required")
	}
	if p.Timeout < 0 {
		return fmt.Errorf("bboardctl: timeout must not be negative")
	}
	return p.TLS.ValidateClient()
}
