package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadProfileDefaultsAndOverrides(t *testing.T) {
	cfg, err := loadProfile("ex.config.toml")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Addr != "board.internal:7777" {
		t.Fatalf("unexpected addr: %q", cfg.Addr)
	}
	if cfg.Timeout != 2*time.Second {
		t.Fatalf("unexpected timeout: %v", cfg.Timeout)
	}
	if !cfg.TLS.Enabled {
		t.Fatalf("expected tls enabled")
	}
	if cfg.TLS.Mutual {
		t.Fatalf("expected mtls disabled")
	}
	if cfg.TLS.CAFile != "certs/ca.crt" {
		t.Fatalf("unexpected ca file: %q", cfg.TLS.CAFile)
	}
	if cfg.TLS.ServerName != "bboardd" {
		t.Fatalf("unexpected server name: %q", cfg.TLS.ServerName)
	}
}

func TestLoadProfileKeepsDefaultsForMissingKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.toml")
	if err := os.WriteFile(path, []byte("addr = \"10.0.0.2:9000\"\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := loadProfile(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Addr != "10.0.0.2:9000" {
		t.Fatalf("unexpected addr: %q", cfg.Addr)
	}
	if cfg.Timeout != defaultProfile().Timeout {
		t.Fatalf("expected default timeout, got %v", cfg.Timeout)
	}
	if cfg.TLS.Enabled {
		t.Fatalf("expected tls disabled by default")
	}
}

func TestLoadProfileRejects(t *testing.T) {
	cases := map[string]string{
		"bad timeout": "timeout = \"later\"\n",
		"unknown key": "adress = \"x\"\n",
		"tls no ca":   "[tls]\nenabled = true\n",
		"empty addr":  "addr = \"  \"\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "cfg.toml")
			if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
				t.Fatalf("write: %v", err)
			}
			if _, err := loadProfile(path); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}
