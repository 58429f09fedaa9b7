package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Errorf("log = %+v, want info/text", cfg.Log)
	}
	if cfg.Eval.ScriptTimeout != time.Second {
		t.Errorf("script_timeout = %s, want 1s", cfg.Eval.ScriptTimeout)
	}
	if cfg.Mesh.Cells != 200 {
		t.Errorf("mesh cells = %d, want 200", cfg.Mesh.Cells)
	}
	if warnings := cfg.Validate(); len(warnings) != 0 {
		t.Errorf("default config should have no warnings, got %v", warnings)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hardeen.yaml")
	data := `
log:
  level: debug
  format: json
eval:
  workers: 4
  script_timeout: 250ms
mesh:
  cells: 64
  height: 2.5
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("log = %+v", cfg.Log)
	}
	if cfg.Eval.Workers != 4 || cfg.Eval.ScriptTimeout != 250*time.Millisecond {
		t.Errorf("eval = %+v", cfg.Eval)
	}
	if cfg.Mesh.Cells != 64 || cfg.Mesh.Height != 2.5 {
		t.Errorf("mesh = %+v", cfg.Mesh)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("HARDEEN_EVAL_WORKERS", "3")
	t.Setenv("HARDEEN_LOG_LEVEL", "warn")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Eval.Workers != 3 {
		t.Errorf("workers = %d, want 3", cfg.Eval.Workers)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("level = %q, want warn", cfg.Log.Level)
	}
}

func TestValidate(t *testing.T) {
	valid := Config{
		Log:  LogConfig{Level: "info", Format: "text"},
		Eval: EvalConfig{ScriptTimeout: time.Second},
		Mesh: MeshConfig{Cells: 10, Height: 1},
	}
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string // substring of the expected warning, "" for none
	}{
		{"valid", func(*Config) {}, ""},
		{"unknown level", func(c *Config) { c.Log.Level = "loud" }, "log level"},
		{"unknown format", func(c *Config) { c.Log.Format = "xml" }, "log format"},
		{"negative workers", func(c *Config) { c.Eval.Workers = -1 }, "workers"},
		{"zero timeout", func(c *Config) { c.Eval.ScriptTimeout = 0 }, "script_timeout"},
		{"zero cells", func(c *Config) { c.Mesh.Cells = 0 }, "cells"},
		{"negative height", func(c *Config) { c.Mesh.Height = -1 }, "height"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			warnings := cfg.Validate()
			if tt.want == "" {
				if len(warnings) != 0 {
					t.Errorf("expected no warnings, got %v", warnings)
				}
				return
			}
			found := false
			for _, w := range warnings {
				if strings.Contains(w, tt.want) {
					found = true
				}
			}
			if !found {
				t.Errorf("warnings %v, want one containing %q", warnings, tt.want)
			}
		})
	}
}
