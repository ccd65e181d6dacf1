package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadConfigWithInfo_MissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, info, err := LoadConfigWithInfo(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if info.FromFile || info.PortSpecified {
		t.Fatalf("unexpected info: %+v", info)
	}
	def := DefaultConfig()
	if cfg.Server.Port != def.Server.Port || cfg.Data.Storage != "json" || !cfg.History.Remember {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
	if cfg.Export.DateFormat != "yyyy-mm-dd" || cfg.Export.TopN != 20 || cfg.Export.AnalysisType != "daily" {
		t.Fatalf("unexpected export defaults: %+v", cfg.Export)
	}
}

func TestLoadConfigWithInfo_FileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[server]
port = 18080

[data]
storage = "sqlite"

[export]
analysis_type = "monthly"
auto_open = true

[history]
remember = false
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, info, err := LoadConfigWithInfo(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !info.FromFile || !info.PortSpecified {
		t.Fatalf("unexpected info: %+v", info)
	}
	if cfg.Server.Port != 18080 || cfg.Data.Storage != "sqlite" || cfg.Export.AnalysisType != "monthly" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if !cfg.Export.AutoOpen || cfg.History.Remember {
		t.Fatalf("bool overrides not applied: %+v", cfg)
	}
	// 未出现的键保留默认值
	if cfg.Export.TopN != 20 || cfg.Data.DataDir != "data" {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}

func TestLoadConfigWithInfo_PortNotSpecified(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[server]\ndev_mode = true\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, info, err := LoadConfigWithInfo(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if info.PortSpecified {
		t.Fatalf("port should not be marked as specified")
	}
}

func TestLoadConfigWithInfo_EnvOverrides(t *testing.T) {
	t.Setenv("MARGIN_PORT", "19999")
	t.Setenv("MARGIN_STORAGE", "sqlite")
	t.Setenv("MARGIN_REMEMBER_HISTORY", "false")
	t.Setenv("MARGIN_ANALYSIS_TYPE", "yearly")

	cfg, info, err := LoadConfigWithInfo(filepath.Join(t.TempDir(), "config.toml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !info.PortSpecified || cfg.Server.Port != 19999 {
		t.Fatalf("port env not applied: %+v %+v", info, cfg.Server)
	}
	if cfg.Data.Storage != "sqlite" || cfg.History.Remember || cfg.Export.AnalysisType != "yearly" {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
}

func TestLoadConfigWithInfo_DotEnvNextToConfig(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("MARGIN_TOP_N=5\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("MARGIN_TOP_N") })

	cfg, _, err := LoadConfigWithInfo(filepath.Join(dir, "config.toml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Export.TopN != 5 {
		t.Fatalf("TopN=%d, want 5 from .env", cfg.Export.TopN)
	}
}

func TestLoadConfigWithInfo_InvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[data]\nstorage = \"mongo\"\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, _, err := LoadConfigWithInfo(path)
	if err == nil || !strings.Contains(err.Error(), "Storage") {
		t.Fatalf("expected storage validation error, got %v", err)
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg := DefaultConfig()
	cfg.Server.Port = 12345
	cfg.Export.Path = "/tmp/reports"
	if err := SaveConfig(path, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, info, err := LoadConfigWithInfo(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !info.PortSpecified || loaded.Server.Port != 12345 || loaded.Export.Path != "/tmp/reports" {
		t.Fatalf("round trip mismatch: %+v", loaded)
	}
}

func TestPatch_Apply(t *testing.T) {
	base := DefaultConfig()
	topN := 10
	kind := "monthly"
	remember := false
	next, err := Patch{TopN: &topN, AnalysisType: &kind, RememberHistory: &remember}.Apply(base)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if next.Export.TopN != 10 || next.Export.AnalysisType != "monthly" || next.History.Remember {
		t.Fatalf("patch not applied: %+v", next)
	}
	if base.Export.TopN != 20 || !base.History.Remember {
		t.Fatalf("base config mutated: %+v", base)
	}

	bad := "weekly"
	if _, err := (Patch{AnalysisType: &bad}).Apply(base); err == nil {
		t.Fatalf("expected validation error for analysis type %q", bad)
	}
}

func TestEnsureDataDir_RelativeToBase(t *testing.T) {
	base := t.TempDir()
	cfg := DefaultConfig()
	dir, err := EnsureDataDir(cfg, base)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if dir != filepath.Join(base, "data") {
		t.Fatalf("dataDir=%s", dir)
	}
	if _, err := os.Stat(filepath.Join(dir, "uploads")); err != nil {
		t.Fatalf("uploads dir missing: %v", err)
	}
	if got := ExportDir(cfg, base); got != filepath.Join(base, "exports") {
		t.Fatalf("ExportDir=%s", got)
	}
	if got := SynonymsPath(cfg, dir); got != filepath.Join(dir, "synonyms.yaml") {
		t.Fatalf("SynonymsPath=%s", got)
	}
}
