package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"

	"github.com/jobrunner/geofix/internal/domain"
)

func validConfig() Config {
	return Config{
		Server:    ServerConfig{Host: "0.0.0.0", Port: 8080},
		Storage:   StorageConfig{Type: "local"},
		Workspace: WorkspaceConfig{Path: "./data"},
		Repair:    RepairConfig{DefaultTargetCRS: "EPSG:4326"},
		Join:      JoinConfig{DefaultPredicate: "intersects"},
		Engine:    EngineConfig{Type: EngineNative},
		Sync:      SyncConfig{Schedule: "@every 5m"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		modify    func(*Config)
		wantField string
	}{
		{"valid", func(*Config) {}, ""},
		{"port zero", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"tls without domains", func(c *Config) { c.TLS.Enabled = true; c.TLS.Email = "a@b.c" }, "tls.domains"},
		{"tls without email", func(c *Config) { c.TLS.Enabled = true; c.TLS.Domains = []string{"geo.example.com"} }, "tls.email"},
		{"empty workspace", func(c *Config) { c.Workspace.Path = "" }, "workspace.path"},
		{"empty target crs", func(c *Config) { c.Repair.DefaultTargetCRS = "" }, "repair.default_target_crs"},
		{"unknown crs authority", func(c *Config) { c.Repair.DefaultTargetCRS = "ESRI:102100" }, "repair.default_target_crs"},
		{"proj target crs", func(c *Config) { c.Repair.DefaultTargetCRS = "+proj=utm +zone=32" }, ""},
		{"negative tolerance", func(c *Config) { c.Repair.ClosureTolerance = -1 }, "repair.closure_tolerance"},
		{"unknown predicate", func(c *Config) { c.Join.DefaultPredicate = "touches" }, "join.default_predicate"},
		{"spatialite engine", func(c *Config) { c.Engine.Type = EngineSpatialite }, ""},
		{"unknown engine", func(c *Config) { c.Engine.Type = "geos" }, "engine.type"},
		{"sync without schedule", func(c *Config) { c.Sync.Enabled = true; c.Sync.Schedule = "" }, "sync.schedule"},
		{"s3 without bucket", func(c *Config) { c.Storage.Type = "s3"; c.Storage.S3.Region = "eu-central-1" }, "storage.s3.bucket"},
		{"s3 without region", func(c *Config) { c.Storage.Type = "s3"; c.Storage.S3.Bucket = "geo" }, "storage.s3.region"},
		{"azure without container", func(c *Config) { c.Storage.Type = "azure" }, "storage.azure.container"},
		{"azure without account", func(c *Config) { c.Storage.Type = "azure"; c.Storage.Azure.Container = "geo" }, "storage.azure"},
		{"http without url", func(c *Config) { c.Storage.Type = "http" }, "storage.http.base_url"},
		{"unknown storage", func(c *Config) { c.Storage.Type = "ftp" }, "storage.type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(&cfg)

			err := cfg.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}

			var cfgErr *domain.ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("Validate() error = %v, want *ConfigError", err)
			}
			if cfgErr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", cfgErr.Field, tt.wantField)
			}
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Workspace.Path != "./data" {
		t.Errorf("Workspace.Path = %q", cfg.Workspace.Path)
	}
	if cfg.Repair.DefaultTargetCRS != "EPSG:4326" {
		t.Errorf("Repair.DefaultTargetCRS = %q", cfg.Repair.DefaultTargetCRS)
	}
	if cfg.Join.DefaultPredicate != "intersects" || cfg.Join.WriteResult {
		t.Errorf("Join = %+v", cfg.Join)
	}
	if cfg.Engine.Type != EngineNative {
		t.Errorf("Engine.Type = %q", cfg.Engine.Type)
	}
	if !cfg.Watch.Enabled || cfg.Watch.AutoRepair {
		t.Errorf("Watch = %+v", cfg.Watch)
	}
	if cfg.Sync.Enabled || cfg.Sync.Schedule != "@every 5m" {
		t.Errorf("Sync = %+v", cfg.Sync)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics = %+v", cfg.Metrics)
	}
	if cfg.Storage.HasRemoteStorage() {
		t.Error("default storage should not be remote")
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	path := filepath.Join(t.TempDir(), "geofix.yaml")
	content := `
workspace:
  path: /srv/geo
repair:
  default_target_crs: EPSG:25832
  accept_unclosed_rings: true
join:
  write_result: true
engine:
  type: spatialite
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GEOFIX_SERVER_PORT", "9090")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Workspace.Path != "/srv/geo" {
		t.Errorf("Workspace.Path = %q", cfg.Workspace.Path)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Repair.DefaultTargetCRS != "EPSG:25832" || !cfg.Repair.Domain().AcceptUnclosedRings {
		t.Errorf("Repair = %+v", cfg.Repair)
	}
	if !cfg.Join.WriteResult {
		t.Error("Join.WriteResult should be true")
	}
	if cfg.Engine.Type != EngineSpatialite {
		t.Errorf("Engine.Type = %q", cfg.Engine.Type)
	}
}

func TestLoadInvalidFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	path := filepath.Join(t.TempDir(), "geofix.yaml")
	if err := os.WriteFile(path, []byte("engine:\n  type: geos\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Error("Load() should reject an unknown engine")
	}
}

func TestServerAddress(t *testing.T) {
	cfg := ServerConfig{Host: "127.0.0.1", Port: 8080}
	if got := cfg.Address(); got != "127.0.0.1:8080" {
		t.Errorf("Address() = %q", got)
	}
}
