// Package config provides configuration management using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jobrunner/geofix/internal/domain"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	TLS       TLSConfig       `mapstructure:"tls"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Workspace WorkspaceConfig `mapstructure:"workspace"`
	Repair    RepairConfig    `mapstructure:"repair"`
	Join      JoinConfig      `mapstructure:"join"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Watch     WatchConfig     `mapstructure:"watch"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxUploadSize   int64         `mapstructure:"max_upload_size"` // bytes
	CORS            CORSConfig    `mapstructure:"cors"`
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"` // e.g., ["https://example.com", "*.sub.domain.tld"]
}

// Enabled returns true if CORS is configured with at least one allowed origin.
func (c *CORSConfig) Enabled() bool {
	return len(c.AllowedOrigins) > 0
}

// TLSConfig holds TLS/CertMagic configuration.
type TLSConfig struct {
	Enabled  bool      `mapstructure:"enabled"`
	Domains  []string  `mapstructure:"domains"`
	Email    string    `mapstructure:"email"`
	CacheDir string    `mapstructure:"cache_dir"`
	Staging  bool      `mapstructure:"staging"` // Use Let's Encrypt staging
	DNS      DNSConfig `mapstructure:"dns"`
}

// DNSConfig holds the Azure DNS settings for DNS-01 challenges.
type DNSConfig struct {
	SubscriptionID    string `mapstructure:"subscription_id"`
	ResourceGroupName string `mapstructure:"resource_group_name"`
	ClientID          string `mapstructure:"client_id"`
}

// StorageConfig holds the remote dataset storage configuration.
type StorageConfig struct {
	Type      string      `mapstructure:"type"`       // local, s3, azure, http
	LocalPath string      `mapstructure:"local_path"` // empty: no remote storage
	Publish   bool        `mapstructure:"publish"`    // upload produced outputs
	S3        S3Config    `mapstructure:"s3"`
	Azure     AzureConfig `mapstructure:"azure"`
	HTTP      HTTPConfig  `mapstructure:"http"`
}

// S3Config holds AWS S3 configuration.
type S3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Prefix          string `mapstructure:"prefix"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// AzureConfig holds Azure Blob Storage configuration.
type AzureConfig struct {
	Container        string `mapstructure:"container"`
	AccountName      string `mapstructure:"account_name"`
	AccountKey       string `mapstructure:"account_key"`
	ConnectionString string `mapstructure:"connection_string"`
	Prefix           string `mapstructure:"prefix"`
}

// HTTPConfig holds HTTP download configuration.
type HTTPConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	IndexFile string        `mapstructure:"index_file"` // default: index.txt
	Timeout   time.Duration `mapstructure:"timeout"`
	Username  string        `mapstructure:"username"`
	Password  string        `mapstructure:"password"`
}

// WorkspaceConfig holds the dataset workspace configuration.
type WorkspaceConfig struct {
	Path string `mapstructure:"path"`
}

// RepairConfig holds geometry repair configuration.
type RepairConfig struct {
	DefaultTargetCRS    string  `mapstructure:"default_target_crs"`
	AcceptUnclosedRings bool    `mapstructure:"accept_unclosed_rings"`
	ClosureTolerance    float64 `mapstructure:"closure_tolerance"`
}

// Domain returns the repair options used by readers and engines.
func (c RepairConfig) Domain() domain.RepairConfig {
	return domain.RepairConfig{
		AcceptUnclosedRings: c.AcceptUnclosedRings,
		ClosureTolerance:    c.ClosureTolerance,
	}
}

// JoinConfig holds spatial join configuration.
type JoinConfig struct {
	DefaultPredicate string `mapstructure:"default_predicate"`
	WriteResult      bool   `mapstructure:"write_result"`
}

// EngineConfig selects the geometry engine.
type EngineConfig struct {
	Type           string `mapstructure:"type"` // native, spatialite
	SpatialitePath string `mapstructure:"spatialite_path"`
}

// WatchConfig holds workspace watcher configuration.
type WatchConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	AutoRepair bool          `mapstructure:"auto_repair"`
	Debounce   time.Duration `mapstructure:"debounce"`
}

// SyncConfig holds scheduled remote sync configuration.
type SyncConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"` // cron expression or @every
}

// MetricsConfig holds Prometheus metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json, text
}

// Engine types.
const (
	EngineNative     = "native"
	EngineSpatialite = "spatialite"
)

// Defaults sets the default configuration values.
func Defaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 5*time.Minute)
	viper.SetDefault("server.shutdown_timeout", 10*time.Second)
	viper.SetDefault("server.max_upload_size", int64(256<<20))
	viper.SetDefault("server.cors.allowed_origins", []string{})

	// TLS defaults
	viper.SetDefault("tls.enabled", false)
	viper.SetDefault("tls.cache_dir", "./.certmagic")
	viper.SetDefault("tls.staging", false)

	// Storage defaults
	viper.SetDefault("storage.type", "local")
	viper.SetDefault("storage.local_path", "")
	viper.SetDefault("storage.publish", false)
	viper.SetDefault("storage.http.index_file", "index.txt")
	viper.SetDefault("storage.http.timeout", 5*time.Minute)

	// Workspace defaults
	viper.SetDefault("workspace.path", "./data")

	// Repair defaults
	viper.SetDefault("repair.default_target_crs", "EPSG:4326")
	viper.SetDefault("repair.accept_unclosed_rings", false)
	viper.SetDefault("repair.closure_tolerance", 0.0)

	// Join defaults
	viper.SetDefault("join.default_predicate", "intersects")
	viper.SetDefault("join.write_result", false)

	// Engine defaults
	viper.SetDefault("engine.type", EngineNative)
	viper.SetDefault("engine.spatialite_path", "")

	// Watch defaults
	viper.SetDefault("watch.enabled", true)
	viper.SetDefault("watch.auto_repair", false)
	viper.SetDefault("watch.debounce", 500*time.Millisecond)

	// Sync defaults
	viper.SetDefault("sync.enabled", false)
	viper.SetDefault("sync.schedule", "@every 5m")

	// Metrics defaults
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}

// Load loads configuration from environment and config file.
func Load(configPath string) (*Config, error) {
	Defaults()

	// Environment variable binding, e.g. GEOFIX_WORKSPACE_PATH
	viper.SetEnvPrefix("GEOFIX")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("/etc/geofix")
	}

	// The config file is optional.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return &domain.ConfigError{Field: "server.port", Message: fmt.Sprintf("invalid port %d", c.Server.Port)}
	}

	if c.TLS.Enabled {
		if len(c.TLS.Domains) == 0 {
			return &domain.ConfigError{Field: "tls.domains", Message: "TLS enabled but no domains specified"}
		}
		if c.TLS.Email == "" {
			return &domain.ConfigError{Field: "tls.email", Message: "TLS enabled but no email specified"}
		}
	}

	if c.Workspace.Path == "" {
		return &domain.ConfigError{Field: "workspace.path", Message: "workspace path is required"}
	}

	if err := domain.ParseCRS(c.Repair.DefaultTargetCRS).Validate(); err != nil {
		return &domain.ConfigError{Field: "repair.default_target_crs", Message: err.Error()}
	}
	if c.Repair.ClosureTolerance < 0 {
		return &domain.ConfigError{Field: "repair.closure_tolerance", Message: "must not be negative"}
	}

	if _, err := domain.ParsePredicate(c.Join.DefaultPredicate); err != nil {
		return &domain.ConfigError{Field: "join.default_predicate", Message: err.Error()}
	}

	switch c.Engine.Type {
	case EngineNative, EngineSpatialite:
	default:
		return &domain.ConfigError{Field: "engine.type", Message: fmt.Sprintf("unknown engine %q", c.Engine.Type)}
	}

	if c.Sync.Enabled && c.Sync.Schedule == "" {
		return &domain.ConfigError{Field: "sync.schedule", Message: "sync enabled but no schedule specified"}
	}

	return c.validateStorage()
}

func (c *Config) validateStorage() error {
	switch c.Storage.Type {
	case "local":
		// An empty path disables remote storage.
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return &domain.ConfigError{Field: "storage.s3.bucket", Message: "S3 bucket is required"}
		}
		if c.Storage.S3.Region == "" {
			return &domain.ConfigError{Field: "storage.s3.region", Message: "S3 region is required"}
		}
	case "azure":
		if c.Storage.Azure.Container == "" {
			return &domain.ConfigError{Field: "storage.azure.container", Message: "azure container is required"}
		}
		if c.Storage.Azure.AccountName == "" && c.Storage.Azure.ConnectionString == "" {
			return &domain.ConfigError{Field: "storage.azure", Message: "azure account name or connection string is required"}
		}
	case "http":
		if c.Storage.HTTP.BaseURL == "" {
			return &domain.ConfigError{Field: "storage.http.base_url", Message: "HTTP base URL is required"}
		}
	default:
		return &domain.ConfigError{Field: "storage.type", Message: fmt.Sprintf("unknown storage type %q", c.Storage.Type)}
	}
	return nil
}

// HasRemoteStorage returns true if a remote dataset store is configured.
func (c *StorageConfig) HasRemoteStorage() bool {
	return c.Type != "local" || c.LocalPath != ""
}

// Address returns the server address string.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
