// Package app provides application initialization and wiring.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/jobrunner/geofix/internal/adapters/dataset"
	"github.com/jobrunner/geofix/internal/adapters/geometry"
	httpAdapter "github.com/jobrunner/geofix/internal/adapters/http"
	mcpAdapter "github.com/jobrunner/geofix/internal/adapters/mcp"
	"github.com/jobrunner/geofix/internal/adapters/metrics"
	"github.com/jobrunner/geofix/internal/adapters/projection"
	"github.com/jobrunner/geofix/internal/adapters/spatialite"
	"github.com/jobrunner/geofix/internal/adapters/storage"
	tlsAdapter "github.com/jobrunner/geofix/internal/adapters/tls"
	"github.com/jobrunner/geofix/internal/adapters/watcher"
	"github.com/jobrunner/geofix/internal/application"
	"github.com/jobrunner/geofix/internal/config"
	"github.com/jobrunner/geofix/internal/domain"
	"github.com/jobrunner/geofix/internal/ports/output"
)

// App holds all application components.
type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	Version       string
	Storage       output.ObjectStorage
	Workspace     *application.Workspace
	Repository    *dataset.Repository
	Engine        output.GeometryEngine
	Spatialite    *spatialite.Engine
	Registry      *application.DatasetRegistry
	Actions       *application.ActionService
	HealthService *application.HealthService
	SyncService   *application.SyncService
	HTTPServer    *httpAdapter.Server
	TLSServer     *tlsAdapter.Server
	Watcher       *watcher.Watcher
	Metrics       *metrics.Collector
}

// New creates and initializes a new application.
func New(ctx context.Context, cfg *config.Config, version string, logger *slog.Logger) (*App, error) {
	app := &App{
		Config:  cfg,
		Logger:  logger,
		Version: version,
	}

	var metricsCollector output.MetricsCollector = &output.NoOpMetrics{}
	if cfg.Metrics.Enabled {
		app.Metrics = metrics.NewCollector("geofix")
		metricsCollector = app.Metrics
	}

	if err := os.MkdirAll(cfg.Workspace.Path, 0o755); err != nil {
		return nil, fmt.Errorf("creating workspace: %w", err)
	}
	ws, err := application.NewWorkspace(cfg.Workspace.Path)
	if err != nil {
		return nil, err
	}
	app.Workspace = ws

	if cfg.Storage.HasRemoteStorage() {
		store, err := initStorage(ctx, cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("initializing storage: %w", err)
		}
		app.Storage = store
	}

	repairCfg := cfg.Repair.Domain()
	app.Repository = dataset.NewRepository(repairCfg, logger)

	// Native projections come first; SpatiaLite covers the remaining EPSG codes.
	transformers := projection.Chain{projection.NewTransformer()}
	app.Engine = geometry.NewNative(repairCfg)
	if cfg.Engine.Type == config.EngineSpatialite {
		engine, err := spatialite.Open(ctx, cfg.Engine.SpatialitePath, logger)
		switch {
		case err == nil:
			app.Spatialite = engine
			app.Engine = engine
			transformers = append(transformers, engine)
		case errors.Is(err, domain.ErrEngineUnavailable):
			logger.Warn("spatialite unavailable, using native engine", "error", err)
		default:
			return nil, fmt.Errorf("opening spatialite: %w", err)
		}
	}

	inspector := application.NewInspectorService(app.Repository, app.Engine, metricsCollector, logger)

	app.Registry = application.NewDatasetRegistry(
		inspector,
		app.Storage,
		metricsCollector,
		logger,
		ws,
		application.RegistryConfig{Publish: cfg.Storage.Publish},
	)

	defaultTarget := domain.ParseCRS(cfg.Repair.DefaultTargetCRS)
	predicate, err := domain.ParsePredicate(cfg.Join.DefaultPredicate)
	if err != nil {
		return nil, err
	}

	app.Actions = application.NewActionService(
		inspector,
		application.NewReprojectService(app.Repository, transformers, metricsCollector, logger, defaultTarget),
		application.NewRepairService(app.Repository, app.Engine, transformers, metricsCollector, logger, defaultTarget),
		application.NewJoinService(app.Repository, transformers, metricsCollector, logger,
			application.JoinServiceConfig{WriteResult: cfg.Join.WriteResult}),
		ws,
		app.Registry,
		logger,
		application.ActionServiceConfig{
			DefaultTarget:    defaultTarget,
			DefaultPredicate: predicate,
		},
	)

	app.HealthService = application.NewHealthService(app.Registry, app.Engine)

	if cfg.Sync.Enabled && app.Storage != nil {
		syncService, err := application.NewSyncService(app.Registry, cfg.Sync.Schedule, logger)
		if err != nil {
			return nil, fmt.Errorf("initializing sync: %w", err)
		}
		app.SyncService = syncService
	}

	if cfg.Watch.Enabled {
		w, err := watcher.New(
			watcher.Config{
				Paths:    []string{ws.Root()},
				Debounce: cfg.Watch.Debounce,
			},
			app.handleFileEvent,
			logger,
		)
		if err != nil {
			logger.Warn("failed to initialize file watcher", "error", err)
		} else {
			app.Watcher = w
		}
	}

	return app, nil
}

// NewHTTP adds the HTTP and TLS servers.
func (a *App) NewHTTP() error {
	// typed nils must not reach the interface parameters
	var syncTrigger httpAdapter.SyncTrigger
	if a.SyncService != nil {
		syncTrigger = a.SyncService
	}
	var httpMetrics httpAdapter.Metrics
	if a.Metrics != nil {
		httpMetrics = a.Metrics
	}

	a.HTTPServer = httpAdapter.NewServer(
		a.Config.Server,
		a.Actions,
		a.Registry,
		a.HealthService,
		syncTrigger,
		a.Workspace,
		httpMetrics,
		a.Config.Metrics.Path,
		a.Logger,
	)

	if !a.Config.TLS.Enabled {
		return nil
	}

	tlsServer, err := tlsAdapter.NewServer(
		tlsAdapter.Config{
			Enabled:      a.Config.TLS.Enabled,
			Domains:      a.Config.TLS.Domains,
			Email:        a.Config.TLS.Email,
			CacheDir:     a.Config.TLS.CacheDir,
			Staging:      a.Config.TLS.Staging,
			ReadTimeout:  a.Config.Server.ReadTimeout,
			WriteTimeout: a.Config.Server.WriteTimeout,
			DNS: tlsAdapter.DNSConfig{
				SubscriptionID:    a.Config.TLS.DNS.SubscriptionID,
				ResourceGroupName: a.Config.TLS.DNS.ResourceGroupName,
				ClientID:          a.Config.TLS.DNS.ClientID,
			},
		},
		a.HTTPServer.Router(),
		a.Logger,
	)
	if err != nil {
		return fmt.Errorf("initializing TLS: %w", err)
	}
	a.TLSServer = tlsServer
	return nil
}

// Load fetches remote datasets and catalogues the workspace.
func (a *App) Load(ctx context.Context) {
	if err := a.Registry.LoadAll(ctx); err != nil {
		a.Logger.Warn("failed to load datasets from storage", "error", err)
	}
	if err := a.Registry.Scan(ctx); err != nil {
		a.Logger.Warn("failed to scan workspace", "error", err)
	}
}

// startBackground starts the watcher and the sync scheduler.
func (a *App) startBackground(ctx context.Context) {
	if a.Watcher != nil {
		if err := a.Watcher.Start(ctx); err != nil {
			a.Logger.Warn("failed to start file watcher", "error", err)
		}
	}
	if a.SyncService != nil {
		if err := a.SyncService.Start(ctx); err != nil {
			a.Logger.Warn("failed to start sync service", "error", err)
		}
	}
}

// Start loads the workspace and serves HTTP until shut down.
func (a *App) Start(ctx context.Context) error {
	if a.HTTPServer == nil {
		if err := a.NewHTTP(); err != nil {
			return err
		}
	}

	a.Load(ctx)
	a.startBackground(ctx)

	if a.TLSServer != nil {
		return a.TLSServer.ListenAndServe(a.Config.Server.Address())
	}
	return a.HTTPServer.Start()
}

// ServeMCP loads the workspace and serves the actions as MCP tools on
// stdio until the client disconnects.
func (a *App) ServeMCP(ctx context.Context) error {
	a.Load(ctx)
	a.startBackground(ctx)

	return mcpAdapter.NewServer(a.Actions, a.Version, a.Logger).Run(ctx)
}

// Shutdown gracefully shuts down all components.
func (a *App) Shutdown(ctx context.Context) error {
	a.Logger.Info("shutting down application")

	if a.Watcher != nil {
		_ = a.Watcher.Stop()
	}

	if a.SyncService != nil {
		a.SyncService.Stop()
	}

	if a.TLSServer != nil {
		if err := a.TLSServer.Shutdown(ctx); err != nil {
			a.Logger.Error("TLS server shutdown error", "error", err)
		}
	} else if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Error("HTTP server shutdown error", "error", err)
		}
	}

	return a.Close()
}

// Close releases the geometry engine.
func (a *App) Close() error {
	if a.Spatialite != nil {
		return a.Spatialite.Close()
	}
	return nil
}

// handleFileEvent keeps the catalog in step with the workspace and
// optionally repairs new or changed datasets.
func (a *App) handleFileEvent(ctx context.Context, event watcher.Event) error {
	a.Logger.Info("file event", "path", event.Path, "operation", event.Operation.String())

	switch event.Operation {
	case watcher.OpCreate, watcher.OpModify:
		info, err := a.Registry.Register(ctx, event.Path)
		if err != nil {
			return err
		}
		if a.Config.Watch.AutoRepair && !domain.IsDerivedPath(event.Path) {
			result := a.Actions.Invoke(ctx, application.ActionRepair, map[string]string{
				"file_path": info.Path,
			})
			if !result.OK() {
				a.Logger.Warn("auto repair failed", "path", info.Path, "kind", result.Kind, "message", result.Message)
			}
		}
		return nil

	case watcher.OpDelete:
		a.Registry.Unregister(event.Path)
		return nil
	}

	return nil
}

// initStorage initializes the appropriate storage adapter.
func initStorage(ctx context.Context, cfg config.StorageConfig) (output.ObjectStorage, error) {
	switch output.StorageType(cfg.Type) {
	case output.StorageTypeLocal:
		return storage.NewLocalStorage(cfg.LocalPath), nil

	case output.StorageTypeS3:
		return storage.NewS3Storage(ctx, storage.S3Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Prefix:          cfg.S3.Prefix,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		})

	case output.StorageTypeAzure:
		return storage.NewAzureStorage(storage.AzureConfig{
			Container:        cfg.Azure.Container,
			AccountName:      cfg.Azure.AccountName,
			AccountKey:       cfg.Azure.AccountKey,
			ConnectionString: cfg.Azure.ConnectionString,
			Prefix:           cfg.Azure.Prefix,
		})

	case output.StorageTypeHTTP:
		return storage.NewHTTPStorage(storage.HTTPConfig{
			BaseURL:   cfg.HTTP.BaseURL,
			IndexFile: cfg.HTTP.IndexFile,
			Timeout:   cfg.HTTP.Timeout,
			Username:  cfg.HTTP.Username,
			Password:  cfg.HTTP.Password,
		}), nil

	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
