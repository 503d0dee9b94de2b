// Package main provides the entry point for the geofix dataset repair service.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jobrunner/geofix/internal/app"
	httpAdapter "github.com/jobrunner/geofix/internal/adapters/http"
	"github.com/jobrunner/geofix/internal/application"
	"github.com/jobrunner/geofix/internal/config"
	"github.com/jobrunner/geofix/internal/domain"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

var (
	cfgFile    string
	jsonOutput bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "geofix",
	Short: "geofix - CRS and geometry repair for vector datasets",
	Long: `geofix inspects, reprojects and repairs GeoJSON and shapefile datasets
and joins them spatially.

The actions are available as a REST API, as MCP tools for planning agents
and as one-shot commands.

Features:
  - Layer metadata (CRS, schema, geometry types, validity)
  - Reprojection between coordinate reference systems
  - Geometry repair with CRS reconciliation
  - Spatial joins (intersects, contains, within)
  - Native or SpatiaLite geometry engine
  - Multiple storage backends (local, AWS S3, Azure, HTTP)
  - Workspace watching with optional auto-repair
  - TLS with automatic certificate management
  - Prometheus metrics`,
	SilenceUsage: true,
	RunE:         runServer,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the REST API",
	RunE:  runServer,
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the actions as MCP tools on stdio",
	RunE:  runMCP,
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Print CRS, schema and geometry types of a dataset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAction(cmd, application.ActionGetLayerMetadata, map[string]string{
			"file_path": args[0],
		})
	},
}

var reprojectCmd = &cobra.Command{
	Use:   "reproject <file>",
	Short: "Reproject a dataset into a target CRS",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, _ := cmd.Flags().GetString("target-crs")
		return runAction(cmd, application.ActionReproject, map[string]string{
			"source_path": args[0],
			"tgt_crs":     target,
		})
	},
}

var repairCmd = &cobra.Command{
	Use:   "repair <file>",
	Short: "Repair invalid geometries and reconcile the CRS",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, _ := cmd.Flags().GetString("target-crs")
		return runAction(cmd, application.ActionRepair, map[string]string{
			"file_path":  args[0],
			"target_crs": target,
		})
	},
}

var joinCmd = &cobra.Command{
	Use:   "join <source> <target>",
	Short: "Repair, align and spatially join two datasets",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		predicate, _ := cmd.Flags().GetString("predicate")
		return runAction(cmd, application.ActionRepairAndJoin, map[string]string{
			"source_path": args[0],
			"target_path": args[1],
			"predicate":   predicate,
		})
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("geofix %s\n", version)
		fmt.Printf("  Commit:     %s\n", commit)
		fmt.Printf("  Build Date: %s\n", buildDate)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "log format (json, text)")
	rootCmd.PersistentFlags().String("workspace", "./data", "dataset workspace directory")
	rootCmd.PersistentFlags().String("engine", config.EngineNative, "geometry engine (native, spatialite)")

	// Server flags
	for _, cmd := range []*cobra.Command{rootCmd, serveCmd} {
		cmd.Flags().String("host", "0.0.0.0", "server host")
		cmd.Flags().Int("port", 8080, "server port")
		cmd.Flags().Bool("tls", false, "enable TLS")
		cmd.Flags().StringSlice("tls-domains", nil, "TLS domains")
		cmd.Flags().String("tls-email", "", "TLS email for Let's Encrypt")
		cmd.Flags().String("storage-type", "local", "storage type (local, s3, azure, http)")
		cmd.Flags().String("storage-path", "", "local storage path to mirror into the workspace")
		cmd.Flags().StringSlice("cors", nil, "allowed CORS origins (e.g., https://example.com,*.sub.domain.tld)")
	}

	// Action flags
	for _, cmd := range []*cobra.Command{inspectCmd, reprojectCmd, repairCmd, joinCmd} {
		cmd.Flags().BoolVar(&jsonOutput, "json", false, "print the full result as JSON")
	}
	reprojectCmd.Flags().String("target-crs", "", "target CRS (default: repair.default_target_crs)")
	repairCmd.Flags().String("target-crs", "", "target CRS (default: repair.default_target_crs)")
	joinCmd.Flags().String("predicate", "", "spatial predicate (default: join.default_predicate)")

	// Bind flags to viper
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("workspace.path", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("engine.type", rootCmd.PersistentFlags().Lookup("engine"))

	rootCmd.AddCommand(serveCmd, mcpCmd, inspectCmd, reprojectCmd, repairCmd, joinCmd, versionCmd)
}

// bindServerFlags binds the server flags of the command being run.
func bindServerFlags(cmd *cobra.Command) {
	_ = viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("tls.enabled", cmd.Flags().Lookup("tls"))
	_ = viper.BindPFlag("tls.domains", cmd.Flags().Lookup("tls-domains"))
	_ = viper.BindPFlag("tls.email", cmd.Flags().Lookup("tls-email"))
	_ = viper.BindPFlag("storage.type", cmd.Flags().Lookup("storage-type"))
	_ = viper.BindPFlag("storage.local_path", cmd.Flags().Lookup("storage-path"))
	_ = viper.BindPFlag("server.cors.allowed_origins", cmd.Flags().Lookup("cors"))
}

func initConfig() {
	config.Defaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

func runServer(cmd *cobra.Command, _ []string) error {
	bindServerFlags(cmd)

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging, os.Stdout)
	slog.SetDefault(logger)
	httpAdapter.SetAPIVersion(version)

	logger.Info("starting geofix",
		"version", version,
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"workspace", cfg.Workspace.Path,
		"engine", cfg.Engine.Type,
		"storage_type", cfg.Storage.Type,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	application, err := app.New(ctx, cfg, version, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	if err := application.NewHTTP(); err != nil {
		_ = application.Close()
		return err
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "address", cfg.Server.Address())
		if err := application.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	var runErr error
	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
	case runErr = <-serverErr:
		logger.Error("server error", "error", runErr)
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	logger.Info("shutting down server")
	if err := application.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		return err
	}

	logger.Info("server stopped")
	return runErr
}

func runMCP(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// stdout carries the protocol
	logger := setupLogger(cfg.Logging, os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, version, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}

	runErr := application.ServeMCP(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}

// runAction runs a single action against the workspace and prints its
// result. A failed action exits non-zero.
func runAction(cmd *cobra.Command, name string, args map[string]string) error {
	// one-shot commands never watch or sync
	viper.Set("watch.enabled", false)
	viper.Set("sync.enabled", false)
	viper.Set("metrics.enabled", false)

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging, os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, version, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() { _ = application.Close() }()

	for k, v := range args {
		if v == "" {
			delete(args, k)
		}
	}
	result := application.Actions.Invoke(ctx, name, args)

	if err := printResult(cmd.OutOrStdout(), result); err != nil {
		return err
	}
	if !result.OK() {
		return fmt.Errorf("%s failed (%s)", name, result.Kind)
	}
	return nil
}

func printResult(w io.Writer, result domain.Result) error {
	if !jsonOutput {
		_, err := fmt.Fprintln(w, result.Message)
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		domain.Result
		DurationMS int64 `json:"duration_ms"`
	}{result, result.Duration.Milliseconds()})
}

func setupLogger(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Value = slog.StringValue(time.Now().UTC().Format(time.RFC3339))
			}
			return a
		},
	}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler)
}
