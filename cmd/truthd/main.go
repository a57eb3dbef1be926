// truthd is the Truth Engine orchestration daemon: it classifies
// incoming claims, fans them out across tiered verification sources, and
// streams verdicts to clients over a persistent connection.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"truthengine/internal/config"
	"truthengine/internal/logging"
	"truthengine/internal/registry"
	"truthengine/internal/session"
	"truthengine/internal/sources"
	"truthengine/internal/stream"
)

const version = "0.3.0"

var (
	// Global flags
	verbose    bool
	configPath string
	addr       string

	// Logger
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "truthd",
	Short: "Truth Engine verification orchestration daemon",
	Long: `truthd runs the real-time verification orchestration core.

A submitted claim is classified, planned across tiered verification
sources (authoritative checks down to behavioral heuristics) and
capability providers, executed concurrently with partial-failure
tolerance, and resolved into a verdict through the strict trust-tier
hierarchy. Progress streams to clients over a persistent websocket
connection with reconnect/resume semantics.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapCfg := zap.NewProductionConfig()
		if verbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the verification server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the truthd version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("truthd %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")
	rootCmd.PersistentFlags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	rootCmd.AddCommand(serveCmd, versionCmd)
}

func serve() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if addr != "" {
		cfg.Stream.Addr = addr
	}
	if verbose {
		cfg.Logging.DebugMode = true
	}

	if err := logging.Initialize(cfg.DataDir, cfg.Logging.LoggerConfig()); err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}
	defer logging.CloseAll()
	logging.Boot("truthd %s starting on %s", version, cfg.Stream.Addr)

	reg := registry.New()
	if err := sources.RegisterDefaults(reg, cfg); err != nil {
		return fmt.Errorf("register sources: %w", err)
	}
	reg.Seal()
	for kind, n := range reg.Capabilities() {
		logging.Boot("capability %s: %d provider(s)", kind, n)
	}
	logging.Boot("%d verification sources registered", len(reg.List()))

	manager := session.NewManager(cfg, reg, nil)
	defer manager.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Live-reload the logging section on config edits.
	if configPath != "" {
		watcher, err := config.NewWatcher(configPath, func(updated *config.Config) {
			logging.Reconfigure(updated.Logging.LoggerConfig())
			logger.Info("configuration reloaded", zap.String("path", configPath))
		})
		if err != nil {
			logger.Warn("config watcher unavailable", zap.Error(err))
		} else if err := watcher.Start(ctx); err != nil {
			logger.Warn("config watcher failed to start", zap.Error(err))
		} else {
			defer watcher.Stop()
		}
	}

	logger.Info("truthd listening",
		zap.String("addr", cfg.Stream.Addr),
		zap.String("version", version))

	srv := stream.NewServer(cfg, manager)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	logger.Info("truthd stopped")
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
