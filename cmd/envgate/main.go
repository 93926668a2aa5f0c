package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuemby/envgate/pkg/api"
	"github.com/cuemby/envgate/pkg/configrepo"
	"github.com/cuemby/envgate/pkg/log"
	"github.com/cuemby/envgate/pkg/manager"
	"github.com/cuemby/envgate/pkg/metrics"
	"github.com/cuemby/envgate/pkg/settings"
	"github.com/cuemby/envgate/pkg/tracing"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "envgate",
	Short: "envgate - environment membership and job routing",
	Long: `envgate keeps track of which pipelines and agents belong to which
environment, and decides which scheduled jobs an agent may pick up.

Pipelines in an environment only run on that environment's agents.
Pipelines outside every environment only run on agents outside every
environment.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"envgate version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().StringP("config", "c", "", "Settings YAML file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Emit JSON logs")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(routeCmd)
}

// loadSettings reads the settings file when given and applies flag overrides
func loadSettings(cmd *cobra.Command) (*settings.Settings, error) {
	path, _ := cmd.Flags().GetString("config")

	s := settings.Default()
	if path != "" {
		loaded, err := settings.Load(path)
		if err != nil {
			return nil, err
		}
		s = loaded
	}

	if cmd.Flags().Changed("log-level") {
		level, _ := cmd.Flags().GetString("log-level")
		s.Server.Log.Level = log.Level(level)
	}
	if cmd.Flags().Changed("log-json") {
		s.Server.Log.JSONOutput, _ = cmd.Flags().GetBool("log-json")
	}
	if cmd.Flags().Changed("data-dir") {
		s.Server.DataDir, _ = cmd.Flags().GetString("data-dir")
	}
	if cmd.Flags().Changed("metrics-addr") {
		s.Server.MetricsAddr, _ = cmd.Flags().GetString("metrics-addr")
	}
	if cmd.Flags().Changed("resync-interval") {
		s.Server.ResyncInterval, _ = cmd.Flags().GetDuration("resync-interval")
	}
	if cmd.Flags().Changed("config-repo-dir") {
		s.Server.ConfigRepoDir, _ = cmd.Flags().GetString("config-repo-dir")
	}
	if cmd.Flags().Changed("schedule-interval") {
		s.Server.ScheduleInterval, _ = cmd.Flags().GetDuration("schedule-interval")
	}

	log.Init(s.Server.Log)
	return s, nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the envgate server",
	Long: `Run the envgate server.

The configuration is loaded from the data directory. On first start, or
with --force-seed, the seed section of the settings file is applied.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		forceSeed, _ := cmd.Flags().GetBool("force-seed")

		metrics.SetVersion(Version)

		tracer, err := tracing.Init(s.Server.Tracing, Version)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracer.Shutdown(shutdownCtx); err != nil {
				log.Errorf("Failed to flush traces", err)
			}
		}()

		mgr, err := manager.NewManager(&manager.Config{
			DataDir:          s.Server.DataDir,
			ResyncInterval:   s.Server.ResyncInterval,
			ScheduleInterval: s.Server.ScheduleInterval,
		})
		if err != nil {
			return fmt.Errorf("failed to create manager: %w", err)
		}

		if err := mgr.Seed(s.Seed, forceSeed); err != nil {
			_ = mgr.Close()
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		mgr.Start(ctx)

		var repoWatcher *configrepo.Watcher
		if s.Server.ConfigRepoDir != "" {
			repoWatcher = configrepo.NewWatcher(s.Server.ConfigRepoDir, mgr)
			if err := repoWatcher.Start(ctx); err != nil {
				_ = mgr.Close()
				return err
			}
		}

		healthServer := api.NewHealthServer(mgr, Version)
		errCh := make(chan error, 1)
		go func() {
			errCh <- healthServer.Start(ctx, s.Server.MetricsAddr)
		}()

		log.Logger.Info().
			Str("data_dir", s.Server.DataDir).
			Str("metrics_addr", s.Server.MetricsAddr).
			Dur("resync_interval", s.Server.ResyncInterval).
			Msg("envgate is running")

		select {
		case <-ctx.Done():
			log.Info("Shutting down")
		case err := <-errCh:
			if err != nil {
				log.Errorf("Health server error", err)
			}
		}

		stop()
		if repoWatcher != nil {
			repoWatcher.Stop()
		}
		if err := mgr.Close(); err != nil {
			return fmt.Errorf("failed to shutdown: %w", err)
		}
		log.Info("Shutdown complete")
		return nil
	},
}

func init() {
	serveCmd.Flags().String("data-dir", settings.DefaultDataDir, "Data directory for configuration and agents")
	serveCmd.Flags().String("metrics-addr", settings.DefaultMetricsAddr, "Address for health and metrics endpoints")
	serveCmd.Flags().Duration("resync-interval", 30*time.Second, "Interval between full membership rebuilds")
	serveCmd.Flags().Duration("schedule-interval", 5*time.Second, "Interval between job scheduling cycles")
	serveCmd.Flags().String("config-repo-dir", "", "Directory of config repository YAML files to watch")
	serveCmd.Flags().Bool("force-seed", false, "Apply the settings seed even if configuration exists")
}
