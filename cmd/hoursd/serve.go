package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"openhours/internal/api"
	"openhours/internal/config"
	"openhours/internal/database"
	"openhours/internal/metrics"
	"openhours/internal/scheduler"
	"openhours/shared/audit"
)

var serveInMemory bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the reconciliation loop and the HTTP API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveInMemory, "memory", false, "keep all state in memory (development only)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, logger, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	metrics.Register()

	a, err := newApp(cfg, &logger, serveInMemory)
	if err != nil {
		return err
	}
	defer a.Close()

	sched := scheduler.NewScheduler(scheduler.Config{Interval: cfg.SchedulerInterval()}, a.svc, nil, &logger)

	// The initial load is synchronous so the first tick sees the registry.
	if err := config.WatchBusinesses(ctx, cfg.BusinessesConfigPath, 30*time.Second, &logger, func(updated *config.BusinessesConfig) {
		if err := a.syncBusinesses(ctx, updated); err != nil {
			logger.Error().Err(err).Msg("failed to apply businesses config")
			return
		}
		logger.Info().Int("businesses", len(updated.Businesses)).Msg("businesses config applied")
		sched.Trigger()
	}); err != nil {
		logger.Error().Err(err).Str("path", cfg.BusinessesConfigPath).Msg("businesses config unavailable; using stored registry")
	}

	maint := scheduler.NewMaintenance(cfg.Location(), &logger)
	if err := registerMaintenance(maint, a, cfg); err != nil {
		return err
	}
	maint.Start()

	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8090
	}
	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, a.readinessChecks(), &logger)

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	var httpAPI *api.HTTPServer
	if cfg.API.Enabled {
		httpAPI = api.NewHTTPServer(api.Config{
			Port:        cfg.API.Port,
			ToggleRate:  cfg.API.ToggleRatePerSecond,
			ToggleBurst: cfg.API.ToggleBurst,
		}, a.svc, &logger)
		go func() {
			if err := httpAPI.Start(); err != nil {
				logger.Error().Err(err).Msg("API server error")
				stop()
			}
		}()
	}

	sched.Start(ctx)
	logger.Info().Msg("hoursd started")

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if httpAPI != nil {
		if err := httpAPI.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("API shutdown")
		}
	}
	sched.Stop()
	maint.Stop(shutdownCtx)

	logger.Info().Msg("hoursd stopped")
	return nil
}

func registerMaintenance(maint *scheduler.Maintenance, a *app, cfg *config.Config) error {
	if cfg.Backup.Enabled && a.db != nil {
		backups := database.NewBackupService(a.db, cfg.Backup, a.logger)
		if err := maint.AddJob("backup", cfg.Backup.Cron, backups.Run); err != nil {
			return err
		}
	}

	if cfg.Audit.RetentionDays > 0 {
		exporter := audit.NewExporter(a.audit, nil, a.logger)
		err := maint.AddJob("audit_cleanup", cfg.Audit.CleanupCron, func(ctx context.Context) {
			if _, err := exporter.Cleanup(ctx, cfg.Audit.RetentionDays); err != nil {
				a.logger.Error().Err(err).Msg("audit cleanup failed")
			}
		})
		if err != nil {
			return err
		}
	}
	return nil
}
