package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/eventscope/internal/api"
	"github.com/IshaanNene/eventscope/internal/export"
	"github.com/IshaanNene/eventscope/internal/schedule"
)

var (
	apiPort      int
	exportReport bool
)

// serveCmd creates the "serve" subcommand.
func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the scraping API over HTTP",
		RunE:  runServe,
	}

	cmd.Flags().IntVar(&apiPort, "port", 0, "API port (default from config)")
	cmd.Flags().BoolVar(&exportReport, "export", false, "also export every event report with the configured exporter")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	apiCfg := a.cfg.API
	if apiPort > 0 {
		apiCfg.Port = apiPort
	}

	srv := api.NewServer(apiCfg, a.orch, a.logger)
	if exportReport {
		exp, err := export.New(a.cfg.Export, a.logger)
		if err != nil {
			return fmt.Errorf("create exporter: %w", err)
		}
		defer exp.Close()
		srv.SetExporter(exp)
	}

	metricsSrv := a.startMetrics()

	ctx, stop := signalContext()
	defer stop()

	if err := srv.Start(); err != nil {
		return fmt.Errorf("start API: %w", err)
	}

	<-ctx.Done()
	a.logger.Info("received signal, shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	return srv.Shutdown(shutdownCtx)
}

// startMetrics starts the metrics endpoint when enabled.
func (a *app) startMetrics() *http.Server {
	if !a.cfg.Metrics.Enabled {
		return nil
	}
	return a.metrics.StartServer(a.cfg.Metrics.Port, a.cfg.Metrics.Path)
}

// scheduleCmd creates the "schedule" subcommand.
func scheduleCmd() *cobra.Command {
	var runOnce bool

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the event scrapes listed under schedule.jobs",
		Long: `Run each configured job on its cron spec (UTC) and export every report
with the configured exporter. Jobs without an event date use the run date.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if len(a.cfg.Schedule.Jobs) == 0 {
				return fmt.Errorf("no jobs under schedule.jobs")
			}

			exp, err := export.New(a.cfg.Export, a.logger)
			if err != nil {
				return fmt.Errorf("create exporter: %w", err)
			}
			defer exp.Close()

			sched := schedule.New(a.orch, exp, a.metrics, a.logger)
			if err := sched.AddAll(a.cfg.Schedule); err != nil {
				return err
			}

			ctx, stop := signalContext()
			defer stop()

			if runOnce {
				for _, job := range sched.Jobs() {
					if _, err := sched.Run(ctx, job); err != nil {
						return err
					}
				}
				return nil
			}

			metricsSrv := a.startMetrics()
			sched.Start()
			a.logger.Info("scheduler running", "jobs", len(sched.Jobs()))

			<-ctx.Done()
			a.logger.Info("received signal, stopping scheduler...")
			sched.Stop()
			if metricsSrv != nil {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = metricsSrv.Shutdown(shutdownCtx)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&runOnce, "once", false, "run every job once now and exit")
	return cmd
}
