package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/taskforcehq/taskforce-forecast/internal/api"
	"github.com/taskforcehq/taskforce-forecast/internal/config"
	"github.com/taskforcehq/taskforce-forecast/internal/httpapi"
	"github.com/taskforcehq/taskforce-forecast/internal/jobs"
	"github.com/taskforcehq/taskforce-forecast/internal/metrics"
	"github.com/taskforcehq/taskforce-forecast/internal/repo"
	"github.com/taskforcehq/taskforce-forecast/internal/utils"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the gRPC and HTTP APIs with scheduled dataset refresh",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), *configPath)
		},
	}
}

func runServe(parent context.Context, configPath string) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := loadApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()
	logger := a.logger
	logger.Info("starting taskforce-forecast",
		slog.String("version", version),
		slog.String("grpc_address", a.cfg.Server.Address),
		slog.String("http_address", a.cfg.Server.HTTPAddress),
	)

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	server, err := api.NewServer(a.cfg.Server, api.NewForecastHandler(logger, a.service))
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr: a.cfg.Server.HTTPAddress,
		Handler: httpapi.NewRouter(httpapi.Options{
			Logger:         logger,
			Service:        a.service,
			AllowedOrigins: a.cfg.Server.AllowedOrigins,
			RateLimitRPS:   a.cfg.Server.RateLimitRPS,
			RateLimitBurst: a.cfg.Server.RateLimitBurst,
			Metrics:        promhttp.Handler(),
		}),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	refresher := jobs.NewDatasetRefresher(a.dataset, a.cfg.Dataset.RefreshInterval, logger)
	go func() {
		if err := refresher.Start(ctx); err != nil {
			logger.Error("dataset refresher exited", slog.Any("error", err))
		}
	}()

	go func() {
		logger.Info("http server listening", slog.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server exited", slog.Any("error", err))
			stop()
		}
	}()

	go func() {
		if serveErr := server.Start(); serveErr != nil {
			logger.Error("gRPC server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.GracefulTimeout)
	defer cancel()
	server.Shutdown(shutdownCtx)
	if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Warn("http server shutdown", slog.Any("error", err))
	}

	logger.Info("taskforce-forecast stopped", slog.Duration("forecast_p95", a.service.LatencyP95()))
	return nil
}

type forecastFlags struct {
	fields  api.ForecastRequestFields
	horizon int
	peak    int
	csvPath string
	indent  bool
}

func newForecastCmd(configPath *string) *cobra.Command {
	var flags forecastFlags
	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Run one forecast and print it as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runForecast(cmd, *configPath, flags)
		},
	}
	f := cmd.Flags()
	f.StringVar(&flags.fields.Population, "population", "nurse", "Population: nurse or doctor")
	f.StringVar(&flags.fields.Mode, "mode", "arithmetic", "Growth mode: arithmetic, geometric or bell_curve")
	f.Float64Var(&flags.fields.Increment, "increment", 0, "Daily increment (arithmetic)")
	f.Float64Var(&flags.fields.Ratio, "ratio", 1, "Daily ratio (geometric)")
	f.IntVar(&flags.peak, "peak-offset-days", 0, "Days until the peak (bell_curve)")
	f.Float64Var(&flags.fields.UpstreamRatio, "upstream-ratio", 1, "Daily ratio before the peak (bell_curve)")
	f.Float64Var(&flags.fields.DownstreamRatio, "downstream-ratio", 1, "Daily ratio after the peak (bell_curve)")
	f.IntVar(&flags.horizon, "horizon-days", 14, "Number of days to project")
	f.StringVar(&flags.fields.DisplayStart, "display-start", "", "First displayed day (YYYY-MM-DD)")
	f.StringVar(&flags.fields.DisplayEnd, "display-end", "", "Last displayed day (YYYY-MM-DD)")
	f.StringVar(&flags.csvPath, "csv", "", "Read history from this CSV instead of the configured source")
	f.BoolVar(&flags.indent, "indent", true, "Indent JSON output")
	return cmd
}

func runForecast(cmd *cobra.Command, configPath string, flags forecastFlags) error {
	if flags.csvPath != "" {
		os.Setenv("TASKFORCE_DATASET_CSV", flags.csvPath)
	}
	a, err := loadApp(cmd.Context(), configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	horizon, peak := float64(flags.horizon), float64(flags.peak)
	flags.fields.HorizonDays = &horizon
	flags.fields.PeakOffsetDays = &peak
	req, err := flags.fields.ToDomain()
	if err != nil {
		return codeError(2, "%v", err)
	}
	result, err := a.service.Forecast(cmd.Context(), req)
	if err != nil {
		if utils.IsConfiguration(err) || utils.IsContractViolation(err) {
			return codeError(2, "%v", err)
		}
		return err
	}
	for _, w := range result.Result.Warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s: %s\n", w.Kind, w.Message)
	}
	return writeJSON(cmd, api.ForecastPayload(result), flags.indent)
}

func newCheckDataCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check-data",
		Short: "Report whether the dataset holds yesterday's row; exits 3 when stale",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			fresh, err := jobs.NewDatasetRefresher(a.dataset, 0, a.logger).RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			if err := writeJSON(cmd, api.FreshnessPayload(fresh), true); err != nil {
				return err
			}
			if !fresh.UpToDate {
				return codeError(3, "dataset has to be updated: last row %s, expected %s",
					utils.FormatDate(fresh.LastDate), utils.FormatDate(fresh.Expected))
			}
			return nil
		},
	}
}

func newMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations for the dataset table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Database.URL == "" {
				return codeError(2, "database.url is not configured")
			}
			if err := repo.Migrate(cfg.Database.URL, cfg.Database.MigrationsPath); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func writeJSON(cmd *cobra.Command, v any, indent bool) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	if indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
