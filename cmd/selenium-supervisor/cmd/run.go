package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GeneArguelles/selenium-mcp/pkg/supervisor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the startup supervisor (default)",
	RunE:  runSupervisor,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runSupervisor(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []supervisor.Option{supervisor.WithLogger(logger)}

	if cfg.MetricsPort > 0 {
		pm := supervisor.NewPrometheusMetrics("selenium_supervisor")
		opts = append(opts, supervisor.WithMetrics(pm))

		srv := serveMetrics(pm, cfg.MetricsPort)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	sup, err := supervisor.New(cfg, opts...)
	if err != nil {
		return err
	}

	run, err := sup.Run(ctx)
	exitCode = run.ExitCode()

	if errors.Is(err, context.Canceled) {
		logger.Info("supervisor stopped by signal", "run_id", run.ID)
		return nil
	}
	return err
}

func serveMetrics(pm *supervisor.PrometheusMetrics, port int) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(pm.Registry(), promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("metrics listener starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics listener failed", "error", err)
		}
	}()
	return srv
}
