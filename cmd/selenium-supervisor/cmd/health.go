package cmd

import (
	"fmt"

	"github.com/GeneArguelles/selenium-mcp/cmd/selenium-supervisor/internal/ui"
	"github.com/GeneArguelles/selenium-mcp/pkg/health"
	"github.com/GeneArguelles/selenium-mcp/pkg/supervisor"
	"github.com/spf13/cobra"
)

var healthWait bool

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Probe the running server once (or until healthy with --wait)",
	RunE: func(cmd *cobra.Command, args []string) error {
		m := health.NewMonitor(supervisor.NewProber(cfg), health.WithLogger(logger))

		var snap health.Snapshot
		if healthWait {
			snap = m.AwaitHealthy(cmd.Context(), cfg.HealthRetries, cfg.HealthInterval)
		} else {
			snap = m.Poll(cmd.Context())
			snap.Attempt = 1
		}

		uiInstance.Header("Server health")
		uiInstance.KeyValue("status", ui.Status(string(snap.Status)))
		uiInstance.KeyValue("phase", snap.Phase)
		uiInstance.KeyValue("uptime", fmt.Sprintf("%.0fs", snap.UptimeSeconds))
		uiInstance.KeyValue("chrome_path", snap.ChromePath)
		uiInstance.KeyValue("attempts", fmt.Sprintf("%d", snap.Attempt))
		if snap.Err != nil {
			uiInstance.KeyValue("error", snap.Err.Error())
		}

		if !snap.Healthy() {
			exitCode = 1
		}
		return nil
	},
}

func init() {
	healthCmd.Flags().BoolVar(&healthWait, "wait", false, "Poll up to --health-retries times")
	rootCmd.AddCommand(healthCmd)
}
