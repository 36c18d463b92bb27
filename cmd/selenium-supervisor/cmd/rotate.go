package cmd

import (
	"fmt"

	"github.com/GeneArguelles/selenium-mcp/pkg/logrotate"
	"github.com/spf13/cobra"
)

var rotateCmd = &cobra.Command{
	Use:   "rotate-logs",
	Short: "Start a new deployment log directory and prune old ones",
	RunE: func(cmd *cobra.Command, args []string) error {
		dep, err := logrotate.New(cfg.LogRoot, cfg.LogKeep, logrotate.WithLogger(logger)).Rotate()
		if err != nil {
			exitCode = 1
			return err
		}

		uiInstance.Success("created " + dep.Dir)
		uiInstance.KeyValue("moved", fmt.Sprintf("%d files", len(dep.Moved)))
		for _, p := range dep.Pruned {
			uiInstance.KeyValue("pruned", p)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rotateCmd)
}
