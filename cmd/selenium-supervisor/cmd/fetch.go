package cmd

import (
	"fmt"

	"github.com/GeneArguelles/selenium-mcp/pkg/artifact"
	"github.com/GeneArguelles/selenium-mcp/pkg/supervisor"
	"github.com/spf13/cobra"
)

var (
	fetchBrowser bool
	fetchForce   bool
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Install ChromeDriver (and optionally Chrome) without starting the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := supervisor.LoadCatalogue(cfg)
		if err != nil {
			return supervisor.ErrInvalidConfiguration(err)
		}

		driver, browser := supervisor.Specs(cfg, cat)
		specs := []artifact.Spec{driver}
		if fetchBrowser {
			specs = append(specs, browser)
		}

		fetcher := supervisor.NewFetcher(cfg, logger)
		for _, spec := range specs {
			install := fetcher.Ensure
			if fetchForce {
				install = fetcher.Reinstall
			}

			bin, err := install(cmd.Context(), spec)
			if err != nil {
				printErr(supervisor.ErrFetchFailed(spec, 1, err))
				exitCode = 1
				return fmt.Errorf("fetch %s: %w", spec.Name, err)
			}

			uiInstance.Success(fmt.Sprintf("%s ready", spec.Name))
			uiInstance.KeyValue("path", bin.Path)
			uiInstance.KeyValue("version", bin.Version)
		}
		return nil
	},
}

func init() {
	fetchCmd.Flags().BoolVar(&fetchBrowser, "browser", false, "Also install Chrome")
	fetchCmd.Flags().BoolVar(&fetchForce, "force", false, "Reinstall even when already present")
	rootCmd.AddCommand(fetchCmd)
}
