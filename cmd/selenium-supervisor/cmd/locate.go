package cmd

import (
	"github.com/GeneArguelles/selenium-mcp/pkg/artifact"
	"github.com/GeneArguelles/selenium-mcp/pkg/locator"
	"github.com/GeneArguelles/selenium-mcp/pkg/supervisor"
	"github.com/spf13/cobra"
)

var locateCmd = &cobra.Command{
	Use:   "locate",
	Short: "Show which Chrome and ChromeDriver binaries would be used",
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := supervisor.LoadCatalogue(cfg)
		if err != nil {
			return err
		}
		driverSpec, browserSpec := supervisor.Specs(cfg, cat)
		l := locator.New(locator.WithLogger(logger))

		uiInstance.Header("Binaries (" + string(cfg.Mode()) + " mode)")
		tbl := uiInstance.NewTable("ARTIFACT", "PATH", "VERSION")

		missing := 0
		for _, c := range []struct {
			name       artifact.Name
			candidates []string
		}{
			{artifact.Browser, locator.BrowserCandidates(cfg, browserSpec)},
			{artifact.Driver, locator.DriverCandidates(cfg, driverSpec)},
		} {
			bin, ok := l.Locate(cmd.Context(), c.name, c.candidates)
			if !ok {
				missing++
				tbl.AddRow(string(c.name), "not found")
				continue
			}
			tbl.AddRow(string(c.name), bin.Path, bin.Version)
		}
		tbl.Render()

		if missing > 0 {
			uiInstance.Warning("missing binaries are installed by `selenium-supervisor fetch`")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(locateCmd)
}
