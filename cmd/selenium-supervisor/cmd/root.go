// Package cmd provides the CLI commands for selenium-supervisor
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/GeneArguelles/selenium-mcp/cmd/selenium-supervisor/internal/ui"
	"github.com/GeneArguelles/selenium-mcp/pkg/config"
	"github.com/GeneArguelles/selenium-mcp/pkg/supervisor"
	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "0.1.0"

var (
	cfg        *config.Config
	uiInstance *ui.UI
	logger     *slog.Logger

	configFile string
	envFile    string
	logFormat  string
	debug      bool

	// exitCode is returned by Execute once the command finished
	exitCode int
)

var rootCmd = &cobra.Command{
	Use:   "selenium-supervisor",
	Short: "Provision Chrome and ChromeDriver and supervise the MCP server",
	Long: `selenium-supervisor prepares a fresh Render container for the Selenium MCP
server: it rotates deployment logs, installs Chrome for Testing and a
matching ChromeDriver, launches the server and verifies its health.

When health checks fail it reinstalls the driver and relaunches the server,
up to --max-retries times, before capturing diagnostics and exiting
non-zero. Without a subcommand it runs the supervisor.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		uiInstance = ui.New()
		logger = newLogger(logFormat, debug)
		slog.SetDefault(logger)

		var err error
		cfg, err = config.Load(config.LoadOptions{
			ConfigFile: configFile,
			EnvFile:    envFile,
			Flags:      cmd.Flags(),
		})
		if err != nil {
			return supervisor.ErrInvalidConfiguration(err)
		}
		return nil
	},
	RunE: runSupervisor,
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		if exitCode == 0 {
			exitCode = 1
		}
		slog.Error("command failed",
			"error", err,
			"code", supervisor.GetErrorCode(err),
			"suggestion", supervisor.GetSuggestion(err))
	}
	return exitCode
}

func init() {
	rootCmd.Version = Version

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "YAML configuration file")
	pf.StringVar(&envFile, "env-file", ".env", "dotenv file loaded when present")
	pf.StringVar(&logFormat, "log-format", "json", "Log format (json or text)")
	pf.BoolVar(&debug, "debug", false, "Enable debug logging")

	// Configuration overrides; names are bound through config.FlagKeys
	pf.Int("port", 10000, "Port the server listens on")
	pf.String("chrome-version", config.DefaultChromeVersion, "Chrome for Testing version")
	pf.Bool("local", false, "Local mode (workstation browser defaults)")
	pf.String("chrome-binary", "", "Explicit Chrome binary")
	pf.String("driver-path", "", "Explicit ChromeDriver binary")
	pf.String("install-root", config.DefaultRenderRoot, "Directory artifacts are installed under")
	pf.String("log-root", "logs", "Deployment log root")
	pf.Int("log-keep", 3, "Deployment log directories to keep")
	pf.String("server-command", config.DefaultServerCommand, "Server command line (run by /bin/sh)")
	pf.String("probe", "health", "Readiness probe (health or schema)")
	pf.Int("health-retries", 5, "Health polls per launch")
	pf.String("health-interval", "5s", "Delay between health polls")
	pf.String("warmup", "8s", "Delay between launch and first health poll")
	pf.Int("max-retries", 2, "Recovery cycles before giving up")
	pf.String("on-exhaustion", string(config.ExhaustionFatal), "Policy when recovery is exhausted (fatal or keep-alive)")
	pf.Int("metrics-port", 0, "Serve Prometheus metrics on this port (0 disables)")
}

// newLogger builds the process logger.
func newLogger(format string, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	if format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func printErr(err error) {
	uiInstance.Error(err.Error())
	if s := supervisor.GetSuggestion(err); s != "" {
		fmt.Fprintln(os.Stderr, s)
	}
}
