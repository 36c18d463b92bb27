// Package config assembles the supervisor configuration once at startup.
//
// Values are layered with viper: built-in defaults, then an optional YAML
// config file, then an optional .env file, then process environment, then
// explicitly set command line flags. The resulting Config is treated as
// read-only and passed by pointer to every component; nothing else in the
// module reads the environment.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Mode selects default binary locations.
type Mode string

const (
	// ModeCloud is the managed container (Render)
	ModeCloud Mode = "cloud"
	// ModeLocal is a developer workstation
	ModeLocal Mode = "local"
)

// ExhaustionPolicy decides what happens when the recovery ceiling is reached.
type ExhaustionPolicy string

const (
	// ExhaustionFatal captures diagnostics and exits non-zero
	ExhaustionFatal ExhaustionPolicy = "fatal"
	// ExhaustionKeepAlive captures diagnostics and keeps the container alive
	ExhaustionKeepAlive ExhaustionPolicy = "keep-alive"
)

// Default locations used by the Render build scripts and the MCP server.
const (
	DefaultRenderRoot    = "/opt/render/project/src/.local"
	DefaultRenderChrome  = "/opt/render/project/src/.local/chrome/chrome-linux/chrome"
	DefaultLocalChrome   = "/Applications/Google Chrome.app/Contents/MacOS/Google Chrome"
	DefaultArtifactBase  = "https://storage.googleapis.com/chrome-for-testing-public"
	DefaultChromeVersion = "126.0.6478.126"
	DefaultServerCommand = "python -m uvicorn server:app --host 0.0.0.0 --port ${PORT}"
	DefaultReadyMarker   = "Application startup complete"
)

// Config holds the supervisor configuration.
type Config struct {
	Port          int
	BaseURL       string
	ChromeVersion string
	Platform      string
	LocalMode     bool

	// Explicit binary overrides, searched before any default.
	ChromeBinary     string
	ChromedriverPath string

	InstallRoot     string
	ArtifactBaseURL string
	ArtifactMirror  string
	SourcesFile     string

	// S3 mirror client settings; empty values use the AWS defaults
	ArtifactMirrorRegion   string
	ArtifactMirrorEndpoint string

	DownloadTimeout time.Duration

	LogRoot string
	LogKeep int

	ServerCommand  string
	ProbeKind      string
	HealthRetries  int
	HealthInterval time.Duration
	HealthTimeout  time.Duration
	WarmupDelay    time.Duration
	TerminateGrace time.Duration

	MaxRetries       int
	InstallRetries   int
	ExhaustionPolicy ExhaustionPolicy
	FatalExitCode    int

	DriverLogPath       string
	BrowserDebugLogPath string
	DiagnosticLines     int
	ReadyMarker         string

	MetricsPort int
}

// Mode returns the execution context derived from LocalMode.
func (c *Config) Mode() Mode {
	if c.LocalMode {
		return ModeLocal
	}
	return ModeCloud
}

// HealthURL returns the URL of the server health endpoint.
func (c *Config) HealthURL() string {
	return strings.TrimRight(c.baseURL(), "/") + "/health"
}

// SchemaURL returns the URL of the MCP schema endpoint.
func (c *Config) SchemaURL() string {
	return strings.TrimRight(c.baseURL(), "/") + "/mcp/schema"
}

func (c *Config) baseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return fmt.Sprintf("http://127.0.0.1:%d", c.Port)
}

// LoadOptions controls where Load looks for values.
type LoadOptions struct {
	// ConfigFile is an optional YAML file
	ConfigFile string
	// EnvFile is an optional dotenv file; a missing file is ignored
	EnvFile string
	// Flags are bound by name through FlagKeys
	Flags *pflag.FlagSet
}

// FlagKeys maps command line flag names to configuration keys.
var FlagKeys = map[string]string{
	"port":            "port",
	"chrome-version":  "chrome_version",
	"local":           "local_mode",
	"chrome-binary":   "chrome_binary",
	"driver-path":     "chromedriver_path",
	"install-root":    "install_root",
	"log-root":        "log_root",
	"log-keep":        "log_keep",
	"server-command":  "server_command",
	"probe":           "probe_kind",
	"health-retries":  "health_retries",
	"health-interval": "health_interval",
	"warmup":          "warmup_delay",
	"max-retries":     "max_retries",
	"on-exhaustion":   "exhaustion_policy",
	"metrics-port":    "metrics_port",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 10000)
	v.SetDefault("base_url", "")
	v.SetDefault("chrome_version", DefaultChromeVersion)
	v.SetDefault("platform", DefaultPlatform())
	v.SetDefault("local_mode", false)
	v.SetDefault("chrome_binary", "")
	v.SetDefault("chromedriver_path", "")
	v.SetDefault("install_root", DefaultRenderRoot)
	v.SetDefault("artifact_base_url", DefaultArtifactBase)
	v.SetDefault("artifact_mirror", "")
	v.SetDefault("artifact_mirror_region", "")
	v.SetDefault("artifact_mirror_endpoint", "")
	v.SetDefault("sources_file", "")
	v.SetDefault("download_timeout", "120s")
	v.SetDefault("log_root", "logs")
	v.SetDefault("log_keep", 3)
	v.SetDefault("server_command", DefaultServerCommand)
	v.SetDefault("probe_kind", "health")
	v.SetDefault("health_retries", 5)
	v.SetDefault("health_interval", "5s")
	v.SetDefault("health_timeout", "5s")
	v.SetDefault("warmup_delay", "8s")
	v.SetDefault("terminate_grace", "10s")
	v.SetDefault("max_retries", 2)
	v.SetDefault("install_retries", 1)
	v.SetDefault("exhaustion_policy", string(ExhaustionFatal))
	v.SetDefault("fatal_exit_code", 1)
	v.SetDefault("driver_log_path", "/tmp/chromedriver.log")
	v.SetDefault("browser_debug_log_path", "/tmp/chrome_debug.log")
	v.SetDefault("diagnostic_lines", 50)
	v.SetDefault("ready_marker", DefaultReadyMarker)
	v.SetDefault("metrics_port", 0)
}

// Load builds a Config from defaults, files, environment and flags.
func Load(opts LoadOptions) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if opts.EnvFile != "" {
		if _, err := os.Stat(opts.EnvFile); err == nil {
			v.SetConfigFile(opts.EnvFile)
			v.SetConfigType("env")
			if err := v.MergeInConfig(); err != nil {
				return nil, fmt.Errorf("read env file: %w", err)
			}
		}
	}

	// Keys are the lower-cased environment names (PORT -> port).
	v.AutomaticEnv()

	// Only flags the operator actually set override lower layers.
	if opts.Flags != nil {
		opts.Flags.Visit(func(f *pflag.Flag) {
			if key, ok := FlagKeys[f.Name]; ok {
				v.Set(key, f.Value.String())
			}
		})
	}

	cfg, err := fromViper(v)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:                v.GetInt("port"),
		BaseURL:             v.GetString("base_url"),
		ChromeVersion:       v.GetString("chrome_version"),
		Platform:            v.GetString("platform"),
		LocalMode:           v.GetBool("local_mode"),
		ChromeBinary:        v.GetString("chrome_binary"),
		ChromedriverPath:    v.GetString("chromedriver_path"),
		InstallRoot:         v.GetString("install_root"),
		ArtifactBaseURL:     v.GetString("artifact_base_url"),
		ArtifactMirror:      v.GetString("artifact_mirror"),
		SourcesFile:         v.GetString("sources_file"),
		LogRoot:             v.GetString("log_root"),
		LogKeep:             v.GetInt("log_keep"),
		ServerCommand:       v.GetString("server_command"),
		ProbeKind:           strings.ToLower(v.GetString("probe_kind")),
		HealthRetries:       v.GetInt("health_retries"),
		MaxRetries:          v.GetInt("max_retries"),
		InstallRetries:      v.GetInt("install_retries"),
		ExhaustionPolicy:    ExhaustionPolicy(strings.ToLower(v.GetString("exhaustion_policy"))),
		FatalExitCode:       v.GetInt("fatal_exit_code"),
		DriverLogPath:       v.GetString("driver_log_path"),
		BrowserDebugLogPath: v.GetString("browser_debug_log_path"),
		DiagnosticLines:     v.GetInt("diagnostic_lines"),
		ReadyMarker:         v.GetString("ready_marker"),
		MetricsPort:         v.GetInt("metrics_port"),

		ArtifactMirrorRegion:   v.GetString("artifact_mirror_region"),
		ArtifactMirrorEndpoint: v.GetString("artifact_mirror_endpoint"),
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"download_timeout", &cfg.DownloadTimeout},
		{"health_interval", &cfg.HealthInterval},
		{"health_timeout", &cfg.HealthTimeout},
		{"warmup_delay", &cfg.WarmupDelay},
		{"terminate_grace", &cfg.TerminateGrace},
	}
	for _, d := range durations {
		parsed, err := ParseSeconds(v.GetString(d.key))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dst = parsed
	}

	return cfg, nil
}

// ParseSeconds parses a duration. Bare numbers are seconds, matching the
// `sleep N` values used by the shell scripts.
func ParseSeconds(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(n * float64(time.Second)), nil
	}
	return time.ParseDuration(s)
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch {
	case c.Port < 1 || c.Port > 65535:
		return invalid("port", c.Port, "must be between 1 and 65535")
	case c.LogKeep < 1:
		return invalid("log_keep", c.LogKeep, "must retain at least one deployment")
	case c.HealthRetries < 1:
		return invalid("health_retries", c.HealthRetries, "must be at least 1")
	case c.MaxRetries < 0:
		return invalid("max_retries", c.MaxRetries, "must not be negative")
	case c.InstallRetries < 0:
		return invalid("install_retries", c.InstallRetries, "must not be negative")
	case c.HealthInterval < 0 || c.WarmupDelay < 0 || c.HealthTimeout < 0:
		return invalid("durations", c.HealthInterval, "must not be negative")
	case c.ServerCommand == "":
		return invalid("server_command", c.ServerCommand, "must not be empty")
	}

	switch c.ProbeKind {
	case "health", "schema":
	default:
		return invalid("probe_kind", c.ProbeKind, "must be health or schema")
	}

	switch c.ExhaustionPolicy {
	case ExhaustionFatal, ExhaustionKeepAlive:
	default:
		return invalid("exhaustion_policy", c.ExhaustionPolicy, "must be fatal or keep-alive")
	}

	return nil
}

// InvalidError reports a configuration value out of range.
type InvalidError struct {
	Field  string
	Value  interface{}
	Reason string
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("invalid configuration: %s=%v: %s", e.Field, e.Value, e.Reason)
}

func invalid(field string, value interface{}, reason string) error {
	return &InvalidError{Field: field, Value: value, Reason: reason}
}

// DefaultPlatform maps the host to a Chrome for Testing platform name.
func DefaultPlatform() string {
	switch runtime.GOOS {
	case "darwin":
		if runtime.GOARCH == "arm64" {
			return "mac-arm64"
		}
		return "mac-x64"
	case "windows":
		return "win64"
	default:
		return "linux64"
	}
}
