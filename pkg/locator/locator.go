// Package locator finds required binaries among ordered candidate paths.
package locator

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/GeneArguelles/selenium-mcp/pkg/artifact"
	"github.com/GeneArguelles/selenium-mcp/pkg/config"
)

// Common system install locations, searched last.
var (
	SystemBrowserPaths = []string{
		"/usr/bin/google-chrome",
		"/usr/bin/google-chrome-stable",
		"/usr/bin/chromium",
		"/usr/bin/chromium-browser",
	}
	SystemDriverPaths = []string{
		"/usr/bin/chromedriver",
		"/usr/local/bin/chromedriver",
		"/usr/lib/chromium/chromedriver",
	}
)

// Locator scans candidates in priority order.
type Locator struct {
	logger       *slog.Logger
	versionProbe artifact.VersionProbe
	stat         func(string) (os.FileInfo, error)
}

// Option configures a Locator.
type Option func(*Locator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Locator) {
		l.logger = logger
	}
}

// WithVersionProbe overrides how versions are read.
func WithVersionProbe(probe artifact.VersionProbe) Option {
	return func(l *Locator) {
		l.versionProbe = probe
	}
}

// WithStatFunc replaces os.Stat.
func WithStatFunc(stat func(string) (os.FileInfo, error)) Option {
	return func(l *Locator) {
		l.stat = stat
	}
}

// New creates a Locator.
func New(opts ...Option) *Locator {
	l := &Locator{
		logger:       slog.Default(),
		versionProbe: artifact.ReadVersion,
		stat:         os.Stat,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Locate returns the first candidate that exists and is executable.
// Candidates after the match are never examined.
func (l *Locator) Locate(ctx context.Context, name artifact.Name, candidates []string) (*artifact.InstalledBinary, bool) {
	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}

		info, err := l.stat(candidate)
		if err != nil {
			l.logger.Debug("candidate missing", "artifact", name, "path", candidate)
			continue
		}
		if !info.Mode().IsRegular() || info.Mode().Perm()&0o111 == 0 {
			l.logger.Debug("candidate not executable", "artifact", name, "path", candidate, "mode", info.Mode())
			continue
		}

		abs, err := filepath.Abs(candidate)
		if err != nil {
			abs = candidate
		}

		bin := &artifact.InstalledBinary{
			Name:    name,
			Path:    abs,
			Version: l.versionProbe(ctx, abs),
		}
		l.logger.Info("binary located", "artifact", name, "path", abs, "reported_version", bin.Version)
		return bin, true
	}

	l.logger.Warn("binary not found", "artifact", name, "candidates", len(candidates))
	return nil, false
}

// BrowserCandidates orders browser locations: explicit override, the
// fetcher's install location for spec, the current mode's default, the
// other mode's default, then system paths.
func BrowserCandidates(cfg *config.Config, spec artifact.Spec) []string {
	modeDefaults := []string{config.DefaultRenderChrome, config.DefaultLocalChrome}
	if cfg.Mode() == config.ModeLocal {
		modeDefaults = []string{config.DefaultLocalChrome, config.DefaultRenderChrome}
	}

	candidates := []string{cfg.ChromeBinary, installPath(spec)}
	candidates = append(candidates, modeDefaults...)
	candidates = append(candidates, SystemBrowserPaths...)
	return dedupe(candidates)
}

// DriverCandidates orders driver locations: explicit override, the
// fetcher's install location for spec, then system paths.
func DriverCandidates(cfg *config.Config, spec artifact.Spec) []string {
	candidates := []string{cfg.ChromedriverPath, installPath(spec)}
	candidates = append(candidates, SystemDriverPaths...)
	return dedupe(candidates)
}

// installPath is where the fetcher put spec's binary, or where it would.
func installPath(spec artifact.Spec) string {
	if spec.DestDir == "" {
		return ""
	}
	if path, ok := artifact.Installed(spec); ok {
		return path
	}
	return spec.ExpectedPath()
}

func dedupe(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}
