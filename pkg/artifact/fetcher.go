package artifact

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/time/rate"
)

// Fetcher installs artifacts from a Source.
type Fetcher struct {
	source           Source
	logger           *slog.Logger
	versionProbe     VersionProbe
	progressInterval time.Duration
	now              func() time.Time
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// WithVersionProbe overrides how installed versions are read.
func WithVersionProbe(probe VersionProbe) Option {
	return func(f *Fetcher) {
		f.versionProbe = probe
	}
}

// WithProgressInterval sets how often download progress is logged.
func WithProgressInterval(d time.Duration) Option {
	return func(f *Fetcher) {
		f.progressInterval = d
	}
}

// NewFetcher creates a Fetcher reading from source.
func NewFetcher(source Source, opts ...Option) *Fetcher {
	f := &Fetcher{
		source:           source,
		logger:           slog.Default(),
		versionProbe:     ReadVersion,
		progressInterval: 5 * time.Second,
		now:              time.Now,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Ensure returns the installed binary for spec, downloading it only when no
// executable is present at the destination.
func (f *Fetcher) Ensure(ctx context.Context, spec Spec) (*InstalledBinary, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	if path, ok := Installed(spec); ok {
		f.logger.Debug("artifact already installed", "artifact", spec.Name, "path", path)
		return f.binary(ctx, spec, path), nil
	}

	return f.install(ctx, spec)
}

// Reinstall downloads spec unconditionally and replaces the destination.
// The previous install stays in place if anything fails.
func (f *Fetcher) Reinstall(ctx context.Context, spec Spec) (*InstalledBinary, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return f.install(ctx, spec)
}

// Installed returns the executable already present under spec.DestDir. The
// expected path is tried first, then any file with the binary's base name.
func Installed(spec Spec) (string, bool) {
	path, ok := findBinary(spec.DestDir, spec.BinaryRelPath)
	if !ok || !IsExecutable(path) {
		return "", false
	}
	return path, true
}

func (f *Fetcher) binary(ctx context.Context, spec Spec, path string) *InstalledBinary {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return &InstalledBinary{
		Name:    spec.Name,
		Path:    abs,
		Version: f.versionProbe(ctx, abs),
	}
}

func (f *Fetcher) install(ctx context.Context, spec Spec) (*InstalledBinary, error) {
	start := f.now()
	url := spec.URL()
	parent := filepath.Dir(filepath.Clean(spec.DestDir))

	if err := os.MkdirAll(parent, 0o755); err != nil {
		return nil, fmt.Errorf("create install root: %w", err)
	}

	f.logger.Info("downloading artifact",
		"artifact", spec.Name,
		"version", spec.Version,
		"platform", spec.Platform,
		"url", url)

	archive, err := f.download(ctx, spec, url, parent)
	if err != nil {
		return nil, err
	}
	defer os.Remove(archive)

	if err := validateZip(archive); err != nil {
		f.logger.Error("archive failed validation", "artifact", spec.Name, "error", err)
		return nil, err
	}

	staging, err := os.MkdirTemp(parent, "."+filepath.Base(spec.DestDir)+"-staging-*")
	if err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}

	rel, err := f.stage(archive, staging, spec)
	if err != nil {
		os.RemoveAll(staging)
		return nil, err
	}

	if err := swapDir(staging, spec.DestDir); err != nil {
		os.RemoveAll(staging)
		return nil, fmt.Errorf("move %s into place: %w", spec.Name, err)
	}

	final := filepath.Join(spec.DestDir, rel)
	if !IsExecutable(final) {
		return nil, fmt.Errorf("%w: %s", ErrBinaryMissingAfterExtract, final)
	}

	bin := f.binary(ctx, spec, final)
	f.logger.Info("artifact installed",
		"artifact", spec.Name,
		"path", bin.Path,
		"reported_version", bin.Version,
		"duration", f.now().Sub(start))

	return bin, nil
}

// stage extracts into staging and returns the binary's path relative to it.
func (f *Fetcher) stage(archive, staging string, spec Spec) (string, error) {
	if err := extractZip(archive, staging); err != nil {
		return "", err
	}

	bin, ok := findBinary(staging, spec.BinaryRelPath)
	if !ok {
		return "", fmt.Errorf("%w: no %s in archive", ErrBinaryMissingAfterExtract, spec.BinaryName())
	}

	if err := os.Chmod(bin, 0o755); err != nil {
		return "", fmt.Errorf("chmod %s: %w", bin, err)
	}

	return filepath.Rel(staging, bin)
}

func (f *Fetcher) download(ctx context.Context, spec Spec, url, dir string) (string, error) {
	body, size, err := f.source.Open(ctx, url)
	if err != nil {
		return "", err
	}
	defer body.Close()

	tmp, err := os.CreateTemp(dir, "."+string(spec.Name)+"-*.zip")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	pw := &progressWriter{
		logger:    f.logger.With("artifact", spec.Name),
		total:     size,
		sometimes: &rate.Sometimes{Interval: f.progressInterval},
	}

	_, copyErr := io.Copy(io.MultiWriter(tmp, pw), body)
	closeErr := tmp.Close()

	if copyErr != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("%w: %v", ErrDownloadFailed, copyErr)
	}
	if closeErr != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write archive: %w", closeErr)
	}

	f.logger.Debug("download complete", "artifact", spec.Name, "bytes", pw.written)
	return tmp.Name(), nil
}

// swapDir renames staging to dest, replacing any existing dest.
func swapDir(staging, dest string) error {
	var backup string
	if _, err := os.Stat(dest); err == nil {
		backup = fmt.Sprintf("%s.old-%d", dest, time.Now().UnixNano())
		if err := os.Rename(dest, backup); err != nil {
			return err
		}
	}

	if err := os.Rename(staging, dest); err != nil {
		if backup != "" {
			_ = os.Rename(backup, dest)
		}
		return err
	}

	if backup != "" {
		_ = os.RemoveAll(backup)
	}
	return nil
}

// progressWriter logs download progress at most once per interval.
type progressWriter struct {
	logger    *slog.Logger
	total     int64
	written   int64
	sometimes *rate.Sometimes
}

func (p *progressWriter) Write(b []byte) (int, error) {
	p.written += int64(len(b))
	p.sometimes.Do(func() {
		p.logger.Info("download progress", "bytes", p.written, "total", p.total)
	})
	return len(b), nil
}
