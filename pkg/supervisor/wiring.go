package supervisor

import (
	"log/slog"

	"github.com/GeneArguelles/selenium-mcp/pkg/artifact"
	"github.com/GeneArguelles/selenium-mcp/pkg/config"
	"github.com/GeneArguelles/selenium-mcp/pkg/health"
)

// Specs returns the driver and browser artifact specs for cfg. A mirror
// replaces the public base URL, and catalogue entries override both.
func Specs(cfg *config.Config, cat *artifact.Catalogue) (driver, browser artifact.Spec) {
	base := cfg.ArtifactBaseURL
	if cfg.ArtifactMirror != "" {
		base = cfg.ArtifactMirror
	}

	driver = cat.Apply(artifact.DriverSpec(cfg.InstallRoot, base, cfg.ChromeVersion, cfg.Platform))
	browser = cat.Apply(artifact.BrowserSpec(cfg.InstallRoot, base, cfg.ChromeVersion, cfg.Platform))
	return driver, browser
}

// LoadCatalogue reads cfg.SourcesFile when one is configured.
func LoadCatalogue(cfg *config.Config) (*artifact.Catalogue, error) {
	if cfg.SourcesFile == "" {
		return nil, nil
	}
	return artifact.LoadCatalogue(cfg.SourcesFile)
}

// NewSource builds the archive source: HTTP(S) always, S3 for s3:// URLs.
func NewSource(cfg *config.Config) artifact.Source {
	router := artifact.NewSchemeRouter(artifact.NewHTTPSource(cfg.DownloadTimeout))
	router.Register("s3", NewMirrorSource(cfg))
	return router
}

// NewMirrorSource builds the S3 source for cfg's mirror region and endpoint.
// A custom endpoint serves S3-compatible stores such as MinIO.
func NewMirrorSource(cfg *config.Config) *artifact.S3Source {
	return artifact.NewS3Source(cfg.ArtifactMirrorRegion, cfg.ArtifactMirrorEndpoint)
}

// NewProber returns the readiness prober selected by cfg.ProbeKind.
func NewProber(cfg *config.Config) health.Prober {
	if cfg.ProbeKind == "schema" {
		return health.NewSchemaProber(cfg.SchemaURL(), cfg.HealthTimeout)
	}
	return health.NewHTTPProber(cfg.HealthURL(), cfg.HealthTimeout)
}

// NewFetcher builds the default artifact fetcher for cfg.
func NewFetcher(cfg *config.Config, logger *slog.Logger) *artifact.Fetcher {
	return artifact.NewFetcher(NewSource(cfg), artifact.WithLogger(logger))
}
