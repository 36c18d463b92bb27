package supervisor

import (
	"testing"

	"github.com/GeneArguelles/selenium-mcp/pkg/artifact"
	"github.com/stretchr/testify/assert"
)

func TestNewMirrorSource(t *testing.T) {
	cfg := testConfig(t)
	cfg.ArtifactMirror = "s3://artifacts/cft"
	cfg.ArtifactMirrorRegion = "eu-central-1"
	cfg.ArtifactMirrorEndpoint = "http://minio.internal:9000"

	src := NewMirrorSource(cfg)
	assert.Equal(t, "eu-central-1", src.Region)
	assert.Equal(t, "http://minio.internal:9000", src.Endpoint)
}

func TestSpecs_MirrorReplacesBaseURL(t *testing.T) {
	cfg := testConfig(t)
	cfg.ArtifactMirror = "s3://artifacts/cft"

	driver, browser := Specs(cfg, nil)
	assert.Equal(t, "s3://artifacts/cft/"+cfg.ChromeVersion+"/linux64/chromedriver-linux64.zip", driver.URL())
	assert.Equal(t, artifact.Browser, browser.Name)
}
