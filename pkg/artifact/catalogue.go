package artifact

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Catalogue overrides the default archive sources per artifact.
//
//	# sources.yaml
//	artifacts:
//	  driver:
//	    url_template: "{base}/{version}/{platform}/chromedriver-{platform}.zip"
//	    binary: chromedriver-linux64/chromedriver
//	  browser:
//	    base_url: s3://artifacts/chrome
//	    version: 126.0.6478.126
type Catalogue struct {
	Artifacts map[Name]SourceEntry `yaml:"artifacts"`
}

// SourceEntry holds the optional overrides for one artifact.
type SourceEntry struct {
	URLTemplate string `yaml:"url_template"`
	BaseURL     string `yaml:"base_url"`
	Version     string `yaml:"version"`
	Platform    string `yaml:"platform"`
	Binary      string `yaml:"binary"`
}

// LoadCatalogue reads a catalogue file.
func LoadCatalogue(path string) (*Catalogue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalogue: %w", err)
	}

	var c Catalogue
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalogue: %w", err)
	}

	for name := range c.Artifacts {
		if name != Browser && name != Driver {
			return nil, fmt.Errorf("catalogue: unknown artifact %q", name)
		}
	}

	return &c, nil
}

// Apply returns spec with any non-empty catalogue fields substituted.
func (c *Catalogue) Apply(spec Spec) Spec {
	if c == nil {
		return spec
	}

	entry, ok := c.Artifacts[spec.Name]
	if !ok {
		return spec
	}

	if entry.URLTemplate != "" {
		spec.URLTemplate = entry.URLTemplate
	}
	if entry.BaseURL != "" {
		spec.BaseURL = entry.BaseURL
	}
	if entry.Version != "" {
		spec.Version = entry.Version
	}
	if entry.Platform != "" {
		spec.Platform = entry.Platform
	}
	if entry.Binary != "" {
		spec.BinaryRelPath = entry.Binary
	}
	return spec
}
