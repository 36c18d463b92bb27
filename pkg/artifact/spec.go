// Package artifact downloads and installs the browser and driver archives.
//
// Ensure is a single-attempt, idempotent operation: an already installed
// executable short-circuits without touching the network, and a fresh
// install is validated and extracted beside the destination before being
// renamed into place. Retry policy belongs to the caller.
package artifact

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Name identifies a logical artifact.
type Name string

const (
	// Browser is the Chromium/Chrome build
	Browser Name = "browser"
	// Driver is the matching ChromeDriver build
	Driver Name = "driver"
)

// Default Chrome for Testing archive layouts, relative to a base URL.
const (
	DefaultDriverTemplate  = "{base}/{version}/{platform}/chromedriver-{platform}.zip"
	DefaultBrowserTemplate = "{base}/{version}/{platform}/chrome-{platform}.zip"
)

// Spec describes a downloadable dependency.
type Spec struct {
	Name     Name
	Version  string
	Platform string

	// URLTemplate may reference {base}, {name}, {version} and {platform}
	URLTemplate string
	BaseURL     string

	// DestDir is replaced wholesale on install
	DestDir string

	// BinaryRelPath is the expected executable path inside DestDir. Archives
	// may nest the binary, so only its base name is load-bearing.
	BinaryRelPath string
}

// URL derives the download URL from s alone.
func (s Spec) URL() string {
	r := strings.NewReplacer(
		"{base}", strings.TrimRight(s.BaseURL, "/"),
		"{name}", string(s.Name),
		"{version}", s.Version,
		"{platform}", s.Platform,
	)
	return r.Replace(s.URLTemplate)
}

// BinaryName returns the executable's base name.
func (s Spec) BinaryName() string {
	return filepath.Base(s.BinaryRelPath)
}

// ExpectedPath returns where the binary is expected after install.
func (s Spec) ExpectedPath() string {
	return filepath.Join(s.DestDir, s.BinaryRelPath)
}

// Validate checks s is complete enough to fetch.
func (s Spec) Validate() error {
	switch {
	case s.Name == "":
		return fmt.Errorf("artifact name is required")
	case s.Version == "":
		return fmt.Errorf("artifact %s: version is required", s.Name)
	case s.URLTemplate == "":
		return fmt.Errorf("artifact %s: url template is required", s.Name)
	case s.DestDir == "":
		return fmt.Errorf("artifact %s: destination directory is required", s.Name)
	case s.BinaryRelPath == "":
		return fmt.Errorf("artifact %s: binary path is required", s.Name)
	}
	return nil
}

// DriverSpec returns the default ChromeDriver spec under installRoot.
func DriverSpec(installRoot, baseURL, version, platform string) Spec {
	return Spec{
		Name:          Driver,
		Version:       version,
		Platform:      platform,
		URLTemplate:   DefaultDriverTemplate,
		BaseURL:       baseURL,
		DestDir:       filepath.Join(installRoot, "chromedriver"),
		BinaryRelPath: filepath.Join("chromedriver-"+platform, executableName("chromedriver", platform)),
	}
}

// BrowserSpec returns the default Chrome spec under installRoot.
func BrowserSpec(installRoot, baseURL, version, platform string) Spec {
	return Spec{
		Name:          Browser,
		Version:       version,
		Platform:      platform,
		URLTemplate:   DefaultBrowserTemplate,
		BaseURL:       baseURL,
		DestDir:       filepath.Join(installRoot, "chrome"),
		BinaryRelPath: filepath.Join("chrome-"+platform, executableName("chrome", platform)),
	}
}

func executableName(name, platform string) string {
	if strings.HasPrefix(platform, "win") {
		return name + ".exe"
	}
	return name
}

// InstalledBinary is a located, executable file on disk. It is never edited
// in place; reinstalling produces a new value.
type InstalledBinary struct {
	Name    Name
	Path    string
	Version string
}
