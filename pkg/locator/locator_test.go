package locator

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/GeneArguelles/selenium-mcp/pkg/artifact"
	"github.com/GeneArguelles/selenium-mcp/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string, mode os.FileMode) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\necho 'Google Chrome 126.0'\n"), mode))
}

func TestLocate_FirstExecutableWins(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a", "chrome")
	b := filepath.Join(dir, "b", "chrome")
	c := filepath.Join(dir, "c", "chrome")
	writeFile(t, b, 0o755)
	writeFile(t, c, 0o755)

	var statted []string
	l := New(
		WithVersionProbe(artifact.NoVersion),
		WithStatFunc(func(p string) (os.FileInfo, error) {
			statted = append(statted, p)
			return os.Stat(p)
		}),
	)

	bin, ok := l.Locate(context.Background(), artifact.Browser, []string{a, b, c})
	require.True(t, ok)
	assert.Equal(t, b, bin.Path)
	assert.Equal(t, []string{a, b}, statted, "candidates after the match must not be evaluated")
}

func TestLocate_SkipsNonExecutable(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "plain")
	exec := filepath.Join(dir, "exec")
	writeFile(t, plain, 0o644)
	writeFile(t, exec, 0o755)

	bin, ok := New(WithVersionProbe(artifact.NoVersion)).
		Locate(context.Background(), artifact.Driver, []string{plain, dir, exec})
	require.True(t, ok)
	assert.Equal(t, exec, bin.Path)
	assert.Equal(t, artifact.Driver, bin.Name)
}

func TestLocate_NoneFound(t *testing.T) {
	bin, ok := New(WithVersionProbe(artifact.NoVersion)).
		Locate(context.Background(), artifact.Browser, []string{"", "/nonexistent/chrome"})
	assert.False(t, ok)
	assert.Nil(t, bin)
}

func TestLocate_VersionIsBestEffort(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chrome")
	// Not a valid executable format; running --version fails
	require.NoError(t, os.WriteFile(path, []byte{0x00, 0x01}, 0o755))

	bin, ok := New().Locate(context.Background(), artifact.Browser, []string{path})
	require.True(t, ok)
	assert.Equal(t, path, bin.Path)
	assert.Empty(t, bin.Version)
}

func TestLocate_ReadsVersion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chrome")
	writeFile(t, path, 0o755)

	bin, ok := New().Locate(context.Background(), artifact.Browser, []string{path})
	require.True(t, ok)
	assert.Equal(t, "Google Chrome 126.0", bin.Version)
}

func TestBrowserCandidates(t *testing.T) {
	spec := artifact.BrowserSpec("/srv/.local", "https://example.test/cft", "126.0.6478.126", "linux64")

	cloud := &config.Config{ChromeBinary: "/custom/chrome"}
	got := BrowserCandidates(cloud, spec)
	require.GreaterOrEqual(t, len(got), 4)
	assert.Equal(t, "/custom/chrome", got[0])
	assert.Equal(t, "/srv/.local/chrome/chrome-linux64/chrome", got[1])
	assert.Equal(t, config.DefaultRenderChrome, got[2])
	assert.Equal(t, config.DefaultLocalChrome, got[3])

	local := &config.Config{LocalMode: true}
	got = BrowserCandidates(local, spec)
	assert.Equal(t, "/srv/.local/chrome/chrome-linux64/chrome", got[0])
	assert.Equal(t, config.DefaultLocalChrome, got[1])
	assert.Equal(t, config.DefaultRenderChrome, got[2])
}

func TestDriverCandidates(t *testing.T) {
	cfg := &config.Config{InstallRoot: "/srv/.local", ChromedriverPath: "/usr/bin/chromedriver"}
	spec := artifact.DriverSpec(cfg.InstallRoot, "https://example.test/cft", "126.0.6478.126", "linux64")
	got := DriverCandidates(cfg, spec)

	assert.Equal(t, "/usr/bin/chromedriver", got[0])
	assert.Equal(t, "/srv/.local/chromedriver/chromedriver-linux64/chromedriver", got[1])
	// The override duplicates a system path and appears once
	count := 0
	for _, p := range got {
		if p == "/usr/bin/chromedriver" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestDriverCandidates_FindsNestedInstall(t *testing.T) {
	root := t.TempDir()
	spec := artifact.DriverSpec(root, "https://example.test/cft", "126.0.6478.126", "linux64")
	// Catalogue overrides can point at a layout other than the archive's
	spec.BinaryRelPath = "chromedriver"
	nested := filepath.Join(spec.DestDir, "chromedriver-linux64", "chromedriver")
	writeFile(t, nested, 0o755)

	got := DriverCandidates(&config.Config{InstallRoot: root}, spec)
	assert.Equal(t, nested, got[0])
}

func TestLocate_FindsFetchedBinaries(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	hdr := &zip.FileHeader{Name: "chromedriver-linux64/chromedriver", Method: zip.Store}
	hdr.SetMode(0o755)
	w, err := zw.CreateHeader(hdr)
	require.NoError(t, err)
	_, err = w.Write([]byte("#!/bin/sh\n"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(buf.Bytes())
	}))
	t.Cleanup(srv.Close)

	cfg := &config.Config{InstallRoot: t.TempDir(), Platform: "linux64", ChromeVersion: "126.0.6478.126"}
	spec := artifact.DriverSpec(cfg.InstallRoot, srv.URL, cfg.ChromeVersion, cfg.Platform)

	fetcher := artifact.NewFetcher(artifact.NewHTTPSource(5*time.Second), artifact.WithVersionProbe(artifact.NoVersion))
	installed, err := fetcher.Ensure(context.Background(), spec)
	require.NoError(t, err)

	bin, ok := New(WithVersionProbe(artifact.NoVersion)).Locate(context.Background(), artifact.Driver, DriverCandidates(cfg, spec))
	require.True(t, ok)
	assert.Equal(t, installed.Path, bin.Path)
}
