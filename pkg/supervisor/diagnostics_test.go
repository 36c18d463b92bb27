package supervisor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTailFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chromedriver.log")
	var b strings.Builder
	for i := 1; i <= 100; i++ {
		fmt.Fprintf(&b, "line %d\n", i)
	}
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))

	lines, err := tailFile(path, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"line 98", "line 99", "line 100"}, lines)

	lines, err = tailFile(path, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"line 100"}, lines)

	_, err = tailFile(filepath.Join(t.TempDir(), "missing.log"), 3)
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = tailFile("", 3)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCaptureDiagnostics(t *testing.T) {
	dir := t.TempDir()
	driverLog := filepath.Join(dir, "chromedriver.log")
	require.NoError(t, os.WriteFile(driverLog, []byte("a\nb\nc\n"), 0o644))

	run := &Run{ID: "run-1", State: StateHealthChecking, RecoveryCycles: 2}
	path, err := captureDiagnostics(dir, 2, run, []diagnosticSource{
		{Title: "chromedriver log", Path: driverLog},
		{Title: "chrome debug log", Path: filepath.Join(dir, "chrome_debug.log")},
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, DiagnosticsFile), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)

	assert.Contains(t, out, "run_id: run-1")
	assert.Contains(t, out, "recovery_cycles: 2")
	assert.Contains(t, out, "===== chromedriver log ("+driverLog+") =====\nb\nc\n")
	assert.Contains(t, out, "===== chrome debug log")
	assert.True(t, strings.HasSuffix(out, notFound+"\n"))
}
