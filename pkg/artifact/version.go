package artifact

import (
	"bufio"
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"
)

// VersionProbe reads a binary's reported version. An empty result is not an
// error: the version is informational only.
type VersionProbe func(ctx context.Context, path string) string

// ReadVersion runs `path --version` with a short timeout and returns the
// first line of output, or "" when the binary cannot report one.
func ReadVersion(ctx context.Context, path string) string {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, path, "--version").Output()
	if err != nil && len(out) == 0 {
		return ""
	}

	scanner := bufio.NewScanner(bytes.NewReader(out))
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text())
	}
	return ""
}

// NoVersion is a VersionProbe that never runs the binary.
func NoVersion(context.Context, string) string { return "" }
