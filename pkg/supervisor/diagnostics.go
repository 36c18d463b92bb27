package supervisor

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DiagnosticsFile is the file written into the deployment dir on failure.
const DiagnosticsFile = "diagnostics.log"

// notFound is written in place of a missing log.
const notFound = "(not found)"

// diagnosticSource is one log captured into the diagnostics file.
type diagnosticSource struct {
	Title string
	Path  string
}

// captureDiagnostics writes the tail of each source into dir/diagnostics.log.
// Missing sources get a placeholder section rather than an error.
func captureDiagnostics(dir string, lines int, run *Run, sources []diagnosticSource) (string, error) {
	path := filepath.Join(dir, DiagnosticsFile)

	var b strings.Builder
	fmt.Fprintf(&b, "run_id: %s\n", run.ID)
	fmt.Fprintf(&b, "captured_at: %s\n", time.Now().UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "state: %s\n", run.State)
	fmt.Fprintf(&b, "recovery_cycles: %d\n", run.RecoveryCycles)
	fmt.Fprintf(&b, "last_health: %s\n", run.LastHealth.Status)
	if run.LastHealth.Err != nil {
		fmt.Fprintf(&b, "last_health_error: %v\n", run.LastHealth.Err)
	}

	for _, src := range sources {
		fmt.Fprintf(&b, "\n===== %s (%s) =====\n", src.Title, src.Path)
		tail, err := tailFile(src.Path, lines)
		if err != nil {
			b.WriteString(notFound + "\n")
			continue
		}
		for _, line := range tail {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("write diagnostics: %w", err)
	}
	return path, nil
}

// tailFile returns the last n lines of path.
func tailFile(path string, n int) ([]string, error) {
	if path == "" {
		return nil, os.ErrNotExist
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if n < 1 {
		n = 1
	}
	ring := make([]string, 0, n)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if len(ring) == n {
			ring = ring[1:]
		}
		ring = append(ring, scanner.Text())
	}
	return ring, scanner.Err()
}
