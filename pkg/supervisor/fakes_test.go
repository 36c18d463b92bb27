package supervisor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/GeneArguelles/selenium-mcp/pkg/artifact"
	"github.com/GeneArguelles/selenium-mcp/pkg/config"
	"github.com/GeneArguelles/selenium-mcp/pkg/health"
	"github.com/GeneArguelles/selenium-mcp/pkg/logrotate"
	"github.com/GeneArguelles/selenium-mcp/pkg/procmgr"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	driverLog := filepath.Join(dir, "chromedriver.log")
	require.NoError(t, os.WriteFile(driverLog,
		[]byte("Starting ChromeDriver 126.0.6478.126\nsession not created: version mismatch\n"), 0o644))

	return &config.Config{
		Port:                10000,
		ChromeVersion:       "126.0.6478.126",
		Platform:            "linux64",
		InstallRoot:         filepath.Join(dir, ".local"),
		ArtifactBaseURL:     "https://example.test/cft",
		DownloadTimeout:     time.Second,
		LogRoot:             filepath.Join(dir, "logs"),
		LogKeep:             3,
		ServerCommand:       "python -m uvicorn server:app --port ${PORT}",
		ProbeKind:           "health",
		HealthRetries:       5,
		HealthInterval:      0,
		HealthTimeout:       time.Second,
		WarmupDelay:         0,
		TerminateGrace:      100 * time.Millisecond,
		MaxRetries:          2,
		InstallRetries:      1,
		ExhaustionPolicy:    config.ExhaustionFatal,
		FatalExitCode:       1,
		DriverLogPath:       driverLog,
		BrowserDebugLogPath: filepath.Join(dir, "chrome_debug.log"),
		DiagnosticLines:     50,
	}
}

// mockFetcher tracks install calls and fails according to failEnsure.
type mockFetcher struct {
	mu             sync.Mutex
	ensureCalls    map[artifact.Name]int
	reinstallCalls int

	// failEnsure returns an error for the nth (1-based) Ensure of name
	failEnsure   func(name artifact.Name, n int) error
	reinstallErr error
}

func newMockFetcher() *mockFetcher {
	return &mockFetcher{ensureCalls: make(map[artifact.Name]int)}
}

func (m *mockFetcher) Ensure(ctx context.Context, spec artifact.Spec) (*artifact.InstalledBinary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ensureCalls[spec.Name]++
	if m.failEnsure != nil {
		if err := m.failEnsure(spec.Name, m.ensureCalls[spec.Name]); err != nil {
			return nil, err
		}
	}
	return &artifact.InstalledBinary{Name: spec.Name, Path: spec.ExpectedPath(), Version: spec.Version}, nil
}

func (m *mockFetcher) Reinstall(ctx context.Context, spec artifact.Spec) (*artifact.InstalledBinary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.reinstallCalls++
	if m.reinstallErr != nil {
		return nil, m.reinstallErr
	}
	return &artifact.InstalledBinary{Name: spec.Name, Path: spec.ExpectedPath(), Version: "reinstalled"}, nil
}

func (m *mockFetcher) EnsureCalls(name artifact.Name) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ensureCalls[name]
}

// mockLocator returns preconfigured binaries by name.
type mockLocator struct {
	mu    sync.Mutex
	found map[artifact.Name]string
	calls []artifact.Name
}

func newMockLocator(found map[artifact.Name]string) *mockLocator {
	return &mockLocator{found: found}
}

func (m *mockLocator) Locate(ctx context.Context, name artifact.Name, candidates []string) (*artifact.InstalledBinary, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, name)
	path, ok := m.found[name]
	if !ok {
		return nil, false
	}
	return &artifact.InstalledBinary{Name: name, Path: path}, true
}

// tempRotator hands out a fresh deployment dir.
type tempRotator struct {
	t   *testing.T
	dir string
	err error
}

func (r *tempRotator) Rotate() (*logrotate.Deployment, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.dir = r.t.TempDir()
	return &logrotate.Deployment{Dir: r.dir, CreatedAt: time.Now()}, nil
}

// mockLauncher records launches and returns mockHandles.
type mockLauncher struct {
	mu       sync.Mutex
	commands []procmgr.Command
	handles  []*mockHandle

	// failOn makes the nth (1-based) launch fail
	failOn map[int]error
	// block makes handles wait for ctx or Terminate
	block bool
}

func (m *mockLauncher) Launch(ctx context.Context, cmd procmgr.Command, logPath string) (procmgr.Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.commands = append(m.commands, cmd)
	if err := m.failOn[len(m.commands)]; err != nil {
		return nil, err
	}

	h := &mockHandle{
		pid:     1000 + len(m.commands),
		logPath: logPath,
		block:   m.block,
		done:    make(chan struct{}),
	}
	m.handles = append(m.handles, h)
	return h, nil
}

func (m *mockLauncher) Launches() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.commands)
}

type mockHandle struct {
	pid     int
	logPath string
	block   bool

	mu         sync.Mutex
	terminated int
	waited     int
	done       chan struct{}
}

func (h *mockHandle) PID() int             { return h.pid }
func (h *mockHandle) LogPath() string      { return h.logPath }
func (h *mockHandle) StartedAt() time.Time { return time.Time{} }
func (h *mockHandle) Alive() bool          { return h.Terminated() == 0 }

func (h *mockHandle) State() procmgr.ProcessState {
	if h.Alive() {
		return procmgr.ProcessStateRunning
	}
	return procmgr.ProcessStateExited
}

func (h *mockHandle) Terminate(grace time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.terminated == 0 {
		close(h.done)
	}
	h.terminated++
	return nil
}

func (h *mockHandle) Wait(ctx context.Context) error {
	h.mu.Lock()
	h.waited++
	h.mu.Unlock()

	if !h.block {
		return nil
	}
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *mockHandle) Terminated() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.terminated
}

func (h *mockHandle) Waited() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.waited
}

// sequenceProber replays statuses, repeating the last one.
type sequenceProber struct {
	mu       sync.Mutex
	statuses []health.Status
	calls    int
}

func (p *sequenceProber) Probe(ctx context.Context) health.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	i := p.calls
	if i >= len(p.statuses) {
		i = len(p.statuses) - 1
	}
	p.calls++

	snap := health.Snapshot{Status: p.statuses[i]}
	if snap.Status == health.StatusUnreachable {
		snap.Err = errors.New("connection refused")
	}
	return snap
}

func (p *sequenceProber) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func repeat(status health.Status, n int) []health.Status {
	out := make([]health.Status, n)
	for i := range out {
		out[i] = status
	}
	return out
}

// harness bundles mocks around one Supervisor.
type harness struct {
	cfg      *config.Config
	fetcher  *mockFetcher
	locator  *mockLocator
	rotator  *tempRotator
	launcher *mockLauncher
	prober   *sequenceProber
	metrics  *PrometheusMetrics
}

func newHarness(t *testing.T, statuses []health.Status) *harness {
	return &harness{
		cfg:      testConfig(t),
		fetcher:  newMockFetcher(),
		locator:  newMockLocator(map[artifact.Name]string{artifact.Browser: "/usr/bin/chromium"}),
		rotator:  &tempRotator{t: t},
		launcher: &mockLauncher{},
		prober:   &sequenceProber{statuses: statuses},
		metrics:  NewPrometheusMetrics("test"),
	}
}

func (h *harness) supervisor(t *testing.T) *Supervisor {
	t.Helper()
	s, err := New(h.cfg,
		WithFetcher(h.fetcher),
		WithLocator(h.locator),
		WithRotator(h.rotator),
		WithLauncher(h.launcher),
		WithMonitor(health.NewMonitor(h.prober)),
		WithMetrics(h.metrics),
	)
	require.NoError(t, err)
	return s
}
