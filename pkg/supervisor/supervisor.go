// Package supervisor drives a server from a fresh container to a verified
// healthy service.
//
// The state machine is Init → Resolving → Launching → HealthChecking, ending
// in Healthy, Degraded or Fatal. A failed health loop moves to Recovering:
// the server is terminated, the driver is reinstalled and the server is
// relaunched. Each recovery consumes one unit of MaxRetries. Fetch, locate
// and health failures never escape as errors; only a failed first launch,
// an exhausted install and an exhausted recovery ceiling end the run with
// an error.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/GeneArguelles/selenium-mcp/pkg/artifact"
	"github.com/GeneArguelles/selenium-mcp/pkg/config"
	"github.com/GeneArguelles/selenium-mcp/pkg/health"
	"github.com/GeneArguelles/selenium-mcp/pkg/locator"
	"github.com/GeneArguelles/selenium-mcp/pkg/logrotate"
	"github.com/GeneArguelles/selenium-mcp/pkg/procmgr"
	"github.com/google/uuid"
)

// ServerLogFile is the server's combined output inside the deployment dir.
const ServerLogFile = "server.log"

// Fetcher installs artifacts. Both methods are single attempts.
type Fetcher interface {
	Ensure(ctx context.Context, spec artifact.Spec) (*artifact.InstalledBinary, error)
	Reinstall(ctx context.Context, spec artifact.Spec) (*artifact.InstalledBinary, error)
}

// Locator finds already installed binaries.
type Locator interface {
	Locate(ctx context.Context, name artifact.Name, candidates []string) (*artifact.InstalledBinary, bool)
}

// Rotator prepares the deployment log directory.
type Rotator interface {
	Rotate() (*logrotate.Deployment, error)
}

// Monitor runs the bounded health loop.
type Monitor interface {
	AwaitHealthy(ctx context.Context, maxAttempts int, interval time.Duration) health.Snapshot
}

// Supervisor runs one deployment. It is not reusable.
type Supervisor struct {
	cfg       *config.Config
	catalogue *artifact.Catalogue

	fetcher  Fetcher
	locator  Locator
	rotator  Rotator
	launcher procmgr.Spawner
	monitor  Monitor
	metrics  MetricsCollector
	logger   *slog.Logger
	now      func() time.Time

	run        *Run
	driverSpec artifact.Spec
	handle     procmgr.Handle
	stopWatch  context.CancelFunc
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithFetcher replaces the artifact fetcher.
func WithFetcher(f Fetcher) Option {
	return func(s *Supervisor) { s.fetcher = f }
}

// WithLocator replaces the binary locator.
func WithLocator(l Locator) Option {
	return func(s *Supervisor) { s.locator = l }
}

// WithRotator replaces the log rotator.
func WithRotator(r Rotator) Option {
	return func(s *Supervisor) { s.rotator = r }
}

// WithLauncher replaces the server launcher.
func WithLauncher(l procmgr.Spawner) Option {
	return func(s *Supervisor) { s.launcher = l }
}

// WithMonitor replaces the health monitor.
func WithMonitor(m Monitor) Option {
	return func(s *Supervisor) { s.monitor = m }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m MetricsCollector) Option {
	return func(s *Supervisor) { s.metrics = m }
}

// WithLogger sets the base logger. Every line carries the run id.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Supervisor) { s.logger = logger }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Supervisor) { s.now = now }
}

// New creates a Supervisor for cfg. Components not supplied through
// options are built from cfg.
func New(cfg *config.Config, opts ...Option) (*Supervisor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, ErrInvalidConfiguration(err)
	}

	s := &Supervisor{
		cfg:     cfg,
		metrics: NewNoopMetricsCollector(),
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.run = &Run{
		ID:            uuid.NewString(),
		Mode:          cfg.Mode(),
		State:         StateInit,
		fatalExitCode: cfg.FatalExitCode,
	}
	s.logger = s.logger.With("run_id", s.run.ID)

	cat, err := LoadCatalogue(cfg)
	if err != nil {
		return nil, ErrInvalidConfiguration(err)
	}
	s.catalogue = cat

	if s.fetcher == nil {
		s.fetcher = NewFetcher(cfg, s.logger)
	}
	if s.locator == nil {
		s.locator = locator.New(locator.WithLogger(s.logger))
	}
	if s.rotator == nil {
		s.rotator = logrotate.New(cfg.LogRoot, cfg.LogKeep, logrotate.WithLogger(s.logger))
	}
	if s.launcher == nil {
		s.launcher = procmgr.NewLauncher(procmgr.WithLogger(s.logger))
	}
	if s.monitor == nil {
		metrics := s.metrics
		s.monitor = health.NewMonitor(NewProber(cfg),
			health.WithLogger(s.logger),
			health.WithObserver(func(snap health.Snapshot) {
				metrics.HealthProbe(snap.Status, snap.Latency)
			}))
	}

	return s, nil
}

// RunID returns the id attached to every log line of this run.
func (s *Supervisor) RunID() string {
	return s.run.ID
}

// Run executes the state machine. It returns once the run is Fatal, the
// held server exits, or ctx is cancelled. The returned Run is always
// non-nil; the error is non-nil only for terminal failures and
// cancellation.
func (s *Supervisor) Run(ctx context.Context) (*Run, error) {
	run := s.run
	run.StartedAt = s.now()

	s.logger.Info("supervisor starting",
		"mode", run.Mode,
		"port", s.cfg.Port,
		"chrome_version", s.cfg.ChromeVersion,
		"max_retries", s.cfg.MaxRetries,
		"health_retries", s.cfg.HealthRetries,
		"exhaustion_policy", s.cfg.ExhaustionPolicy)

	s.transition(StateResolving)
	if err := s.prepareLogs(); err != nil {
		return s.fail(err)
	}

	if err := s.resolve(ctx); err != nil {
		if ctx.Err() != nil {
			return s.interrupted(ctx)
		}
		return s.fail(err)
	}

	s.transition(StateLaunching)
	if err := s.launch(ctx); err != nil {
		if ctx.Err() != nil {
			return s.interrupted(ctx)
		}
		return s.fail(ErrLaunchFailed(s.cfg.ServerCommand, err))
	}

	for {
		if s.handle != nil {
			if !s.warmUp(ctx) {
				return s.interrupted(ctx)
			}

			s.transition(StateHealthChecking)
			snap := s.monitor.AwaitHealthy(ctx, s.cfg.HealthRetries, s.cfg.HealthInterval)
			run.HealthAttempts += snap.Attempt
			run.LastHealth = snap

			if snap.Healthy() {
				run.Outcome = OutcomeHealthy
				s.transition(StateHealthy)
				return s.hold(ctx)
			}
			if ctx.Err() != nil {
				return s.interrupted(ctx)
			}

			s.logger.Warn("health checks exhausted",
				"error", ErrHealthFailed(s.healthURL(), snap),
				"recovery_cycles", run.RecoveryCycles,
				"max_retries", s.cfg.MaxRetries)
		}

		if run.RecoveryCycles >= s.cfg.MaxRetries {
			return s.exhausted(ctx)
		}
		s.recover(ctx)
		if ctx.Err() != nil {
			return s.interrupted(ctx)
		}
	}
}

// prepareLogs rotates the log root, falling back to a temporary directory
// so a broken log volume does not block startup.
func (s *Supervisor) prepareLogs() error {
	dep, err := s.rotator.Rotate()
	if err == nil {
		s.run.DeployDir = dep.Dir
		s.record()
		return nil
	}

	s.logger.Error("log rotation failed, using temporary log dir", "root", s.cfg.LogRoot, "error", err)
	dir, tmpErr := os.MkdirTemp("", "selenium-supervisor-")
	if tmpErr != nil {
		return ErrLogDirUnavailable(s.cfg.LogRoot, errors.Join(err, tmpErr))
	}
	s.run.DeployDir = dir
	s.record()
	return nil
}

// resolve makes the browser and driver available.
func (s *Supervisor) resolve(ctx context.Context) error {
	driverSpec, browserSpec := Specs(s.cfg, s.catalogue)
	s.driverSpec = driverSpec

	browser, err := s.resolveBinary(ctx, browserSpec, locator.BrowserCandidates(s.cfg, browserSpec), true)
	if err != nil {
		return err
	}
	s.run.Browser = browser

	// The driver is pinned to the install root unless the operator points
	// elsewhere or runs locally.
	locateFirst := s.cfg.LocalMode || s.cfg.ChromedriverPath != ""
	driver, err := s.resolveBinary(ctx, driverSpec, locator.DriverCandidates(s.cfg, driverSpec), locateFirst)
	if err != nil {
		return err
	}
	s.run.Driver = driver

	s.logger.Info("binaries resolved",
		"chrome", browser.Path,
		"chrome_version", browser.Version,
		"chromedriver", driver.Path,
		"chromedriver_version", driver.Version)
	s.record()
	return nil
}

// resolveBinary installs spec with bounded retries. When locateFirst is
// false the locator is still consulted as a fallback after the installs
// fail.
func (s *Supervisor) resolveBinary(ctx context.Context, spec artifact.Spec, candidates []string, locateFirst bool) (*artifact.InstalledBinary, error) {
	if locateFirst {
		if bin, ok := s.locator.Locate(ctx, spec.Name, candidates); ok {
			return bin, nil
		}
		s.logger.Info("no installed binary, fetching", "error", ErrLocateFailed(spec.Name, candidates))
	}

	attempts := 1 + s.cfg.InstallRetries
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		s.run.InstallAttempts++

		start := s.now()
		bin, err := s.fetcher.Ensure(ctx, spec)
		s.metrics.FetchDuration(spec.Name, s.now().Sub(start), err)
		if err == nil {
			return bin, nil
		}

		lastErr = err
		s.logger.Warn("install attempt failed",
			"attempt", attempt,
			"max_attempts", attempts,
			"error", ErrFetchFailed(spec, attempt, err))
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	if !locateFirst {
		if bin, ok := s.locator.Locate(ctx, spec.Name, candidates); ok {
			s.logger.Warn("install failed, using existing binary", "artifact", spec.Name, "path", bin.Path)
			return bin, nil
		}
	}

	return nil, ErrInstallExhausted(spec.Name, attempts, lastErr)
}

// launch starts the server with the resolved paths exported.
func (s *Supervisor) launch(ctx context.Context) error {
	logPath := filepath.Join(s.run.DeployDir, ServerLogFile)
	cmd := procmgr.ShellCommand(s.cfg.ServerCommand, s.childEnv())
	// Relaunches append to the same log
	watcher := health.NewLogWatcher(logPath, s.cfg.ReadyMarker, s.logger).FromEnd()

	h, err := s.launcher.Launch(ctx, cmd, logPath)
	s.metrics.ServerLaunch(err)
	if err != nil {
		return err
	}

	s.handle = h
	s.run.ServerPID = h.PID()
	s.record()
	s.watchReady(ctx, watcher)
	return nil
}

func (s *Supervisor) childEnv() map[string]string {
	env := map[string]string{
		"PORT": fmt.Sprintf("%d", s.cfg.Port),
	}
	if s.run.Browser != nil {
		env["CHROME_BINARY"] = s.run.Browser.Path
	}
	if s.run.Driver != nil {
		env["CHROMEDRIVER_PATH"] = s.run.Driver.Path
	}
	return env
}

// watchReady logs when the server writes its readiness marker. It is
// informational; health probes remain authoritative.
func (s *Supervisor) watchReady(ctx context.Context, watcher *health.LogWatcher) {
	if s.cfg.ReadyMarker == "" {
		return
	}

	wctx, cancel := context.WithCancel(ctx)
	s.stopWatch = cancel

	started := s.now()
	go func() {
		ok, err := watcher.Wait(wctx)
		if err != nil {
			s.logger.Debug("readiness marker watch stopped", "error", err)
			return
		}
		if ok {
			s.logger.Info("server reported ready", "marker", s.cfg.ReadyMarker, "after", time.Since(started))
		}
	}()
}

// warmUp waits the fixed delay before the first probe of a launch.
func (s *Supervisor) warmUp(ctx context.Context) bool {
	d := s.cfg.WarmupDelay
	if d <= 0 {
		return ctx.Err() == nil
	}

	s.logger.Info("waiting for server warm-up", "delay", d)
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// recover runs one recovery cycle: stop, reinstall the driver, relaunch.
// Failures are logged and leave handle nil so the next loop iteration
// counts the cycle as failed.
func (s *Supervisor) recover(ctx context.Context) {
	run := s.run
	run.RecoveryCycles++
	s.metrics.RecoveryCycle()
	s.transition(StateRecovering)

	s.logger.Warn("starting recovery cycle",
		"cycle", run.RecoveryCycles,
		"max_retries", s.cfg.MaxRetries)
	s.stopServer()

	s.transition(StateResolving)
	run.InstallAttempts++
	start := s.now()
	driver, err := s.fetcher.Reinstall(ctx, s.driverSpec)
	s.metrics.FetchDuration(s.driverSpec.Name, s.now().Sub(start), err)
	if err != nil {
		s.logger.Warn("driver reinstall failed, keeping previous driver",
			"error", ErrFetchFailed(s.driverSpec, 1, err))
	} else {
		run.Driver = driver
	}
	if ctx.Err() != nil {
		return
	}

	s.transition(StateLaunching)
	if err := s.launch(ctx); err != nil {
		s.logger.Error("relaunch failed", "error", ErrLaunchFailed(s.cfg.ServerCommand, err))
	}
}

// exhausted handles a reached recovery ceiling according to the policy.
func (s *Supervisor) exhausted(ctx context.Context) (*Run, error) {
	run := s.run
	path := s.captureDiagnostics()

	if s.cfg.ExhaustionPolicy == config.ExhaustionKeepAlive {
		run.Outcome = outcomeFor(run.LastHealth)
		s.logger.Error("recovery attempts exhausted, keeping server alive",
			"recovery_cycles", run.RecoveryCycles,
			"outcome", run.Outcome,
			"diagnostics", path)
		s.transition(StateDegraded)
		return s.hold(ctx)
	}

	s.stopServer()
	return s.fail(ErrFatalExhaustion(run.RecoveryCycles, s.cfg.MaxRetries, path))
}

// hold blocks on the server so the container lives as long as it does.
func (s *Supervisor) hold(ctx context.Context) (*Run, error) {
	if s.handle == nil {
		s.logger.Warn("no server process to hold")
		s.finish()
		return s.run, nil
	}

	s.logger.Info("holding on server process", "pid", s.handle.PID(), "state", s.run.State)
	err := s.handle.Wait(ctx)
	if ctx.Err() != nil {
		s.logger.Info("shutdown requested, stopping server")
		s.stopServer()
	} else {
		s.logger.Warn("server process exited", "pid", s.run.ServerPID, "error", err)
		s.handle = nil
	}

	s.finish()
	return s.run, nil
}

// fail moves to Fatal and captures diagnostics.
func (s *Supervisor) fail(err error) (*Run, error) {
	run := s.run
	if run.DiagnosticsPath == "" && run.DeployDir != "" {
		s.captureDiagnostics()
	}
	s.stopServer()

	run.Outcome = OutcomeFatal
	run.Err = err
	s.transition(StateFatal)

	s.logger.Error("supervisor fatal",
		"severity", "fatal",
		"code", GetErrorCode(err),
		"error", err,
		"exit_code", run.ExitCode(),
		"diagnostics", run.DiagnosticsPath)
	s.finish()
	return run, err
}

func (s *Supervisor) interrupted(ctx context.Context) (*Run, error) {
	s.logger.Info("supervisor interrupted", "state", s.run.State)
	s.stopServer()
	s.run.Err = ctx.Err()
	s.finish()
	return s.run, ctx.Err()
}

func (s *Supervisor) stopServer() {
	if s.stopWatch != nil {
		s.stopWatch()
		s.stopWatch = nil
	}
	if s.handle == nil {
		return
	}

	start := s.now()
	if err := s.handle.Terminate(s.cfg.TerminateGrace); err != nil {
		s.logger.Warn("server did not exit cleanly", "pid", s.handle.PID(), "error", err)
	}
	s.metrics.ServerTermination(s.now().Sub(start))
	s.handle = nil
}

func (s *Supervisor) captureDiagnostics() string {
	sources := []diagnosticSource{
		{Title: "chromedriver log", Path: s.cfg.DriverLogPath},
		{Title: "chrome debug log", Path: s.cfg.BrowserDebugLogPath},
		{Title: "server log", Path: filepath.Join(s.run.DeployDir, ServerLogFile)},
	}

	path, err := captureDiagnostics(s.run.DeployDir, s.cfg.DiagnosticLines, s.run, sources)
	if err != nil {
		s.logger.Error("diagnostics capture failed", "error", err)
		return ""
	}
	s.run.DiagnosticsPath = path
	s.logger.Info("diagnostics captured", "path", path)
	return path
}

func (s *Supervisor) transition(to State) {
	from := s.run.State
	s.run.State = to
	s.metrics.StateTransition(from, to)
	s.logger.Info("state transition", "from", from.String(), "to", to.String())
	s.record()
}

func (s *Supervisor) record() {
	if s.run.DeployDir == "" {
		return
	}
	if err := writeRecord(s.run.DeployDir, s.run); err != nil {
		s.logger.Warn("run record not written", "error", err)
	}
}

func (s *Supervisor) finish() {
	if s.stopWatch != nil {
		s.stopWatch()
		s.stopWatch = nil
	}
	s.run.EndedAt = s.now()
	s.record()

	s.logger.Info("supervisor finished",
		"state", s.run.State.String(),
		"outcome", s.run.Outcome,
		"install_attempts", s.run.InstallAttempts,
		"health_attempts", s.run.HealthAttempts,
		"recovery_cycles", s.run.RecoveryCycles,
		"duration", s.run.EndedAt.Sub(s.run.StartedAt))
}

func (s *Supervisor) healthURL() string {
	if s.cfg.ProbeKind == "schema" {
		return s.cfg.SchemaURL()
	}
	return s.cfg.HealthURL()
}
