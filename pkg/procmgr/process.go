// Package procmgr spawns and terminates the supervised server process.
//
// Processes are started detached in their own process group with combined
// output redirected to a log file. Launch returns as soon as the process has
// been started; readiness is the health monitor's concern.
package procmgr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// Launcher starts server processes as background children.
type Launcher struct {
	logger   *slog.Logger
	killWait time.Duration
}

// LauncherOption configures a Launcher.
type LauncherOption func(*Launcher)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) LauncherOption {
	return func(l *Launcher) {
		l.logger = logger
	}
}

// WithKillWait bounds how long Terminate waits after SIGKILL.
func WithKillWait(d time.Duration) LauncherOption {
	return func(l *Launcher) {
		l.killWait = d
	}
}

// NewLauncher creates a Launcher.
func NewLauncher(opts ...LauncherOption) *Launcher {
	l := &Launcher{
		logger:   slog.Default(),
		killWait: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Launch starts cmd without waiting for it to become ready. The child is
// not tied to ctx; it outlives cancellation until Terminate is called.
func (l *Launcher) Launch(ctx context.Context, cmd Command, logPath string) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open server log: %w", err)
	}

	c := exec.Command(cmd.Path, cmd.Args...)
	c.Dir = cmd.Dir
	c.Env = os.Environ()
	for k, v := range cmd.Env {
		c.Env = append(c.Env, fmt.Sprintf("%s=%s", k, v))
	}
	c.Stdout = logFile
	c.Stderr = logFile
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := c.Start(); err != nil {
		logFile.Close()
		return nil, fmt.Errorf("start process: %w", err)
	}

	p := &ServerProcess{
		cmd:       c,
		logFile:   logFile,
		logPath:   logPath,
		startedAt: time.Now(),
		done:      make(chan struct{}),
		logger:    l.logger.With("pid", c.Process.Pid),
		killWait:  l.killWait,
	}
	go p.reap()

	l.logger.Info("server launched", "pid", c.Process.Pid, "command", cmd.Path, "log", logPath)
	return p, nil
}

// ServerProcess is a running child started by Launcher.
type ServerProcess struct {
	cmd       *exec.Cmd
	logFile   *os.File
	logPath   string
	startedAt time.Time
	logger    *slog.Logger
	killWait  time.Duration

	mu          sync.Mutex
	terminating bool
	exitErr     error
	done        chan struct{}
}

func (p *ServerProcess) reap() {
	err := p.cmd.Wait()

	p.mu.Lock()
	p.exitErr = err
	p.mu.Unlock()

	p.logFile.Close()
	close(p.done)
	p.logger.Info("server exited", "error", err)
}

// PID returns the OS process id.
func (p *ServerProcess) PID() int { return p.cmd.Process.Pid }

// LogPath returns the server log file.
func (p *ServerProcess) LogPath() string { return p.logPath }

// StartedAt returns the launch timestamp.
func (p *ServerProcess) StartedAt() time.Time { return p.startedAt }

// Alive reports whether the process has not exited.
func (p *ServerProcess) Alive() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// State returns the current lifecycle state.
func (p *ServerProcess) State() ProcessState {
	if !p.Alive() {
		return ProcessStateExited
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.terminating {
		return ProcessStateTerminating
	}
	return ProcessStateRunning
}

// ExitErr returns the error from the reaped process, nil while running.
func (p *ServerProcess) ExitErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitErr
}

// Terminate signals the process group with SIGTERM, waits up to grace,
// then SIGKILLs. A process that survives the kill wait is abandoned with
// ErrStillRunning.
func (p *ServerProcess) Terminate(grace time.Duration) error {
	if !p.Alive() {
		return nil
	}

	p.mu.Lock()
	p.terminating = true
	p.mu.Unlock()

	if err := p.signal(unix.SIGTERM); err != nil {
		p.logger.Warn("SIGTERM failed", "error", err)
	}

	select {
	case <-p.done:
		p.logger.Info("server exited gracefully")
		return nil
	case <-time.After(grace):
	}

	p.logger.Warn("server did not exit within grace period, force killing", "grace", grace)
	if err := p.signal(unix.SIGKILL); err != nil {
		p.logger.Warn("SIGKILL failed", "error", err)
	}

	select {
	case <-p.done:
		return nil
	case <-time.After(p.killWait):
		return fmt.Errorf("%w: pid %d", ErrStillRunning, p.PID())
	}
}

// signal targets the whole process group so shell wrappers and their
// children go together, falling back to the single process.
func (p *ServerProcess) signal(sig unix.Signal) error {
	pid := p.PID()
	if err := unix.Kill(-pid, sig); err != nil {
		return p.cmd.Process.Signal(sig)
	}
	return nil
}

// Wait blocks until the process exits or ctx is done.
func (p *ServerProcess) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.ExitErr()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Compile-time interface compliance check
var _ Handle = (*ServerProcess)(nil)
var _ Spawner = (*Launcher)(nil)
