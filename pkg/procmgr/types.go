package procmgr

import (
	"context"
	"errors"
	"time"
)

// ProcessState represents the lifecycle state of a supervised process
type ProcessState int

const (
	// ProcessStateRunning - process has been spawned and not yet exited
	ProcessStateRunning ProcessState = iota
	// ProcessStateTerminating - a termination signal has been sent
	ProcessStateTerminating
	// ProcessStateExited - process has exited and been reaped
	ProcessStateExited
)

// String returns the string representation of a ProcessState
func (ps ProcessState) String() string {
	switch ps {
	case ProcessStateRunning:
		return "Running"
	case ProcessStateTerminating:
		return "Terminating"
	case ProcessStateExited:
		return "Exited"
	default:
		return "Unknown"
	}
}

// ErrStillRunning is returned by Terminate when the process survived SIGKILL
// within the wait budget. The supervisor moves on rather than hang.
var ErrStillRunning = errors.New("process still running after kill")

// Command describes how to start the server.
type Command struct {
	Path string
	Args []string
	Env  map[string]string
	Dir  string
}

// ShellCommand runs line through /bin/sh -c so $VAR references expand
// against Env.
func ShellCommand(line string, env map[string]string) Command {
	return Command{
		Path: "/bin/sh",
		Args: []string{"-c", line},
		Env:  env,
	}
}

// Handle is the supervisor's view of a spawned child process.
type Handle interface {
	// PID returns the OS process id
	PID() int
	// LogPath returns the file receiving combined stdout/stderr
	LogPath() string
	// StartedAt returns the launch timestamp
	StartedAt() time.Time
	// State returns the current lifecycle state
	State() ProcessState
	// Alive reports whether the process has not exited
	Alive() bool
	// Terminate sends SIGTERM, then SIGKILL after grace. It never waits
	// indefinitely.
	Terminate(grace time.Duration) error
	// Wait blocks until the process exits or ctx is done
	Wait(ctx context.Context) error
}

// Spawner starts server processes.
type Spawner interface {
	Launch(ctx context.Context, cmd Command, logPath string) (Handle, error)
}
