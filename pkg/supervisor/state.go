package supervisor

import (
	"time"

	"github.com/GeneArguelles/selenium-mcp/pkg/artifact"
	"github.com/GeneArguelles/selenium-mcp/pkg/config"
	"github.com/GeneArguelles/selenium-mcp/pkg/health"
)

// State is a phase of the startup state machine.
type State int

const (
	StateInit State = iota
	StateResolving
	StateLaunching
	StateHealthChecking
	StateRecovering
	// StateHealthy - verified healthy, holding on the server process
	StateHealthy
	// StateDegraded - recovery ceiling reached under the keep-alive policy
	StateDegraded
	// StateFatal - terminal failure, the process exits non-zero
	StateFatal
)

// String returns the string representation of a State
func (s State) String() string {
	switch s {
	case StateInit:
		return "Init"
	case StateResolving:
		return "Resolving"
	case StateLaunching:
		return "Launching"
	case StateHealthChecking:
		return "HealthChecking"
	case StateRecovering:
		return "Recovering"
	case StateHealthy:
		return "Healthy"
	case StateDegraded:
		return "Degraded"
	case StateFatal:
		return "Fatal"
	default:
		return "Unknown"
	}
}

// Terminal reports whether no further transitions follow.
func (s State) Terminal() bool {
	return s == StateHealthy || s == StateDegraded || s == StateFatal
}

// Outcome is the classification recorded when a run ends.
type Outcome string

const (
	OutcomeNone       Outcome = ""
	OutcomeHealthy    Outcome = "healthy"
	OutcomeRecovering Outcome = "recovering"
	OutcomeUnhealthy  Outcome = "unhealthy"
	OutcomeFatal      Outcome = "fatal"
)

// outcomeFor maps the last health snapshot of a non-fatal run.
func outcomeFor(snap health.Snapshot) Outcome {
	switch snap.Status {
	case health.StatusHealthy:
		return OutcomeHealthy
	case health.StatusRecovering:
		return OutcomeRecovering
	default:
		return OutcomeUnhealthy
	}
}

// Run is one invocation of the supervisor. It is mutated by every phase
// and left untouched once Supervisor.Run returns.
type Run struct {
	ID        string
	StartedAt time.Time
	EndedAt   time.Time
	DeployDir string
	Mode      config.Mode

	State   State
	Outcome Outcome

	InstallAttempts int
	HealthAttempts  int
	RecoveryCycles  int

	Driver     *artifact.InstalledBinary
	Browser    *artifact.InstalledBinary
	ServerPID  int
	LastHealth health.Snapshot

	// DiagnosticsPath is set when diagnostics were captured
	DiagnosticsPath string
	// Err is the error that ended the run, if any
	Err error

	fatalExitCode int
}

// ExitCode returns the process exit status for the run. Only the Fatal
// state exits non-zero.
func (r *Run) ExitCode() int {
	if r.State != StateFatal {
		return 0
	}
	if r.fatalExitCode == 0 {
		return 1
	}
	return r.fatalExitCode
}
