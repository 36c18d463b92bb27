package supervisor

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// RecordFile is the run summary written into each deployment dir.
const RecordFile = "run.yaml"

// RunRecord is the YAML form of a Run.
type RunRecord struct {
	ID              string        `yaml:"id"`
	StartedAt       time.Time     `yaml:"started_at"`
	EndedAt         *time.Time    `yaml:"ended_at,omitempty"`
	Mode            string        `yaml:"mode"`
	State           string        `yaml:"state"`
	Outcome         string        `yaml:"outcome,omitempty"`
	InstallAttempts int           `yaml:"install_attempts"`
	HealthAttempts  int           `yaml:"health_attempts"`
	RecoveryCycles  int           `yaml:"recovery_cycles"`
	Driver          *BinaryRecord `yaml:"driver,omitempty"`
	Browser         *BinaryRecord `yaml:"browser,omitempty"`
	ServerPID       int           `yaml:"server_pid,omitempty"`
	LastHealth      *HealthRecord `yaml:"last_health,omitempty"`
	Diagnostics     string        `yaml:"diagnostics,omitempty"`
	Error           string        `yaml:"error,omitempty"`
}

// BinaryRecord describes a resolved binary.
type BinaryRecord struct {
	Path    string `yaml:"path"`
	Version string `yaml:"version,omitempty"`
}

// HealthRecord describes the most recent probe.
type HealthRecord struct {
	Status  string `yaml:"status"`
	Phase   string `yaml:"phase,omitempty"`
	Attempt int    `yaml:"attempt"`
}

// Record converts the run to its YAML form.
func (r *Run) Record() RunRecord {
	rec := RunRecord{
		ID:              r.ID,
		StartedAt:       r.StartedAt,
		Mode:            string(r.Mode),
		State:           r.State.String(),
		Outcome:         string(r.Outcome),
		InstallAttempts: r.InstallAttempts,
		HealthAttempts:  r.HealthAttempts,
		RecoveryCycles:  r.RecoveryCycles,
		ServerPID:       r.ServerPID,
		Diagnostics:     r.DiagnosticsPath,
	}
	if !r.EndedAt.IsZero() {
		ended := r.EndedAt
		rec.EndedAt = &ended
	}
	if r.Driver != nil {
		rec.Driver = &BinaryRecord{Path: r.Driver.Path, Version: r.Driver.Version}
	}
	if r.Browser != nil {
		rec.Browser = &BinaryRecord{Path: r.Browser.Path, Version: r.Browser.Version}
	}
	if r.LastHealth.Status != "" {
		rec.LastHealth = &HealthRecord{
			Status:  string(r.LastHealth.Status),
			Phase:   r.LastHealth.Phase,
			Attempt: r.LastHealth.Attempt,
		}
	}
	if r.Err != nil {
		rec.Error = r.Err.Error()
	}
	return rec
}

// writeRecord replaces dir/run.yaml with the current run state.
func writeRecord(dir string, run *Run) error {
	data, err := yaml.Marshal(run.Record())
	if err != nil {
		return fmt.Errorf("marshal run record: %w", err)
	}

	tmp := filepath.Join(dir, "."+RecordFile+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write run record: %w", err)
	}
	return os.Rename(tmp, filepath.Join(dir, RecordFile))
}

// ReadRecord loads a run.yaml written by a previous run.
func ReadRecord(path string) (*RunRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var rec RunRecord
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse run record: %w", err)
	}
	return &rec, nil
}
