// Package logrotate keeps one timestamped log directory per deployment and
// prunes all but the most recent ones.
package logrotate

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// DirLayout is the deployment directory name format.
const DirLayout = "2006-01-02_15-04-05"

// Deployment is one run's log directory.
type Deployment struct {
	Dir       string
	CreatedAt time.Time

	// Moved lists loose files migrated into Dir
	Moved []string
	// Pruned lists deployment directories removed by this rotation
	Pruned []string
}

// Rotator manages deployment directories under Root.
type Rotator struct {
	Root string
	Keep int

	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Rotator.
type Option func(*Rotator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Rotator) {
		r.logger = logger
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Rotator) {
		r.now = now
	}
}

// New creates a Rotator. Keep values below 1 are raised to 1.
func New(root string, keep int, opts ...Option) *Rotator {
	if keep < 1 {
		keep = 1
	}

	r := &Rotator{
		Root:   root,
		Keep:   keep,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rotate creates a new deployment directory, moves loose log files into it,
// and prunes old deployments. Only failing to create the new directory is
// an error.
func (r *Rotator) Rotate() (*Deployment, error) {
	if err := os.MkdirAll(r.Root, 0o755); err != nil {
		return nil, fmt.Errorf("create log root: %w", err)
	}

	created := r.now()
	dir, err := r.createDir(created)
	if err != nil {
		return nil, err
	}

	dep := &Deployment{Dir: dir, CreatedAt: created}
	dep.Moved = r.migrateLoose(dir)
	dep.Pruned = r.prune(filepath.Base(dir))

	r.logger.Info("log rotation complete",
		"deploy_dir", dir,
		"moved", len(dep.Moved),
		"pruned", len(dep.Pruned),
		"keep", r.Keep)

	return dep, nil
}

func (r *Rotator) createDir(created time.Time) (string, error) {
	base := filepath.Join(r.Root, created.Format(DirLayout))
	dir := base
	for i := 1; ; i++ {
		err := os.Mkdir(dir, 0o755)
		if err == nil {
			return dir, nil
		}
		if !os.IsExist(err) {
			return "", fmt.Errorf("create deployment dir: %w", err)
		}
		// Two rotations inside one second
		dir = fmt.Sprintf("%s.%d", base, i)
	}
}

// migrateLoose moves regular files directly under Root into dir.
func (r *Rotator) migrateLoose(dir string) []string {
	entries, err := os.ReadDir(r.Root)
	if err != nil {
		r.logger.Warn("list log root failed", "root", r.Root, "error", err)
		return nil
	}

	var moved []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}

		src := filepath.Join(r.Root, e.Name())
		dst := filepath.Join(dir, e.Name())
		if err := os.Rename(src, dst); err != nil {
			r.logger.Warn("move loose log failed", "file", src, "error", err)
			continue
		}
		moved = append(moved, e.Name())
	}
	return moved
}

type deployment struct {
	name    string
	created time.Time
}

// List returns deployment directories under Root, newest first.
func (r *Rotator) List() ([]string, error) {
	deps, err := r.list()
	if err != nil {
		return nil, err
	}

	names := make([]string, len(deps))
	for i, d := range deps {
		names[i] = filepath.Join(r.Root, d.name)
	}
	return names, nil
}

func (r *Rotator) list() ([]deployment, error) {
	entries, err := os.ReadDir(r.Root)
	if err != nil {
		return nil, err
	}

	var deps []deployment
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		created, ok := parseDirName(e.Name())
		if !ok {
			continue
		}
		deps = append(deps, deployment{name: e.Name(), created: created})
	}

	sort.Slice(deps, func(i, j int) bool {
		if deps[i].created.Equal(deps[j].created) {
			return deps[i].name > deps[j].name
		}
		return deps[i].created.After(deps[j].created)
	})

	return deps, nil
}

// prune keeps current plus the Keep-1 newest other deployments, whatever
// timestamp current's name carries.
func (r *Rotator) prune(current string) []string {
	deps, err := r.list()
	if err != nil {
		r.logger.Warn("list deployments failed", "root", r.Root, "error", err)
		return nil
	}

	others := deps[:0]
	for _, d := range deps {
		if d.name != current {
			others = append(others, d)
		}
	}

	var pruned []string
	for i := r.Keep - 1; i < len(others); i++ {
		path := filepath.Join(r.Root, others[i].name)
		if err := os.RemoveAll(path); err != nil {
			r.logger.Warn("prune deployment failed", "dir", path, "error", err)
			continue
		}
		pruned = append(pruned, path)
	}
	return pruned
}

// parseDirName accepts "<layout>" and "<layout>.<n>".
func parseDirName(name string) (time.Time, bool) {
	if len(name) < len(DirLayout) {
		return time.Time{}, false
	}

	t, err := time.ParseInLocation(DirLayout, name[:len(DirLayout)], time.Local)
	if err != nil {
		return time.Time{}, false
	}

	rest := name[len(DirLayout):]
	if rest != "" && rest[0] != '.' {
		return time.Time{}, false
	}
	return t, true
}
