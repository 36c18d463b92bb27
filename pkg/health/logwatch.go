package health

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// LogWatcher waits for a readiness marker line to appear in the server log.
type LogWatcher struct {
	Path   string
	Marker string

	logger  *slog.Logger
	offset  int64
	partial []byte
}

// NewLogWatcher creates a watcher for marker in the log at path.
func NewLogWatcher(path, marker string, logger *slog.Logger) *LogWatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogWatcher{Path: path, Marker: marker, logger: logger}
}

// FromEnd skips whatever the log already holds, so a marker left by an
// earlier process writing to the same file is not reported.
func (w *LogWatcher) FromEnd() *LogWatcher {
	if info, err := os.Stat(w.Path); err == nil {
		w.offset = info.Size()
	}
	w.partial = nil
	return w
}

// Wait blocks until the marker is written or ctx is done. It returns true
// when the marker was seen.
func (w *LogWatcher) Wait(ctx context.Context) (bool, error) {
	if w.Marker == "" {
		return false, nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return false, fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory so a log created after Wait starts is seen
	if err := watcher.Add(filepath.Dir(w.Path)); err != nil {
		return false, fmt.Errorf("watch %s: %w", filepath.Dir(w.Path), err)
	}

	if w.scan() {
		return true, nil
	}

	for {
		select {
		case <-ctx.Done():
			return false, nil

		case event, ok := <-watcher.Events:
			if !ok {
				return false, fmt.Errorf("watcher events channel closed")
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.Path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if w.scan() {
				return true, nil
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return false, fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Warn("log watcher error", "error", err)
		}
	}
}

// scan reads bytes appended since the last call and reports whether a
// complete line containing the marker arrived.
func (w *LogWatcher) scan() bool {
	f, err := os.Open(w.Path)
	if err != nil {
		return false
	}
	defer f.Close()

	if _, err := f.Seek(w.offset, io.SeekStart); err != nil {
		return false
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return false
	}
	w.offset += int64(len(data))

	buf := append(w.partial, data...)
	marker := []byte(w.Marker)
	for {
		i := bytes.IndexByte(buf, '\n')
		if i < 0 {
			break
		}
		if bytes.Contains(buf[:i], marker) {
			w.partial = nil
			return true
		}
		buf = buf[i+1:]
	}
	w.partial = append([]byte(nil), buf...)
	return false
}
