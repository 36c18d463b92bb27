package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sequenceProber returns the configured statuses in order, repeating the
// last one once exhausted.
type sequenceProber struct {
	mu       sync.Mutex
	statuses []Status
	calls    int
}

func (s *sequenceProber) Probe(ctx context.Context) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.calls
	if i >= len(s.statuses) {
		i = len(s.statuses) - 1
	}
	s.calls++
	return Snapshot{Status: s.statuses[i]}
}

func (s *sequenceProber) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestAwaitHealthy_ReturnsFirstHealthy(t *testing.T) {
	p := &sequenceProber{statuses: []Status{StatusUnreachable, StatusUnreachable, StatusHealthy}}
	m := NewMonitor(p)

	snap := m.AwaitHealthy(context.Background(), 3, 0)

	assert.Equal(t, StatusHealthy, snap.Status)
	assert.Equal(t, 3, snap.Attempt)
	assert.Equal(t, 3, p.Calls())
}

func TestAwaitHealthy_ExhaustsWithoutError(t *testing.T) {
	p := &sequenceProber{statuses: []Status{StatusUnhealthy}}
	m := NewMonitor(p)

	snap := m.AwaitHealthy(context.Background(), 5, 0)

	assert.Equal(t, StatusUnhealthy, snap.Status)
	assert.Equal(t, 5, snap.Attempt)
	assert.Equal(t, 5, p.Calls())
}

func TestAwaitHealthy_StopsEarlyOnHealthy(t *testing.T) {
	p := &sequenceProber{statuses: []Status{StatusRecovering, StatusHealthy, StatusUnhealthy}}

	snap := NewMonitor(p).AwaitHealthy(context.Background(), 10, 0)
	assert.True(t, snap.Healthy())
	assert.Equal(t, 2, p.Calls())
}

func TestAwaitHealthy_ConstantInterval(t *testing.T) {
	p := &sequenceProber{statuses: []Status{StatusUnreachable}}

	var mu sync.Mutex
	var stamps []time.Time
	m := NewMonitor(p, WithObserver(func(Snapshot) {
		mu.Lock()
		stamps = append(stamps, time.Now())
		mu.Unlock()
	}))

	m.AwaitHealthy(context.Background(), 4, 30*time.Millisecond)

	require.Len(t, stamps, 4)
	for i := 1; i < len(stamps); i++ {
		gap := stamps[i].Sub(stamps[i-1])
		assert.GreaterOrEqual(t, gap, 30*time.Millisecond)
		assert.Less(t, gap, 500*time.Millisecond, "interval must not grow")
	}
}

func TestAwaitHealthy_ContextCancelled(t *testing.T) {
	p := &sequenceProber{statuses: []Status{StatusUnreachable}}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	snap := NewMonitor(p).AwaitHealthy(ctx, 100, 20*time.Millisecond)

	assert.Equal(t, StatusUnreachable, snap.Status)
	assert.Less(t, p.Calls(), 100)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestAwaitHealthy_ZeroAttemptsPollsOnce(t *testing.T) {
	p := &sequenceProber{statuses: []Status{StatusHealthy}}
	NewMonitor(p).AwaitHealthy(context.Background(), 0, 0)
	assert.Equal(t, 1, p.Calls())
}

func TestHTTPProber(t *testing.T) {
	tests := []struct {
		name       string
		code       int
		body       string
		wantStatus Status
		wantPhase  string
		wantUptime float64
		wantChrome string
		wantErr    bool
	}{
		{
			name:       "healthy full body",
			code:       http.StatusOK,
			body:       `{"status":"healthy","phase":"ready","uptime_seconds":12.5,"chrome_path":"/opt/chrome"}`,
			wantStatus: StatusHealthy,
			wantPhase:  "ready",
			wantUptime: 12.5,
			wantChrome: "/opt/chrome",
		},
		{
			name:       "missing optional fields",
			code:       http.StatusOK,
			body:       `{"status":"healthy"}`,
			wantStatus: StatusHealthy,
		},
		{
			name:       "recovering",
			code:       http.StatusOK,
			body:       `{"status":"recovering","phase":"starting"}`,
			wantStatus: StatusRecovering,
			wantPhase:  "starting",
		},
		{
			name:       "other status is unhealthy",
			code:       http.StatusOK,
			body:       `{"status":"degraded"}`,
			wantStatus: StatusUnhealthy,
		},
		{
			name:       "no status field",
			code:       http.StatusOK,
			body:       `{}`,
			wantStatus: StatusUnhealthy,
		},
		{
			name:       "non json body",
			code:       http.StatusOK,
			body:       `ok`,
			wantStatus: StatusUnhealthy,
			wantErr:    true,
		},
		{
			name:       "server error",
			code:       http.StatusServiceUnavailable,
			body:       `{"status":"healthy"}`,
			wantStatus: StatusUnreachable,
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/health", r.URL.Path)
				w.WriteHeader(tt.code)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			snap := NewHTTPProber(srv.URL+"/health", time.Second).Probe(context.Background())

			assert.Equal(t, tt.wantStatus, snap.Status)
			assert.Equal(t, tt.wantPhase, snap.Phase)
			assert.Equal(t, tt.wantUptime, snap.UptimeSeconds)
			assert.Equal(t, tt.wantChrome, snap.ChromePath)
			if tt.wantErr {
				assert.Error(t, snap.Err)
			} else {
				assert.NoError(t, snap.Err)
			}
		})
	}
}

func TestHTTPProber_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL + "/health"
	srv.Close()

	snap := NewHTTPProber(url, time.Second).Probe(context.Background())
	assert.Equal(t, StatusUnreachable, snap.Status)
	assert.Error(t, snap.Err)
}

func TestHTTPProber_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	snap := NewHTTPProber(srv.URL, 50*time.Millisecond).Probe(context.Background())
	assert.Equal(t, StatusUnreachable, snap.Status)
}

func TestSchemaProber(t *testing.T) {
	var code atomic.Int32
	code.Store(http.StatusNoContent)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/mcp/schema", r.URL.Path)
		w.WriteHeader(int(code.Load()))
	}))
	defer srv.Close()

	p := NewSchemaProber(srv.URL+"/mcp/schema", time.Second)
	assert.Equal(t, StatusHealthy, p.Probe(context.Background()).Status)

	code.Store(http.StatusInternalServerError)
	assert.Equal(t, StatusUnreachable, p.Probe(context.Background()).Status)
}

func TestProberFunc(t *testing.T) {
	want := errors.New("boom")
	p := ProberFunc(func(ctx context.Context) Snapshot {
		return Snapshot{Status: StatusUnreachable, Err: want}
	})
	assert.ErrorIs(t, NewMonitor(p).Poll(context.Background()).Err, want)
}

func TestLogWatcher_MarkerAlreadyPresent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")
	require.NoError(t, os.WriteFile(path, []byte("INFO: Application startup complete.\n"), 0o644))

	ok, err := NewLogWatcher(path, "Application startup complete", nil).Wait(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLogWatcher_MarkerWrittenLater(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")

	go func() {
		time.Sleep(50 * time.Millisecond)
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return
		}
		defer f.Close()
		_, _ = f.WriteString("INFO: Waiting for application startup.\n")
		_, _ = f.WriteString("INFO: Application startup ")
		_ = f.Sync()
		time.Sleep(20 * time.Millisecond)
		_, _ = f.WriteString("complete.\n")
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ok, err := NewLogWatcher(path, "Application startup complete", nil).Wait(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLogWatcher_ContextDone(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")
	require.NoError(t, os.WriteFile(path, []byte("starting\n"), 0o644))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	ok, err := NewLogWatcher(path, "Application startup complete", nil).Wait(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLogWatcher_FromEndIgnoresEarlierRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")
	require.NoError(t, os.WriteFile(path, []byte("INFO: Application startup complete.\n"), 0o644))

	w := NewLogWatcher(path, "Application startup complete", nil).FromEnd()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	ok, err := w.Wait(ctx)
	cancel()
	require.NoError(t, err)
	assert.False(t, ok)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("INFO: Application startup complete.\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ok, err = w.Wait(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLogWatcher_FromEndMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")
	w := NewLogWatcher(path, "ready", nil).FromEnd()
	require.NoError(t, os.WriteFile(path, []byte("ready\n"), 0o644))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ok, err := w.Wait(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}
