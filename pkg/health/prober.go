package health

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Prober performs a single readiness probe. Implementations never return
// an error; failures are expressed as StatusUnreachable.
type Prober interface {
	Probe(ctx context.Context) Snapshot
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context) Snapshot

// Probe calls f.
func (f ProberFunc) Probe(ctx context.Context) Snapshot {
	return f(ctx)
}

// healthBody is the /health response. Every field is optional.
type healthBody struct {
	Status        string   `json:"status"`
	Phase         string   `json:"phase"`
	UptimeSeconds *float64 `json:"uptime_seconds"`
	ChromePath    string   `json:"chrome_path"`
}

// HTTPProber probes a JSON health endpoint.
type HTTPProber struct {
	URL    string
	client *http.Client
}

// NewHTTPProber creates a prober for url with a per-request timeout.
func NewHTTPProber(url string, timeout time.Duration) *HTTPProber {
	return &HTTPProber{
		URL:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Probe issues one GET against the health endpoint.
func (p *HTTPProber) Probe(ctx context.Context) Snapshot {
	start := time.Now()
	snap := Snapshot{ProbedAt: start}

	body, err := get(ctx, p.client, p.URL)
	snap.Latency = time.Since(start)
	if err != nil {
		snap.Status = StatusUnreachable
		snap.Err = err
		return snap
	}

	var hb healthBody
	if err := json.Unmarshal(body, &hb); err != nil {
		// Reachable but not speaking the health format
		snap.Status = StatusUnhealthy
		snap.Err = fmt.Errorf("decode health response: %w", err)
		return snap
	}

	snap.Status = classify(hb.Status)
	snap.Phase = hb.Phase
	snap.ChromePath = hb.ChromePath
	if hb.UptimeSeconds != nil {
		snap.UptimeSeconds = *hb.UptimeSeconds
	}
	return snap
}

// SchemaProber treats any 2xx from the schema endpoint as healthy.
type SchemaProber struct {
	URL    string
	client *http.Client
}

// NewSchemaProber creates a prober for url with a per-request timeout.
func NewSchemaProber(url string, timeout time.Duration) *SchemaProber {
	return &SchemaProber{
		URL:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Probe issues one GET against the schema endpoint.
func (p *SchemaProber) Probe(ctx context.Context) Snapshot {
	start := time.Now()
	_, err := get(ctx, p.client, p.URL)

	snap := Snapshot{ProbedAt: start, Latency: time.Since(start), Status: StatusHealthy, Phase: "schema"}
	if err != nil {
		snap.Status = StatusUnreachable
		snap.Phase = ""
		snap.Err = err
	}
	return snap
}

func get(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	return body, nil
}

// Compile-time interface compliance checks
var (
	_ Prober = (*HTTPProber)(nil)
	_ Prober = (*SchemaProber)(nil)
)
