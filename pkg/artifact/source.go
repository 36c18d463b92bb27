package artifact

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Source opens a remote archive for streaming.
type Source interface {
	Open(ctx context.Context, rawURL string) (io.ReadCloser, int64, error)
}

// HTTPSource fetches archives over HTTP(S).
type HTTPSource struct {
	Client *http.Client
}

// NewHTTPSource creates an HTTP source with an overall request timeout.
func NewHTTPSource(timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		Client: &http.Client{Timeout: timeout},
	}
}

// Open issues a GET and returns the body on a 2xx response.
func (s *HTTPSource) Open(ctx context.Context, rawURL string) (io.ReadCloser, int64, error) {
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: build request: %v", ErrDownloadFailed, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, 0, fmt.Errorf("%w: %s returned %s", ErrDownloadFailed, rawURL, resp.Status)
	}

	return resp.Body, resp.ContentLength, nil
}

// SchemeRouter dispatches to a Source by URL scheme.
type SchemeRouter struct {
	sources map[string]Source
}

// NewSchemeRouter creates a router with the http and https schemes bound to
// httpSource.
func NewSchemeRouter(httpSource Source) *SchemeRouter {
	return &SchemeRouter{
		sources: map[string]Source{
			"http":  httpSource,
			"https": httpSource,
		},
	}
}

// Register binds a scheme to a source.
func (r *SchemeRouter) Register(scheme string, source Source) {
	r.sources[scheme] = source
}

// Open implements Source.
func (r *SchemeRouter) Open(ctx context.Context, rawURL string) (io.ReadCloser, int64, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: parse url: %v", ErrDownloadFailed, err)
	}

	source, ok := r.sources[u.Scheme]
	if !ok {
		return nil, 0, fmt.Errorf("%w: unsupported scheme %q", ErrDownloadFailed, u.Scheme)
	}

	return source.Open(ctx, rawURL)
}
