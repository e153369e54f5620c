package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vburojevic/qcdash/internal/domain"
)

// maxBodyBytes caps how much of a response body is read
const maxBodyBytes = 64 << 20

// Response is the outcome of one GET. Non-2xx statuses are returned as
// responses, not errors; the resolver decides what counts as failure.
type Response struct {
	Status     int
	StatusText string
	Body       []byte
}

// OK reports whether the status is 2xx
func (r *Response) OK() bool {
	return r != nil && r.Status >= 200 && r.Status < 300
}

// JSON decodes the body into v
func (r *Response) JSON(v any) error {
	return json.Unmarshal(r.Body, v)
}

// Fetcher performs a GET for a source URL
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Response, error)
}

// FetcherFunc adapts a function to Fetcher
type FetcherFunc func(ctx context.Context, url string) (*Response, error)

func (f FetcherFunc) Fetch(ctx context.Context, url string) (*Response, error) { return f(ctx, url) }

// HTTPFetcher fetches http and https URLs
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
}

// NewHTTPFetcher creates a fetcher with a tuned transport. timeout applies
// to each request; zero means no client-side timeout.
func NewHTTPFetcher(timeout time.Duration, userAgent string) *HTTPFetcher {
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 60 * time.Second}).DialContext,
		MaxIdleConns:        16,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &HTTPFetcher{client: &http.Client{Timeout: timeout, Transport: tr}, userAgent: userAgent}
}

// NewHTTPFetcherWithClient wraps an existing client
func NewHTTPFetcherWithClient(client *http.Client, userAgent string) *HTTPFetcher {
	return &HTTPFetcher{client: client, userAgent: userAgent}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &domain.NetworkError{URL: rawURL, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &domain.NetworkError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &domain.NetworkError{URL: rawURL, Status: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	return &Response{
		Status:     resp.StatusCode,
		StatusText: strings.TrimSpace(strings.TrimPrefix(resp.Status, fmt.Sprint(resp.StatusCode))),
		Body:       body,
	}, nil
}

// FileFetcher reads local paths and file:// URLs. Relative paths resolve
// against Root.
type FileFetcher struct {
	Root string
}

func (f *FileFetcher) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := rawURL
	if strings.HasPrefix(rawURL, "file://") {
		u, err := url.Parse(rawURL)
		if err != nil {
			return nil, &domain.NetworkError{URL: rawURL, Err: err}
		}
		path = u.Path
	}
	if !filepath.IsAbs(path) && f.Root != "" {
		path = filepath.Join(f.Root, path)
	}

	body, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Response{Status: http.StatusNotFound, StatusText: http.StatusText(http.StatusNotFound)}, nil
	}
	if err != nil {
		return nil, &domain.NetworkError{URL: rawURL, Err: err}
	}
	return &Response{Status: http.StatusOK, StatusText: http.StatusText(http.StatusOK), Body: body}, nil
}

// Router dispatches on URL scheme: http and https go to HTTP, everything
// else to File
type Router struct {
	HTTP Fetcher
	File Fetcher
}

func (r *Router) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	if strings.HasPrefix(rawURL, "http://") || strings.HasPrefix(rawURL, "https://") {
		if r.HTTP == nil {
			return nil, &domain.NetworkError{URL: rawURL, Err: errors.New("no http fetcher configured")}
		}
		return r.HTTP.Fetch(ctx, rawURL)
	}
	if r.File == nil {
		return nil, &domain.NetworkError{URL: rawURL, Err: errors.New("no file fetcher configured")}
	}
	return r.File.Fetch(ctx, rawURL)
}
