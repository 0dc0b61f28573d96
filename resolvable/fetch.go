package resolvable

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/user-none/emweb/emuerr"
)

// Fetcher downloads the content a locator points at.
type Fetcher interface {
	Fetch(ctx context.Context, loc Locator) ([]byte, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, loc Locator) ([]byte, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, loc Locator) ([]byte, error) {
	return f(ctx, loc)
}

// Default cache size, in entries, of the shared fetcher. Cores are fetched
// as a script and binary pair, so this holds a handful of cores.
const defaultCacheEntries = 16

var (
	defaultFetcherOnce sync.Once
	defaultFetcher     *HTTPFetcher
)

// DefaultFetcher returns the process-wide caching HTTP fetcher.
func DefaultFetcher() Fetcher {
	defaultFetcherOnce.Do(func() {
		defaultFetcher = NewHTTPFetcher(WithCacheSize(defaultCacheEntries))
	})
	return defaultFetcher
}

// HTTPFetcher fetches locators over HTTP, optionally caching plain GET
// responses by URL.
type HTTPFetcher struct {
	client  *http.Client
	baseURL *url.URL
	cache   *lru.Cache[string, []byte]
}

// FetcherOption configures an HTTPFetcher.
type FetcherOption func(*HTTPFetcher)

// WithClient sets the HTTP client.
func WithClient(client *http.Client) FetcherOption {
	return func(f *HTTPFetcher) { f.client = client }
}

// WithBaseURL sets the URL relative locators such as ./core.js resolve against.
func WithBaseURL(base *url.URL) FetcherOption {
	return func(f *HTTPFetcher) { f.baseURL = base }
}

// WithCacheSize enables a response cache holding up to n entries.
func WithCacheSize(n int) FetcherOption {
	return func(f *HTTPFetcher) {
		if n <= 0 {
			f.cache = nil
			return
		}
		cache, err := lru.New[string, []byte](n)
		if err == nil {
			f.cache = cache
		}
	}
}

// NewHTTPFetcher creates a fetcher using http.DefaultClient unless configured.
func NewHTTPFetcher(opts ...FetcherOption) *HTTPFetcher {
	f := &HTTPFetcher{client: http.DefaultClient}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads the locator content, honoring ctx cancellation.
func (f *HTTPFetcher) Fetch(ctx context.Context, loc Locator) ([]byte, error) {
	req, err := f.request(ctx, loc)
	if err != nil {
		return nil, err
	}

	cacheKey := ""
	if f.cache != nil && loc.Request == nil && req.Method == http.MethodGet {
		cacheKey = req.URL.String()
		if data, ok := f.cache.Get(cacheKey); ok {
			return data, nil
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching %s: %w", emuerr.ErrLoadFailure, req.URL, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	body, err := decodedBody(resp)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %w", emuerr.ErrLoadFailure, req.URL, err)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", emuerr.ErrLoadFailure, req.URL, err)
	}

	if cacheKey != "" {
		f.cache.Add(cacheKey, data)
	}
	return data, nil
}

func (f *HTTPFetcher) request(ctx context.Context, loc Locator) (*http.Request, error) {
	if loc.Request != nil {
		return loc.Request.Clone(ctx), nil
	}

	target, err := url.Parse(loc.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing url %q: %w", emuerr.ErrInvalidInput, loc.URL, err)
	}
	if !target.IsAbs() {
		if f.baseURL == nil {
			return nil, fmt.Errorf("%w: relative url %q without base url", emuerr.ErrLoadFailure, loc.URL)
		}
		target = f.baseURL.ResolveReference(target)
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported url scheme %q", emuerr.ErrLoadFailure, target.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %w", emuerr.ErrLoadFailure, err)
	}
	req.Header.Set("Accept-Encoding", "br, gzip")
	return req, nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		target := ""
		if resp.Request != nil && resp.Request.URL != nil {
			target = resp.Request.URL.String()
		}
		return fmt.Errorf("%w: fetching %s: status %s", emuerr.ErrLoadFailure, target, resp.Status)
	}
	return nil
}

// decodedBody undoes the content encodings requested in the Accept-Encoding
// header. Setting that header disables the transport's own gzip handling.
func decodedBody(resp *http.Response) (io.Reader, error) {
	switch strings.ToLower(resp.Header.Get("Content-Encoding")) {
	case "br":
		return brotli.NewReader(resp.Body), nil
	case "gzip":
		return gzip.NewReader(resp.Body)
	default:
		return resp.Body, nil
	}
}
