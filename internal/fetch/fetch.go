package fetch

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"tvgamerefund/internal/config"
)

// Rule PDFs can run to a few MB; anything above this is not a rule document.
const maxBodySize = 10 * 1024 * 1024

// Fetcher performs all outbound HTTP for the scrapers. It holds only
// read-only configuration and is safe for concurrent use.
type Fetcher struct {
	client *http.Client
	ua     string
	cache  *Cache
}

// New builds a Fetcher from the loaded configuration. Every request
// carries an explicit timeout; the scrapers treat a timeout as a
// per-entry failure, never as a batch abort.
func New() *Fetcher {
	client := &http.Client{
		Timeout: config.Cfg.HTTPTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 3 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}
	return &Fetcher{
		client: client,
		ua:     config.Cfg.UserAgent,
		cache:  newCache(),
	}
}

// Get fetches a URL through the conditional cache, with retries and
// per-domain politeness delays.
func (f *Fetcher) Get(rawURL string) ([]byte, error) {
	body, _, err := f.cache.fetch(rawURL, f)
	return body, err
}

// GetChanged is Get but also reports whether the content changed since
// the previous fetch of the same URL.
func (f *Fetcher) GetChanged(rawURL string) ([]byte, bool, error) {
	return f.cache.fetch(rawURL, f)
}

// Post sends a form POST. Responses are never cached.
func (f *Fetcher) Post(rawURL string, form url.Values) ([]byte, error) {
	req, err := http.NewRequest("POST", rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.ua)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
}

// Head checks a URL with a HEAD request and reports whether it answered
// with a 2xx/3xx status.
func (f *Fetcher) Head(rawURL string) (ok bool, statusCode int) {
	req, err := http.NewRequest("HEAD", rawURL, nil)
	if err != nil {
		return false, 0
	}
	req.Header.Set("User-Agent", f.ua)

	resp, err := f.client.Do(req)
	if err != nil {
		return false, 0
	}
	defer resp.Body.Close()

	return resp.StatusCode >= 200 && resp.StatusCode < 400, resp.StatusCode
}

// Client exposes the underlying client for callers that need raw
// request control (the invoice direct-fetch strategy attaches session
// credentials itself).
func (f *Fetcher) Client() *http.Client { return f.client }

// UserAgent returns the configured outbound User-Agent.
func (f *Fetcher) UserAgent() string { return f.ua }

// CacheStats reports conditional-cache performance.
func (f *Fetcher) CacheStats() CacheStats { return f.cache.Stats() }
