// Package resolver turns external resource references into self-contained
// inline representations (base64 data URIs). It is the collaborator the
// capture engine calls for every image, background, mask, and poster it
// embeds. Calls are sequenced by the single-threaded walk; the in-memory
// cache still takes a lock so one resolver can back concurrent captures.
package resolver

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Resolver resolves a resource URL into a data URI. declaredMIME overrides
// type detection when non-empty.
type Resolver interface {
	Resolve(ctx context.Context, url, declaredMIME string) (string, error)
}

// Func adapts a function to the Resolver interface.
type Func func(ctx context.Context, url, declaredMIME string) (string, error)

func (f Func) Resolve(ctx context.Context, url, declaredMIME string) (string, error) {
	return f(ctx, url, declaredMIME)
}

// Config configures the HTTP resolver.
type Config struct {
	Timeout  time.Duration // per-request timeout. Default: 30s.
	MaxBytes int64         // max resource size. Default: 10MB.
	// UserAgent sent with requests.
	UserAgent string
	// CacheBust appends a timestamp query parameter to defeat intermediary
	// caches serving stale CORS-less responses.
	CacheBust bool
	// URLValidator validates URLs before fetch (SSRF prevention).
	// Default: ValidateURL.
	URLValidator func(string) error
	// Client overrides the HTTP client. Default: one built from Timeout
	// with a redirect cap.
	Client *http.Client

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 10 * 1024 * 1024 // 10MB
	}
	if c.UserAgent == "" {
		c.UserAgent = "domsnap/1.0"
	}
	if c.URLValidator == nil {
		c.URLValidator = ValidateURL
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// HTTP fetches resources over the network and inlines them. Already-inline
// data URIs pass through untouched, which keeps resolution idempotent.
type HTTP struct {
	client *http.Client
	config Config

	mu    sync.Mutex
	cache map[string]string // url -> data URI, scoped to this resolver
}

// NewHTTP creates an HTTP resolver.
func NewHTTP(cfg Config) *HTTP {
	cfg.defaults()
	client := cfg.Client
	if client == nil {
		validate := cfg.URLValidator
		client = &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects (%d)", len(via))
				}
				if err := validate(req.URL.String()); err != nil {
					return fmt.Errorf("redirect blocked: %w", err)
				}
				return nil
			},
		}
	}
	return &HTTP{
		client: client,
		config: cfg,
		cache:  make(map[string]string),
	}
}

// Resolve fetches the URL and returns its inline representation.
func (r *HTTP) Resolve(ctx context.Context, url, declaredMIME string) (string, error) {
	if strings.HasPrefix(url, "data:") {
		return url, nil
	}

	r.mu.Lock()
	if uri, ok := r.cache[url]; ok {
		r.mu.Unlock()
		return uri, nil
	}
	r.mu.Unlock()

	if err := r.config.URLValidator(url); err != nil {
		return "", fmt.Errorf("resolver: URL blocked: %w", err)
	}

	fetchURL := url
	if r.config.CacheBust {
		sep := "?"
		if strings.Contains(fetchURL, "?") {
			sep = "&"
		}
		fetchURL = fetchURL + sep + fmt.Sprintf("v=%d", time.Now().UnixMilli())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL, nil)
	if err != nil {
		return "", fmt.Errorf("resolver: new request: %w", err)
	}
	req.Header.Set("User-Agent", r.config.UserAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("resolver: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("resolver: fetch %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, r.config.MaxBytes+1))
	if err != nil {
		return "", fmt.Errorf("resolver: read %s: %w", url, err)
	}
	if int64(len(body)) > r.config.MaxBytes {
		return "", fmt.Errorf("resolver: %s exceeds %d bytes", url, r.config.MaxBytes)
	}

	mime := declaredMIME
	if mime == "" {
		mime = Classify(url)
	}
	if mime == "" {
		if ct := resp.Header.Get("Content-Type"); ct != "" {
			mime, _, _ = strings.Cut(ct, ";")
			mime = strings.TrimSpace(mime)
		}
	}
	if mime == "" {
		mime = "application/octet-stream"
	}

	uri := Encode(mime, body)

	r.mu.Lock()
	r.cache[url] = uri
	r.mu.Unlock()

	r.config.Logger.Debug("resolver: inlined", "url", url, "mime", mime, "bytes", len(body))
	return uri, nil
}

// Encode builds a base64 data URI from raw resource bytes.
func Encode(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}
