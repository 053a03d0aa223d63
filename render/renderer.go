package render

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/hazyhaar/domsnap/raster"
)

// Config configures the rasterizing Renderer.
type Config struct {
	// RemoteURL is the WebSocket URL of an external Chrome instance.
	// Empty = launch a local Chrome via launcher.
	RemoteURL string

	// Stealth applies anti-detection page setup. Pages rendering captured
	// markup rarely need it; it matters when the artifact pulls late
	// resources from origins that fingerprint clients.
	Stealth bool

	// LoadTimeout bounds document load before the screenshot. Default: 30s.
	LoadTimeout time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.LoadTimeout <= 0 {
		c.LoadTimeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// RasterOptions shape one rasterization.
type RasterOptions struct {
	Width, Height int     // viewport size; defaults 800×600
	PixelRatio    float64 // device scale factor, 0 = 1
	Background    string  // painted behind the artifact when non-empty
	Quality       float64 // JPEG quality 0–1; 0 = encoder default
}

// Renderer rasterizes artifact documents through headless Chrome. It owns
// the browser lifecycle: the first render launches (or connects to)
// Chrome, Close tears it down. Safe for concurrent use; each render gets
// its own page.
type Renderer struct {
	cfg Config

	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	closed  bool
}

// NewRenderer creates a Renderer. Chrome is not started until needed.
func NewRenderer(cfg Config) *Renderer {
	cfg.defaults()
	return &Renderer{cfg: cfg}
}

// PNG rasterizes an artifact fragment (typically the SVG document from
// SVG) to PNG bytes.
func (r *Renderer) PNG(ctx context.Context, fragment string, o RasterOptions) ([]byte, error) {
	return r.screenshot(ctx, fragment, o, proto.PageCaptureScreenshotFormatPng)
}

// JPEG rasterizes an artifact fragment to JPEG bytes. The screenshot is
// taken lossless and re-encoded so quality handling matches the rest of
// the still-image pipeline.
func (r *Renderer) JPEG(ctx context.Context, fragment string, o RasterOptions) ([]byte, error) {
	data, err := r.screenshot(ctx, fragment, o, proto.PageCaptureScreenshotFormatPng)
	if err != nil {
		return nil, err
	}
	img, _, err := raster.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("render: decode screenshot: %w", err)
	}
	return raster.EncodeJPEG(img, o.Quality)
}

func (r *Renderer) screenshot(ctx context.Context, fragment string, o RasterOptions, format proto.PageCaptureScreenshotFormat) ([]byte, error) {
	b, err := r.ensureBrowser()
	if err != nil {
		return nil, err
	}

	var page *rod.Page
	if r.cfg.Stealth {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return nil, fmt.Errorf("render: create page: %w", err)
	}
	defer page.Close()

	w, h := o.Width, o.Height
	if w <= 0 {
		w = 800
	}
	if h <= 0 {
		h = 600
	}
	ratio := o.PixelRatio
	if ratio <= 0 {
		ratio = 1
	}
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             w,
		Height:            h,
		DeviceScaleFactor: ratio,
	}); err != nil {
		return nil, fmt.Errorf("render: set viewport: %w", err)
	}

	loadCtx, cancel := context.WithTimeout(ctx, r.cfg.LoadTimeout)
	defer cancel()

	if err := page.Context(loadCtx).SetDocumentContent(Page(fragment, o.Background)); err != nil {
		return nil, fmt.Errorf("render: set content: %w", err)
	}
	if err := page.Context(loadCtx).WaitLoad(); err != nil {
		r.cfg.Logger.Warn("render: wait load timeout", "error", err)
	}

	data, err := page.Context(ctx).Screenshot(false, &proto.PageCaptureScreenshot{Format: format})
	if err != nil {
		return nil, fmt.Errorf("render: screenshot: %w", err)
	}
	return data, nil
}

func (r *Renderer) ensureBrowser() (*rod.Browser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, fmt.Errorf("render: renderer is closed")
	}
	if r.browser != nil {
		return r.browser, nil
	}

	var wsURL string
	if r.cfg.RemoteURL != "" {
		wsURL = r.cfg.RemoteURL
		r.cfg.Logger.Info("render: connecting to remote chrome", "url", wsURL)
	} else {
		l := launcher.New().Headless(true)
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("render: launch chrome: %w", err)
		}
		wsURL = u
		r.lnch = l
		r.cfg.Logger.Info("render: launched local chrome", "url", wsURL)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("render: connect: %w", err)
	}
	r.browser = b
	return b, nil
}

// Close shuts down Chrome.
func (r *Renderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	if r.browser != nil {
		r.browser.Close()
		r.browser = nil
	}
	if r.lnch != nil {
		r.lnch.Cleanup()
		r.lnch = nil
	}
	return nil
}
