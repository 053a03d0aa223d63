// Command domsnap captures a region of an HTML document into a
// self-contained artifact.
//
// Usage:
//
//	domsnap -in page.html -selector "#card" -format html
//	domsnap -in page.html -format png -width 800 -height 600 > card.png
//	domsnap -config capture.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/domsnap"
	"github.com/hazyhaar/domsnap/dom"
	"github.com/hazyhaar/domsnap/render"
	"github.com/hazyhaar/domsnap/resolver"
	"github.com/hazyhaar/domsnap/style"
)

func main() {
	configPath := flag.String("config", "", "path to capture.yaml config file")
	in := flag.String("in", "-", "input HTML file, - for stdin")
	out := flag.String("out", "-", "output file, - for stdout")
	selector := flag.String("selector", "body", "CSS selector of the capture root")
	format := flag.String("format", "html", "output format: html, svg, png, jpeg")
	maxNodes := flag.Int("max-nodes", 0, "abort captures above this node count (0 = unlimited)")
	timeout := flag.Duration("timeout", 0, "abort captures above this duration (0 = unlimited)")
	width := flag.Int("width", 0, "artifact width in px")
	height := flag.Int("height", 0, "artifact height in px")
	pixelRatio := flag.Float64("pixel-ratio", 0, "raster device scale factor")
	background := flag.String("background", "", "raster background")
	quality := flag.Float64("quality", 0, "jpeg quality 0-1")
	embedFonts := flag.Bool("embed-fonts", false, "inline @font-face resources into the artifact")
	cachePath := flag.String("cache", "", "sqlite resource cache path")
	allowPrivate := flag.Bool("allow-private", false, "allow resource URLs resolving to private addresses")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := captureConfig{
		In: *in, Out: *out, Selector: *selector, Format: *format,
		MaxNodes: *maxNodes, Timeout: *timeout,
		Width: *width, Height: *height, PixelRatio: *pixelRatio,
		Background: *background, Quality: *quality, EmbedFonts: *embedFonts,
		Cache: *cachePath, AllowPrivate: *allowPrivate,
	}
	if *configPath != "" {
		loaded, err := loadConfigFile(*configPath)
		if err != nil {
			logger.Error("domsnap: fatal", "error", err)
			os.Exit(1)
		}
		cfg = cfg.merge(loaded)
	}

	if err := run(ctx, logger, cfg); err != nil {
		logger.Error("domsnap: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, cfg captureConfig) error {
	src, err := readInput(cfg.In)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	doc, err := dom.ParseString(string(src))
	if err != nil {
		return fmt.Errorf("parse document: %w", err)
	}
	fetchLinkedSheets(ctx, doc, logger)
	if err := style.Apply(doc, logger); err != nil {
		logger.Warn("domsnap: stylesheet application incomplete", "error", err)
	}

	root, err := style.Query(doc, cfg.Selector)
	if err != nil {
		return err
	}
	if root == nil {
		return fmt.Errorf("selector %q matches nothing", cfg.Selector)
	}

	res, closeRes, err := buildResolver(cfg, logger)
	if err != nil {
		return err
	}
	defer closeRes()

	pseudo, err := style.ForDocument(doc)
	if err != nil {
		logger.Warn("domsnap: pseudo-element styling unavailable", "error", err)
	}

	opts := domsnap.Options{
		Resolver:   res,
		MaxNodes:   cfg.MaxNodes,
		Timeout:    cfg.Timeout,
		Width:      cfg.Width,
		Height:     cfg.Height,
		PixelRatio: cfg.PixelRatio,
		Background: cfg.Background,
		Quality:    cfg.Quality,
		EmbedFonts: cfg.EmbedFonts,
		Logger:     logger,
	}
	if pseudo != nil {
		opts.Pseudo = pseudo
	}

	snap, err := domsnap.Capture(ctx, root, opts)
	if err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	logger.Info("capture complete", "capture_id", snap.ID,
		"processed", snap.Processed, "duration", snap.Duration)

	data, err := encode(ctx, snap, cfg.Format)
	if err != nil {
		return err
	}
	return writeOutput(cfg.Out, data)
}

func encode(ctx context.Context, snap *domsnap.Snapshot, format string) ([]byte, error) {
	switch format {
	case "", "html":
		return []byte(snap.HTML()), nil
	case "svg":
		return []byte(snap.SVG()), nil
	case "png", "jpeg":
		r := render.NewRenderer(render.Config{})
		defer r.Close()
		if format == "png" {
			return snap.PNG(ctx, r)
		}
		return snap.JPEG(ctx, r)
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
}

func buildResolver(cfg captureConfig, logger *slog.Logger) (resolver.Resolver, func(), error) {
	rcfg := resolver.Config{Logger: logger}
	if cfg.AllowPrivate {
		rcfg.URLValidator = resolver.AllowAll
	}
	base := resolver.NewHTTP(rcfg)
	if cfg.Cache == "" {
		return base, func() {}, nil
	}
	dc, err := resolver.OpenDiskCache(cfg.Cache, base, 24*time.Hour, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open cache %s: %w", cfg.Cache, err)
	}
	return dc, func() { dc.Close() }, nil
}

// fetchLinkedSheets pulls external stylesheets referenced by the document
// so the cascade sees them. Failures degrade to capturing without that
// sheet.
func fetchLinkedSheets(ctx context.Context, doc *dom.Document, logger *slog.Logger) {
	if len(doc.SheetLinks) == 0 {
		return
	}
	client := &http.Client{Timeout: 15 * time.Second}
	for _, href := range doc.SheetLinks {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, href, nil)
		if err != nil {
			logger.Warn("domsnap: bad stylesheet link", "href", href, "error", err)
			continue
		}
		resp, err := client.Do(req)
		if err != nil {
			logger.Warn("domsnap: stylesheet fetch failed", "href", href, "error", err)
			continue
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		resp.Body.Close()
		if err != nil || resp.StatusCode != http.StatusOK {
			logger.Warn("domsnap: stylesheet fetch failed", "href", href, "status", resp.StatusCode)
			continue
		}
		doc.Sheets = append(doc.Sheets, string(body))
	}
}

func readInput(path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func writeOutput(path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
