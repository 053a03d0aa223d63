// Command domsnapd serves captures over HTTP.
//
// POST /capture with an HTML document body returns the self-contained
// artifact. Query parameters: selector (default body), format (html or
// svg), width, height.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/domsnap/resolver"
)

func main() {
	addr := flag.String("addr", ":8472", "listen address")
	maxNodes := flag.Int("max-nodes", 50_000, "per-request node cap (0 = unlimited)")
	timeout := flag.Duration("timeout", 30*time.Second, "per-request capture timeout")
	maxBody := flag.Int64("max-body", 8<<20, "maximum request body bytes")
	sanitize := flag.Bool("sanitize", true, "sanitize untrusted input markup before parsing")
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

	rcfg := resolver.Config{Logger: logger}
	if *allowPrivate {
		rcfg.URLValidator = resolver.AllowAll
	}
	var res resolver.Resolver = resolver.NewHTTP(rcfg)
	if *cachePath != "" {
		dc, err := resolver.OpenDiskCache(*cachePath, res, 24*time.Hour, logger)
		if err != nil {
			logger.Error("domsnapd: fatal", "error", err)
			os.Exit(1)
		}
		defer dc.Close()
		res = dc
	}

	srv := newServer(serverConfig{
		MaxNodes: *maxNodes,
		Timeout:  *timeout,
		MaxBody:  *maxBody,
		Sanitize: *sanitize,
		Resolver: res,
		Logger:   logger,
	})

	httpSrv := &http.Server{
		Addr:              *addr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpSrv.Shutdown(shutdownCtx)
	}()

	logger.Info("domsnapd: listening", "addr", *addr)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("domsnapd: fatal", "error", err)
		os.Exit(1)
	}
}
