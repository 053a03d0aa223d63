package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/microcosm-cc/bluemonday"

	"github.com/hazyhaar/domsnap"
	"github.com/hazyhaar/domsnap/dom"
	"github.com/hazyhaar/domsnap/resolver"
	"github.com/hazyhaar/domsnap/style"
)

type serverConfig struct {
	MaxNodes int
	Timeout  time.Duration
	MaxBody  int64
	Sanitize bool
	Resolver resolver.Resolver
	Logger   *slog.Logger
}

type server struct {
	cfg    serverConfig
	policy *bluemonday.Policy
}

func newServer(cfg serverConfig) *server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxBody <= 0 {
		cfg.MaxBody = 8 << 20
	}
	// Untrusted markup: strip scripts and handlers but keep everything the
	// capture needs to look right.
	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("style", "id", "class").Globally()
	policy.AllowElements("style")
	return &server{cfg: cfg, policy: policy}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealth)
	r.Post("/capture", s.handleCapture)
	return r
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *server) handleCapture(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, s.cfg.MaxBody+1))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}
	if int64(len(body)) > s.cfg.MaxBody {
		http.Error(w, "body too large", http.StatusRequestEntityTooLarge)
		return
	}

	markup := string(body)
	if s.cfg.Sanitize {
		markup = s.policy.Sanitize(markup)
	}

	doc, err := dom.ParseString(markup)
	if err != nil {
		http.Error(w, fmt.Sprintf("parse: %v", err), http.StatusBadRequest)
		return
	}
	if err := style.Apply(doc, s.cfg.Logger); err != nil {
		s.cfg.Logger.Warn("domsnapd: stylesheet application incomplete", "error", err)
	}

	q := r.URL.Query()
	format := q.Get("format")
	switch format {
	case "", "html", "svg":
	default:
		http.Error(w, fmt.Sprintf("unknown format %q", format), http.StatusBadRequest)
		return
	}

	selector := q.Get("selector")
	if selector == "" {
		selector = "body"
	}
	root, err := style.Query(doc, selector)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if root == nil {
		http.Error(w, fmt.Sprintf("selector %q matches nothing", selector), http.StatusUnprocessableEntity)
		return
	}

	opts := domsnap.Options{
		Resolver: s.cfg.Resolver,
		MaxNodes: s.cfg.MaxNodes,
		Timeout:  s.cfg.Timeout,
		Width:    atoiDefault(q.Get("width"), 0),
		Height:   atoiDefault(q.Get("height"), 0),
		Logger:   s.cfg.Logger,
	}
	if pseudo, perr := style.ForDocument(doc); perr == nil {
		opts.Pseudo = pseudo
	}

	snap, err := domsnap.Capture(r.Context(), root, opts)
	if err != nil {
		var abort *domsnap.AbortError
		if errors.As(err, &abort) {
			http.Error(w, abort.Error(), http.StatusUnprocessableEntity)
			return
		}
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	w.Header().Set("X-Capture-Id", snap.ID)
	if format == "svg" {
		w.Header().Set("Content-Type", "image/svg+xml")
		io.WriteString(w, snap.SVG())
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.WriteString(w, snap.HTML())
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return def
	}
	return n
}
