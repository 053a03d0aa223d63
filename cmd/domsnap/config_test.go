package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.yaml")
	data := []byte(`
in: page.html
selector: "#card"
format: svg
max_nodes: 5000
timeout: 10s
width: 640
allow_private: true
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfigFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.In != "page.html" || cfg.Selector != "#card" || cfg.Format != "svg" {
		t.Errorf("got %+v", cfg)
	}
	if cfg.MaxNodes != 5000 || cfg.Timeout != 10*time.Second || cfg.Width != 640 {
		t.Errorf("limits: got %+v", cfg)
	}
	if !cfg.AllowPrivate {
		t.Error("allow_private not read")
	}
}

func TestConfigMerge(t *testing.T) {
	flags := captureConfig{In: "-", Out: "-", Selector: "body", Format: "html", MaxNodes: 100}
	file := captureConfig{Selector: "#main", Format: "svg", Width: 320}

	got := flags.merge(file)
	if got.Selector != "#main" || got.Format != "svg" {
		t.Errorf("file values should win: %+v", got)
	}
	if got.In != "-" || got.MaxNodes != 100 {
		t.Errorf("flag values should survive where the file is silent: %+v", got)
	}
	if got.Width != 320 {
		t.Errorf("file-only values should apply: %+v", got)
	}
}
