package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// captureConfig is one capture job. A YAML config file sets the same
// fields as the flags; values present in the file take precedence.
type captureConfig struct {
	In       string `yaml:"in"`
	Out      string `yaml:"out"`
	Selector string `yaml:"selector"`
	Format   string `yaml:"format"`

	MaxNodes int           `yaml:"max_nodes"`
	Timeout  time.Duration `yaml:"timeout"`

	Width      int     `yaml:"width"`
	Height     int     `yaml:"height"`
	PixelRatio float64 `yaml:"pixel_ratio"`
	Background string  `yaml:"background"`
	Quality    float64 `yaml:"quality"`
	EmbedFonts bool    `yaml:"embed_fonts"`

	Cache        string `yaml:"cache"`
	AllowPrivate bool   `yaml:"allow_private"`
}

func loadConfigFile(path string) (captureConfig, error) {
	var cfg captureConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func (c captureConfig) merge(file captureConfig) captureConfig {
	if file.In != "" {
		c.In = file.In
	}
	if file.Out != "" {
		c.Out = file.Out
	}
	if file.Selector != "" {
		c.Selector = file.Selector
	}
	if file.Format != "" {
		c.Format = file.Format
	}
	if file.MaxNodes > 0 {
		c.MaxNodes = file.MaxNodes
	}
	if file.Timeout > 0 {
		c.Timeout = file.Timeout
	}
	if file.Width > 0 {
		c.Width = file.Width
	}
	if file.Height > 0 {
		c.Height = file.Height
	}
	if file.PixelRatio > 0 {
		c.PixelRatio = file.PixelRatio
	}
	if file.Background != "" {
		c.Background = file.Background
	}
	if file.Quality > 0 {
		c.Quality = file.Quality
	}
	if file.Cache != "" {
		c.Cache = file.Cache
	}
	if file.EmbedFonts {
		c.EmbedFonts = true
	}
	if file.AllowPrivate {
		c.AllowPrivate = true
	}
	return c
}
