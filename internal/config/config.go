// Package config loads bulkimg configuration from a YAML or TOML file with
// environment variable overrides.
//
// Config file format (bulkimg.yaml):
//
//	catalog:
//	  type: http
//	  url: https://api.example.com
//	  api_key: secret
//	gateway:
//	  type: dir
//	  dir: ./assets
//	  public_url: https://cdn.example.com
//	transcode:
//	  max_dimension: 1000
//	  quality: 85
//	  concurrency: 3
//
// Configuration sources, in increasing priority order:
//  1. Built-in defaults
//  2. Config file (explicit path or FindConfigFile)
//  3. Environment variables (BULKIMG_CATALOG_URL, BULKIMG_API_KEY,
//     BULKIMG_GATEWAY_DIR, BULKIMG_GATEWAY_URL, BULKIMG_LOG_LEVEL)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/AnyUserName/bulkimg/internal/catalog"
	"github.com/AnyUserName/bulkimg/internal/encoder"
	"github.com/AnyUserName/bulkimg/internal/gateway"
	"github.com/AnyUserName/bulkimg/internal/matcher"
	"github.com/AnyUserName/bulkimg/internal/pipeline"
	"github.com/AnyUserName/bulkimg/internal/transcoder"
)

// Catalog selects where entries come from.
type Catalog struct {
	// Type is "file", "http" or "sqlite".
	Type   string `yaml:"type" toml:"type"`
	Path   string `yaml:"path" toml:"path"`
	URL    string `yaml:"url" toml:"url"`
	APIKey string `yaml:"api_key" toml:"api_key"`
	Limit  int    `yaml:"limit" toml:"limit"`
	// Query overrides the SQLite select statement.
	Query string `yaml:"query" toml:"query"`
}

// Gateway selects where processed images are stored.
type Gateway struct {
	// Type is "dir" or "http".
	Type      string `yaml:"type" toml:"type"`
	Dir       string `yaml:"dir" toml:"dir"`
	URL       string `yaml:"url" toml:"url"`
	APIKey    string `yaml:"api_key" toml:"api_key"`
	Prefix    string `yaml:"prefix" toml:"prefix"`
	PublicURL string `yaml:"public_url" toml:"public_url"`
	MaxBytes  int    `yaml:"max_bytes" toml:"max_bytes"`
}

// Transcode controls image processing.
type Transcode struct {
	MaxDimension int `yaml:"max_dimension" toml:"max_dimension"`
	Quality      int `yaml:"quality" toml:"quality"`
	Concurrency  int `yaml:"concurrency" toml:"concurrency"`
}

// Upload controls the upload phase.
type Upload struct {
	Concurrency int `yaml:"concurrency" toml:"concurrency"`
}

// Match controls filename matching.
type Match struct {
	MinScore float64 `yaml:"min_score" toml:"min_score"`
}

// Log controls logging output.
type Log struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Server configures the reference asset API.
type Server struct {
	ListenAddr string `yaml:"listen_addr" toml:"listen_addr"`
}

// Config holds all application configuration.
type Config struct {
	Catalog   Catalog   `yaml:"catalog" toml:"catalog"`
	Gateway   Gateway   `yaml:"gateway" toml:"gateway"`
	Transcode Transcode `yaml:"transcode" toml:"transcode"`
	Upload    Upload    `yaml:"upload" toml:"upload"`
	Match     Match     `yaml:"match" toml:"match"`
	Log       Log       `yaml:"log" toml:"log"`
	Server    Server    `yaml:"server" toml:"server"`
}

// Default returns a Config populated with the catalog defaults.
func Default() Config {
	return Config{
		Catalog: Catalog{
			Type:  "file",
			Path:  "catalog.yaml",
			Limit: catalog.DefaultLimit,
		},
		Gateway: Gateway{
			Type:      "dir",
			Dir:       "./assets",
			Prefix:    gateway.DefaultPrefix,
			PublicURL: "http://localhost:8080",
			MaxBytes:  gateway.DefaultMaxBytes,
		},
		Transcode: Transcode{
			MaxDimension: transcoder.DefaultMaxDimension,
			Quality:      encoder.DefaultJPEGQuality,
			Concurrency:  pipeline.DefaultConcurrency,
		},
		Upload: Upload{Concurrency: pipeline.DefaultUploadConcurrency},
		Match:  Match{MinScore: matcher.DefaultMinScore},
		Log:    Log{Level: "info", Format: "text"},
		Server: Server{ListenAddr: ":8080"},
	}
}

// Load reads configuration from the file at path (if non-empty), then
// applies environment variable overrides on top.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %q: %w", path, err)
		}
		if err := decode(path, data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %q: %w", path, err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return toml.Unmarshal(data, cfg)
	case ".yaml", ".yml", "":
		return yaml.Unmarshal(data, cfg)
	default:
		return fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("BULKIMG_CATALOG_URL"); v != "" {
		cfg.Catalog.URL = v
		cfg.Catalog.Type = "http"
	}
	if v := os.Getenv("BULKIMG_API_KEY"); v != "" {
		cfg.Catalog.APIKey = v
		cfg.Gateway.APIKey = v
	}
	if v := os.Getenv("BULKIMG_GATEWAY_DIR"); v != "" {
		cfg.Gateway.Dir = v
		cfg.Gateway.Type = "dir"
	}
	if v := os.Getenv("BULKIMG_GATEWAY_URL"); v != "" {
		cfg.Gateway.URL = v
		cfg.Gateway.Type = "http"
	}
	if v := os.Getenv("BULKIMG_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

// FindConfigFile returns the path to the first config file found in the
// standard search order, or "" if none is found.
//
// Search order:
//  1. BULKIMG_CONFIG environment variable
//  2. ./bulkimg.yaml, then ./bulkimg.toml
//  3. ~/.config/bulkimg/config.yaml
func FindConfigFile() string {
	if p := os.Getenv("BULKIMG_CONFIG"); p != "" {
		return p
	}

	for _, name := range []string{"bulkimg.yaml", "bulkimg.toml"} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		p := filepath.Join(home, ".config", "bulkimg", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}

// TranscodeOptions converts the transcode section.
func (c Config) TranscodeOptions() transcoder.Options {
	opts := transcoder.DefaultOptions()
	if c.Transcode.MaxDimension > 0 {
		opts.MaxDimension = c.Transcode.MaxDimension
	}
	if c.Transcode.Quality > 0 {
		opts.Quality = c.Transcode.Quality
	}
	return opts
}

// CatalogSource builds the configured catalog source.
func (c Config) CatalogSource() (catalog.Source, error) {
	switch c.Catalog.Type {
	case "file":
		return catalog.File{Path: c.Catalog.Path}, nil
	case "http":
		return catalog.NewClient(c.Catalog.URL, c.Catalog.APIKey, c.Catalog.Limit), nil
	case "sqlite":
		return catalog.SQLite{Path: c.Catalog.Path, Query: c.Catalog.Query}, nil
	default:
		return nil, fmt.Errorf("unknown catalog type %q", c.Catalog.Type)
	}
}

// Directory builds the directory gateway from the gateway section,
// whatever the configured gateway type.
func (c Config) Directory() *gateway.Directory {
	d := gateway.NewDirectory(c.Gateway.Dir, c.Gateway.PublicURL)
	d.Prefix = c.Gateway.Prefix
	if c.Gateway.MaxBytes > 0 {
		d.MaxBytes = c.Gateway.MaxBytes
	}
	return d
}

// UploadGateway builds the configured gateway.
func (c Config) UploadGateway() (pipeline.Gateway, error) {
	switch c.Gateway.Type {
	case "dir":
		return c.Directory(), nil
	case "http":
		g := gateway.NewHTTP(c.Gateway.URL, c.Gateway.APIKey)
		if c.Gateway.MaxBytes > 0 {
			g.MaxBytes = c.Gateway.MaxBytes
		}
		return g, nil
	default:
		return nil, fmt.Errorf("unknown gateway type %q", c.Gateway.Type)
	}
}
