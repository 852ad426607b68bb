package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateCatalog(); err != nil {
		return err
	}
	if err := c.validateGateway(); err != nil {
		return err
	}
	if err := c.validateLimits(); err != nil {
		return err
	}
	return c.validateLog()
}

func (c *Config) validateCatalog() error {
	switch c.Catalog.Type {
	case "file", "sqlite":
		if strings.TrimSpace(c.Catalog.Path) == "" {
			return fmt.Errorf("catalog.path must be set when catalog.type is %s", c.Catalog.Type)
		}
	case "http":
		if strings.TrimSpace(c.Catalog.URL) == "" {
			return errors.New("catalog.url must be set when catalog.type is http. Set BULKIMG_CATALOG_URL or edit the config file")
		}
	default:
		return fmt.Errorf("catalog.type must be file, http or sqlite, got %q", c.Catalog.Type)
	}
	return nil
}

func (c *Config) validateGateway() error {
	switch c.Gateway.Type {
	case "dir":
		if strings.TrimSpace(c.Gateway.Dir) == "" {
			return errors.New("gateway.dir must be set when gateway.type is dir")
		}
	case "http":
		if strings.TrimSpace(c.Gateway.URL) == "" {
			return errors.New("gateway.url must be set when gateway.type is http. Set BULKIMG_GATEWAY_URL or edit the config file")
		}
	default:
		return fmt.Errorf("gateway.type must be dir or http, got %q", c.Gateway.Type)
	}
	return nil
}

func (c *Config) validateLimits() error {
	if err := ensurePositiveMap(map[string]int{
		"transcode.max_dimension": c.Transcode.MaxDimension,
		"transcode.concurrency":   c.Transcode.Concurrency,
		"upload.concurrency":      c.Upload.Concurrency,
		"gateway.max_bytes":       c.Gateway.MaxBytes,
		"catalog.limit":           c.Catalog.Limit,
	}); err != nil {
		return err
	}
	if c.Transcode.Quality < 1 || c.Transcode.Quality > 100 {
		return errors.New("transcode.quality must be between 1 and 100")
	}
	if c.Match.MinScore <= 0 || c.Match.MinScore > 1 {
		return errors.New("match.min_score must be in (0, 1]")
	}
	return nil
}

func (c *Config) validateLog() error {
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// ensurePositiveMap reports the first non-positive value in key order.
func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
