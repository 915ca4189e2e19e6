package config

import (
	"errors"
	"fmt"
	"net/url"
)

const maxScanWorkers = 16

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateDevice(); err != nil {
		return err
	}
	if err := c.validateScan(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateDevice() error {
	parsed, err := url.Parse(c.Device.BaseURL)
	if err != nil {
		return fmt.Errorf("device.base_url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("device.base_url must use http or https, got %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return errors.New("device.base_url must include a host")
	}
	if c.FTP.Port > 65535 {
		return fmt.Errorf("ftp.port %d is out of range", c.FTP.Port)
	}
	return nil
}

func (c *Config) validateScan() error {
	if c.Scan.Workers > maxScanWorkers {
		return fmt.Errorf("scan.workers must be at most %d", maxScanWorkers)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	return nil
}
