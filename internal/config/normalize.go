package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeDevice()
	c.normalizeFTP()
	c.normalizeScan()
	c.normalizeLogging()
	c.normalizeNotifications()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeDevice() {
	if value, ok := os.LookupEnv("ULTIDISK_BASE_URL"); ok && strings.TrimSpace(value) != "" {
		c.Device.BaseURL = value
	}
	if c.Device.Password == "" {
		if value, ok := os.LookupEnv("ULTIDISK_PASSWORD"); ok {
			c.Device.Password = value
		}
	}
	c.Device.BaseURL = strings.TrimRight(strings.TrimSpace(c.Device.BaseURL), "/")
	if c.Device.BaseURL == "" {
		c.Device.BaseURL = defaultBaseURL
	}
	if !strings.Contains(c.Device.BaseURL, "://") {
		c.Device.BaseURL = "http://" + c.Device.BaseURL
	}
	c.Device.ID = strings.TrimSpace(c.Device.ID)
	if c.Device.TimeoutSeconds <= 0 {
		c.Device.TimeoutSeconds = defaultDeviceTimeoutSeconds
	}
}

func (c *Config) normalizeFTP() {
	c.FTP.Host = strings.TrimSpace(c.FTP.Host)
	if c.FTP.Host == "" {
		c.FTP.Host = hostFromBaseURL(c.Device.BaseURL)
	}
	if c.FTP.Port <= 0 {
		c.FTP.Port = defaultFTPPort
	}
	if strings.TrimSpace(c.FTP.Username) == "" {
		c.FTP.Username = defaultFTPUsername
	}
	if c.FTP.Password == "" {
		c.FTP.Password = c.Device.Password
	}
	c.FTP.Root = strings.TrimSpace(c.FTP.Root)
	if c.FTP.Root == "" {
		c.FTP.Root = defaultFTPRoot
	}
	if c.FTP.TimeoutSeconds <= 0 {
		c.FTP.TimeoutSeconds = defaultFTPTimeoutSeconds
	}
	if c.FTP.MaxConns <= 0 {
		c.FTP.MaxConns = defaultFTPMaxConns
	}
	if c.FTP.MaxRetries <= 0 {
		c.FTP.MaxRetries = defaultFTPMaxRetries
	}
}

func (c *Config) normalizeScan() {
	if c.Scan.Workers <= 0 {
		c.Scan.Workers = defaultScanWorkers
	}
	if c.Scan.ProgressIntervalMs <= 0 {
		c.Scan.ProgressIntervalMs = defaultScanProgressMillis
	}
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if format == "" {
		format = defaultLogFormat
	}
	c.Logging.Format = format
	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	c.Logging.Level = level
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNtfyRequestTimeout
	}
}
