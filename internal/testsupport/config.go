package testsupport

import (
	"path/filepath"
	"testing"

	"ultidisk/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Device.BaseURL = "http://127.0.0.1:0"
	cfgVal.FTP.Host = "127.0.0.1"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithBaseURL points the REST client at a test server.
func WithBaseURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Device.BaseURL = url
	}
}

// WithDeviceID pins the device identity so no /v1/info lookup is needed.
func WithDeviceID(id string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Device.ID = id
	}
}

// WithPassword sets the device password.
func WithPassword(password string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Device.Password = password
	}
}

// WithScanWorkers overrides the scanner pool width.
func WithScanWorkers(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Scan.Workers = n
	}
}

// WithNtfyTopic enables push notifications against the given topic URL.
func WithNtfyTopic(topic string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.NtfyTopic = topic
	}
}

// BaseDir returns the temp directory backing a builder, for options that
// need to place files next to the config.
func (b *configBuilder) BaseDir() string {
	return b.baseDir
}
