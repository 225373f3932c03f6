package testsupport

import (
	"path/filepath"
	"testing"

	"barscan/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Hot-plug monitoring is off and the API binds an ephemeral port.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.LockDir = filepath.Join(base, "locks")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Hotplug.Enabled = false

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithStillsSource points the source at a directory of images.
func WithStillsSource(dir string, loop bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Source.Kind = "stills"
		b.cfg.Source.Device = dir
		b.cfg.Source.Loop = loop
	}
}

// WithAutostart toggles starting the scanner with the daemon.
func WithAutostart(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Scan.Autostart = enabled
	}
}

// WithScanInterval overrides the frame interval in milliseconds.
func WithScanInterval(ms int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Scan.IntervalMS = ms
	}
}

// WithHistory toggles the detection history database.
func WithHistory(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.History.Enabled = enabled
	}
}

// WithAPIToken sets the bearer token required by the HTTP API.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.APIToken = token
	}
}

// BaseDir exposes the temp root for options that need to place files.
func (b *configBuilder) BaseDir() string {
	return b.baseDir
}
