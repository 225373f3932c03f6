package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"barscan/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("BARSCAN_DEVICE", "")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantState := filepath.Join(tempHome, ".local", "share", "barscan")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	if cfg.Paths.APIBind != "127.0.0.1:7491" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.Source.Device != "/dev/video0" {
		t.Fatalf("unexpected device: %q", cfg.Source.Device)
	}
	if cfg.Source.Width != 1280 || cfg.Source.Height != 1024 {
		t.Fatalf("unexpected resolution: %dx%d", cfg.Source.Width, cfg.Source.Height)
	}
	if got := cfg.ScanInterval().Milliseconds(); got != 150 {
		t.Fatalf("unexpected scan interval: %dms", got)
	}
	if len(cfg.Scan.Symbologies) != len(config.DefaultSymbologies()) {
		t.Fatalf("expected default symbologies, got %v", cfg.Scan.Symbologies)
	}
	if cfg.SocketPath() != filepath.Join(wantState, "barscan.sock") {
		t.Fatalf("unexpected socket path: %q", cfg.SocketPath())
	}
	if cfg.Logging.Format != "console" {
		t.Fatalf("unexpected log format: %q", cfg.Logging.Format)
	}
}

func TestLoadCustomConfig(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("BARSCAN_DEVICE", "")

	configPath := filepath.Join(t.TempDir(), "config.toml")
	content := `
[paths]
state_dir = "~/scanner"

[source]
kind = "stills"
device = "~/frames"
width = 640
height = 480

[scan]
interval_ms = 50
symbologies = ["enable=0", " QRCODE.enable=1 "]

[results]
strict_payload = true

[logging]
format = "JSON"
level = "DEBUG"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: %q", resolved)
	}
	if cfg.Paths.StateDir != filepath.Join(tempHome, "scanner") {
		t.Fatalf("unexpected state dir: %q", cfg.Paths.StateDir)
	}
	if cfg.Source.Device != filepath.Join(tempHome, "frames") {
		t.Fatalf("expected stills directory to be expanded, got %q", cfg.Source.Device)
	}
	if cfg.Scan.IntervalMS != 50 {
		t.Fatalf("unexpected interval: %d", cfg.Scan.IntervalMS)
	}
	if got := strings.Join(cfg.Scan.Symbologies, ","); got != "enable=0,qrcode.enable=1" {
		t.Fatalf("unexpected symbologies: %q", got)
	}
	if !cfg.Results.StrictPayload {
		t.Fatal("expected strict payload")
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected logging config: %+v", cfg.Logging)
	}
}

func TestDeviceEnvironmentOverride(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("BARSCAN_DEVICE", "/dev/video7")

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Source.Device != "/dev/video7" {
		t.Fatalf("expected env device, got %q", cfg.Source.Device)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"kind", func(c *config.Config) { c.Source.Kind = "gstreamer" }, "source.kind"},
		{"resolution", func(c *config.Config) { c.Source.Width = 0 }, "source.width"},
		{"framerate", func(c *config.Config) { c.Source.FramerateDenom = 0 }, "framerate"},
		{"interval", func(c *config.Config) { c.Scan.IntervalMS = 1 }, "scan.interval_ms"},
		{"directive", func(c *config.Config) { c.Scan.Symbologies = []string{"qrcode"} }, "malformed directive"},
		{"preview", func(c *config.Config) { c.Preview.Scale = 2 }, "preview.scale"},
		{"level", func(c *config.Config) { c.Logging.Level = "verbose" }, "logging.level"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestCreateSampleRoundTripsThroughLoad(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("BARSCAN_DEVICE", "")
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		t.Fatalf("sample is not valid TOML: %v", err)
	}
	for _, section := range []string{"paths", "source", "scan", "results", "history", "preview", "hotplug", "logging"} {
		if _, ok := raw[section]; !ok {
			t.Fatalf("sample config missing [%s]", section)
		}
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	defaults := config.Default()
	if cfg.Scan.IntervalMS != defaults.Scan.IntervalMS {
		t.Fatalf("sample interval %d differs from default %d", cfg.Scan.IntervalMS, defaults.Scan.IntervalMS)
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.LockDir = filepath.Join(base, "locks")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Paths.StateDir, cfg.Paths.LogDir, cfg.Paths.LockDir} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s: %v", dir, err)
		}
	}
}
