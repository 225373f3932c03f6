package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
	LockDir  string `toml:"lock_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// Source describes the frame source the scanner opens.
type Source struct {
	// Kind selects the source implementation: "v4l2", "file", or "stills".
	Kind string `toml:"kind"`
	// Device is a V4L2 device node, a video file, or a directory of images.
	Device         string `toml:"device"`
	Width          int    `toml:"width"`
	Height         int    `toml:"height"`
	FramerateNum   int    `toml:"framerate_num"`
	FramerateDenom int    `toml:"framerate_denom"`
	// Loop replays a file or stills directory instead of ending the stream.
	Loop         bool   `toml:"loop"`
	FFmpegBinary string `toml:"ffmpeg_binary"`
}

// Scan contains the controller timing and symbology configuration.
type Scan struct {
	IntervalMS int  `toml:"interval_ms"`
	Autostart  bool `toml:"autostart"`
	Autoscan   bool `toml:"autoscan"`
	// Symbologies holds zbar-style directives such as "code128.min=3".
	Symbologies []string `toml:"symbologies"`
}

// Results controls how decoded payloads map onto result fields.
type Results struct {
	StrictPayload bool `toml:"strict_payload"`
}

// History controls the SQLite detection log.
type History struct {
	Enabled       bool `toml:"enabled"`
	RetentionDays int  `toml:"retention_days"`
}

// Preview controls the JPEG preview served by the HTTP API.
type Preview struct {
	Scale       float64 `toml:"scale"`
	Mirror      bool    `toml:"mirror"`
	JPEGQuality int     `toml:"jpeg_quality"`
}

// Hotplug controls the udev camera monitor.
type Hotplug struct {
	Enabled bool `toml:"enabled"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Acquisitions   bool   `toml:"acquisitions"`
	SourceLost     bool   `toml:"source_lost"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for barscan.
//
// Configuration sections by subsystem:
//   - Paths: state, log and lock directories plus the HTTP bind address
//   - Source: capture device and resolution
//   - Scan: polling interval, autostart, symbology directives
//   - Results: payload extraction policy
//   - History: SQLite detection log
//   - Preview: JPEG preview scaling
//   - Hotplug: udev camera monitor
//   - Notifications: ntfy push notification settings
//   - Logging: log format, level, and retention
type Config struct {
	Paths   Paths   `toml:"paths"`
	Source  Source  `toml:"source"`
	Scan    Scan    `toml:"scan"`
	Results Results `toml:"results"`
	History History `toml:"history"`
	Preview Preview `toml:"preview"`
	Hotplug Hotplug `toml:"hotplug"`

	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/barscan/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("barscan.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir, c.Paths.LockDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// ScanInterval returns the polling interval of the scan loop.
func (c *Config) ScanInterval() time.Duration {
	return time.Duration(c.Scan.IntervalMS) * time.Millisecond
}

// FFmpegBinary returns the ffmpeg executable used by pipeline sources.
func (c *Config) FFmpegBinary() string {
	if bin := strings.TrimSpace(c.Source.FFmpegBinary); bin != "" {
		return bin
	}
	return defaultFFmpegBinary
}

// SocketPath returns the daemon JSON-RPC socket location.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.StateDir, "barscan.sock")
}

// HistoryPath returns the SQLite detection log location.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.StateDir, "history.db")
}

// DaemonLockPath returns the single-instance lock file used by the daemon.
func (c *Config) DaemonLockPath() string {
	return filepath.Join(c.Paths.LockDir, "barscand.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}
