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
	if err := c.normalizeSource(); err != nil {
		return err
	}
	c.normalizeScan()
	c.normalizeHistory()
	c.normalizePreview()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LockDir) == "" {
		c.Paths.LockDir = defaultLockDir
	}
	if c.Paths.LockDir, err = expandPath(c.Paths.LockDir); err != nil {
		return fmt.Errorf("paths.lock_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("BARSCAN_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeSource() error {
	c.Source.Kind = strings.ToLower(strings.TrimSpace(c.Source.Kind))
	if c.Source.Kind == "" {
		c.Source.Kind = defaultSourceKind
	}
	c.Source.Device = strings.TrimSpace(c.Source.Device)
	if value, ok := os.LookupEnv("BARSCAN_DEVICE"); ok && strings.TrimSpace(value) != "" {
		c.Source.Device = strings.TrimSpace(value)
	}
	if c.Source.Device == "" && c.Source.Kind == defaultSourceKind {
		c.Source.Device = defaultDevice
	}
	if c.Source.Kind != defaultSourceKind && c.Source.Device != "" {
		expanded, err := expandPath(c.Source.Device)
		if err != nil {
			return fmt.Errorf("source.device: %w", err)
		}
		c.Source.Device = expanded
	}
	if c.Source.FramerateDenom == 0 {
		c.Source.FramerateDenom = defaultFramerateDenom
	}
	c.Source.FFmpegBinary = strings.TrimSpace(c.Source.FFmpegBinary)
	return nil
}

func (c *Config) normalizeScan() {
	if c.Scan.IntervalMS == 0 {
		c.Scan.IntervalMS = defaultScanIntervalMS
	}
	cleaned := make([]string, 0, len(c.Scan.Symbologies))
	for _, directive := range c.Scan.Symbologies {
		directive = strings.ToLower(strings.TrimSpace(directive))
		if directive != "" {
			cleaned = append(cleaned, directive)
		}
	}
	if len(cleaned) == 0 {
		cleaned = DefaultSymbologies()
	}
	c.Scan.Symbologies = cleaned
}

func (c *Config) normalizeHistory() {
	if c.History.RetentionDays < 0 {
		c.History.RetentionDays = 0
	}
}

func (c *Config) normalizePreview() {
	if c.Preview.Scale <= 0 {
		c.Preview.Scale = defaultPreviewScale
	}
	if c.Preview.JPEGQuality <= 0 {
		c.Preview.JPEGQuality = defaultPreviewQuality
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNtfyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
