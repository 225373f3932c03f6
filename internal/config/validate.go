package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSource(); err != nil {
		return err
	}
	if err := c.validateScan(); err != nil {
		return err
	}
	if err := c.validatePreview(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateNotifications() error {
	topic := c.Notifications.NtfyTopic
	if topic != "" && !strings.HasPrefix(topic, "http://") && !strings.HasPrefix(topic, "https://") {
		return fmt.Errorf("notifications.ntfy_topic must be an http(s) URL (got %q)", topic)
	}
	return nil
}

func (c *Config) validateSource() error {
	switch c.Source.Kind {
	case "v4l2", "file", "stills":
	default:
		return fmt.Errorf("source.kind must be one of v4l2, file, stills (got %q)", c.Source.Kind)
	}
	if c.Source.Device == "" {
		return fmt.Errorf("source.device must be set for source.kind %q", c.Source.Kind)
	}
	if c.Source.Width < 0 || c.Source.Height < 0 || (c.Source.Kind == "v4l2" && (c.Source.Width == 0 || c.Source.Height == 0)) {
		return fmt.Errorf("source.width and source.height must be positive (got %dx%d)", c.Source.Width, c.Source.Height)
	}
	if c.Source.FramerateNum < 0 || c.Source.FramerateDenom <= 0 {
		return errors.New("source.framerate_num must be >= 0 and source.framerate_denom > 0")
	}
	return nil
}

func (c *Config) validateScan() error {
	if c.Scan.IntervalMS < minScanIntervalMS || c.Scan.IntervalMS > maxScanIntervalMS {
		return fmt.Errorf("scan.interval_ms must be between %d and %d", minScanIntervalMS, maxScanIntervalMS)
	}
	for _, directive := range c.Scan.Symbologies {
		key, value, ok := strings.Cut(directive, "=")
		if !ok || strings.TrimSpace(key) == "" || strings.TrimSpace(value) == "" {
			return fmt.Errorf("scan.symbologies: malformed directive %q (want name=value)", directive)
		}
	}
	return nil
}

func (c *Config) validatePreview() error {
	if c.Preview.Scale > 1 {
		return errors.New("preview.scale must be in (0, 1]")
	}
	if c.Preview.JPEGQuality > 100 {
		return errors.New("preview.jpeg_quality must be between 1 and 100")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error (got %q)", c.Logging.Level)
	}
}
