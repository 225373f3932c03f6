package capture

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"barscan/internal/config"
	"barscan/internal/faults"
	"barscan/internal/logging"
)

// ErrEndOfStream is returned by ReadFrame once a finite source is exhausted
// or the capture process has exited.
var ErrEndOfStream = errors.New("end of stream")

// Kind selects a Source implementation.
type Kind string

const (
	KindV4L2   Kind = "v4l2"
	KindFile   Kind = "file"
	KindStills Kind = "stills"
)

const (
	defaultFramerateNum   = 30
	defaultFramerateDenom = 1
)

// Config describes how to open a frame source. The JSON form matches the
// lines printed by DeviceCaps so they can be fed back to "barscan fromjson".
type Config struct {
	Kind           Kind   `json:"kind,omitempty"`
	Device         string `json:"device_name"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	FramerateNum   int    `json:"framerate_num"`
	FramerateDenom int    `json:"framerate_denom"`
	Loop           bool   `json:"loop,omitempty"`
	// Format is the capture pixel format reported by the device, informational only.
	Format string `json:"format,omitempty"`
}

// ConfigFromSettings converts the [source] section of the configuration file.
func ConfigFromSettings(src config.Source) Config {
	return Config{
		Kind:           Kind(src.Kind),
		Device:         src.Device,
		Width:          src.Width,
		Height:         src.Height,
		FramerateNum:   src.FramerateNum,
		FramerateDenom: src.FramerateDenom,
		Loop:           src.Loop,
	}.withDefaults()
}

// ParseJSON decodes a source configuration object such as
// {"device_name":"/dev/video0","width":640,"height":480,"framerate_num":30,"framerate_denom":1}.
func ParseJSON(data []byte) (Config, error) {
	var cfg Config
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, faults.Wrap(faults.ErrConfiguration, "capture", "parse json", "", err)
	}
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) withDefaults() Config {
	c.Kind = Kind(strings.ToLower(strings.TrimSpace(string(c.Kind))))
	if c.Kind == "" {
		c.Kind = KindV4L2
	}
	c.Device = strings.TrimSpace(c.Device)
	if c.FramerateNum == 0 && c.FramerateDenom == 0 {
		c.FramerateNum, c.FramerateDenom = defaultFramerateNum, defaultFramerateDenom
	}
	if c.FramerateDenom == 0 {
		c.FramerateDenom = defaultFramerateDenom
	}
	return c
}

// Validate reports configuration problems as ErrConfiguration.
func (c Config) Validate() error {
	switch c.Kind {
	case KindV4L2, KindFile, KindStills:
	default:
		return faults.Wrap(faults.ErrConfiguration, "capture", "validate", fmt.Sprintf("unknown source kind %q", c.Kind), nil)
	}
	if strings.TrimSpace(c.Device) == "" {
		return faults.Wrap(faults.ErrConfiguration, "capture", "validate", "device_name is required", nil)
	}
	// File sources with no size take the size of the video stream.
	if c.Width < 0 || c.Height < 0 || (c.Kind == KindV4L2 && (c.Width == 0 || c.Height == 0)) {
		return faults.Wrap(faults.ErrConfiguration, "capture", "validate",
			fmt.Sprintf("resolution %dx%d must be positive", c.Width, c.Height), nil)
	}
	if c.FramerateNum < 0 || c.FramerateDenom <= 0 {
		return faults.Wrap(faults.ErrConfiguration, "capture", "validate",
			fmt.Sprintf("framerate %d/%d is invalid", c.FramerateNum, c.FramerateDenom), nil)
	}
	return nil
}

// Framerate renders the rational frame rate as "num/denom".
func (c Config) Framerate() string {
	return fmt.Sprintf("%d/%d", c.FramerateNum, c.FramerateDenom)
}

// Resolution renders the configured size as "WxH".
func (c Config) Resolution() string {
	return fmt.Sprintf("%dx%d", c.Width, c.Height)
}

// Source produces frames on demand.
type Source interface {
	// ReadFrame blocks until a frame newer than the previous one is available.
	// It returns ErrEndOfStream when the source is exhausted.
	ReadFrame(ctx context.Context) (Frame, error)
	// Release stops capture and frees the device. It is safe to call twice.
	Release() error
}

// Pauser is implemented by sources that can suspend capture without
// releasing the device.
type Pauser interface {
	Pause() error
	Resume() error
}

// Opener opens a Source for a configuration.
type Opener interface {
	Open(ctx context.Context, cfg Config) (Source, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(ctx context.Context, cfg Config) (Source, error)

// Open calls f.
func (f OpenerFunc) Open(ctx context.Context, cfg Config) (Source, error) {
	return f(ctx, cfg)
}

// DefaultOpener dispatches on Config.Kind to the ffmpeg pipeline or the
// stills source.
type DefaultOpener struct {
	FFmpegBinary string
	Logger       *slog.Logger
}

// NewOpener constructs the standard opener.
func NewOpener(ffmpegBinary string, logger *slog.Logger) *DefaultOpener {
	if strings.TrimSpace(ffmpegBinary) == "" {
		ffmpegBinary = "ffmpeg"
	}
	return &DefaultOpener{
		FFmpegBinary: ffmpegBinary,
		Logger:       logging.NewComponentLogger(logger, "capture"),
	}
}

// Open validates cfg and starts the matching source.
func (o *DefaultOpener) Open(ctx context.Context, cfg Config) (Source, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Kind {
	case KindStills:
		return openStills(cfg)
	default:
		if err := checkDeviceAccess(cfg.Device); err != nil {
			return nil, err
		}
		if cfg.Kind == KindFile && (cfg.Width == 0 || cfg.Height == 0) {
			probed, err := ProbeFile(ctx, FFprobeFor(o.FFmpegBinary), cfg)
			if err != nil {
				return nil, err
			}
			cfg = probed
		}
		return startPipeline(ctx, o.FFmpegBinary, cfg, o.Logger)
	}
}
