package config

const (
	defaultStateDir         = "~/.local/share/barscan"
	defaultLogDir           = "~/.local/share/barscan/logs"
	defaultLockDir          = "~/.local/share/barscan/locks"
	defaultLogRetentionDays = 30
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultAPIBind          = "127.0.0.1:7491"
	defaultSourceKind       = "v4l2"
	defaultDevice           = "/dev/video0"
	defaultWidth            = 1280
	defaultHeight           = 1024
	defaultFramerateNum     = 30
	defaultFramerateDenom   = 1
	defaultFFmpegBinary     = "ffmpeg"
	defaultScanIntervalMS   = 150
	defaultHistoryRetention = 90
	defaultPreviewScale     = 0.25
	defaultPreviewQuality   = 80
	defaultNtfyTimeout      = 10

	minScanIntervalMS = 10
	maxScanIntervalMS = 10000
)

// DefaultSymbologies mirrors the decoder configuration the scanner has always
// shipped with: everything off, then the supported linear and QR types on,
// with Code128 restricted to 3..8 ASCII characters.
func DefaultSymbologies() []string {
	return []string{
		"enable=0",
		"ean8.enable=1",
		"ean13.enable=1",
		"upce.enable=1",
		"isbn10.enable=1",
		"isbn13.enable=1",
		"i25.enable=1",
		"upca.enable=1",
		"code39.enable=1",
		"qrcode.enable=1",
		"code128.enable=1",
		"code128.ascii=1",
		"code128.min=3",
		"code128.max=8",
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
			LockDir:  defaultLockDir,
			APIBind:  defaultAPIBind,
		},
		Source: Source{
			Kind:           defaultSourceKind,
			Device:         defaultDevice,
			Width:          defaultWidth,
			Height:         defaultHeight,
			FramerateNum:   defaultFramerateNum,
			FramerateDenom: defaultFramerateDenom,
			FFmpegBinary:   defaultFFmpegBinary,
		},
		Scan: Scan{
			IntervalMS:  defaultScanIntervalMS,
			Autostart:   true,
			Autoscan:    true,
			Symbologies: DefaultSymbologies(),
		},
		History: History{
			Enabled:       true,
			RetentionDays: defaultHistoryRetention,
		},
		Preview: Preview{
			Scale:       defaultPreviewScale,
			Mirror:      true,
			JPEGQuality: defaultPreviewQuality,
		},
		Hotplug: Hotplug{
			Enabled: true,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyTimeout,
			Acquisitions:   true,
			SourceLost:     true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
