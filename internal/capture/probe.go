package capture

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"barscan/internal/faults"
)

// probeResult is the subset of `ffprobe -show_streams -of json` the file
// source needs.
type probeResult struct {
	Streams []probeStream `json:"streams"`
}

type probeStream struct {
	CodecType    string `json:"codec_type"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	AvgFrameRate string `json:"avg_frame_rate"`
	RFrameRate   string `json:"r_frame_rate"`
}

// FFprobeFor returns the ffprobe that ships next to ffmpegBinary.
func FFprobeFor(ffmpegBinary string) string {
	ffmpegBinary = strings.TrimSpace(ffmpegBinary)
	if ffmpegBinary == "" || !strings.ContainsRune(ffmpegBinary, filepath.Separator) {
		return "ffprobe"
	}
	return filepath.Join(filepath.Dir(ffmpegBinary), "ffprobe")
}

// ProbeFile fills the frame size and rate of a file source from its first
// video stream. Values already set in cfg are kept.
func ProbeFile(ctx context.Context, binary string, cfg Config) (Config, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	cmd := exec.CommandContext(ctx, binary, "-v", "error", "-hide_banner",
		"-select_streams", "v:0", "-show_streams", "-of", "json", "--", cfg.Device)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return cfg, faults.Wrap(faults.ErrSourceUnavailable, "capture", "probe",
			fmt.Sprintf("inspect %s: %s", cfg.Device, strings.TrimSpace(string(output))), err)
	}
	return applyProbe(cfg, output)
}

func applyProbe(cfg Config, output []byte) (Config, error) {
	var result probeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return cfg, faults.Wrap(faults.ErrSourceUnavailable, "capture", "probe", "parse ffprobe output", err)
	}
	for _, stream := range result.Streams {
		if !strings.EqualFold(stream.CodecType, "video") || stream.Width <= 0 || stream.Height <= 0 {
			continue
		}
		if cfg.Width <= 0 || cfg.Height <= 0 {
			cfg.Width, cfg.Height = stream.Width, stream.Height
		}
		rate := stream.AvgFrameRate
		if num, _, ok := parseRational(rate); !ok || num == 0 {
			rate = stream.RFrameRate
		}
		if num, denom, ok := parseRational(rate); ok && num > 0 && cfg.FramerateNum == 0 {
			cfg.FramerateNum, cfg.FramerateDenom = num, denom
		}
		return cfg, nil
	}
	return cfg, faults.Wrap(faults.ErrSourceUnavailable, "capture", "probe",
		fmt.Sprintf("%s has no video stream", cfg.Device), nil)
}

// parseRational parses ffprobe rates such as "30000/1001".
func parseRational(value string) (int, int, bool) {
	numText, denomText, found := strings.Cut(strings.TrimSpace(value), "/")
	num, err := strconv.Atoi(numText)
	if err != nil || num < 0 {
		return 0, 0, false
	}
	if !found {
		return num, 1, true
	}
	denom, err := strconv.Atoi(denomText)
	if err != nil || denom <= 0 {
		return 0, 0, false
	}
	return num, denom, true
}
