package deps

import (
	"os/exec"
	"path/filepath"
	"strings"
)

// SourceRequirements lists the binaries needed to open a source of kind.
// Stills sources decode images in-process and need nothing.
func SourceRequirements(kind, ffmpegBinary string) []Requirement {
	ffmpeg := Requirement{
		Name:        "FFmpeg",
		Command:     ffmpegOrDefault(ffmpegBinary),
		Description: "Decodes camera and video file frames",
	}
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "stills":
		ffmpeg.Optional = true
		ffmpeg.Description = "Only needed for v4l2 and file sources"
		return []Requirement{ffmpeg}
	case "file":
		return []Requirement{ffmpeg, {
			Name:        "FFprobe",
			Command:     ffprobeFor(ffmpeg.Command),
			Description: "Reads the frame size of video files without an explicit size",
			Optional:    true,
		}}
	default:
		return []Requirement{ffmpeg}
	}
}

// ResolveFFmpegPath returns the absolute ffmpeg path when it can be found,
// otherwise the name as configured.
func ResolveFFmpegPath(configured string) string {
	name := ffmpegOrDefault(configured)
	if resolved, err := exec.LookPath(name); err == nil {
		return resolved
	}
	return name
}

func ffmpegOrDefault(name string) string {
	if trimmed := strings.TrimSpace(name); trimmed != "" {
		return trimmed
	}
	return "ffmpeg"
}

func ffprobeFor(ffmpeg string) string {
	if !strings.ContainsRune(ffmpeg, filepath.Separator) {
		return "ffprobe"
	}
	return filepath.Join(filepath.Dir(ffmpeg), "ffprobe")
}
