package preflight

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"barscan/internal/config"
	"barscan/internal/deps"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSource verifies the configured source path matches its kind.
func CheckSource(src config.Source) Result {
	const name = "Capture source"

	device := strings.TrimSpace(src.Device)
	if device == "" {
		return Result{Name: name, Detail: "no device configured"}
	}
	info, err := os.Stat(device)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", device)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", device, err)}
	}

	switch src.Kind {
	case "stills":
		if !info.IsDir() {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: stills source must be a directory)", device)}
		}
	case "file":
		if !info.Mode().IsRegular() {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: not a regular file)", device)}
		}
	default:
		if info.Mode()&os.ModeCharDevice == 0 {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: not a character device)", device)}
		}
	}
	if err := unix.Access(device, unix.R_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not readable: %v)", device, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%s, readable)", device, kindLabel(src.Kind))}
}

// CheckFFmpeg runs "ffmpeg -version" and reports the first line of output.
func CheckFFmpeg(ctx context.Context, binary string) Result {
	const name = "FFmpeg"

	status := deps.CheckBinaries(deps.SourceRequirements("v4l2", binary))[0]
	if !status.Available {
		return Result{Name: name, Detail: status.Detail}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	out, err := exec.CommandContext(checkCtx, status.Command, "-hide_banner", "-version").Output()
	if err != nil {
		if errors.Is(checkCtx.Err(), context.DeadlineExceeded) {
			return Result{Name: name, Detail: "version check timed out"}
		}
		return Result{Name: name, Detail: fmt.Sprintf("version check failed (%v)", err)}
	}
	line := ""
	if scanner := bufio.NewScanner(bytes.NewReader(out)); scanner.Scan() {
		line = strings.TrimSpace(scanner.Text())
	}
	if line == "" {
		line = status.Command
	}
	return Result{Name: name, Passed: true, Detail: line}
}

// CheckSystemDeps evaluates the binaries the configured source needs. Both
// the daemon status and the CLI use it so the requirement list lives here.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	if cfg == nil {
		return nil
	}
	return deps.CheckBinaries(deps.SourceRequirements(cfg.Source.Kind, cfg.FFmpegBinary()))
}

func kindLabel(kind string) string {
	switch kind {
	case "stills":
		return "image directory"
	case "file":
		return "video file"
	default:
		return "V4L2 device"
	}
}
