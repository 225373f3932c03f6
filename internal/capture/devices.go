package capture

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"barscan/internal/faults"
)

// Device is a V4L2 capture node.
type Device struct {
	Path string `json:"device_name"`
	Name string `json:"name,omitempty"`
}

const (
	devRoot = "/dev"
	sysRoot = "/sys/class/video4linux"
)

// ListDevices enumerates /dev/video* nodes with the driver-reported name.
func ListDevices() ([]Device, error) {
	return listDevices(devRoot, sysRoot)
}

func listDevices(devDir, sysDir string) ([]Device, error) {
	matches, err := filepath.Glob(filepath.Join(devDir, "video*"))
	if err != nil {
		return nil, fmt.Errorf("glob video devices: %w", err)
	}
	devices := make([]Device, 0, len(matches))
	for _, path := range matches {
		base := filepath.Base(path)
		if _, err := strconv.Atoi(strings.TrimPrefix(base, "video")); err != nil {
			continue
		}
		dev := Device{Path: path}
		if data, err := os.ReadFile(filepath.Join(sysDir, base, "name")); err == nil {
			dev.Name = strings.TrimSpace(string(data))
		}
		devices = append(devices, dev)
	}
	sort.Slice(devices, func(i, j int) bool {
		return deviceIndex(devices[i].Path) < deviceIndex(devices[j].Path)
	})
	return devices, nil
}

func deviceIndex(path string) int {
	n, err := strconv.Atoi(strings.TrimPrefix(filepath.Base(path), "video"))
	if err != nil {
		return -1
	}
	return n
}

// ffmpeg -list_formats lines look like:
//
//	[video4linux2,v4l2 @ 0x5581] Raw       :     yuyv422 :           YUYV 4:2:2 : 640x480 1280x720
var (
	formatLinePattern = regexp.MustCompile(`(Raw|Compressed)\s*:\s*(\S+)\s*:\s*(.+?)\s*:\s*(.*)$`)
	sizePattern       = regexp.MustCompile(`\b(\d+)x(\d+)\b`)
)

// DeviceCaps asks ffmpeg which formats and frame sizes device supports and
// returns one source Config per distinct resolution, largest first.
func DeviceCaps(ctx context.Context, ffmpegBinary, device string) ([]Config, error) {
	if strings.TrimSpace(ffmpegBinary) == "" {
		ffmpegBinary = "ffmpeg"
	}
	cmd := exec.CommandContext(ctx, ffmpegBinary, "-hide_banner", "-f", "v4l2", "-list_formats", "all", "-i", device)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	runErr := cmd.Run()

	caps := parseListFormats(stderr.String(), device)
	if len(caps) == 0 {
		detail := strings.TrimSpace(stderr.String())
		if runErr != nil && detail == "" {
			detail = runErr.Error()
		}
		return nil, faults.Wrap(faults.ErrSourceUnavailable, "capture", "device caps",
			fmt.Sprintf("no capture formats reported for %s", device), fmt.Errorf("%s", detail))
	}
	return caps, nil
}

func parseListFormats(output, device string) []Config {
	seen := make(map[string]struct{})
	var caps []Config
	for _, line := range strings.Split(output, "\n") {
		m := formatLinePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		format := m[2]
		for _, size := range sizePattern.FindAllStringSubmatch(m[4], -1) {
			w, errW := strconv.Atoi(size[1])
			h, errH := strconv.Atoi(size[2])
			if errW != nil || errH != nil || w <= 0 || h <= 0 {
				continue
			}
			key := size[0]
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			caps = append(caps, Config{
				Kind:           KindV4L2,
				Device:         device,
				Width:          w,
				Height:         h,
				FramerateNum:   defaultFramerateNum,
				FramerateDenom: defaultFramerateDenom,
				Format:         format,
			})
		}
	}
	sort.SliceStable(caps, func(i, j int) bool {
		return caps[i].Width*caps[i].Height > caps[j].Width*caps[j].Height
	})
	return caps
}
