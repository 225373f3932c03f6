package preflight

import (
	"fmt"
	"strings"

	"barscan/internal/capture"
)

// CameraProbe reports whether a V4L2 node is currently present.
type CameraProbe struct {
	Detected bool
	Device   string
	Name     string
}

// ProbeCamera looks device up among the enumerated video nodes.
func ProbeCamera(device string) CameraProbe {
	device = strings.TrimSpace(device)
	if device == "" {
		device = "/dev/video0"
	}
	devices, err := capture.ListDevices()
	if err != nil {
		return CameraProbe{Device: device}
	}
	for _, dev := range devices {
		if dev.Path == device {
			return CameraProbe{Detected: true, Device: device, Name: dev.Name}
		}
	}
	return CameraProbe{Device: device}
}

// CameraDetail renders a display-friendly summary for status UIs.
func (p CameraProbe) CameraDetail() string {
	if !p.Detected {
		return fmt.Sprintf("No camera at %s", p.Device)
	}
	if p.Name == "" {
		return fmt.Sprintf("Camera on %s", p.Device)
	}
	return fmt.Sprintf("%s on %s", p.Name, p.Device)
}
