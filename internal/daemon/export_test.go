package daemon

import (
	"context"

	"barscan/internal/capture"
)

// HandleHotplug exposes the hotplug handler to external tests.
func (d *Daemon) HandleHotplug(ctx context.Context, ev capture.HotplugEvent) {
	d.handleHotplug(ctx, ev)
}
