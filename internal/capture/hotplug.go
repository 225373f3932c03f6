package capture

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"barscan/internal/logging"
)

// HotplugAction is the udev action of a camera event.
type HotplugAction string

const (
	HotplugAdd    HotplugAction = "add"
	HotplugRemove HotplugAction = "remove"
)

// HotplugEvent reports a V4L2 node appearing or disappearing.
type HotplugEvent struct {
	Action HotplugAction
	Device string
}

// HotplugHandler receives camera events on the monitor goroutine.
type HotplugHandler func(ctx context.Context, ev HotplugEvent)

// HotplugMonitor listens for udev netlink events on the video4linux subsystem.
type HotplugMonitor struct {
	logger  *slog.Logger
	handler HotplugHandler

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

// NewHotplugMonitor creates a monitor that calls handler for camera add and
// remove events. A nil handler yields a nil monitor, which is safe to use.
func NewHotplugMonitor(logger *slog.Logger, handler HotplugHandler) *HotplugMonitor {
	if handler == nil {
		return nil
	}
	return &HotplugMonitor{
		logger:  logging.NewComponentLogger(logger, "hotplug"),
		handler: handler,
	}
}

// Start connects to the udev netlink socket. Connection failures are logged
// and reported as nil: scanning works without hot-plug support.
func (m *HotplugMonitor) Start(ctx context.Context) error {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		logging.WarnWithContext(m.logger, "failed to connect to netlink socket; camera hot-plug disabled", "hotplug_connect_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "ensure the daemon may open NETLINK_KOBJECT_UEVENT sockets"),
			logging.String(logging.FieldImpact, "unplugged cameras are only noticed when frames stop"),
		)
		return nil
	}

	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true

	quit := m.quit
	go m.monitorLoop(ctx, conn, quit)

	m.logger.Info("hotplug monitor started",
		logging.String(logging.FieldEventType, "hotplug_monitor_started"),
	)
	return nil
}

// Stop shuts down the monitor.
func (m *HotplugMonitor) Stop() {
	if m == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	close(m.quit)
	m.quit = nil
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.running = false

	m.logger.Info("hotplug monitor stopped",
		logging.String(logging.FieldEventType, "hotplug_monitor_stopped"),
	)
}

// Running reports whether the monitor is active.
func (m *HotplugMonitor) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *HotplugMonitor) monitorLoop(ctx context.Context, conn *netlink.UEventConn, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)
	monitorQuit := conn.Monitor(queue, errs, hotplugMatcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			m.handleEvent(ctx, uevent)
		case err := <-errs:
			logging.WarnWithContext(m.logger, "netlink monitor error", "hotplug_monitor_error",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check kernel netlink subsystem"),
				logging.String(logging.FieldImpact, "camera hot-plug events may be missed"),
			)
		}
	}
}

// hotplugMatcher matches SUBSYSTEM=video4linux with ACTION=add|remove.
func hotplugMatcher() netlink.Matcher {
	action := "add|remove"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "video4linux",
		},
	})
	return rules
}

func (m *HotplugMonitor) handleEvent(ctx context.Context, uevent netlink.UEvent) {
	ev, ok := eventFromUEvent(uevent)
	if !ok {
		m.logger.Debug("ignoring uevent without camera node",
			logging.String("action", string(uevent.Action)),
			logging.String("kobj", uevent.KObj),
		)
		return
	}
	m.logger.Info("camera hot-plug event",
		logging.String(logging.FieldEventType, "hotplug_"+string(ev.Action)),
		logging.Device(ev.Device),
	)
	m.handler(ctx, ev)
}

func eventFromUEvent(uevent netlink.UEvent) (HotplugEvent, bool) {
	action := HotplugAction(strings.ToLower(string(uevent.Action)))
	if action != HotplugAdd && action != HotplugRemove {
		return HotplugEvent{}, false
	}
	device := deviceNameFromEnv(uevent.Env)
	if device == "" {
		return HotplugEvent{}, false
	}
	return HotplugEvent{Action: action, Device: device}, true
}

// deviceNameFromEnv prefers DEVNAME and falls back to the last DEVPATH element.
func deviceNameFromEnv(env map[string]string) string {
	if devname := strings.TrimSpace(env["DEVNAME"]); devname != "" {
		if !strings.HasPrefix(devname, "/") {
			devname = "/dev/" + devname
		}
		return devname
	}
	devpath := strings.TrimSpace(env["DEVPATH"])
	if devpath == "" {
		return ""
	}
	parts := strings.Split(strings.TrimRight(devpath, "/"), "/")
	last := parts[len(parts)-1]
	if last == "" {
		return ""
	}
	return "/dev/" + last
}
