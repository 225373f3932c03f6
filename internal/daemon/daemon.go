package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"barscan/internal/acquisition"
	"barscan/internal/activity"
	"barscan/internal/capture"
	"barscan/internal/config"
	"barscan/internal/decoder"
	"barscan/internal/deps"
	"barscan/internal/faults"
	"barscan/internal/history"
	"barscan/internal/logging"
	"barscan/internal/notifications"
	"barscan/internal/preflight"
	"barscan/internal/results"
	"barscan/internal/scan"
)

// Daemon owns the scan controller and everything fed by it, and enforces
// single-instance execution.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	logPath string

	opener       capture.Opener
	decoder      decoder.Decoder
	controller   *scan.Controller
	results      *results.Store
	hub          *activity.Hub
	history      *history.Store
	acquisitions *acquisition.Registry
	hotplug      *capture.HotplugMonitor
	notifier     *notifications.Sink
	api          *apiServer

	// cameraSessions holds the v4l2 sessions, which never end on their own.
	cameraSessions sync.Map

	lockPath string
	lock     *flock.Flock

	mu          sync.Mutex
	running     atomic.Bool
	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe func()
}

// Status represents daemon runtime information.
type Status struct {
	Running           bool
	PID               int
	LockFilePath      string
	HistoryPath       string
	Source            *scan.Handle
	Paused            bool
	Scan              scan.State
	Results           map[string]string
	ActiveAcquisition string
	Hotplug           bool
	Dependencies      []deps.Status
}

// Option customizes a Daemon.
type Option func(*Daemon)

// WithOpener replaces the capture opener, mainly for tests.
func WithOpener(opener capture.Opener) Option {
	return func(d *Daemon) { d.opener = opener }
}

// WithDecoder replaces the symbol decoder, mainly for tests.
func WithDecoder(dec decoder.Decoder) Option {
	return func(d *Daemon) { d.decoder = dec }
}

// WithLogPath records the log file reported by status commands.
func WithLogPath(path string) Option {
	return func(d *Daemon) { d.logPath = path }
}

// New constructs a daemon with initialized dependencies. The history database
// is opened here so acquisitions from earlier runs are visible immediately.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := cfg.DaemonLockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		results:  results.NewStore(),
		hub:      activity.NewHub(1024),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	for _, opt := range opts {
		opt(d)
	}

	if d.decoder == nil {
		syms, err := decoder.ParseConfig(cfg.Scan.Symbologies)
		if err != nil {
			return nil, fmt.Errorf("scan.symbologies: %w", err)
		}
		dec, err := decoder.New(syms)
		if err != nil {
			return nil, err
		}
		d.decoder = dec
	}
	if d.opener == nil {
		d.opener = capture.NewOpener(cfg.FFmpegBinary(), logger)
	}

	d.controller = scan.New(d.opener, d.decoder,
		scan.WithLogger(logger),
		scan.WithInterval(cfg.ScanInterval()),
		scan.WithLocker(capture.NewFileLocker(cfg.Paths.LockDir)),
	)

	d.notifier = notifications.NewSink(notifications.NewService(cfg), logger)
	d.hub.AddSink(d.notifier)

	regOpts := []acquisition.Option{acquisition.WithLogger(logger)}
	if cfg.History.Enabled {
		store, err := history.Open(cfg.HistoryPath())
		if err != nil {
			return nil, fmt.Errorf("open history: %w", err)
		}
		d.history = store
		d.hub.AddSink(history.NewRecorder(store, logger))
		regOpts = append(regOpts, acquisition.WithPersister(store))
	}
	d.acquisitions = acquisition.NewRegistry(d.results.Snapshot, regOpts...)
	if d.history != nil {
		records, err := d.history.Acquisitions(context.Background())
		if err != nil {
			logging.WarnWithContext(logger, "failed to load stored acquisitions", "acquisition_restore_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "acquisitions from earlier runs report as unknown"),
			)
		} else {
			d.acquisitions.Restore(records)
		}
	}

	if cfg.Hotplug.Enabled {
		d.hotplug = capture.NewHotplugMonitor(logger, d.handleHotplug)
	}

	api, err := newAPIServer(cfg, d, logger)
	if err != nil {
		_ = d.closeHistory()
		return nil, err
	}
	d.api = api
	return d, nil
}

// Start acquires the daemon lock, wires the scan controller to the result
// fields and activity hub, and applies the autostart settings.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another barscan daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.api.start(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start api server: %w", err)
	}
	d.unsubscribe = d.controller.Subscribe(d.onScanEvent)
	d.running.Store(true)

	for _, failed := range preflight.Failed(preflight.RunAll(d.ctx, d.cfg)) {
		logging.WarnWithContext(d.logger, "preflight check failed", "preflight_failed",
			logging.String("check", failed.Name),
			logging.String("detail", failed.Detail),
			logging.String(logging.FieldImpact, "scan sessions may fail to start"),
		)
	}
	d.pruneHistory(d.ctx)

	if d.cfg.Scan.Autoscan {
		d.EnableScan()
	}
	if d.cfg.Scan.Autostart {
		if _, err := d.StartSource(d.ctx, nil); err != nil {
			logging.WarnWithContext(d.logger, "autostart failed", "autostart_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, faults.Hint(err)),
				logging.String(logging.FieldImpact, "scanner idle until started manually or the camera is plugged in"),
			)
		}
	}
	if err := d.hotplug.Start(d.ctx); err != nil {
		d.logger.Warn("hotplug monitor start failed", logging.Error(err))
	}

	d.logger.Info("barscan daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.Bool("scanning", d.controller.Scanning()),
		logging.Bool("source_running", d.controller.Running()),
	)
	return nil
}

// Stop ends the scan session and releases the daemon lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running.Load() {
		return
	}

	d.hotplug.Stop()
	if err := d.controller.Stop(context.Background()); err != nil {
		d.logger.Warn("failed to stop scan session", logging.Error(err))
	}
	if d.unsubscribe != nil {
		d.unsubscribe()
		d.unsubscribe = nil
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("barscan daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	d.notifier.Close()
	return d.closeHistory()
}

func (d *Daemon) closeHistory() error {
	if d.history == nil {
		return nil
	}
	err := d.history.Close()
	d.history = nil
	return err
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Hub exposes the activity hub.
func (d *Daemon) Hub() *activity.Hub {
	return d.hub
}

// APIAddress returns the bound HTTP address, or "" when the API is disabled.
func (d *Daemon) APIAddress() string {
	return d.api.address()
}

// Status returns the current daemon status.
func (d *Daemon) Status(_ context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		LockFilePath: d.lockPath,
		Source:       d.controller.Current(),
		Paused:       d.controller.Paused(),
		Scan:         d.controller.State(),
		Results:      d.results.Snapshot(),
		Hotplug:      d.hotplug.Running(),
		Dependencies: preflight.CheckSystemDeps(d.cfg),
	}
	if d.history != nil {
		status.HistoryPath = d.history.Path()
	}
	if rec, ok := d.acquisitions.Active(); ok {
		status.ActiveAcquisition = rec.ID
	}
	return status
}

// sourceConfig is the configuration used for nil-config starts: the last
// bound one, or the [source] section.
func (d *Daemon) sourceConfig() capture.Config {
	if bound, ok := d.controller.Bound(); ok {
		return bound
	}
	return capture.ConfigFromSettings(d.cfg.Source)
}

// StartSource starts (or restarts) capture. A nil cfg reuses the bound
// configuration, falling back to the config file.
func (d *Daemon) StartSource(ctx context.Context, cfg *capture.Config) (*scan.Handle, error) {
	target := d.sourceConfig()
	if cfg != nil {
		target = *cfg
	}
	if err := target.Validate(); err != nil {
		return nil, err
	}
	handle, err := d.controller.Start(ctx, &target)
	if err != nil {
		return nil, err
	}
	if target.Kind == capture.KindV4L2 {
		d.cameraSessions.Store(handle.SessionID, handle.Device)
	}
	d.hub.Publish(activity.Event{
		Kind:      activity.KindSourceStarted,
		SessionID: handle.SessionID,
		Device:    handle.Device,
		Message:   target.Resolution(),
	})
	return handle, nil
}

// StopSource ends the current session. It is a no-op when not started.
func (d *Daemon) StopSource(ctx context.Context) error {
	return d.controller.Stop(ctx)
}

// PauseSource suspends capture without releasing the device.
func (d *Daemon) PauseSource(_ context.Context) error {
	if err := d.controller.Pause(); err != nil {
		return err
	}
	d.publishSession(activity.KindSourcePaused)
	return nil
}

// ResumeSource continues a paused session.
func (d *Daemon) ResumeSource(_ context.Context) error {
	if err := d.controller.Resume(); err != nil {
		return err
	}
	d.publishSession(activity.KindSourceResumed)
	return nil
}

// EnableScan turns decoding on. It reports whether the state changed.
func (d *Daemon) EnableScan() bool {
	if d.controller.Scanning() {
		return false
	}
	d.controller.EnableScan()
	d.hub.Publish(activity.Event{Kind: activity.KindScanEnabled})
	return true
}

// DisableScan turns decoding off and clears the last symbols. It reports
// whether the state changed.
func (d *Daemon) DisableScan(ctx context.Context) bool {
	if !d.controller.Scanning() {
		return false
	}
	d.controller.DisableScan(ctx)
	d.hub.Publish(activity.Event{Kind: activity.KindScanDisabled})
	return true
}

// Results returns a copy of the result fields.
func (d *Daemon) Results() map[string]string {
	return d.results.Snapshot()
}

// GetField returns one result field.
func (d *Daemon) GetField(name string) (string, error) {
	return d.results.Get(name)
}

// SetField overwrites one result field.
func (d *Daemon) SetField(name, value string) error {
	before, err := d.results.Get(name)
	if err != nil {
		return err
	}
	if err := d.results.Set(name, value); err != nil {
		return err
	}
	if before != value {
		d.publishResults("set " + name)
	}
	return nil
}

// ResetResults restores every field to its default.
func (d *Daemon) ResetResults() {
	d.results.Reset()
	d.publishResults("reset")
}

// BeginAcquisition starts a new acquisition.
func (d *Daemon) BeginAcquisition(ctx context.Context) (string, error) {
	id, err := d.acquisitions.Begin(ctx)
	if err != nil {
		return "", err
	}
	d.hub.Publish(activity.Event{Kind: activity.KindAcquisitionBegun, Message: id})
	return id, nil
}

// CompleteAcquisition completes id and snapshots the result fields.
func (d *Daemon) CompleteAcquisition(ctx context.Context, id string) (time.Time, error) {
	completed, err := d.acquisitions.Complete(ctx, id)
	if err != nil {
		return time.Time{}, err
	}
	rec, _ := d.acquisitions.Get(id)
	d.hub.Publish(activity.Event{
		Kind:    activity.KindAcquisitionCompleted,
		Message: id,
		Results: rec.Results,
	})
	return completed, nil
}

// AcquisitionStatus returns the completion time of id, nil while active.
func (d *Daemon) AcquisitionStatus(ctx context.Context, id string) (*time.Time, error) {
	return d.acquisitions.Status(ctx, id)
}

// Acquisition returns one acquisition record.
func (d *Daemon) Acquisition(id string) (acquisition.Record, error) {
	return d.acquisitions.Get(id)
}

// Acquisitions lists every known acquisition, oldest first.
func (d *Daemon) Acquisitions() []acquisition.Record {
	return d.acquisitions.List()
}

// History returns the most recent detections.
func (d *Daemon) History(ctx context.Context, limit int) ([]history.Detection, error) {
	if d.history == nil {
		return nil, faults.Wrap(faults.ErrConfiguration, "history", "recent", "history is disabled", nil)
	}
	return d.history.Recent(ctx, limit)
}

// Events returns activity events after since. With wait set it blocks until
// one arrives or ctx ends.
func (d *Daemon) Events(ctx context.Context, since uint64, limit int, wait bool) ([]activity.Event, uint64, error) {
	events, next, err := d.hub.Fetch(ctx, since, limit, wait)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}
	return events, next, err
}

// LatestFrame returns the last frame read by the running session.
func (d *Daemon) LatestFrame() (capture.Frame, bool) {
	frame := d.controller.State().LastFrame
	if frame.Empty() {
		return capture.Frame{}, false
	}
	return frame, true
}

func (d *Daemon) publishSession(kind activity.Kind) {
	evt := activity.Event{Kind: kind}
	if h := d.controller.Current(); h != nil {
		evt.SessionID = h.SessionID
		evt.Device = h.Device
	}
	d.hub.Publish(evt)
}

func (d *Daemon) publishResults(message string) {
	d.hub.Publish(activity.Event{
		Kind:    activity.KindResultsUpdated,
		Results: d.results.Snapshot(),
		Message: message,
	})
}

func (d *Daemon) pruneHistory(ctx context.Context) {
	days := d.cfg.History.RetentionDays
	if d.history == nil || days <= 0 {
		return
	}
	cutoff := time.Now().Add(-time.Duration(days) * 24 * time.Hour)
	removed, err := d.history.Prune(ctx, cutoff)
	if err != nil {
		logging.WarnWithContext(d.logger, "history prune failed", "history_prune_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "history database keeps growing"),
		)
		return
	}
	if removed > 0 {
		d.logger.Info("history pruned",
			logging.String(logging.FieldEventType, "history_pruned"),
			logging.Int64("removed_count", removed),
			logging.Int("retention_days", days),
		)
	}
}
