package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"barscan/internal/faults"
	"barscan/internal/logging"
)

const stderrTailLimit = 4096

// pipelineStartTimeout bounds the wait for the first frame after ffmpeg
// starts. Cameras can take a few seconds to negotiate a format.
const pipelineStartTimeout = 10 * time.Second

// pipelineSource runs ffmpeg and keeps only the newest decoded frame, so a
// slow consumer always sees the current picture instead of a backlog.
type pipelineSource struct {
	cfg       Config
	cmd       *exec.Cmd
	stdout    io.ReadCloser
	stderr    *tailBuffer
	logger    *slog.Logger
	frameSize int

	mu      sync.Mutex
	latest  Frame
	fresh   bool
	readErr error
	ready   chan struct{}
	done    chan struct{}

	stopOnce sync.Once
	stopped  chan struct{}
}

func pipelineArgs(cfg Config) []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-nostdin"}
	switch cfg.Kind {
	case KindFile:
		args = append(args, "-re")
		if cfg.Loop {
			args = append(args, "-stream_loop", "-1")
		}
		args = append(args, "-i", cfg.Device)
	default:
		args = append(args,
			"-f", "v4l2",
			"-framerate", cfg.Framerate(),
			"-video_size", cfg.Resolution(),
			"-i", cfg.Device,
		)
	}
	args = append(args,
		"-vf", fmt.Sprintf("scale=%d:%d", cfg.Width, cfg.Height),
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"-",
	)
	return args
}

func startPipeline(ctx context.Context, binary string, cfg Config, logger *slog.Logger) (*pipelineSource, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	cmd := exec.Command(binary, pipelineArgs(cfg)...)
	stderr := &tailBuffer{limit: stderrTailLimit}
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, faults.Wrap(faults.ErrSourceUnavailable, "capture", "open", "stdout pipe", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, faults.Wrap(faults.ErrSourceUnavailable, "capture", "open",
			fmt.Sprintf("start %s", binary), err)
	}

	src := &pipelineSource{
		cfg:       cfg,
		cmd:       cmd,
		stdout:    stdout,
		stderr:    stderr,
		logger:    logger.With(logging.Device(cfg.Device)),
		frameSize: cfg.Width * cfg.Height * 3,
		ready:     make(chan struct{}, 1),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	go src.readLoop()

	if err := src.awaitFirstFrame(ctx, pipelineStartTimeout); err != nil {
		return nil, err
	}

	src.logger.Debug("capture pipeline started",
		logging.String(logging.FieldEventType, "capture_pipeline_started"),
		logging.Int("pid", cmd.Process.Pid),
		logging.String("resolution", cfg.Resolution()),
		logging.String("framerate", cfg.Framerate()),
	)
	return src, nil
}

// awaitFirstFrame blocks until ffmpeg delivers a frame. A device that is
// busy or missing makes ffmpeg exit before that, which is reported as
// ErrSourceUnavailable with the tail of its stderr. On failure the process
// has been released.
func (s *pipelineSource) awaitFirstFrame(ctx context.Context, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-s.ready:
	case <-ctx.Done():
		_ = s.Release()
		return faults.Wrap(faults.ErrSourceUnavailable, "capture", "open", "waiting for first frame", ctx.Err())
	case <-timer.C:
		_ = s.Release()
		return faults.Wrap(faults.ErrSourceUnavailable, "capture", "open",
			fmt.Sprintf("no frame from %s within %s", s.cfg.Device, timeout), nil)
	}

	s.mu.Lock()
	fresh, readErr := s.fresh, s.readErr
	s.mu.Unlock()
	if fresh || readErr == nil {
		return nil
	}

	// Wait reaps ffmpeg and flushes its stderr into the tail buffer.
	_ = s.Release()
	msg := "ffmpeg exited before the first frame"
	if tail := strings.TrimSpace(s.stderr.String()); tail != "" {
		msg += ": " + tail
	}
	cause := readErr
	if errors.Is(readErr, ErrEndOfStream) {
		cause = nil
	}
	return faults.Wrap(faults.ErrSourceUnavailable, "capture", "open", msg, cause)
}

func (s *pipelineSource) readLoop() {
	defer close(s.done)
	var seq uint64
	for {
		buffer := make([]byte, s.frameSize)
		if _, err := io.ReadFull(s.stdout, buffer); err != nil {
			s.finish(err)
			return
		}
		seq++
		frame := Frame{
			Width:      s.cfg.Width,
			Height:     s.cfg.Height,
			Channels:   3,
			Pix:        buffer,
			Seq:        seq,
			CapturedAt: time.Now(),
		}
		s.mu.Lock()
		s.latest = frame
		s.fresh = true
		s.mu.Unlock()
		select {
		case s.ready <- struct{}{}:
		default:
		}
	}
}

func (s *pipelineSource) finish(err error) {
	select {
	case <-s.stopped:
		err = ErrEndOfStream
	default:
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			if tail := strings.TrimSpace(s.stderr.String()); tail != "" {
				err = fmt.Errorf("%w: ffmpeg exited: %s", ErrEndOfStream, tail)
			} else {
				err = ErrEndOfStream
			}
		} else {
			err = faults.Wrap(faults.ErrTransient, "capture", "read", "frame pipe", err)
		}
	}
	s.mu.Lock()
	s.readErr = err
	s.mu.Unlock()
	close(s.ready)
}

// ReadFrame returns the newest frame not yet handed out.
func (s *pipelineSource) ReadFrame(ctx context.Context) (Frame, error) {
	for {
		s.mu.Lock()
		if s.fresh {
			frame := s.latest
			s.fresh = false
			s.mu.Unlock()
			return frame, nil
		}
		readErr := s.readErr
		s.mu.Unlock()
		if readErr != nil {
			return Frame{}, readErr
		}
		select {
		case <-ctx.Done():
			return Frame{}, ctx.Err()
		case <-s.ready:
		}
	}
}

// Pause suspends the ffmpeg process so the device stops streaming.
func (s *pipelineSource) Pause() error {
	return s.signal(unix.SIGSTOP)
}

// Resume continues a paused ffmpeg process.
func (s *pipelineSource) Resume() error {
	return s.signal(unix.SIGCONT)
}

func (s *pipelineSource) signal(sig unix.Signal) error {
	if s.cmd == nil || s.cmd.Process == nil {
		return nil
	}
	select {
	case <-s.done:
		return nil
	default:
	}
	if err := unix.Kill(s.cmd.Process.Pid, sig); err != nil && !errors.Is(err, unix.ESRCH) {
		return fmt.Errorf("signal ffmpeg %d: %w", s.cmd.Process.Pid, err)
	}
	return nil
}

// Release kills ffmpeg and waits for the reader to drain.
func (s *pipelineSource) Release() error {
	var err error
	s.stopOnce.Do(func() {
		close(s.stopped)
		if s.cmd == nil || s.cmd.Process == nil {
			return
		}
		_ = s.cmd.Process.Kill()
		<-s.done
		waitErr := s.cmd.Wait()
		var exitErr *exec.ExitError
		if waitErr != nil && !errors.As(waitErr, &exitErr) {
			err = fmt.Errorf("wait ffmpeg: %w", waitErr)
		}
		s.logger.Debug("capture pipeline released",
			logging.String(logging.FieldEventType, "capture_pipeline_released"),
		)
	})
	return err
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	data  []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = append(b.data, p...)
	if over := len(b.data) - b.limit; over > 0 {
		b.data = append([]byte(nil), b.data[over:]...)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.data)
}

func checkDeviceAccess(path string) error {
	if err := unix.Access(path, unix.R_OK); err != nil {
		return faults.Wrap(faults.ErrSourceUnavailable, "capture", "open",
			fmt.Sprintf("%s is not readable", strconv.Quote(path)), err)
	}
	return nil
}
