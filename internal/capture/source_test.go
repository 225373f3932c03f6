package capture_test

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"barscan/internal/capture"
	"barscan/internal/config"
	"barscan/internal/faults"
)

func TestParseJSONAppliesDefaults(t *testing.T) {
	cfg, err := capture.ParseJSON([]byte(`{"device_name":"/dev/video2","width":640,"height":480}`))
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}
	if cfg.Kind != capture.KindV4L2 {
		t.Fatalf("expected v4l2 kind, got %q", cfg.Kind)
	}
	if cfg.Framerate() != "30/1" {
		t.Fatalf("expected default framerate, got %s", cfg.Framerate())
	}
}

func TestParseJSONRejectsInvalid(t *testing.T) {
	inputs := []string{
		`{"device_name":"","width":640,"height":480}`,
		`{"device_name":"/dev/video0","width":0,"height":480}`,
		`{"device_name":"/dev/video0","width":640,"height":480,"bogus":1}`,
		`not json`,
	}
	for _, input := range inputs {
		if _, err := capture.ParseJSON([]byte(input)); !errors.Is(err, faults.ErrConfiguration) {
			t.Fatalf("ParseJSON(%s): expected configuration error, got %v", input, err)
		}
	}
}

func TestConfigFromSettings(t *testing.T) {
	settings := config.Default().Source
	cfg := capture.ConfigFromSettings(settings)
	if cfg.Device != "/dev/video0" || cfg.Resolution() != "1280x1024" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func writePNG(t *testing.T, path string, fill color.Gray) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 8, 4))
	for i := range img.Pix {
		img.Pix[i] = fill.Y
	}
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer file.Close()
	if err := png.Encode(file, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
}

func TestStillsSourceReplaysDirectory(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "b.png"), color.Gray{Y: 20})
	writePNG(t, filepath.Join(dir, "a.png"), color.Gray{Y: 10})
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip"), 0o644); err != nil {
		t.Fatalf("write notes: %v", err)
	}

	opener := capture.NewOpener("", nil)
	src, err := opener.Open(context.Background(), capture.Config{Kind: capture.KindStills, Device: dir})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer src.Release()

	ctx := context.Background()
	first, err := src.ReadFrame(ctx)
	if err != nil {
		t.Fatalf("first ReadFrame: %v", err)
	}
	second, err := src.ReadFrame(ctx)
	if err != nil {
		t.Fatalf("second ReadFrame: %v", err)
	}
	if first.Pix[0] != 10 || second.Pix[0] != 20 {
		t.Fatalf("expected lexical order, got %d then %d", first.Pix[0], second.Pix[0])
	}
	if first.Seq != 1 || second.Seq != 2 {
		t.Fatalf("unexpected sequence numbers %d, %d", first.Seq, second.Seq)
	}
	if _, err := src.ReadFrame(ctx); !errors.Is(err, capture.ErrEndOfStream) {
		t.Fatalf("expected end of stream, got %v", err)
	}
}

func TestStillsSourceLoops(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "only.png"), color.Gray{Y: 5})

	opener := capture.NewOpener("", nil)
	src, err := opener.Open(context.Background(), capture.Config{Kind: capture.KindStills, Device: dir, Loop: true})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := src.ReadFrame(context.Background()); err != nil {
			t.Fatalf("ReadFrame %d: %v", i, err)
		}
	}
	if err := src.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := src.ReadFrame(context.Background()); !errors.Is(err, capture.ErrEndOfStream) {
		t.Fatalf("expected end of stream after release, got %v", err)
	}
}

func TestStillsSourceEmptyDirectory(t *testing.T) {
	opener := capture.NewOpener("", nil)
	_, err := opener.Open(context.Background(), capture.Config{Kind: capture.KindStills, Device: t.TempDir()})
	if !errors.Is(err, faults.ErrSourceUnavailable) {
		t.Fatalf("expected source unavailable, got %v", err)
	}
}

func TestOpenMissingDevice(t *testing.T) {
	opener := capture.NewOpener("", nil)
	_, err := opener.Open(context.Background(), capture.Config{
		Device: filepath.Join(t.TempDir(), "video9"),
		Width:  640,
		Height: 480,
	})
	if !errors.Is(err, faults.ErrSourceUnavailable) {
		t.Fatalf("expected source unavailable, got %v", err)
	}
}

// fakeFFmpeg writes a script that ignores its arguments and emits size bytes
// of zeros on stdout.
func fakeFFmpeg(t *testing.T, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ffmpeg")
	script := "#!/bin/sh\nhead -c " + strconv.Itoa(size) + " /dev/zero\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake ffmpeg: %v", err)
	}
	return path
}

// busyFFmpeg writes a script that fails the way ffmpeg does when another
// process holds the camera.
func busyFFmpeg(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ffmpeg")
	script := "#!/bin/sh\necho \"[video4linux2,v4l2 @ 0x1] Cannot open video device /dev/null: Device or resource busy\" >&2\nexit 1\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake ffmpeg: %v", err)
	}
	return path
}

func TestOpenFailsWhenFFmpegExitsBeforeFirstFrame(t *testing.T) {
	opener := capture.NewOpener(busyFFmpeg(t), nil)
	src, err := opener.Open(context.Background(), capture.Config{
		Kind:   capture.KindV4L2,
		Device: "/dev/null",
		Width:  640,
		Height: 480,
	})
	if src != nil {
		_ = src.Release()
		t.Fatal("expected no source for a busy device")
	}
	if !errors.Is(err, faults.ErrSourceUnavailable) {
		t.Fatalf("expected source unavailable, got %v", err)
	}
	if errors.Is(err, capture.ErrEndOfStream) {
		t.Fatalf("open failure must not read as end of stream: %v", err)
	}
	if !strings.Contains(err.Error(), "Device or resource busy") {
		t.Fatalf("expected ffmpeg stderr in error, got %v", err)
	}
}

func TestPipelineSourceReadsRawFrames(t *testing.T) {
	video := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(video, []byte("x"), 0o644); err != nil {
		t.Fatalf("write clip: %v", err)
	}
	opener := capture.NewOpener(fakeFFmpeg(t, 2*2*2*3), nil)
	src, err := opener.Open(context.Background(), capture.Config{Kind: capture.KindFile, Device: video, Width: 2, Height: 2})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer src.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	frames := 0
	for {
		frame, err := src.ReadFrame(ctx)
		if errors.Is(err, capture.ErrEndOfStream) {
			break
		}
		if err != nil {
			t.Fatalf("ReadFrame: %v", err)
		}
		if err := frame.Validate(); err != nil {
			t.Fatalf("invalid frame: %v", err)
		}
		frames++
		if frames > 2 {
			t.Fatalf("received more frames than written")
		}
	}
	if frames == 0 {
		t.Fatal("expected at least one frame before end of stream")
	}
	if err := src.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
}

func TestPipelineSourcePauseResume(t *testing.T) {
	video := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(video, []byte("x"), 0o644); err != nil {
		t.Fatalf("write clip: %v", err)
	}
	opener := capture.NewOpener(fakeFFmpeg(t, 2*2*3), nil)
	src, err := opener.Open(context.Background(), capture.Config{Kind: capture.KindFile, Device: video, Width: 2, Height: 2})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer src.Release()
	pauser, ok := src.(capture.Pauser)
	if !ok {
		t.Fatal("expected pipeline source to implement Pauser")
	}
	if err := pauser.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if err := pauser.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}
}

func TestFileLockerExclusive(t *testing.T) {
	locker := capture.NewFileLocker(t.TempDir())
	release, err := locker.Acquire("/dev/video0")
	if err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	if _, err := locker.Acquire("/dev/video0"); !errors.Is(err, faults.ErrSourceUnavailable) {
		t.Fatalf("expected busy device error, got %v", err)
	}
	other, err := locker.Acquire("/dev/video1")
	if err != nil {
		t.Fatalf("other device should lock independently: %v", err)
	}
	_ = other()
	if err := release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	again, err := locker.Acquire("/dev/video0")
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	_ = again()
}

func TestHotplugMonitorNilSafety(t *testing.T) {
	if m := capture.NewHotplugMonitor(nil, nil); m != nil {
		t.Fatal("expected nil monitor without handler")
	}
	var m *capture.HotplugMonitor
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start on nil monitor: %v", err)
	}
	m.Stop()
	if m.Running() {
		t.Fatal("nil monitor should not report running")
	}
}
