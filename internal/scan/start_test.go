package scan_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"barscan/internal/capture"
	"barscan/internal/faults"
	"barscan/internal/scan"
	"barscan/internal/testsupport"
)

func TestStartFailsOnBusyCamera(t *testing.T) {
	ffmpeg := filepath.Join(t.TempDir(), "ffmpeg")
	script := "#!/bin/sh\necho 'Cannot open video device /dev/null: Device or resource busy' >&2\nexit 1\n"
	if err := os.WriteFile(ffmpeg, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake ffmpeg: %v", err)
	}

	c := scan.New(capture.NewOpener(ffmpeg, nil), testsupport.NewFakeDecoder(), scan.WithInterval(time.Millisecond))
	t.Cleanup(func() { _ = c.Stop(context.Background()) })
	rec := record(t, c)

	handle, err := c.Start(context.Background(), &capture.Config{
		Kind:           capture.KindV4L2,
		Device:         "/dev/null",
		Width:          640,
		Height:         480,
		FramerateNum:   30,
		FramerateDenom: 1,
	})
	if handle != nil {
		t.Fatalf("expected no handle, got %+v", handle)
	}
	if !errors.Is(err, faults.ErrSourceUnavailable) {
		t.Fatalf("expected source unavailable, got %v", err)
	}
	if c.Running() {
		t.Fatal("controller running after failed start")
	}
	rec.none(t, 50*time.Millisecond)
}
