package scan_test

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"barscan/internal/capture"
	"barscan/internal/decoder"
	"barscan/internal/faults"
	"barscan/internal/scan"
	"barscan/internal/testsupport"
)

type recorder struct {
	events chan scan.Event
}

func record(t *testing.T, c *scan.Controller) *recorder {
	t.Helper()
	r := &recorder{events: make(chan scan.Event, 64)}
	t.Cleanup(c.Subscribe(func(_ context.Context, ev scan.Event) {
		r.events <- ev
	}))
	return r
}

func (r *recorder) next(t *testing.T) scan.Event {
	t.Helper()
	select {
	case ev := <-r.events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return scan.Event{}
	}
}

func (r *recorder) expect(t *testing.T, kind scan.EventKind, seq uint64) scan.Event {
	t.Helper()
	ev := r.next(t)
	if ev.Kind != kind {
		t.Fatalf("expected %s, got %s (seq %d)", kind, ev.Kind, ev.Frame.Seq)
	}
	if kind != scan.EventSourceStopped && ev.Frame.Seq != seq {
		t.Fatalf("expected %s for frame %d, got frame %d", kind, seq, ev.Frame.Seq)
	}
	return ev
}

func (r *recorder) none(t *testing.T, wait time.Duration) {
	t.Helper()
	select {
	case ev := <-r.events:
		t.Fatalf("unexpected event %s (seq %d)", ev.Kind, ev.Frame.Seq)
	case <-time.After(wait):
	}
}

func testConfig() *capture.Config {
	return &capture.Config{Kind: capture.KindV4L2, Device: "/dev/video0", Width: 4, Height: 4, FramerateNum: 30, FramerateDenom: 1}
}

func newController(t *testing.T, src capture.Source, dec decoder.Decoder, opts ...scan.Option) *scan.Controller {
	t.Helper()
	opts = append([]scan.Option{scan.WithInterval(time.Millisecond)}, opts...)
	c := scan.New(testsupport.OpenerFor(src), dec, opts...)
	t.Cleanup(func() { _ = c.Stop(context.Background()) })
	return c
}

func qr(data string) decoder.Detection {
	return decoder.Detection{Type: decoder.QRCode, Text: data}
}

func TestEqualIgnoresOrderGeometryAndTime(t *testing.T) {
	now := time.Now()
	a := scan.SymbolSet{
		{Type: decoder.QRCode, Data: "#D%B", Points: []image.Point{{1, 2}}, Timestamp: now},
		{Type: decoder.Code128, Data: "P1"},
	}
	b := scan.SymbolSet{
		{Type: decoder.Code128, Data: "P1", Timestamp: now.Add(time.Hour)},
		{Type: decoder.QRCode, Data: "#D%B"},
	}
	if !scan.Equal(a, b) || !scan.Equal(b, a) {
		t.Fatal("expected sets to be equal in both directions")
	}
	c := scan.SymbolSet{{Type: decoder.Code39, Data: "P1"}, {Type: decoder.QRCode, Data: "#D%B"}}
	if scan.Equal(a, c) || scan.Equal(c, a) {
		t.Fatal("type must participate in equality")
	}
	if scan.Equal(a, a[:1]) || scan.Equal(a[:1], a) {
		t.Fatal("sizes differ")
	}
	if !scan.Equal(nil, scan.SymbolSet{}) {
		t.Fatal("empty sets should be equal")
	}
}

func TestStartWithoutConfiguration(t *testing.T) {
	c := newController(t, testsupport.NewFakeSource(1), testsupport.NewFakeDecoder())
	if _, err := c.Start(context.Background(), nil); !errors.Is(err, faults.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if c.Running() {
		t.Fatal("controller should not be running")
	}
}

func TestStartReusesBoundConfiguration(t *testing.T) {
	c := newController(t, testsupport.NewFakeSource(1), testsupport.NewFakeDecoder())
	handle, err := c.Start(context.Background(), testConfig())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if handle.SessionID == "" || handle.Device != "/dev/video0" {
		t.Fatalf("unexpected handle %+v", handle)
	}
	if err := c.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	again, err := c.Start(context.Background(), nil)
	if err != nil {
		t.Fatalf("Start with bound config: %v", err)
	}
	if again.SessionID == handle.SessionID {
		t.Fatal("expected a new session id")
	}
	if bound, ok := c.Bound(); !ok || bound.Device != "/dev/video0" {
		t.Fatalf("unexpected bound config %+v", bound)
	}
}

func TestStopWhenNotStarted(t *testing.T) {
	c := newController(t, testsupport.NewFakeSource(1), testsupport.NewFakeDecoder())
	if err := c.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestSymbolsFoundOnlyWhenSetChanges(t *testing.T) {
	src := testsupport.NewFakeSource(4)
	dec := testsupport.NewFakeDecoder()
	c := newController(t, src, dec)
	rec := record(t, c)
	c.EnableScan()
	if _, err := c.Start(context.Background(), testConfig()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	dec.Returns(qr("#DEV42%BATCH7"))
	src.Push(testsupport.SolidFrame(1))
	rec.expect(t, scan.EventFrameUpdate, 1)
	found := rec.expect(t, scan.EventSymbolsFound, 1)
	if len(found.Symbols) != 1 || found.Symbols[0].Data != "#DEV42%BATCH7" {
		t.Fatalf("unexpected symbols %+v", found.Symbols)
	}
	if found.Symbols[0].Timestamp.IsZero() {
		t.Fatal("symbols should be stamped")
	}

	src.Push(testsupport.SolidFrame(2))
	rec.expect(t, scan.EventFrameUpdate, 2)

	dec.Returns(qr("#DEV43%BATCH7"))
	src.Push(testsupport.SolidFrame(3))
	rec.expect(t, scan.EventFrameUpdate, 3)
	rec.expect(t, scan.EventSymbolsFound, 3)

	dec.Returns()
	src.Push(testsupport.SolidFrame(4))
	rec.expect(t, scan.EventFrameUpdate, 4)
	rec.none(t, 50*time.Millisecond)

	state := c.State()
	if !state.Enabled || len(state.LastSymbols) != 1 || state.LastSymbols[0].Data != "#DEV43%BATCH7" {
		t.Fatalf("unexpected state %+v", state)
	}
	if state.LastFrame.Seq != 4 {
		t.Fatalf("expected last frame 4, got %d", state.LastFrame.Seq)
	}
}

func TestDisabledScanDoesNotDecode(t *testing.T) {
	src := testsupport.NewFakeSource(2)
	dec := testsupport.NewFakeDecoder()
	dec.Returns(qr("#A%B"))
	c := newController(t, src, dec)
	rec := record(t, c)
	if _, err := c.Start(context.Background(), testConfig()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	src.Push(testsupport.SolidFrame(1))
	rec.expect(t, scan.EventFrameUpdate, 1)
	rec.none(t, 30*time.Millisecond)
	if dec.Calls() != 0 {
		t.Fatalf("decoder ran %d times while disabled", dec.Calls())
	}
}

func TestDisableScanResetsAndIsIdempotent(t *testing.T) {
	src := testsupport.NewFakeSource(2)
	dec := testsupport.NewFakeDecoder()
	c := newController(t, src, dec)
	rec := record(t, c)
	c.EnableScan()
	c.EnableScan()
	if _, err := c.Start(context.Background(), testConfig()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	dec.Returns(qr("#A%B"))
	src.Push(testsupport.SolidFrame(1))
	rec.expect(t, scan.EventFrameUpdate, 1)
	rec.expect(t, scan.EventSymbolsFound, 1)

	c.DisableScan(context.Background())
	c.DisableScan(context.Background())
	if c.Scanning() {
		t.Fatal("expected scanning to be disabled")
	}
	if got := c.State().LastSymbols; len(got) != 0 {
		t.Fatalf("disable should reset symbols, got %+v", got)
	}

	c.EnableScan()
	src.Push(testsupport.SolidFrame(2))
	rec.expect(t, scan.EventFrameUpdate, 2)
	rec.expect(t, scan.EventSymbolsFound, 2)
}

func TestDecodeFailuresCountAsEmpty(t *testing.T) {
	src := testsupport.NewFakeSource(3)
	dec := testsupport.NewFakeDecoder()
	c := newController(t, src, dec)
	rec := record(t, c)
	c.EnableScan()
	if _, err := c.Start(context.Background(), testConfig()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	dec.Fails(errors.New("reader fault"))
	src.Push(testsupport.SolidFrame(1))
	rec.expect(t, scan.EventFrameUpdate, 1)

	dec.Panics("boom")
	src.Push(testsupport.SolidFrame(2))
	rec.expect(t, scan.EventFrameUpdate, 2)

	dec.Returns(qr("#A%B"))
	src.Push(testsupport.SolidFrame(3))
	rec.expect(t, scan.EventFrameUpdate, 3)
	rec.expect(t, scan.EventSymbolsFound, 3)
	if !c.Running() {
		t.Fatal("decode failures must not stop the loop")
	}
}

func TestMalformedFrameIsNotDecoded(t *testing.T) {
	src := testsupport.NewFakeSource(1)
	dec := testsupport.NewFakeDecoder()
	dec.Returns(qr("#A%B"))
	c := newController(t, src, dec)
	rec := record(t, c)
	c.EnableScan()
	if _, err := c.Start(context.Background(), testConfig()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	src.Push(capture.Frame{Width: 4, Height: 4, Channels: 3, Pix: make([]byte, 5), Seq: 1})
	rec.expect(t, scan.EventFrameUpdate, 1)
	rec.none(t, 30*time.Millisecond)
	if dec.Calls() != 0 {
		t.Fatal("malformed frame reached the decoder")
	}
}

func TestStopFromHandler(t *testing.T) {
	src := testsupport.NewFakeSource(4)
	dec := testsupport.NewFakeDecoder()
	c := newController(t, src, dec)
	rec := record(t, c)

	var (
		mu      sync.Mutex
		stopErr error
	)
	c.Subscribe(func(ctx context.Context, ev scan.Event) {
		if ev.Kind != scan.EventSymbolsFound {
			return
		}
		err := c.Stop(ctx)
		mu.Lock()
		stopErr = err
		mu.Unlock()
	})

	c.EnableScan()
	if _, err := c.Start(context.Background(), testConfig()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	dec.Returns(qr("#A%B"))
	src.Push(testsupport.SolidFrame(1))
	rec.expect(t, scan.EventFrameUpdate, 1)
	rec.expect(t, scan.EventSymbolsFound, 1)
	stopped := rec.expect(t, scan.EventSourceStopped, 0)
	if stopped.Reason != scan.StopRequested {
		t.Fatalf("unexpected stop reason %s", stopped.Reason)
	}

	mu.Lock()
	err := stopErr
	mu.Unlock()
	if err != nil {
		t.Fatalf("Stop from handler: %v", err)
	}
	if c.Running() || !src.Released() {
		t.Fatal("expected session to be stopped and source released")
	}

	src.Push(testsupport.SolidFrame(2))
	rec.none(t, 50*time.Millisecond)
}

func TestDisableScanFromHandler(t *testing.T) {
	src := testsupport.NewFakeSource(4)
	dec := testsupport.NewFakeDecoder()
	c := newController(t, src, dec)
	c.Subscribe(func(ctx context.Context, ev scan.Event) {
		if ev.Kind == scan.EventFrameUpdate {
			c.DisableScan(ctx)
		}
	})
	rec := record(t, c)

	c.EnableScan()
	if _, err := c.Start(context.Background(), testConfig()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	dec.Returns(qr("#A%B"))
	src.Push(testsupport.SolidFrame(1))
	rec.expect(t, scan.EventFrameUpdate, 1)
	rec.none(t, 50*time.Millisecond)
	if c.Scanning() {
		t.Fatal("expected scanning disabled by handler")
	}
}

func TestEndOfStreamEndsSession(t *testing.T) {
	src := testsupport.NewFakeSource(1)
	c := newController(t, src, testsupport.NewFakeDecoder())
	rec := record(t, c)
	if _, err := c.Start(context.Background(), testConfig()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	src.Push(testsupport.SolidFrame(1))
	rec.expect(t, scan.EventFrameUpdate, 1)
	src.End()
	ev := rec.expect(t, scan.EventSourceStopped, 0)
	if ev.Reason != scan.StopEndOfStream || !errors.Is(ev.Err, capture.ErrEndOfStream) {
		t.Fatalf("unexpected stop event %+v", ev)
	}
	if c.Running() || !src.Released() {
		t.Fatal("end of stream should release the source")
	}
	if _, ok := c.Bound(); !ok {
		t.Fatal("configuration should stay bound after end of stream")
	}
}

func TestStartWhileStartedRestarts(t *testing.T) {
	first := testsupport.NewFakeSource(1)
	second := testsupport.NewFakeSource(1)
	var opened int
	opener := capture.OpenerFunc(func(context.Context, capture.Config) (capture.Source, error) {
		opened++
		if opened == 1 {
			return first, nil
		}
		return second, nil
	})
	c := scan.New(opener, testsupport.NewFakeDecoder(), scan.WithInterval(time.Millisecond))
	t.Cleanup(func() { _ = c.Stop(context.Background()) })
	rec := record(t, c)

	h1, err := c.Start(context.Background(), testConfig())
	if err != nil {
		t.Fatalf("first Start: %v", err)
	}
	h2, err := c.Start(context.Background(), nil)
	if err != nil {
		t.Fatalf("second Start: %v", err)
	}
	ev := rec.expect(t, scan.EventSourceStopped, 0)
	if ev.Reason != scan.StopRestarted || ev.SessionID != h1.SessionID {
		t.Fatalf("unexpected stop event %+v", ev)
	}
	if !first.Released() || second.Released() {
		t.Fatal("restart should release only the first source")
	}
	if c.Current().SessionID != h2.SessionID {
		t.Fatal("current session should be the second one")
	}
}

func TestPauseResume(t *testing.T) {
	src := testsupport.NewFakeSource(1)
	c := newController(t, src, testsupport.NewFakeDecoder())
	if err := c.Pause(); !errors.Is(err, scan.ErrNotStarted) {
		t.Fatalf("Pause before start: %v", err)
	}
	if _, err := c.Start(context.Background(), testConfig()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := c.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if err := c.Pause(); err != nil {
		t.Fatalf("second Pause: %v", err)
	}
	if !c.Paused() || src.PauseCalls() != 1 {
		t.Fatalf("expected one pipeline pause, got %d", src.PauseCalls())
	}
	if err := c.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if c.Paused() || src.ResumeCalls() != 1 {
		t.Fatalf("expected one pipeline resume, got %d", src.ResumeCalls())
	}
}

func TestStartDeviceBusy(t *testing.T) {
	dir := t.TempDir()
	holder := capture.NewFileLocker(dir)
	release, err := holder.Acquire("/dev/video0")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer release()

	c := newController(t, testsupport.NewFakeSource(1), testsupport.NewFakeDecoder(), scan.WithLocker(capture.NewFileLocker(dir)))
	if _, err := c.Start(context.Background(), testConfig()); !errors.Is(err, faults.ErrSourceUnavailable) {
		t.Fatalf("expected source unavailable, got %v", err)
	}
}

func TestStartOpenFailure(t *testing.T) {
	opener := capture.OpenerFunc(func(context.Context, capture.Config) (capture.Source, error) {
		return nil, errors.New("no such device")
	})
	c := scan.New(opener, testsupport.NewFakeDecoder())
	if _, err := c.Start(context.Background(), testConfig()); !errors.Is(err, faults.ErrSourceUnavailable) {
		t.Fatalf("expected source unavailable, got %v", err)
	}
	if c.Running() {
		t.Fatal("failed start must not leave a session")
	}
}

func TestUnsubscribe(t *testing.T) {
	src := testsupport.NewFakeSource(2)
	c := newController(t, src, testsupport.NewFakeDecoder())
	calls := make(chan struct{}, 4)
	unsubscribe := c.Subscribe(func(context.Context, scan.Event) { calls <- struct{}{} })
	rec := record(t, c)
	if _, err := c.Start(context.Background(), testConfig()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	unsubscribe()
	unsubscribe()
	src.Push(testsupport.SolidFrame(1))
	rec.expect(t, scan.EventFrameUpdate, 1)
	if len(calls) != 0 {
		t.Fatal("unsubscribed handler was called")
	}
}

func TestStopFromHandlerWithDerivedContext(t *testing.T) {
	src := testsupport.NewFakeSource(4)
	dec := testsupport.NewFakeDecoder()
	c := newController(t, src, dec)
	rec := record(t, c)

	returned := make(chan error, 1)
	c.Subscribe(func(ctx context.Context, ev scan.Event) {
		if ev.Kind != scan.EventFrameUpdate {
			return
		}
		stopCtx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		returned <- c.Stop(stopCtx)
	})

	if _, err := c.Start(context.Background(), testConfig()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	src.Push(testsupport.SolidFrame(1))
	select {
	case err := <-returned:
		if err != nil {
			t.Fatalf("Stop from handler: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Stop with a context derived from the dispatch context blocked")
	}
	rec.expect(t, scan.EventFrameUpdate, 1)
	if ev := rec.expect(t, scan.EventSourceStopped, 0); ev.Reason != scan.StopRequested {
		t.Fatalf("unexpected stop reason %s", ev.Reason)
	}
	if !src.Released() {
		t.Fatal("expected source released")
	}
}

func TestStopFromOtherGoroutineWaitsForDispatch(t *testing.T) {
	src := testsupport.NewFakeSource(4)
	dec := testsupport.NewFakeDecoder()
	c := newController(t, src, dec)

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	c.Subscribe(func(_ context.Context, ev scan.Event) {
		if ev.Kind == scan.EventFrameUpdate {
			once.Do(func() {
				close(entered)
				<-release
			})
		}
	})

	if _, err := c.Start(context.Background(), testConfig()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	src.Push(testsupport.SolidFrame(1))
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("handler never ran")
	}

	stopped := make(chan error, 1)
	go func() { stopped <- c.Stop(context.Background()) }()
	select {
	case <-stopped:
		t.Fatal("Stop returned while a handler was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case err := <-stopped:
		if err != nil {
			t.Fatalf("Stop: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after the handler finished")
	}
	if c.Running() || !src.Released() {
		t.Fatal("expected session stopped and source released")
	}
}
