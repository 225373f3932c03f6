package testsupport

import (
	"context"
	"image"
	"sync"
	"sync/atomic"

	"barscan/internal/capture"
	"barscan/internal/decoder"
)

// FakeSource delivers frames pushed by the test.
type FakeSource struct {
	frames   chan capture.Frame
	endOnce  sync.Once
	released atomic.Bool
	paused   atomic.Int32
	resumed  atomic.Int32
}

// NewFakeSource returns a source buffering up to capacity frames.
func NewFakeSource(capacity int) *FakeSource {
	return &FakeSource{frames: make(chan capture.Frame, capacity)}
}

// Push queues a frame for the next ReadFrame.
func (s *FakeSource) Push(frame capture.Frame) {
	s.frames <- frame
}

// End makes ReadFrame report end of stream once queued frames are drained.
func (s *FakeSource) End() {
	s.endOnce.Do(func() { close(s.frames) })
}

func (s *FakeSource) ReadFrame(ctx context.Context) (capture.Frame, error) {
	select {
	case frame, ok := <-s.frames:
		if !ok {
			return capture.Frame{}, capture.ErrEndOfStream
		}
		return frame, nil
	case <-ctx.Done():
		return capture.Frame{}, ctx.Err()
	}
}

func (s *FakeSource) Release() error {
	s.released.Store(true)
	return nil
}

func (s *FakeSource) Pause() error {
	s.paused.Add(1)
	return nil
}

func (s *FakeSource) Resume() error {
	s.resumed.Add(1)
	return nil
}

// Released reports whether Release was called.
func (s *FakeSource) Released() bool { return s.released.Load() }

// PauseCalls and ResumeCalls count Pauser calls.
func (s *FakeSource) PauseCalls() int  { return int(s.paused.Load()) }
func (s *FakeSource) ResumeCalls() int { return int(s.resumed.Load()) }

// OpenerFor returns an opener that hands out src for every Open.
func OpenerFor(src capture.Source) capture.Opener {
	return capture.OpenerFunc(func(context.Context, capture.Config) (capture.Source, error) {
		return src, nil
	})
}

// FakeDecoder returns scripted detections and counts calls.
type FakeDecoder struct {
	mu         sync.Mutex
	detections []decoder.Detection
	err        error
	panicValue any
	calls      int
	syms       decoder.Symbologies
}

// NewFakeDecoder returns a decoder that initially finds nothing.
func NewFakeDecoder() *FakeDecoder {
	return &FakeDecoder{}
}

// Returns sets the detections reported by subsequent Decode calls.
func (d *FakeDecoder) Returns(detections ...decoder.Detection) {
	d.mu.Lock()
	d.detections = detections
	d.err = nil
	d.panicValue = nil
	d.mu.Unlock()
}

// Fails makes subsequent Decode calls return err.
func (d *FakeDecoder) Fails(err error) {
	d.mu.Lock()
	d.err = err
	d.mu.Unlock()
}

// Panics makes subsequent Decode calls panic with v.
func (d *FakeDecoder) Panics(v any) {
	d.mu.Lock()
	d.panicValue = v
	d.mu.Unlock()
}

// Calls reports how many times Decode ran.
func (d *FakeDecoder) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func (d *FakeDecoder) Configure(syms decoder.Symbologies) error {
	d.mu.Lock()
	d.syms = syms
	d.mu.Unlock()
	return nil
}

func (d *FakeDecoder) Decode(*image.Gray) ([]decoder.Detection, error) {
	d.mu.Lock()
	d.calls++
	detections, err, panicValue := d.detections, d.err, d.panicValue
	d.mu.Unlock()
	if panicValue != nil {
		panic(panicValue)
	}
	if err != nil {
		return nil, err
	}
	return append([]decoder.Detection(nil), detections...), nil
}

// SolidFrame returns a small gray frame; seq distinguishes frames.
func SolidFrame(seq uint64) capture.Frame {
	return capture.Frame{Width: 4, Height: 4, Channels: 1, Pix: make([]byte, 16), Seq: seq}
}
