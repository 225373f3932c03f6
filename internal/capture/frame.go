package capture

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"time"
)

// ErrInvalidFrame reports a frame whose buffer does not match its geometry.
var ErrInvalidFrame = errors.New("invalid frame")

// Frame is one captured image as a packed 8-bit buffer. Channels is 1 (gray),
// 3 (RGB) or 4 (RGBA). Frames are treated as immutable once produced.
type Frame struct {
	Width      int
	Height     int
	Channels   int
	Pix        []byte
	Seq        uint64
	CapturedAt time.Time
}

// Validate rejects frames with impossible geometry or a short buffer.
func (f Frame) Validate() error {
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("%w: dimensions %dx%d", ErrInvalidFrame, f.Width, f.Height)
	}
	switch f.Channels {
	case 1, 3, 4:
	default:
		return fmt.Errorf("%w: %d channels", ErrInvalidFrame, f.Channels)
	}
	if want := f.Width * f.Height * f.Channels; len(f.Pix) != want {
		return fmt.Errorf("%w: buffer holds %d bytes, want %d", ErrInvalidFrame, len(f.Pix), want)
	}
	return nil
}

// Empty reports whether the frame carries no pixels.
func (f Frame) Empty() bool {
	return len(f.Pix) == 0
}

// Gray converts the frame to single-channel 8-bit luma using the ITU-R 601
// weights (299R + 587G + 114B) / 1000. Alpha is ignored.
func (f Frame) Gray() *image.Gray {
	out := image.NewGray(image.Rect(0, 0, f.Width, f.Height))
	if f.Channels == 1 {
		copy(out.Pix, f.Pix)
		return out
	}
	n := f.Width * f.Height
	for i := 0; i < n && (i+1)*f.Channels <= len(f.Pix); i++ {
		p := f.Pix[i*f.Channels:]
		out.Pix[i] = luma(p[0], p[1], p[2])
	}
	return out
}

func luma(r, g, b byte) byte {
	return byte((299*uint32(r) + 587*uint32(g) + 114*uint32(b)) / 1000)
}

// Image exposes the frame through the image package. Gray and RGBA frames
// share the underlying buffer; RGB frames are expanded to RGBA.
func (f Frame) Image() image.Image {
	rect := image.Rect(0, 0, f.Width, f.Height)
	switch f.Channels {
	case 1:
		return &image.Gray{Pix: f.Pix, Stride: f.Width, Rect: rect}
	case 4:
		return &image.RGBA{Pix: f.Pix, Stride: f.Width * 4, Rect: rect}
	default:
		out := image.NewRGBA(rect)
		n := f.Width * f.Height
		for i := 0; i < n && i*3+2 < len(f.Pix); i++ {
			out.Pix[i*4] = f.Pix[i*3]
			out.Pix[i*4+1] = f.Pix[i*3+1]
			out.Pix[i*4+2] = f.Pix[i*3+2]
			out.Pix[i*4+3] = 0xff
		}
		return out
	}
}

// FrameFromImage packs img into a Frame. Gray images stay single channel;
// everything else becomes RGB.
func FrameFromImage(img image.Image, seq uint64, at time.Time) Frame {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if gray, ok := img.(*image.Gray); ok {
		pix := make([]byte, w*h)
		for y := 0; y < h; y++ {
			row := gray.Pix[gray.PixOffset(bounds.Min.X, bounds.Min.Y+y):]
			copy(pix[y*w:(y+1)*w], row[:w])
		}
		return Frame{Width: w, Height: h, Channels: 1, Pix: pix, Seq: seq, CapturedAt: at}
	}
	pix := make([]byte, w*h*3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.RGBAModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.RGBA)
			i := (y*w + x) * 3
			pix[i], pix[i+1], pix[i+2] = c.R, c.G, c.B
		}
	}
	return Frame{Width: w, Height: h, Channels: 3, Pix: pix, Seq: seq, CapturedAt: at}
}
