package daemon

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"

	"barscan/internal/capture"
	"barscan/internal/config"
)

// renderPreview scales frame by opts.Scale, optionally mirrors it so the
// operator sees themselves as in a mirror, and encodes it as JPEG.
func renderPreview(frame capture.Frame, opts config.Preview) ([]byte, error) {
	if err := frame.Validate(); err != nil {
		return nil, err
	}
	scale := opts.Scale
	if scale <= 0 || scale > 1 {
		scale = 1
	}
	width := max(1, int(float64(frame.Width)*scale))
	height := max(1, int(float64(frame.Height)*scale))

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), frame.Image(), image.Rect(0, 0, frame.Width, frame.Height), draw.Src, nil)
	if opts.Mirror {
		mirrorHorizontal(dst)
	}

	quality := opts.JPEGQuality
	if quality <= 0 || quality > 100 {
		quality = jpeg.DefaultQuality
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode preview: %w", err)
	}
	return buf.Bytes(), nil
}

func mirrorHorizontal(img *image.RGBA) {
	w := img.Rect.Dx()
	for y := 0; y < img.Rect.Dy(); y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for left, right := 0, w-1; left < right; left, right = left+1, right-1 {
			l, r := row[left*4:left*4+4], row[right*4:right*4+4]
			for i := 0; i < 4; i++ {
				l[i], r[i] = r[i], l[i]
			}
		}
	}
}
