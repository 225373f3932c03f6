package testsupport

import (
	"image"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"

	"barscan/internal/capture"
)

// RenderQR encodes text as a size x size QR code.
func RenderQR(t testing.TB, text string, size int) *image.Gray {
	t.Helper()
	matrix, err := qrcode.NewQRCodeWriter().Encode(text, gozxing.BarcodeFormat_QR_CODE, size, size, nil)
	if err != nil {
		t.Fatalf("encode qr %q: %v", text, err)
	}
	return toGray(matrix)
}

// RenderCode128 encodes text as a Code 128 barcode.
func RenderCode128(t testing.TB, text string, width, height int) *image.Gray {
	t.Helper()
	matrix, err := oned.NewCode128Writer().Encode(text, gozxing.BarcodeFormat_CODE_128, width, height, nil)
	if err != nil {
		t.Fatalf("encode code128 %q: %v", text, err)
	}
	return toGray(matrix)
}

// RenderEAN13 encodes a 12 or 13 digit string as an EAN-13 barcode.
func RenderEAN13(t testing.TB, digits string, width, height int) *image.Gray {
	t.Helper()
	matrix, err := oned.NewEAN13Writer().Encode(digits, gozxing.BarcodeFormat_EAN_13, width, height, nil)
	if err != nil {
		t.Fatalf("encode ean13 %q: %v", digits, err)
	}
	return toGray(matrix)
}

// Blank returns a white image with no symbols.
func Blank(width, height int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	return img
}

// GrayFrame wraps img as a single-channel capture frame.
func GrayFrame(img *image.Gray, seq uint64) capture.Frame {
	b := img.Bounds()
	pix := make([]byte, b.Dx()*b.Dy())
	for y := 0; y < b.Dy(); y++ {
		copy(pix[y*b.Dx():(y+1)*b.Dx()], img.Pix[(y)*img.Stride:(y)*img.Stride+b.Dx()])
	}
	return capture.Frame{Width: b.Dx(), Height: b.Dy(), Channels: 1, Pix: pix, Seq: seq}
}

// WritePNG stores img under dir and returns the path.
func WritePNG(t testing.TB, dir, name string, img image.Image) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
	return path
}

func toGray(img image.Image) *image.Gray {
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	return gray
}
