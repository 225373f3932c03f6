package decoder

import (
	"fmt"
	"image"
	"math"
	"sync"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/multi"
	multiqr "github.com/makiuchi-d/gozxing/multi/qrcode"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"

	"barscan/internal/faults"
)

// Detection is one symbol located in a frame.
type Detection struct {
	Type   Symbology     `json:"type"`
	Text   string        `json:"data"`
	Points []image.Point `json:"points,omitempty"`
}

// Decoder locates symbols in grayscale frames.
type Decoder interface {
	Configure(syms Symbologies) error
	Decode(img *image.Gray) ([]Detection, error)
}

// reader pairs a gozxing reader with the symbologies it can produce. multi,
// when set, finds every symbol of its kind in one pass; otherwise the
// single reader is swept over subregions of the frame.
type reader struct {
	serves   []Symbology
	reader   gozxing.Reader
	multi    multi.MultipleBarcodeReader
	classify func(text string, syms Symbologies) (Symbology, string, bool)
}

func fixed(sym Symbology) func(string, Symbologies) (Symbology, string, bool) {
	return func(text string, syms Symbologies) (Symbology, string, bool) {
		return sym, text, syms.IsEnabled(sym)
	}
}

func newReaders() []reader {
	return []reader{
		{serves: []Symbology{QRCode}, reader: qrcode.NewQRCodeReader(), multi: multiqr.NewQRCodeMultiReader(), classify: fixed(QRCode)},
		{serves: []Symbology{Code128}, reader: oned.NewCode128Reader(), classify: fixed(Code128)},
		{serves: []Symbology{Code39}, reader: oned.NewCode39Reader(), classify: fixed(Code39)},
		{serves: []Symbology{EAN13, UPCA, ISBN10, ISBN13}, reader: oned.NewEAN13Reader(), classify: classifyEAN13},
		{serves: []Symbology{EAN8}, reader: oned.NewEAN8Reader(), classify: fixed(EAN8)},
		{serves: []Symbology{UPCE}, reader: oned.NewUPCEReader(), classify: fixed(UPCE)},
		{serves: []Symbology{I25}, reader: oned.NewITFReader(), classify: fixed(I25)},
	}
}

// ZXing decodes with gozxing. Every distinct payload in the frame is
// reported once per reader.
type ZXing struct {
	mu     sync.Mutex
	syms   Symbologies
	active []reader
	hints  map[gozxing.DecodeHintType]interface{}
}

// New returns a decoder configured with syms. Nil syms selects DefaultSymbologies.
func New(syms Symbologies) (*ZXing, error) {
	d := &ZXing{
		hints: map[gozxing.DecodeHintType]interface{}{
			gozxing.DecodeHintType_TRY_HARDER: true,
		},
	}
	if syms == nil {
		syms = DefaultSymbologies()
	}
	if err := d.Configure(syms); err != nil {
		return nil, err
	}
	return d, nil
}

// Configure replaces the enabled symbologies.
func (d *ZXing) Configure(syms Symbologies) error {
	if err := syms.Validate(); err != nil {
		return faults.Wrap(faults.ErrConfiguration, "decoder", "configure", "", err)
	}
	copied := make(Symbologies, len(syms))
	for k, v := range syms {
		copied[k] = v
	}

	var active []reader
	for _, r := range newReaders() {
		for _, sym := range r.serves {
			if copied.IsEnabled(sym) {
				active = append(active, r)
				break
			}
		}
	}

	d.mu.Lock()
	d.syms = copied
	d.active = active
	d.mu.Unlock()
	return nil
}

// Symbologies returns a copy of the current configuration.
func (d *ZXing) Symbologies() Symbologies {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(Symbologies, len(d.syms))
	for k, v := range d.syms {
		out[k] = v
	}
	return out
}

// Decode runs every active reader over img. Reader misses are not errors;
// a reader panic is reported as faults.ErrDecode.
func (d *ZXing) Decode(img *image.Gray) (detections []Detection, err error) {
	if img == nil || img.Bounds().Empty() {
		return nil, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			detections = nil
			err = faults.Wrap(faults.ErrDecode, "decoder", "decode", fmt.Sprintf("reader panic: %v", r), nil)
		}
	}()

	bitmap, bmErr := gozxing.NewBinaryBitmapFromImage(img)
	if bmErr != nil {
		return nil, faults.Wrap(faults.ErrDecode, "decoder", "decode", "binarize frame", bmErr)
	}

	for _, r := range d.active {
		for _, found := range r.decodeAll(bitmap, d.hints) {
			sym, text, ok := r.classify(found.text, d.syms)
			if !ok || !d.syms[sym].accepts(text) {
				continue
			}
			detections = append(detections, Detection{
				Type:   sym,
				Text:   text,
				Points: found.points,
			})
		}
	}
	return detections, nil
}

func convertPoints(points []gozxing.ResultPoint) []image.Point {
	if len(points) == 0 {
		return nil
	}
	out := make([]image.Point, 0, len(points))
	for _, p := range points {
		if p == nil {
			continue
		}
		out = append(out, image.Pt(int(math.Round(p.GetX())), int(math.Round(p.GetY()))))
	}
	return out
}
