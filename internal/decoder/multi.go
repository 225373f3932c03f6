package decoder

import (
	"image"

	"github.com/makiuchi-d/gozxing"
)

const (
	// subregionMinSize is the smallest strip beside a found symbol that is
	// searched again.
	subregionMinSize  = 100
	subregionMaxDepth = 4
)

type decoded struct {
	text   string
	points []image.Point
}

// decodeAll returns every distinct payload r finds in bitmap.
func (r reader) decodeAll(bitmap *gozxing.BinaryBitmap, hints map[gozxing.DecodeHintType]interface{}) []decoded {
	seen := make(map[string]bool)
	var out []decoded
	add := func(result *gozxing.Result, offset image.Point) {
		if result == nil || seen[result.GetText()] {
			return
		}
		seen[result.GetText()] = true
		points := convertPoints(result.GetResultPoints())
		for i := range points {
			points[i] = points[i].Add(offset)
		}
		out = append(out, decoded{text: result.GetText(), points: points})
	}

	if r.multi != nil {
		results, err := r.multi.DecodeMultiple(bitmap, hints)
		if err == nil {
			for _, result := range results {
				add(result, image.Point{})
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	r.sweep(bitmap, hints, image.Point{}, 0, add)
	return out
}

// sweep decodes bitmap, then searches the strips left of, right of, above
// and below the symbol it found.
func (r reader) sweep(bitmap *gozxing.BinaryBitmap, hints map[gozxing.DecodeHintType]interface{},
	offset image.Point, depth int, add func(*gozxing.Result, image.Point)) {
	if depth > subregionMaxDepth {
		return
	}
	result, err := r.reader.Decode(bitmap, hints)
	r.reader.Reset()
	if err != nil || result == nil {
		return
	}
	add(result, offset)

	points := convertPoints(result.GetResultPoints())
	if len(points) == 0 || !bitmap.IsCropSupported() {
		return
	}
	width, height := bitmap.GetWidth(), bitmap.GetHeight()
	bounds := image.Rectangle{Min: points[0], Max: points[0]}
	for _, p := range points[1:] {
		bounds.Min.X, bounds.Min.Y = min(bounds.Min.X, p.X), min(bounds.Min.Y, p.Y)
		bounds.Max.X, bounds.Max.Y = max(bounds.Max.X, p.X), max(bounds.Max.Y, p.Y)
	}
	bounds.Min.X, bounds.Min.Y = max(bounds.Min.X, 0), max(bounds.Min.Y, 0)
	bounds.Max.X, bounds.Max.Y = min(bounds.Max.X, width), min(bounds.Max.Y, height)

	var regions []image.Rectangle
	if bounds.Min.X > subregionMinSize {
		regions = append(regions, image.Rect(0, 0, bounds.Min.X, height))
	}
	if bounds.Min.Y > subregionMinSize {
		regions = append(regions, image.Rect(0, 0, width, bounds.Min.Y))
	}
	if bounds.Max.X < width-subregionMinSize {
		regions = append(regions, image.Rect(bounds.Max.X, 0, width, height))
	}
	if bounds.Max.Y < height-subregionMinSize {
		regions = append(regions, image.Rect(0, bounds.Max.Y, width, height))
	}
	for _, region := range regions {
		cropped, err := bitmap.Crop(region.Min.X, region.Min.Y, region.Dx(), region.Dy())
		if err != nil {
			continue
		}
		r.sweep(cropped, hints, offset.Add(region.Min), depth+1, add)
	}
}
