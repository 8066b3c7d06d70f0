// Package spatial turns the model's component locations into pixel boxes and
// enforces the status, visibility and box consistency rules.
package spatial

import (
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/satriahrh/fixit/server/domain/entities"
)

const (
	// MinBoxSize is the smallest box edge in pixels
	MinBoxSize = 10.0

	salvageFraction = 0.05
	salvagePixels   = 50.0
	legacyScale     = 1000.0
)

// Scale is the coordinate system a raw box was expressed in
type Scale string

const (
	ScaleNormalized Scale = "normalized"
	ScaleLegacy     Scale = "legacy_1000"
	ScaleAbsolute   Scale = "absolute"
)

// ClassifyScale decides how raw coordinates map to pixels. Fractions win over
// the 0-1000 scale, which wins over absolute pixels.
func ClassifyScale(xMin, yMin, xMax, yMax float64) Scale {
	if xMin >= 0 && yMin >= 0 && xMax <= 1 && yMax <= 1 {
		return ScaleNormalized
	}
	if xMin <= legacyScale && yMin <= legacyScale && xMax <= legacyScale && yMax <= legacyScale &&
		math.Max(xMax, yMax) > 1 {
		return ScaleLegacy
	}
	return ScaleAbsolute
}

// Normalize reads a raw box under either naming convention and returns a
// clamped pixel box, or nil when no usable box remains. Boxes lying wholly
// outside the image are dropped. Coordinates keep two decimals.
func Normalize(raw gjson.Result, width, height int) *entities.PixelBox {
	if !raw.IsObject() || width <= 0 || height <= 0 {
		return nil
	}
	xMin, ok1 := coord(raw, "x_min", "xmin")
	yMin, ok2 := coord(raw, "y_min", "ymin")
	xMax, ok3 := coord(raw, "x_max", "xmax")
	yMax, ok4 := coord(raw, "y_max", "ymax")
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return nil
	}
	return NormalizeValues(xMin, yMin, xMax, yMax, width, height)
}

// NormalizeValues is Normalize over already-parsed numbers
func NormalizeValues(xMin, yMin, xMax, yMax float64, width, height int) *entities.PixelBox {
	if width <= 0 || height <= 0 {
		return nil
	}
	w, h := float64(width), float64(height)

	switch ClassifyScale(xMin, yMin, xMax, yMax) {
	case ScaleNormalized:
		xMin, xMax = xMin*w, xMax*w
		yMin, yMax = yMin*h, yMax*h
	case ScaleLegacy:
		xMin, xMax = xMin/legacyScale*w, xMax/legacyScale*w
		yMin, yMax = yMin/legacyScale*h, yMax/legacyScale*h
	}

	if xMin >= xMax {
		xMax = xMin + math.Max(w*salvageFraction, salvagePixels)
	}
	if yMin >= yMax {
		yMax = yMin + math.Max(h*salvageFraction, salvagePixels)
	}

	if xMin >= w || yMin >= h || xMax <= 0 || yMax <= 0 {
		return nil
	}

	xMin, xMax = clamp(xMin, 0, w), clamp(xMax, 0, w)
	yMin, yMax = clamp(yMin, 0, h), clamp(yMax, 0, h)

	xMin, xMax = growToMinimum(xMin, xMax, w)
	yMin, yMax = growToMinimum(yMin, yMax, h)

	if xMin >= xMax || yMin >= yMax {
		return nil
	}
	return &entities.PixelBox{
		XMin: round2(xMin),
		YMin: round2(yMin),
		XMax: round2(xMax),
		YMax: round2(yMax),
	}
}

// growToMinimum extends a short axis from its min corner, shifting the min
// back when the image edge blocks growth
func growToMinimum(lo, hi, limit float64) (float64, float64) {
	if hi-lo >= MinBoxSize {
		return lo, hi
	}
	hi = math.Min(lo+MinBoxSize, limit)
	if hi-lo < MinBoxSize {
		lo = math.Max(0, hi-MinBoxSize)
	}
	return lo, hi
}

// ClampBox keeps a box inside the image without resizing it
func ClampBox(b *entities.PixelBox, width, height int) *entities.PixelBox {
	if b == nil {
		return nil
	}
	w, h := float64(width), float64(height)
	return &entities.PixelBox{
		XMin: clamp(b.XMin, 0, w),
		YMin: clamp(b.YMin, 0, h),
		XMax: clamp(b.XMax, 0, w),
		YMax: clamp(b.YMax, 0, h),
	}
}

func coord(raw gjson.Result, names ...string) (float64, bool) {
	for _, name := range names {
		v := raw.Get(name)
		if !v.Exists() {
			continue
		}
		var f float64
		switch v.Type {
		case gjson.Number:
			f = v.Float()
		case gjson.String:
			parsed, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
			if err != nil {
				return 0, false
			}
			f = parsed
		default:
			return 0, false
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
