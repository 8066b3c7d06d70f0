package spatial

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestClassifyScale(t *testing.T) {
	tests := []struct {
		name                   string
		xMin, yMin, xMax, yMax float64
		want                   Scale
	}{
		{"fractions", 0.1, 0.2, 0.5, 0.6, ScaleNormalized},
		{"fractions touching edges", 0, 0, 1, 1, ScaleNormalized},
		{"legacy thousandths", 100, 200, 500, 600, ScaleLegacy},
		{"pixels beyond 1000", 100, 200, 1400, 900, ScaleAbsolute},
		{"negative fraction falls through to pixels", -0.1, 0.2, 0.5, 0.6, ScaleAbsolute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyScale(tt.xMin, tt.yMin, tt.xMax, tt.yMax))
		})
	}
}

func TestNormalizeScales(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		w, h int
		want [4]float64
	}{
		{"fractions", `{"x_min":0.1,"y_min":0.2,"x_max":0.5,"y_max":0.6}`, 1000, 500, [4]float64{100, 100, 500, 300}},
		{"legacy", `{"x_min":100,"y_min":200,"x_max":500,"y_max":600}`, 1000, 500, [4]float64{100, 100, 500, 300}},
		{"absolute", `{"x_min":120,"y_min":40,"x_max":1200,"y_max":400}`, 1600, 1200, [4]float64{120, 40, 1200, 400}},
		{"alternate names", `{"xmin":0.25,"ymin":0.25,"xmax":0.75,"ymax":0.75}`, 800, 600, [4]float64{200, 150, 600, 450}},
		{"numeric strings", `{"x_min":"0.1","y_min":" 0.1 ","x_max":"0.2","y_max":"0.2"}`, 1000, 1000, [4]float64{100, 100, 200, 200}},
		{"sub-pixel values kept", `{"x_min":0.1234,"y_min":0.1,"x_max":0.5,"y_max":0.5}`, 333, 100, [4]float64{41.09, 10, 166.5, 50}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			box := Normalize(gjson.Parse(tt.raw), tt.w, tt.h)
			require.NotNil(t, box)
			assert.InDelta(t, tt.want[0], box.XMin, 0.001)
			assert.InDelta(t, tt.want[1], box.YMin, 0.001)
			assert.InDelta(t, tt.want[2], box.XMax, 0.001)
			assert.InDelta(t, tt.want[3], box.YMax, 0.001)
		})
	}
}

func TestNormalizeRejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		w, h int
	}{
		{"not an object", `[0.1,0.1,0.2,0.2]`, 100, 100},
		{"missing field", `{"x_min":0.1,"y_min":0.1,"x_max":0.2}`, 100, 100},
		{"non numeric string", `{"x_min":"left","y_min":0.1,"x_max":0.2,"y_max":0.2}`, 100, 100},
		{"boolean value", `{"x_min":true,"y_min":0.1,"x_max":0.2,"y_max":0.2}`, 100, 100},
		{"no image size", `{"x_min":0.1,"y_min":0.1,"x_max":0.2,"y_max":0.2}`, 0, 100},
		{"entirely outside", `{"x_min":5000,"y_min":5000,"x_max":6000,"y_max":6000}`, 100, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Nil(t, Normalize(gjson.Parse(tt.raw), tt.w, tt.h))
		})
	}
}

func TestNormalizeSalvagesCollapsedAxis(t *testing.T) {
	box := Normalize(gjson.Parse(`{"x_min":0.5,"y_min":0.5,"x_max":0.5,"y_max":0.5}`), 2000, 400)
	require.NotNil(t, box)
	// 5% of 2000 beats the 50px minimum on x; 50px wins on y.
	assert.Equal(t, 1000.0, box.XMin)
	assert.Equal(t, 1100.0, box.XMax)
	assert.Equal(t, 200.0, box.YMin)
	assert.Equal(t, 250.0, box.YMax)
}

func TestNormalizeGrowsTinyBoxAgainstEdge(t *testing.T) {
	box := NormalizeValues(1598, 10, 1600, 12, 1600, 1200)
	require.NotNil(t, box)
	assert.Equal(t, 1590.0, box.XMin)
	assert.Equal(t, 1600.0, box.XMax)
	assert.Equal(t, 10.0, box.YMin)
	assert.Equal(t, 20.0, box.YMax)
}

func TestNormalizeClampsToImage(t *testing.T) {
	box := NormalizeValues(-50, -20, 1500, 900, 1280, 720)
	require.NotNil(t, box)
	assert.Equal(t, 0.0, box.XMin)
	assert.Equal(t, 0.0, box.YMin)
	assert.Equal(t, 1280.0, box.XMax)
	assert.Equal(t, 720.0, box.YMax)
}

func TestNormalizeBoundsHold(t *testing.T) {
	sizes := [][2]int{{1, 1}, {7, 5}, {640, 480}, {4032, 3024}}
	values := []float64{-10, 0, 0.3, 0.99, 1, 1.5, 250, 999, 1000, 1001, 5000}
	for _, size := range sizes {
		w, h := size[0], size[1]
		for _, a := range values {
			for _, b := range values {
				box := NormalizeValues(a, a, b, b, w, h)
				if box == nil {
					continue
				}
				msg := fmt.Sprintf("size=%v a=%v b=%v box=%+v", size, a, b, *box)
				assert.GreaterOrEqual(t, box.XMin, 0.0, msg)
				assert.GreaterOrEqual(t, box.YMin, 0.0, msg)
				assert.Less(t, box.XMin, box.XMax, msg)
				assert.Less(t, box.YMin, box.YMax, msg)
				assert.LessOrEqual(t, box.XMax, float64(w), msg)
				assert.LessOrEqual(t, box.YMax, float64(h), msg)
			}
		}
	}
}

func TestNormalizeFractionAndLegacyAgree(t *testing.T) {
	fractions := [][4]float64{
		{0.1, 0.2, 0.5, 0.6},
		{0.0, 0.0, 0.33, 0.25},
		{0.72, 0.05, 0.98, 0.4},
	}
	for _, f := range fractions {
		for _, size := range [][2]int{{1024, 768}, {3000, 2000}, {333, 777}} {
			a := NormalizeValues(f[0], f[1], f[2], f[3], size[0], size[1])
			b := NormalizeValues(f[0]*1000, f[1]*1000, f[2]*1000, f[3]*1000, size[0], size[1])
			require.NotNil(t, a)
			require.NotNil(t, b)
			assert.InDelta(t, a.XMin, b.XMin, 1)
			assert.InDelta(t, a.YMin, b.YMin, 1)
			assert.InDelta(t, a.XMax, b.XMax, 1)
			assert.InDelta(t, a.YMax, b.YMax, 1)
		}
	}
}
