package imaging

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/satriahrh/fixit/server/domain"
)

func encodePNG(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func newTestProcessor(t *testing.T, maxDim int) *Processor {
	t.Helper()
	p, err := NewProcessor(Config{MaxDimension: maxDim}, zap.NewNop())
	require.NoError(t, err)
	return p
}

func TestDecodeKeepsSmallImages(t *testing.T) {
	p := newTestProcessor(t, 1024)

	part, err := p.Decode(encodePNG(t, 320, 240))
	require.NoError(t, err)
	assert.Equal(t, 320, part.Width)
	assert.Equal(t, 240, part.Height)
	assert.Equal(t, "image/jpeg", part.MIMEType)
	assert.NotEmpty(t, part.Data)
}

func TestDecodeResizesLongestSide(t *testing.T) {
	p := newTestProcessor(t, 100)

	part, err := p.Decode(encodePNG(t, 400, 200))
	require.NoError(t, err)
	assert.Equal(t, 100, part.Width)
	assert.Equal(t, 50, part.Height)
}

func TestDecodeDataURL(t *testing.T) {
	p := newTestProcessor(t, 0)

	part, err := p.Decode("data:image/png;base64," + encodePNG(t, 16, 8))
	require.NoError(t, err)
	assert.Equal(t, 16, part.Width)
	assert.Equal(t, 8, part.Height)
}

func TestDecodeRejectsBadInput(t *testing.T) {
	p := newTestProcessor(t, 0)

	tests := []struct {
		name  string
		input string
	}{
		{"empty", "  "},
		{"not base64", "%%%not-base64%%%"},
		{"not an image", base64.StdEncoding.EncodeToString([]byte("hello world"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Decode(tt.input)
			assert.ErrorIs(t, err, domain.ErrInvalidImage)
		})
	}
}

func TestNewProcessorValidatesConfig(t *testing.T) {
	_, err := NewProcessor(Config{JPEGQuality: 120}, zap.NewNop())
	assert.Error(t, err)
}
