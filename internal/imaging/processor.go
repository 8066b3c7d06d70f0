// Package imaging prepares uploaded photos for the model: base64 decoding,
// format sniffing, bounded resizing and JPEG re-encoding.
package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/satriahrh/fixit/server/domain"
	"github.com/satriahrh/fixit/server/domain/entities"
	"github.com/satriahrh/fixit/server/domain/repositories"
)

const (
	defaultMaxDimension = 1024
	defaultJPEGQuality  = 85
	maxEncodedBytes     = 20 << 20
)

// Config for the processor
type Config struct {
	MaxDimension int // longest side after resizing
	JPEGQuality  int
}

// Processor implements repositories.ImageProcessor
type Processor struct {
	maxDimension int
	quality      int
	logger       *zap.Logger
}

var _ repositories.ImageProcessor = (*Processor)(nil)

// NewProcessor creates a processor, applying defaults for zero values
func NewProcessor(config Config, logger *zap.Logger) (*Processor, error) {
	if config.MaxDimension < 0 {
		return nil, fmt.Errorf("max dimension must be positive, got %d", config.MaxDimension)
	}
	if config.JPEGQuality < 0 || config.JPEGQuality > 100 {
		return nil, fmt.Errorf("jpeg quality must be between 1 and 100, got %d", config.JPEGQuality)
	}

	maxDim := config.MaxDimension
	if maxDim == 0 {
		maxDim = defaultMaxDimension
		logger.Info("Using default max image dimension", zap.Int("maxDimension", maxDim))
	}
	quality := config.JPEGQuality
	if quality == 0 {
		quality = defaultJPEGQuality
	}
	return &Processor{maxDimension: maxDim, quality: quality, logger: logger}, nil
}

// Decode accepts raw base64 or a data URL and returns a JPEG no larger than
// the configured dimension. Width and Height describe the returned image.
func (p *Processor) Decode(encoded string) (*entities.ImagePart, error) {
	payload := stripDataURL(strings.TrimSpace(encoded))
	if payload == "" {
		return nil, fmt.Errorf("%w: empty payload", domain.ErrInvalidImage)
	}
	if len(payload) > maxEncodedBytes {
		return nil, fmt.Errorf("%w: payload exceeds %d bytes", domain.ErrInvalidImage, maxEncodedBytes)
	}

	raw, err := decodeBase64(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidImage, err)
	}

	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidImage, err)
	}

	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return nil, fmt.Errorf("%w: zero-sized image", domain.ErrInvalidImage)
	}

	resized := p.resize(img)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: p.quality}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	out := resized.Bounds()
	p.logger.Debug("Image processed",
		zap.String("format", format),
		zap.Int("originalWidth", bounds.Dx()),
		zap.Int("originalHeight", bounds.Dy()),
		zap.Int("width", out.Dx()),
		zap.Int("height", out.Dy()))

	return &entities.ImagePart{
		Data:     buf.Bytes(),
		MIMEType: "image/jpeg",
		Width:    out.Dx(),
		Height:   out.Dy(),
	}, nil
}

func (p *Processor) resize(img image.Image) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	longest := w
	if h > longest {
		longest = h
	}
	if longest <= p.maxDimension {
		return img
	}

	scale := float64(p.maxDimension) / float64(longest)
	nw := max(1, int(float64(w)*scale+0.5))
	nh := max(1, int(float64(h)*scale+0.5))
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

func stripDataURL(s string) string {
	if strings.HasPrefix(s, "data:") {
		if i := strings.Index(s, ","); i >= 0 {
			return s[i+1:]
		}
	}
	return s
}

func decodeBase64(s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', ' ', '\t':
			return -1
		}
		return r
	}, s)
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if raw, err := enc.DecodeString(s); err == nil {
			return raw, nil
		}
	}
	return nil, errors.New("payload is not valid base64")
}
