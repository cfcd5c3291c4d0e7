// Package screenshot turns raw browser captures into the bounded-size JPEG
// frames the oracle sees, and keeps a rolling archive of them on disk.
package screenshot

import (
	"bytes"
	"context"
	"fmt"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"github.com/xkilldash9x/visionfill/internal/browser"
)

const (
	DefaultWidth   = 1024
	DefaultQuality = 85
)

// Frame is one processed capture.
type Frame struct {
	JPEG   []byte
	Width  int
	Height int
}

// Capturer grabs the page and normalizes the image.
type Capturer struct {
	page     browser.Page
	logger   *zap.Logger
	maxWidth int
	quality  int
	fullPage bool
}

// NewCapturer builds a Capturer. Non-positive width or an out-of-range
// quality fall back to the defaults.
func NewCapturer(page browser.Page, logger *zap.Logger, maxWidth, quality int, fullPage bool) *Capturer {
	if maxWidth <= 0 {
		maxWidth = DefaultWidth
	}
	if quality < 1 || quality > 100 {
		quality = DefaultQuality
	}
	return &Capturer{
		page:     page,
		logger:   logger.Named("screenshot"),
		maxWidth: maxWidth,
		quality:  quality,
		fullPage: fullPage,
	}
}

// Capture screenshots the page and returns it resized and JPEG encoded.
func (c *Capturer) Capture(ctx context.Context) (Frame, error) {
	raw, err := c.page.Screenshot(ctx, c.fullPage)
	if err != nil {
		return Frame{}, fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return c.Process(raw)
}

// Process decodes raw (PNG or JPEG), downscales it to the configured width
// keeping the aspect ratio, and re-encodes it as JPEG.
func (c *Capturer) Process(raw []byte) (Frame, error) {
	img, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		return Frame{}, fmt.Errorf("failed to decode screenshot: %w", err)
	}

	original := img.Bounds().Dx()
	if original > c.maxWidth {
		img = imaging.Resize(img, c.maxWidth, 0, imaging.Lanczos)
		c.logger.Debug("Resized screenshot.", zap.Int("from_width", original), zap.Int("to_width", c.maxWidth))
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(c.quality)); err != nil {
		return Frame{}, fmt.Errorf("failed to encode screenshot: %w", err)
	}
	b := img.Bounds()
	return Frame{JPEG: buf.Bytes(), Width: b.Dx(), Height: b.Dy()}, nil
}
