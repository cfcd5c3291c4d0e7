package screenshot

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/visionfill/internal/browser/browsertest"
)

func pngOf(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x += 7 {
		img.Set(x, x%h, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decodedSize(t *testing.T, data []byte) (int, int, string) {
	t.Helper()
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	return cfg.Width, cfg.Height, format
}

func TestProcess_DownscalesWideCaptures(t *testing.T) {
	c := NewCapturer(browsertest.NewPage(), zaptest.NewLogger(t), 1024, 85, false)

	frame, err := c.Process(pngOf(t, 2048, 1536))
	require.NoError(t, err)
	assert.Equal(t, 1024, frame.Width)
	assert.Equal(t, 768, frame.Height)

	w, h, format := decodedSize(t, frame.JPEG)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 1024, w)
	assert.Equal(t, 768, h)
}

func TestProcess_KeepsNarrowCaptures(t *testing.T) {
	c := NewCapturer(browsertest.NewPage(), zaptest.NewLogger(t), 1024, 85, false)

	frame, err := c.Process(pngOf(t, 800, 600))
	require.NoError(t, err)
	assert.Equal(t, 800, frame.Width)
	assert.Equal(t, 600, frame.Height)
}

func TestProcess_RejectsGarbage(t *testing.T) {
	c := NewCapturer(browsertest.NewPage(), zaptest.NewLogger(t), 0, 0, false)
	_, err := c.Process([]byte("not an image"))
	assert.Error(t, err)
	assert.Equal(t, DefaultWidth, c.maxWidth)
	assert.Equal(t, DefaultQuality, c.quality)
}

func TestCapture(t *testing.T) {
	page := browsertest.NewPage()
	page.ScreenshotData = pngOf(t, 1280, 900)
	c := NewCapturer(page, zaptest.NewLogger(t), 640, 70, false)

	frame, err := c.Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 640, frame.Width)
	assert.Equal(t, 450, frame.Height)
	assert.Equal(t, 1, page.Screenshots)

	page.ScreenshotErr = errors.New("target closed")
	_, err = c.Capture(context.Background())
	assert.ErrorContains(t, err, "target closed")
}

func listJPEGs(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "*.jpg"))
	require.NoError(t, err)
	names := make([]string, len(matches))
	for i, m := range matches {
		names[i] = filepath.Base(m)
	}
	sort.Strings(names)
	return names
}

func TestArchive_SaveAndPrune(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "shots")
	a, err := NewArchive(dir, 3, zaptest.NewLogger(t))
	require.NoError(t, err)
	a.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }

	for step := 1; step <= 5; step++ {
		_, err := a.Save(step, "", []byte{0xff, 0xd8})
		require.NoError(t, err)
	}
	path, err := a.Save(6, "final confirmation", []byte{0xff, 0xd8})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "step_006_20250102_030405_final_confirmation.jpg"), path)

	assert.Equal(t, []string{
		"step_004_20250102_030405.jpg",
		"step_005_20250102_030405.jpg",
		"step_006_20250102_030405_final_confirmation.jpg",
	}, listJPEGs(t, dir))
}

func TestArchive_Disabled(t *testing.T) {
	a, err := NewArchive("", 3, zaptest.NewLogger(t))
	require.NoError(t, err)
	path, err := a.Save(1, "", []byte{1})
	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestArchive_KeepAll(t *testing.T) {
	dir := t.TempDir()
	a, err := NewArchive(dir, 0, zaptest.NewLogger(t))
	require.NoError(t, err)
	for step := 1; step <= 4; step++ {
		_, err := a.Save(step, "", []byte{1})
		require.NoError(t, err)
	}
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 4)
}
