package media

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"golang.org/x/image/bmp"
)

func encodeTestJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 0x40, A: 0xff})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	return buf.Bytes()
}

func TestOptimizeDownsamplesLargeImage(t *testing.T) {
	opt := NewImageOptimizer(nil)
	raw := encodeTestJPEG(t, 3200, 2400)

	out, err := opt.Optimize(raw)
	if err != nil {
		t.Fatalf("Optimize returned error: %v", err)
	}
	if out.Width > ImageMaxWidth || out.Height > ImageMaxHeight {
		t.Fatalf("dimensions %dx%d exceed bound %dx%d", out.Width, out.Height, ImageMaxWidth, ImageMaxHeight)
	}
	// Aspect ratio preserved (4:3 source).
	if out.Width*3 != out.Height*4 {
		t.Fatalf("aspect ratio not preserved: %dx%d", out.Width, out.Height)
	}
	if len(out.Payload) >= len(raw) {
		t.Fatalf("optimized payload (%d) not smaller than input (%d)", len(out.Payload), len(raw))
	}
	if out.Mime != "image/jpeg" {
		t.Fatalf("mime = %q, want image/jpeg", out.Mime)
	}
	if MimeOfDataURL(out.DataURL) != "image/jpeg" {
		t.Fatalf("data url mime mismatch: %q", out.DataURL[:32])
	}
}

func TestOptimizeKeepsSmallImageDimensions(t *testing.T) {
	opt := NewImageOptimizer(nil)
	raw := encodeTestJPEG(t, 120, 80)

	out, err := opt.Optimize(raw)
	if err != nil {
		t.Fatalf("Optimize returned error: %v", err)
	}
	if out.Width != 120 || out.Height != 80 {
		t.Fatalf("small image should not be upscaled or shrunk: %dx%d", out.Width, out.Height)
	}
}

func TestOptimizeDecodesBMP(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 32, 24))
	for y := 0; y < 24; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 8), G: uint8(y * 8), B: 0x20, A: 0xff})
		}
	}
	var buf bytes.Buffer
	if err := bmp.Encode(&buf, img); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}

	out, err := NewImageOptimizer(nil).Optimize(buf.Bytes())
	if err != nil {
		t.Fatalf("Optimize returned error: %v", err)
	}
	if out.Mime != "image/jpeg" {
		t.Fatalf("opaque bmp should re-encode to jpeg, got %q", out.Mime)
	}
	if out.Width != 32 || out.Height != 24 {
		t.Fatalf("dimensions = %dx%d, want 32x24", out.Width, out.Height)
	}
}

func TestOptimizePreservesAlphaAsPNG(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.NRGBA{R: 0x80, G: 0x10, B: 0x10, A: uint8(x * 4)})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}

	out, err := NewImageOptimizer(nil).Optimize(buf.Bytes())
	if err != nil {
		t.Fatalf("Optimize returned error: %v", err)
	}
	if out.Mime != "image/png" {
		t.Fatalf("translucent png should stay png, got %q", out.Mime)
	}
}

func TestOptimizeRejectsGarbage(t *testing.T) {
	_, err := NewImageOptimizer(nil).Optimize([]byte("definitely not an image"))
	if !errors.Is(err, ErrOptimizationFailed) {
		t.Fatalf("Optimize(garbage) error = %v, want ErrOptimizationFailed", err)
	}
}

func TestScaleFactor(t *testing.T) {
	cases := []struct {
		w, h int
		want float64
	}{
		{800, 600, 1},
		{400, 300, 1},
		{1600, 600, 0.5},
		{800, 1200, 0.5},
		{0, 100, 1},
	}
	for _, tc := range cases {
		if got := scaleFactor(tc.w, tc.h, 800, 600); got != tc.want {
			t.Fatalf("scaleFactor(%d,%d) = %v, want %v", tc.w, tc.h, got, tc.want)
		}
	}
}
