package media

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"log/slog"

	_ "image/gif"

	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Image optimization bounds. Uploads are downsampled to fit and re-encoded
// at a fixed quality to keep the metadata index cheap to scan.
const (
	ImageMaxWidth    = 800
	ImageMaxHeight   = 600
	ImageJPEGQuality = 60
)

// ImageOptimizer downsamples and recompresses images into a normalized
// format bounded by ImageMaxWidth x ImageMaxHeight.
type ImageOptimizer struct {
	maxWidth  int
	maxHeight int
	quality   int
	logger    *slog.Logger
}

// OptimizedImage is the result of one optimization pass.
type OptimizedImage struct {
	Payload []byte
	// DataURL is the inline-encoded content descriptor for the payload.
	DataURL string
	Mime    string
	Width   int
	Height  int
}

// NewImageOptimizer creates an optimizer with the default bounds.
func NewImageOptimizer(log *slog.Logger) *ImageOptimizer {
	if log == nil {
		log = slog.Default()
	}
	return &ImageOptimizer{
		maxWidth:  ImageMaxWidth,
		maxHeight: ImageMaxHeight,
		quality:   ImageJPEGQuality,
		logger:    log.With(slog.String("service", "image_optimizer")),
	}
}

// Optimize decodes raw image bytes, scales them to fit the bounds while
// preserving aspect ratio, and re-encodes. JPEG is the normalized output;
// sources with an alpha channel are re-encoded as PNG so transparency
// survives. A decode error wraps ErrOptimizationFailed and excludes the
// asset from its batch without failing the batch.
func (o *ImageOptimizer) Optimize(raw []byte) (OptimizedImage, error) {
	src, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return OptimizedImage{}, fmt.Errorf("%w: decode %s: %v", ErrOptimizationFailed, format, err)
	}

	bounds := src.Bounds()
	scale := scaleFactor(bounds.Dx(), bounds.Dy(), o.maxWidth, o.maxHeight)
	dst := src
	if scale < 1 {
		w := max(1, int(float64(bounds.Dx())*scale))
		h := max(1, int(float64(bounds.Dy())*scale))
		scaled := image.NewRGBA(image.Rect(0, 0, w, h))
		xdraw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), src, bounds, xdraw.Over, nil)
		dst = scaled
	}

	mime := "image/jpeg"
	var buf bytes.Buffer
	if format == "png" && hasAlpha(src) {
		mime = "image/png"
		err = png.Encode(&buf, dst)
	} else {
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: o.quality})
	}
	if err != nil {
		return OptimizedImage{}, fmt.Errorf("%w: encode: %v", ErrOptimizationFailed, err)
	}

	out := buf.Bytes()
	o.logger.Debug("image optimized",
		slog.Int("in_bytes", len(raw)),
		slog.Int("out_bytes", len(out)),
		slog.String("mime", mime),
	)
	return OptimizedImage{
		Payload: out,
		DataURL: EncodeDataURL(mime, out),
		Mime:    mime,
		Width:   dst.Bounds().Dx(),
		Height:  dst.Bounds().Dy(),
	}, nil
}

// scaleFactor returns min(maxW/w, maxH/h, 1).
func scaleFactor(w, h, maxW, maxH int) float64 {
	if w <= 0 || h <= 0 {
		return 1
	}
	scale := 1.0
	if ratio := float64(maxW) / float64(w); ratio < scale {
		scale = ratio
	}
	if ratio := float64(maxH) / float64(h); ratio < scale {
		scale = ratio
	}
	return scale
}

// hasAlpha samples the image for any non-opaque pixel. Sampling keeps this
// cheap on large sources; a missed translucent pixel only costs format
// choice, not correctness.
func hasAlpha(img image.Image) bool {
	bounds := img.Bounds()
	stepX := max(1, bounds.Dx()/64)
	stepY := max(1, bounds.Dy()/64)
	for y := bounds.Min.Y; y < bounds.Max.Y; y += stepY {
		for x := bounds.Min.X; x < bounds.Max.X; x += stepX {
			if _, _, _, a := img.At(x, y).RGBA(); a < 0xffff {
				return true
			}
		}
	}
	return false
}
