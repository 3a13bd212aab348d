package media

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"sync"
)

var (
	placeholderOnce sync.Once
	placeholder     []byte
)

// PlaceholderThumbnail returns the built-in stand-in image used when a video
// frame cannot be extracted. Encoded once on first use.
func PlaceholderThumbnail() []byte {
	placeholderOnce.Do(func() {
		img := image.NewRGBA(image.Rect(0, 0, 320, 240))
		draw.Draw(img, img.Bounds(), &image.Uniform{C: color.RGBA{R: 0x3a, G: 0x3f, B: 0x47, A: 0xff}}, image.Point{}, draw.Src)
		// Lighter center band so the tile reads as "video" rather than a
		// dead image in gallery views.
		band := image.Rect(0, 100, 320, 140)
		draw.Draw(img, band, &image.Uniform{C: color.RGBA{R: 0x5c, G: 0x63, B: 0x6e, A: 0xff}}, image.Point{}, draw.Src)

		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 70}); err != nil {
			// Encoding an in-memory RGBA cannot realistically fail; keep a
			// non-nil value so callers never see an empty thumbnail.
			placeholder = []byte{}
			return
		}
		placeholder = buf.Bytes()
	})
	return placeholder
}

// IsPlaceholder reports whether payload is the built-in stand-in.
func IsPlaceholder(payload []byte) bool {
	return bytes.Equal(payload, PlaceholderThumbnail())
}
