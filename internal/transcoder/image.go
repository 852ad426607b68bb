package transcoder

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"

	"github.com/disintegration/imaging"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DefaultMaxDimension is the longest edge a processed image may have.
const DefaultMaxDimension = 1000

// DefaultMaxPixels bounds the decoded raster size (100 megapixels).
const DefaultMaxPixels = 100_000_000

// Dimensions is the outcome of the sizing step.
type Dimensions struct {
	Width   int
	Height  int
	Resized bool
}

// Load decodes data into a raster, applying any EXIF orientation the way a
// browser would when displaying the file. Images whose header declares more
// than maxPixels pixels are refused before the full decode.
func Load(data []byte, maxPixels int) (image.Image, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, &DecodeError{Err: fmt.Errorf("invalid dimensions %dx%d", cfg.Width, cfg.Height)}
	}
	if maxPixels > 0 && cfg.Width*cfg.Height > maxPixels {
		return nil, &DecodeError{Err: fmt.Errorf("image is %dx%d, over the %d pixel limit",
			cfg.Width, cfg.Height, maxPixels)}
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	return img, nil
}

// TargetDimensions fits w×h inside a maxDim square. Images already inside it
// are left alone; otherwise the longer edge becomes maxDim and the other edge
// keeps the aspect ratio.
func TargetDimensions(w, h, maxDim int) Dimensions {
	if maxDim <= 0 {
		maxDim = DefaultMaxDimension
	}
	if w <= maxDim && h <= maxDim {
		return Dimensions{Width: w, Height: h}
	}

	aspect := float64(w) / float64(h)
	d := Dimensions{Resized: true}
	if w > h {
		d.Width = maxDim
		d.Height = roundHalfUp(float64(maxDim) / aspect)
	} else {
		d.Height = maxDim
		d.Width = roundHalfUp(float64(maxDim) * aspect)
	}
	d.Width = max(d.Width, 1)
	d.Height = max(d.Height, 1)
	return d
}

// RenderAndEncode resamples img to w×h with a Lanczos filter and encodes the
// result with the configured encoder.
func RenderAndEncode(img image.Image, w, h int, opts Options) ([]byte, error) {
	if w <= 0 || h <= 0 {
		return nil, &EncodeError{Err: fmt.Errorf("invalid target size %dx%d", w, h)}
	}

	canvas := img
	b := img.Bounds()
	if b.Dx() != w || b.Dy() != h {
		canvas = imaging.Resize(img, w, h, imaging.Lanczos)
	}

	data, err := opts.encoder().Encode(canvas, opts.quality())
	if err != nil {
		return nil, &EncodeError{Err: err}
	}
	if len(data) == 0 {
		return nil, &EncodeError{Err: errors.New("encoder produced no data")}
	}
	return data, nil
}

// roundHalfUp rounds .5 towards positive infinity.
func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}
