// Package transcoder decodes an uploaded image, shrinks it to fit the
// catalog's size limit and re-encodes it as JPEG.
//
// Each call is independent and keeps no state between calls, so callers may
// run as many in parallel as memory allows.
package transcoder

import (
	"encoding/base64"
	"path/filepath"
	"strings"

	"github.com/AnyUserName/bulkimg/internal/encoder"
	"github.com/AnyUserName/bulkimg/internal/hasher"
)

// Stage is the position of one image inside the transcode chain.
type Stage string

const (
	StageLoading     Stage = "loading"
	StageResizing    Stage = "resizing"
	StageCompressing Stage = "compressing"
	StageComplete    Stage = "complete"
	StageError       Stage = "error"
)

// Progress is reported to observers as an image moves through the chain.
// Percent is informational only.
type Progress struct {
	Stage   Stage  `json:"stage"`
	Percent int    `json:"percent"`
	Message string `json:"message"`
}

// ProgressFunc receives progress updates. It may be nil.
type ProgressFunc func(Progress)

// Options controls sizing and encoding.
type Options struct {
	MaxDimension int
	MaxPixels    int
	Quality      int
	Encoder      encoder.Encoder
}

// DefaultOptions returns the catalog defaults: 1000px longest edge, JPEG q85.
func DefaultOptions() Options {
	return Options{
		MaxDimension: DefaultMaxDimension,
		MaxPixels:    DefaultMaxPixels,
		Quality:      encoder.DefaultJPEGQuality,
		Encoder:      &encoder.JPEGEncoder{},
	}
}

func (o Options) encoder() encoder.Encoder {
	if o.Encoder == nil {
		return &encoder.JPEGEncoder{}
	}
	return o.Encoder
}

func (o Options) quality() int {
	if o.Quality <= 0 || o.Quality > 100 {
		return encoder.DefaultJPEGQuality
	}
	return o.Quality
}

// Asset is a processed, upload-ready image.
type Asset struct {
	Data           []byte `json:"-"`
	FileName       string `json:"file_name"`
	MIMEType       string `json:"mime_type"`
	Hash           string `json:"hash"` // xxhash64 of Data, hex
	PreviewDataURL string `json:"-"`
	Stats          Stats  `json:"stats"`
}

// Process runs the full chain for one file: load, size, resample, encode,
// and compute statistics. Failures come back as *DecodeError or *EncodeError.
func Process(name string, data []byte, opts Options, progress ProgressFunc) (*Asset, error) {
	report := func(stage Stage, pct int, msg string) {
		if progress != nil {
			progress(Progress{Stage: stage, Percent: pct, Message: msg})
		}
	}

	report(StageLoading, 10, "Loading image...")
	img, err := Load(data, opts.MaxPixels)
	if err != nil {
		report(StageError, 0, "Failed")
		if de, ok := err.(*DecodeError); ok {
			de.Name = name
		}
		return nil, err
	}
	b := img.Bounds()

	report(StageResizing, 30, "Calculating dimensions...")
	dims := TargetDimensions(b.Dx(), b.Dy(), opts.MaxDimension)

	if dims.Resized {
		report(StageCompressing, 50, "Resizing and compressing...")
	} else {
		report(StageCompressing, 50, "Compressing...")
	}
	enc := opts.encoder()
	report(StageCompressing, 70, "Converting to "+strings.ToUpper(enc.Format())+"...")
	out, err := RenderAndEncode(img, dims.Width, dims.Height, opts)
	if err != nil {
		report(StageError, 0, "Failed")
		if ee, ok := err.(*EncodeError); ok {
			ee.Name = name
		}
		return nil, err
	}

	report(StageCompressing, 90, "Finalizing...")
	asset := &Asset{
		Data:           out,
		FileName:       OutputFileName(name, enc.Extension()),
		MIMEType:       enc.MIMEType(),
		Hash:           hasher.ContentHash(out, 0),
		PreviewDataURL: DataURL(enc.MIMEType(), out),
		Stats: ComputeStats(
			Original{Size: int64(len(data)), Width: b.Dx(), Height: b.Dy(), Ext: FileExtension(name)},
			dims, int64(len(out)),
		),
	}

	report(StageComplete, 100, "Processing complete")
	return asset, nil
}

// OutputFileName swaps the extension of name for ext.
func OutputFileName(name, ext string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	return base + "." + ext
}

// FileExtension returns the lowercased extension of name without the dot,
// or "unknown" when there is none.
func FileExtension(name string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	if ext == "" {
		return "unknown"
	}
	return ext
}

// DataURL renders data as an RFC 2397 data URL for previews.
func DataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}
