package transcoder

// Original describes the source file before processing.
type Original struct {
	Size   int64
	Width  int
	Height int
	Ext    string
}

// Stats compares an image before and after processing.
type Stats struct {
	OriginalExt     string `json:"original_ext"`
	OriginalSize    int64  `json:"original_size"`
	ProcessedSize   int64  `json:"processed_size"`
	OriginalWidth   int    `json:"original_width"`
	OriginalHeight  int    `json:"original_height"`
	ProcessedWidth  int    `json:"processed_width"`
	ProcessedHeight int    `json:"processed_height"`
	WasResized      bool   `json:"was_resized"`
	WasConverted    bool   `json:"was_converted"`
	// CompressionRatioPercent is negative when the output grew.
	CompressionRatioPercent int `json:"compression_ratio_percent"`
}

// ComputeStats derives the before/after statistics. Only "jpg" counts as
// already being the output format, so ".jpeg" inputs report a conversion.
func ComputeStats(orig Original, dims Dimensions, processedSize int64) Stats {
	return Stats{
		OriginalExt:             orig.Ext,
		OriginalSize:            orig.Size,
		ProcessedSize:           processedSize,
		OriginalWidth:           orig.Width,
		OriginalHeight:          orig.Height,
		ProcessedWidth:          dims.Width,
		ProcessedHeight:         dims.Height,
		WasResized:              dims.Resized,
		WasConverted:            orig.Ext != "jpg",
		CompressionRatioPercent: CompressionRatio(orig.Size, processedSize),
	}
}

// CompressionRatio is round((1 - processed/original) * 100). It is not
// clamped. A zero original size yields 0.
func CompressionRatio(originalSize, processedSize int64) int {
	if originalSize <= 0 {
		return 0
	}
	return roundHalfUp((1 - float64(processedSize)/float64(originalSize)) * 100)
}
