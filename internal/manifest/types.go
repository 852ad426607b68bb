// Package manifest records the outcome of one upload session as a JSON
// report: every file, what it matched, what happened to it, and totals.
package manifest

import "github.com/AnyUserName/bulkimg/internal/transcoder"

// SupportedReportVersion is the current schema version.
const SupportedReportVersion = 1

// Report is the top-level output of a bulkimg run.
type Report struct {
	Version     int        `json:"version"`
	GeneratedAt string     `json:"generated_at"`
	SessionID   string     `json:"session_id"`
	Source      string     `json:"source"` // scanned directory
	BuildInfo   *BuildInfo `json:"build_info,omitempty"`
	Items       []Item     `json:"items"`
	Summary     Summary    `json:"summary"`
	Stats       Stats      `json:"stats"`
}

// BuildInfo captures run parameters for diagnostics.
type BuildInfo struct {
	MaxDimension        int     `json:"max_dimension"`
	Quality             int     `json:"quality"`
	Concurrency         int     `json:"concurrency"`
	UploadConcurrency   int     `json:"upload_concurrency"`
	MinScore            float64 `json:"min_score"`
	TranscodeDurationMS int64   `json:"transcode_duration_ms"`
	UploadDurationMS    int64   `json:"upload_duration_ms"`
	DryRun              bool    `json:"dry_run,omitempty"`
}

// Item is one file of the session.
type Item struct {
	File      string            `json:"file"`
	Path      string            `json:"path,omitempty"`
	Candidate string            `json:"candidate"`
	EntryID   string            `json:"entry_id,omitempty"`
	EntryName string            `json:"entry_name,omitempty"`
	Score     float64           `json:"score"`
	Stage     string            `json:"stage"`
	Output    string            `json:"output,omitempty"` // processed file name
	Hash      string            `json:"hash,omitempty"`   // xxhash64 of the processed bytes
	AssetURL  string            `json:"asset_url,omitempty"`
	Error     string            `json:"error,omitempty"`
	Stats     *transcoder.Stats `json:"stats,omitempty"`
}

// Summary counts items per reporting bucket.
type Summary struct {
	Total      int `json:"total"`
	Rejected   int `json:"rejected"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Ready      int `json:"ready"`
	Unmapped   int `json:"unmapped"`
	Uploading  int `json:"uploading"`
	Uploaded   int `json:"uploaded"`
	Error      int `json:"error"`
}

// Stats aggregates byte totals over processed items.
type Stats struct {
	TotalInputBytes  int64 `json:"total_input_bytes"`
	TotalOutputBytes int64 `json:"total_output_bytes"`
	Processed        int   `json:"processed"`
	Resized          int   `json:"resized"`
	Converted        int   `json:"converted"`
	// SavedPercent is the overall compression ratio over processed items.
	SavedPercent int `json:"saved_percent"`
}
