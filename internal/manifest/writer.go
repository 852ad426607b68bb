package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/AnyUserName/bulkimg/internal/pipeline"
	"github.com/AnyUserName/bulkimg/internal/transcoder"
)

// New creates an empty report with defaults.
func New(sessionID, source string) *Report {
	return &Report{
		Version:     SupportedReportVersion,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		SessionID:   sessionID,
		Source:      source,
		Items:       []Item{},
	}
}

// FromItems fills the report from session item snapshots. rejected is the
// number of files refused at ingest.
func (r *Report) FromItems(items []pipeline.Item, rejected int) {
	r.Items = make([]Item, 0, len(items))
	for _, it := range items {
		out := Item{
			File:      it.FileName,
			Path:      it.Path,
			Candidate: it.Candidate,
			Score:     it.Score,
			Stage:     string(it.Stage),
			AssetURL:  it.AssetURL,
			Error:     it.Err,
		}
		if it.Match != nil {
			out.EntryID, out.EntryName = it.Match.ID, it.Match.DisplayName
		}
		if it.Asset != nil {
			st := it.Asset.Stats
			out.Stats = &st
			out.Output = it.Asset.FileName
			out.Hash = it.Asset.Hash
		}
		r.Items = append(r.Items, out)
	}

	s := pipeline.Summarize(items)
	r.Summary = Summary{
		Total:      s.Total,
		Rejected:   rejected,
		Pending:    s.Pending,
		Processing: s.Processing,
		Ready:      s.Ready,
		Unmapped:   s.Unmapped,
		Uploading:  s.Uploading,
		Uploaded:   s.Uploaded,
		Error:      s.Error,
	}
	r.ComputeStats()
}

// ComputeStats recalculates aggregate statistics from items.
func (r *Report) ComputeStats() {
	var s Stats
	for _, it := range r.Items {
		if it.Stats == nil {
			continue
		}
		s.Processed++
		s.TotalInputBytes += it.Stats.OriginalSize
		s.TotalOutputBytes += it.Stats.ProcessedSize
		if it.Stats.WasResized {
			s.Resized++
		}
		if it.Stats.WasConverted {
			s.Converted++
		}
	}
	s.SavedPercent = transcoder.CompressionRatio(s.TotalInputBytes, s.TotalOutputBytes)
	r.Stats = s
}

// WriteJSON serializes the report to a JSON file.
func WriteJSON(r *Report, path string) error {
	r.ComputeStats()

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

// ReadJSON loads a report written by WriteJSON.
func ReadJSON(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse report: %w", err)
	}
	if r.Version > SupportedReportVersion {
		return nil, fmt.Errorf("report version %d is newer than supported %d", r.Version, SupportedReportVersion)
	}
	return &r, nil
}
