package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/AnyUserName/bulkimg/internal/catalog"
	"github.com/AnyUserName/bulkimg/internal/pipeline"
	"github.com/AnyUserName/bulkimg/internal/transcoder"
)

func sampleItems() []pipeline.Item {
	tower := &catalog.Entry{ID: "b1", DisplayName: "Marina Tower"}
	return []pipeline.Item{
		{
			FileName: "marina-tower.png", Candidate: "marina-tower", Match: tower, Score: 1,
			Stage: pipeline.StageUploaded, AssetURL: "https://cdn.test/small/b1.jpg",
			Asset: &transcoder.Asset{FileName: "marina-tower.jpg", Hash: "0123456789abcdef", Stats: transcoder.Stats{
				OriginalExt: "png", OriginalSize: 100000, ProcessedSize: 40000,
				WasResized: true, WasConverted: true,
			}},
		},
		{FileName: "zzqx.jpg", Candidate: "zzqx", Stage: pipeline.StageProcessed,
			Asset: &transcoder.Asset{FileName: "zzqx.jpg", Stats: transcoder.Stats{
				OriginalExt: "jpg", OriginalSize: 100000, ProcessedSize: 60000,
			}}},
		{FileName: "broken.png", Candidate: "broken", Stage: pipeline.StageError, Err: "decode broken.png: unknown format"},
	}
}

func TestReportRoundtrip(t *testing.T) {
	r := New("sess-1", "./photos")
	r.BuildInfo = &BuildInfo{MaxDimension: 1000, Quality: 85, Concurrency: 3, UploadConcurrency: 3, MinScore: 0.3}
	r.FromItems(sampleItems(), 2)

	path := filepath.Join(t.TempDir(), "report.json")
	if err := WriteJSON(r, path); err != nil {
		t.Fatalf("write: %v", err)
	}

	r2, err := ReadJSON(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if r2.Version != SupportedReportVersion || r2.SessionID != "sess-1" || r2.Source != "./photos" {
		t.Errorf("header = %+v", r2)
	}
	if r2.BuildInfo == nil || r2.BuildInfo.Concurrency != 3 {
		t.Fatal("build_info missing")
	}
	if len(r2.Items) != 3 {
		t.Fatalf("items = %d", len(r2.Items))
	}

	first := r2.Items[0]
	if first.EntryID != "b1" || first.EntryName != "Marina Tower" || first.Output != "marina-tower.jpg" || first.Hash == "" {
		t.Errorf("first item = %+v", first)
	}
	if r2.Items[2].Stats != nil || r2.Items[2].Error == "" {
		t.Errorf("error item = %+v", r2.Items[2])
	}

	want := Summary{Total: 3, Rejected: 2, Unmapped: 1, Uploaded: 1, Error: 1}
	if r2.Summary != want {
		t.Errorf("summary = %+v, want %+v", r2.Summary, want)
	}
	if s := r2.Stats; s.Processed != 2 || s.TotalInputBytes != 200000 || s.TotalOutputBytes != 100000 ||
		s.Resized != 1 || s.Converted != 1 || s.SavedPercent != 50 {
		t.Errorf("stats = %+v", s)
	}
}

func TestReportIgnoresUnknownFields(t *testing.T) {
	raw := `{
		"version": 1,
		"generated_at": "2025-01-01T00:00:00Z",
		"session_id": "x",
		"future_field": "should be ignored",
		"build_info": { "concurrency": 3, "new_flag": true },
		"items": [],
		"summary": { "total": 0, "new_bucket": 4 },
		"stats": { "processed": 0, "new_stat": 42 }
	}`
	var r Report
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		t.Fatalf("unmarshal with unknown fields: %v", err)
	}
	if r.BuildInfo == nil || r.BuildInfo.Concurrency != 3 {
		t.Error("build_info not parsed correctly")
	}
}

func TestReadJSONRejectsNewerVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	if err := os.WriteFile(path, []byte(`{"version": 99}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadJSON(path); err == nil {
		t.Error("newer version accepted")
	}
}
