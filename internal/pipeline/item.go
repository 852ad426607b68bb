package pipeline

import (
	"github.com/AnyUserName/bulkimg/internal/catalog"
	"github.com/AnyUserName/bulkimg/internal/transcoder"
)

// Stage is the position of an item in its lifecycle. Stages only move
// forward:
//
//	pending -> processing -> processed | error
//	processed -> uploading -> uploaded | error
type Stage string

const (
	StagePending    Stage = "pending"
	StageProcessing Stage = "processing"
	StageProcessed  Stage = "processed"
	StageUploading  Stage = "uploading"
	StageUploaded   Stage = "uploaded"
	StageError      Stage = "error"
)

// RawFile is one file handed to Ingest.
type RawFile struct {
	// Name is the file name used for matching (no directories).
	Name string
	// Path is where the file came from, for reporting only.
	Path string
	// MIMEType is the declared or sniffed content type; may be empty.
	MIMEType string
	Data     []byte
}

// Item is one file tracked by a Session. Values returned by Session methods
// are snapshots; mutating them has no effect on the session.
type Item struct {
	ID        string              `json:"id"`
	FileName  string              `json:"file_name"`
	Path      string              `json:"path,omitempty"`
	Size      int64               `json:"size"`
	Ext       string              `json:"ext"`
	MIMEType  string              `json:"mime_type,omitempty"`
	Candidate string              `json:"candidate"`
	Match     *catalog.Entry      `json:"match,omitempty"`
	Score     float64             `json:"score"`
	Stage     Stage               `json:"stage"`
	Progress  transcoder.Progress `json:"progress"`
	Asset     *transcoder.Asset   `json:"asset,omitempty"`
	AssetURL  string              `json:"asset_url,omitempty"`
	Err       string              `json:"error,omitempty"`

	data []byte
}

// Mapped reports whether the item carries a catalog match.
func (it Item) Mapped() bool { return it.Match != nil && it.Score > 0 }

// Ready reports whether the item can be uploaded.
func (it Item) Ready() bool { return it.Stage == StageProcessed && it.Mapped() }

// locked reports whether the match may no longer change.
func (it Item) locked() bool { return it.Stage == StageUploading || it.Stage == StageUploaded }

func (it *Item) snapshot() Item {
	cp := *it
	cp.data = nil
	return cp
}

// Event is emitted to subscribers whenever an item changes.
type Event struct {
	ItemID   string
	FileName string
	Stage    Stage
	Progress transcoder.Progress
	Err      string
	Removed  bool
}

// Summary counts items per reporting bucket.
type Summary struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Ready      int `json:"ready"`
	Unmapped   int `json:"unmapped"`
	Uploading  int `json:"uploading"`
	Uploaded   int `json:"uploaded"`
	Error      int `json:"error"`
}

// Summarize counts items by stage. Processed items split into ready and
// unmapped depending on whether they carry a match.
func Summarize(items []Item) Summary {
	s := Summary{Total: len(items)}
	for _, it := range items {
		switch it.Stage {
		case StagePending:
			s.Pending++
		case StageProcessing:
			s.Processing++
		case StageProcessed:
			if it.Mapped() {
				s.Ready++
			} else {
				s.Unmapped++
			}
		case StageUploading:
			s.Uploading++
		case StageUploaded:
			s.Uploaded++
		case StageError:
			s.Error++
		}
	}
	return s
}
