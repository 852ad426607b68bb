package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/AnyUserName/bulkimg/internal/catalog"
	"github.com/AnyUserName/bulkimg/internal/transcoder"
)

var testCatalog = []catalog.Entry{
	{ID: "b1", DisplayName: "Alpha Residence"},
	{ID: "b2", DisplayName: "Bravo Court"},
	{ID: "b3", DisplayName: "Charlie Plaza"},
	{ID: "b4", DisplayName: "Delta Gardens"},
	{ID: "b5", DisplayName: "Echo Heights"},
}

var fileNames = []string{
	"alpha-residence.jpg",
	"bravo_court.jpg",
	"charlie plaza.jpg",
	"IMG_delta-gardens.jpg",
	"echo-heights-final.jpg",
}

func rawJPEGs(names ...string) []RawFile {
	files := make([]RawFile, len(names))
	for i, n := range names {
		files[i] = RawFile{Name: n, MIMEType: "image/jpeg", Data: []byte(n)}
	}
	return files
}

// instantTranscode returns the input bytes as the encoded asset.
func instantTranscode(name string, data []byte, _ transcoder.Options, progress transcoder.ProgressFunc) (*transcoder.Asset, error) {
	if progress != nil {
		progress(transcoder.Progress{Stage: transcoder.StageComplete, Percent: 100})
	}
	return &transcoder.Asset{Data: data, FileName: name, MIMEType: "image/jpeg"}, nil
}

type fakeGateway struct {
	mu    sync.Mutex
	fail  map[string]bool
	calls []string
}

func (g *fakeGateway) Upload(_ context.Context, entryID string, _ []byte) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, entryID)
	if g.fail[entryID] {
		return "", fmt.Errorf("gateway rejected %s", entryID)
	}
	return "https://cdn.test/small/" + entryID + ".jpg", nil
}

func byName(items []Item) map[string]Item {
	out := make(map[string]Item, len(items))
	for _, it := range items {
		out[it.FileName] = it
	}
	return out
}

func TestIngestMatchesAndValidates(t *testing.T) {
	s := NewSession(Options{Catalog: testCatalog, TranscodeFunc: instantTranscode})
	defer s.Close()

	files := append(rawJPEGs(fileNames...),
		RawFile{Name: "notes.txt", MIMEType: "text/plain; charset=utf-8", Data: []byte("hi")},
		RawFile{Name: "scan.heic", Data: []byte{0}},
		RawFile{Name: "zzqx.png", Data: []byte{1}},
		RawFile{Name: "blob", MIMEType: "image/png", Data: []byte{2}},
	)
	items, rejected := s.Ingest(files)

	if len(rejected) != 2 {
		t.Fatalf("rejected = %v, want 2", rejected)
	}
	for _, err := range rejected {
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("rejection %v is not a ValidationError", err)
		}
	}
	if len(items) != 7 {
		t.Fatalf("accepted %d items, want 7", len(items))
	}

	got := byName(items)
	for i, n := range fileNames {
		it := got[n]
		if it.Stage != StagePending {
			t.Errorf("%s stage = %s", n, it.Stage)
		}
		if it.Match == nil || it.Match.ID != testCatalog[i].ID {
			t.Errorf("%s matched %+v, want %s", n, it.Match, testCatalog[i].ID)
		}
	}
	if it := got["zzqx.png"]; it.Mapped() || it.Candidate != "zzqx" {
		t.Errorf("zzqx.png = %+v, want unmapped with candidate zzqx", it)
	}

	ids := make(map[string]bool)
	for _, it := range items {
		if it.ID == "" || ids[it.ID] {
			t.Errorf("item id %q empty or duplicate", it.ID)
		}
		ids[it.ID] = true
	}

	more, _ := s.Ingest(rawJPEGs("bravo-court-2.jpg"))
	if len(more) != 1 {
		t.Fatalf("second ingest accepted %d", len(more))
	}
	if all := s.Items(); len(all) != 8 || all[7].ID != more[0].ID {
		t.Errorf("items did not accumulate in order: %d items", len(all))
	}
}

func TestTranscodeRunsInNonOverlappingChunks(t *testing.T) {
	started := make(chan string)
	release := make(chan struct{})
	var active, peak atomic.Int32

	gated := func(name string, data []byte, _ transcoder.Options, _ transcoder.ProgressFunc) (*transcoder.Asset, error) {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		started <- name
		<-release
		active.Add(-1)
		return &transcoder.Asset{Data: data, FileName: name}, nil
	}

	s := NewSession(Options{Catalog: testCatalog, TranscodeFunc: gated, Concurrency: 3})
	defer s.Close()

	names := make([]string, 7)
	for i := range names {
		names[i] = fmt.Sprintf("photo-%d.jpg", i)
	}
	s.Ingest(rawJPEGs(names...))

	type outcome struct {
		res PhaseResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := s.TranscodeAll()
		done <- outcome{res, err}
	}()

	for chunk, size := range []int{3, 3, 1} {
		for i := 0; i < size; i++ {
			select {
			case <-started:
			case <-time.After(5 * time.Second):
				t.Fatalf("chunk %d: only %d of %d started", chunk, i, size)
			}
		}
		select {
		case name := <-started:
			t.Fatalf("chunk %d: %s started before the chunk settled", chunk, name)
		case <-time.After(50 * time.Millisecond):
		}
		for i := 0; i < size; i++ {
			release <- struct{}{}
		}
	}

	out := <-done
	if out.err != nil {
		t.Fatalf("TranscodeAll: %v", out.err)
	}
	if out.res.Chunks != 3 || out.res.Succeeded != 7 || out.res.Failed != 0 {
		t.Errorf("result = %+v", out.res)
	}
	if p := peak.Load(); p > 3 {
		t.Errorf("peak concurrency = %d", p)
	}
	if sum := s.Summarize(); sum.Pending != 0 || sum.Ready+sum.Unmapped != 7 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestTranscodeIsolatesFailures(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 40, 20))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	img.Set(0, 0, color.Black)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}

	s := NewSession(Options{Catalog: testCatalog})
	defer s.Close()
	s.Ingest([]RawFile{
		{Name: "alpha-residence.png", MIMEType: "image/png", Data: buf.Bytes()},
		{Name: "bravo-court.png", MIMEType: "image/png", Data: []byte("not an image")},
		{Name: "charlie-plaza.png", MIMEType: "image/png", Data: buf.Bytes()},
	})

	res, err := s.TranscodeAll()
	if err != nil {
		t.Fatalf("TranscodeAll: %v", err)
	}
	if res.Succeeded != 2 || res.Failed != 1 || len(res.Errors) != 1 {
		t.Fatalf("result = %+v", res)
	}
	var de *transcoder.DecodeError
	if !errors.As(res.Errors[0], &de) {
		t.Errorf("error %v is not a DecodeError", res.Errors[0])
	}

	got := byName(s.Items())
	if it := got["bravo-court.png"]; it.Stage != StageError || it.Err == "" {
		t.Errorf("broken file = %+v", it)
	}
	for _, n := range []string{"alpha-residence.png", "charlie-plaza.png"} {
		it := got[n]
		if it.Stage != StageProcessed || it.Asset == nil {
			t.Fatalf("%s = %+v", n, it)
		}
		if it.Asset.FileName != n[:len(n)-4]+".jpg" || it.Asset.MIMEType != "image/jpeg" {
			t.Errorf("%s asset = %s %s", n, it.Asset.FileName, it.Asset.MIMEType)
		}
		if !it.Asset.Stats.WasConverted || it.Asset.Stats.ProcessedWidth != 40 {
			t.Errorf("%s stats = %+v", n, it.Asset.Stats)
		}
	}

	_ = s.do(func(st *state) {
		for _, it := range st.items {
			if it.data != nil {
				t.Errorf("%s still holds its source bytes", it.FileName)
			}
		}
	})

	again, err := s.TranscodeAll()
	if err != nil || again.Attempted != 0 {
		t.Errorf("second pass = %+v, %v; want nothing attempted", again, err)
	}
}

func TestUploadFailuresStayOnTheirItems(t *testing.T) {
	gw := &fakeGateway{fail: map[string]bool{"b2": true, "b4": true}}
	s := NewSession(Options{Catalog: testCatalog, Gateway: gw, TranscodeFunc: instantTranscode})
	defer s.Close()

	s.Ingest(append(rawJPEGs(fileNames...), RawFile{Name: "zzqx.jpg", MIMEType: "image/jpeg", Data: []byte{1}}))
	if _, err := s.TranscodeAll(); err != nil {
		t.Fatal(err)
	}

	res, err := s.UploadReady(context.Background())
	if err != nil {
		t.Fatalf("UploadReady: %v", err)
	}
	if res.Attempted != 5 || res.Succeeded != 3 || res.Failed != 2 {
		t.Errorf("result = %+v", res)
	}
	for _, err := range res.Errors {
		var ue *UploadError
		if !errors.As(err, &ue) || !gw.fail[ue.EntryID] {
			t.Errorf("unexpected upload error %v", err)
		}
	}

	got := byName(s.Items())
	for i, n := range fileNames {
		it := got[n]
		id := testCatalog[i].ID
		if gw.fail[id] {
			if it.Stage != StageError || it.AssetURL != "" {
				t.Errorf("%s = %s %q, want error", n, it.Stage, it.AssetURL)
			}
			if want := "gateway rejected " + id; it.Err != want {
				t.Errorf("%s error = %q, want %q", n, it.Err, want)
			}
			continue
		}
		want := "https://cdn.test/small/" + id + ".jpg"
		if it.Stage != StageUploaded || it.AssetURL != want {
			t.Errorf("%s = %s %q, want uploaded to %s", n, it.Stage, it.AssetURL, want)
		}
		if !it.Match.HasExistingAsset || it.Match.AssetURL != want {
			t.Errorf("%s match not updated: %+v", n, it.Match)
		}
	}
	if it := got["zzqx.jpg"]; it.Stage != StageProcessed {
		t.Errorf("unmapped item stage = %s, want processed", it.Stage)
	}

	sum := s.Summarize()
	want := Summary{Total: 6, Unmapped: 1, Uploaded: 3, Error: 2}
	if sum != want {
		t.Errorf("summary = %+v, want %+v", sum, want)
	}
}

type blockingGateway struct {
	called  chan string
	release chan struct{}
}

func (g *blockingGateway) Upload(_ context.Context, entryID string, _ []byte) (string, error) {
	g.called <- entryID
	<-g.release
	return "https://cdn.test/" + entryID, nil
}

func TestStateRulesDuringUpload(t *testing.T) {
	gw := &blockingGateway{called: make(chan string), release: make(chan struct{})}
	s := NewSession(Options{Catalog: testCatalog, Gateway: gw, TranscodeFunc: instantTranscode})
	defer s.Close()

	items, _ := s.Ingest(rawJPEGs("alpha-residence.jpg"))
	id := items[0].ID
	if _, err := s.TranscodeAll(); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := s.UploadReady(context.Background())
		done <- err
	}()
	<-gw.called

	if it, _ := s.Item(id); it.Stage != StageUploading {
		t.Fatalf("stage = %s, want uploading", it.Stage)
	}
	if err := s.Remove(id); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Remove while uploading = %v", err)
	}
	if err := s.Reassign(id, &testCatalog[1]); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Reassign while uploading = %v", err)
	}
	if _, err := s.TranscodeAll(); !errors.Is(err, ErrBusy) {
		t.Errorf("TranscodeAll during upload = %v", err)
	}

	close(gw.release)
	if err := <-done; err != nil {
		t.Fatalf("UploadReady: %v", err)
	}

	if err := s.Reassign(id, nil); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Reassign after upload = %v", err)
	}
	if err := s.Remove(id); err != nil {
		t.Errorf("Remove after upload = %v", err)
	}
	if len(s.Items()) != 0 {
		t.Error("item not removed")
	}
	if err := s.Remove(id); !errors.Is(err, ErrUnknownItem) {
		t.Errorf("second Remove = %v", err)
	}
}

func TestUploadWaitsForWholeBatch(t *testing.T) {
	gw := &fakeGateway{}
	s := NewSession(Options{Catalog: testCatalog, Gateway: gw, TranscodeFunc: instantTranscode})
	defer s.Close()

	s.Ingest(rawJPEGs("alpha-residence.jpg"))
	if _, err := s.TranscodeAll(); err != nil {
		t.Fatal(err)
	}
	s.Ingest(rawJPEGs("bravo_court.jpg"))

	res, err := s.UploadReady(context.Background())
	if !errors.Is(err, ErrNotTranscoded) {
		t.Fatalf("UploadReady with a pending item = %v, want ErrNotTranscoded", err)
	}
	if res.Attempted != 0 || len(gw.calls) != 0 {
		t.Errorf("uploads ran: result %+v, calls %v", res, gw.calls)
	}
	if sum := s.Summarize(); sum.Ready != 1 || sum.Pending != 1 || sum.Uploaded != 0 {
		t.Errorf("summary = %+v", sum)
	}

	// The refusal must not leave the session busy.
	if _, err := s.TranscodeAll(); err != nil {
		t.Fatalf("TranscodeAll after refused upload: %v", err)
	}
	res, err = s.UploadReady(context.Background())
	if err != nil {
		t.Fatalf("UploadReady: %v", err)
	}
	if res.Succeeded != 2 {
		t.Errorf("result = %+v, want 2 uploaded", res)
	}
}

func TestReassign(t *testing.T) {
	gw := &fakeGateway{}
	s := NewSession(Options{Catalog: testCatalog, Gateway: gw, TranscodeFunc: instantTranscode})
	defer s.Close()

	items, _ := s.Ingest(rawJPEGs("zzqx.jpg", "alpha-residence.jpg"))
	unmapped, mapped := items[0].ID, items[1].ID

	if err := s.Reassign(unmapped, &testCatalog[2]); err != nil {
		t.Fatal(err)
	}
	if err := s.Reassign(mapped, nil); err != nil {
		t.Fatal(err)
	}
	if err := s.Reassign("nope", nil); !errors.Is(err, ErrUnknownItem) {
		t.Errorf("unknown id = %v", err)
	}

	it, _ := s.Item(unmapped)
	if it.Match == nil || it.Match.ID != "b3" || it.Score != 1 {
		t.Errorf("reassigned item = %+v", it)
	}
	it, _ = s.Item(mapped)
	if it.Mapped() || it.Score != 0 {
		t.Errorf("cleared item = %+v", it)
	}

	if _, err := s.TranscodeAll(); err != nil {
		t.Fatal(err)
	}
	if _, err := s.UploadReady(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(gw.calls) != 1 || gw.calls[0] != "b3" {
		t.Errorf("gateway calls = %v, want [b3]", gw.calls)
	}
}

func TestSubscribeReceivesEvents(t *testing.T) {
	s := NewSession(Options{Catalog: testCatalog, TranscodeFunc: instantTranscode})
	defer s.Close()

	events, cancel := s.Subscribe()
	items, _ := s.Ingest(rawJPEGs("alpha-residence.jpg"))
	if _, err := s.TranscodeAll(); err != nil {
		t.Fatal(err)
	}
	if err := s.Remove(items[0].ID); err != nil {
		t.Fatal(err)
	}
	cancel()

	var stages []Stage
	var removed bool
	for ev := range events {
		stages = append(stages, ev.Stage)
		removed = removed || ev.Removed
	}
	if len(stages) < 3 || stages[0] != StagePending || !removed {
		t.Errorf("events = %v removed=%v", stages, removed)
	}
}

func TestClosedSession(t *testing.T) {
	s := NewSession(Options{Catalog: testCatalog, Gateway: &fakeGateway{}})
	s.Close()
	s.Close()

	if _, err := s.TranscodeAll(); !errors.Is(err, ErrClosed) {
		t.Errorf("TranscodeAll = %v", err)
	}
	if _, err := s.UploadReady(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("UploadReady = %v", err)
	}
	items, errs := s.Ingest(rawJPEGs("a.jpg"))
	if items != nil || len(errs) != 1 || !errors.Is(errs[0], ErrClosed) {
		t.Errorf("Ingest = %v, %v", items, errs)
	}
	if s.Items() != nil {
		t.Error("Items returned data after close")
	}
}

func TestUploadWithoutGateway(t *testing.T) {
	s := NewSession(Options{})
	defer s.Close()
	if _, err := s.UploadReady(context.Background()); !errors.Is(err, ErrNoGateway) {
		t.Errorf("err = %v", err)
	}
}

func TestSummarize(t *testing.T) {
	e := &catalog.Entry{ID: "x"}
	items := []Item{
		{Stage: StagePending},
		{Stage: StageProcessing},
		{Stage: StageProcessed, Match: e, Score: 0.9},
		{Stage: StageProcessed},
		{Stage: StageUploading, Match: e, Score: 1},
		{Stage: StageUploaded, Match: e, Score: 1},
		{Stage: StageError},
		{Stage: StageError},
	}
	want := Summary{Total: 8, Pending: 1, Processing: 1, Ready: 1, Unmapped: 1, Uploading: 1, Uploaded: 1, Error: 2}
	if got := Summarize(items); got != want {
		t.Errorf("Summarize = %+v, want %+v", got, want)
	}
}

func TestScanDir(t *testing.T) {
	dir := t.TempDir()
	write := func(rel string, data []byte) {
		t.Helper()
		p := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, data, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatal(err)
	}
	write("alpha-residence.png", buf.Bytes())
	write("sub/bravo-court.dat", buf.Bytes())
	write("readme.txt", []byte("hello"))
	write(".hidden.png", buf.Bytes())
	write(".cache/charlie.png", buf.Bytes())

	files, err := ScanDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	got := make(map[string]RawFile)
	for _, f := range files {
		got[f.Path] = f
	}
	if len(got) != 3 {
		t.Fatalf("scanned %v", got)
	}
	if f := got["sub/bravo-court.dat"]; f.Name != "bravo-court.dat" || f.MIMEType != "image/png" {
		t.Errorf("nested file = %+v", f)
	}
	if !Accepted(got["sub/bravo-court.dat"].Name, got["sub/bravo-court.dat"].MIMEType) {
		t.Error("sniffed png not accepted")
	}
	if Accepted(got["readme.txt"].Name, got["readme.txt"].MIMEType) {
		t.Error("text file accepted")
	}
}
