package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/AnyUserName/bulkimg/internal/catalog"
	"github.com/AnyUserName/bulkimg/internal/matcher"
	"github.com/AnyUserName/bulkimg/internal/transcoder"
)

// DefaultConcurrency is the transcode chunk size.
const DefaultConcurrency = 3

// DefaultUploadConcurrency bounds simultaneous gateway calls.
const DefaultUploadConcurrency = 3

// eventBuffer is the per-subscriber channel capacity.
const eventBuffer = 256

// Gateway stores one encoded asset for a catalog entry and returns its
// public URL. Each call is independent; a failure affects only that call.
type Gateway interface {
	Upload(ctx context.Context, entryID string, data []byte) (string, error)
}

// TranscodeFunc processes one file. transcoder.Process is the default.
type TranscodeFunc func(name string, data []byte, opts transcoder.Options, progress transcoder.ProgressFunc) (*transcoder.Asset, error)

// Options configures a Session.
type Options struct {
	Catalog           []catalog.Entry
	Gateway           Gateway
	Transcode         transcoder.Options
	TranscodeFunc     TranscodeFunc
	Concurrency       int
	UploadConcurrency int
	MinScore          float64
	Logger            *slog.Logger
}

// Session owns every item of one upload batch. A single goroutine holds the
// item map; all commands, and all results coming back from workers, are
// applied by that goroutine in the order they arrive. Workers never touch
// the map themselves.
type Session struct {
	opts Options
	log  *slog.Logger

	cmds      chan func(*state)
	done      chan struct{}
	closeOnce sync.Once
}

type state struct {
	order []string
	items map[string]*Item
	subs  map[int]chan Event
	subID int
	busy  string // running phase, "" when idle
}

// NewSession starts a session actor. Call Close to stop it.
func NewSession(opts Options) *Session {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.UploadConcurrency <= 0 {
		opts.UploadConcurrency = DefaultUploadConcurrency
	}
	if opts.MinScore <= 0 {
		opts.MinScore = matcher.DefaultMinScore
	}
	if opts.TranscodeFunc == nil {
		opts.TranscodeFunc = transcoder.Process
	}
	if opts.Transcode.MaxDimension == 0 && opts.Transcode.Encoder == nil {
		opts.Transcode = transcoder.DefaultOptions()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	s := &Session{
		opts: opts,
		log:  opts.Logger,
		cmds: make(chan func(*state)),
		done: make(chan struct{}),
	}
	st := &state{
		items: make(map[string]*Item),
		subs:  make(map[int]chan Event),
	}
	go s.run(st)
	return s
}

func (s *Session) run(st *state) {
	for {
		select {
		case fn := <-s.cmds:
			fn(st)
		case <-s.done:
			for _, ch := range st.subs {
				close(ch)
			}
			return
		}
	}
}

// do runs fn on the actor goroutine and waits for it to finish.
func (s *Session) do(fn func(*state)) error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	finished := make(chan struct{})
	cmd := func(st *state) {
		defer close(finished)
		fn(st)
	}
	select {
	case s.cmds <- cmd:
	case <-s.done:
		return ErrClosed
	}
	<-finished
	return nil
}

// Close discards the session. In-flight transcodes and uploads are neither
// awaited nor aborted; their results are dropped when they arrive.
func (s *Session) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Catalog returns the entries this session matches against.
func (s *Session) Catalog() []catalog.Entry {
	out := make([]catalog.Entry, len(s.opts.Catalog))
	copy(out, s.opts.Catalog)
	return out
}

// Subscribe returns a channel of item events and a function that cancels the
// subscription. Delivery is best effort: when a subscriber falls more than
// its buffer behind, events are dropped for it. Items is authoritative.
func (s *Session) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, eventBuffer)
	var id int
	if err := s.do(func(st *state) {
		st.subID++
		id = st.subID
		st.subs[id] = ch
	}); err != nil {
		close(ch)
		return ch, func() {}
	}
	cancel := func() {
		_ = s.do(func(st *state) {
			if c, ok := st.subs[id]; ok {
				delete(st.subs, id)
				close(c)
			}
		})
	}
	return ch, cancel
}

func (st *state) emit(it *Item) {
	ev := Event{
		ItemID:   it.ID,
		FileName: it.FileName,
		Stage:    it.Stage,
		Progress: it.Progress,
		Err:      it.Err,
	}
	st.broadcast(ev)
}

func (st *state) broadcast(ev Event) {
	for _, ch := range st.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (st *state) snapshot() []Item {
	out := make([]Item, 0, len(st.order))
	for _, id := range st.order {
		out = append(out, st.items[id].snapshot())
	}
	return out
}

// Ingest validates and matches files and adds one pending item per accepted
// file. Rejected files come back as *ValidationError and never become items.
// Items from repeated calls accumulate in arrival order.
func (s *Session) Ingest(files []RawFile) ([]Item, []error) {
	var rejected []error
	var fresh []*Item

	for _, f := range files {
		if !Accepted(f.Name, f.MIMEType) {
			rejected = append(rejected, &ValidationError{Name: f.Name, MIMEType: f.MIMEType})
			s.log.Warn("file rejected", "file", f.Name, "mime", f.MIMEType)
			continue
		}

		m := matcher.FindBestMatch(f.Name, s.opts.Catalog, s.opts.MinScore)
		it := &Item{
			ID:        uuid.NewString(),
			FileName:  f.Name,
			Path:      f.Path,
			Size:      int64(len(f.Data)),
			Ext:       transcoder.FileExtension(f.Name),
			MIMEType:  f.MIMEType,
			Candidate: m.Candidate,
			Match:     m.Entry,
			Score:     m.Score,
			Stage:     StagePending,
			data:      f.Data,
		}
		if m.Matched() {
			s.log.Debug("file matched", "file", f.Name, "entry", m.Entry.ID, "score", m.Score)
		} else {
			s.log.Debug("file unmapped", "file", f.Name, "candidate", m.Candidate, "reason", ErrMatchNotFound)
		}
		fresh = append(fresh, it)
	}

	var accepted []Item
	err := s.do(func(st *state) {
		for _, it := range fresh {
			st.order = append(st.order, it.ID)
			st.items[it.ID] = it
			accepted = append(accepted, it.snapshot())
			st.emit(it)
		}
	})
	if err != nil {
		rejected = append(rejected, err)
		return nil, rejected
	}

	var matched int
	for _, it := range accepted {
		if it.Mapped() {
			matched++
		}
	}
	s.log.Info("matching complete",
		"accepted", len(accepted), "rejected", len(rejected),
		"matched", matched, "unmapped", len(accepted)-matched)
	return accepted, rejected
}

// Items returns a snapshot of every item in ingest order.
func (s *Session) Items() []Item {
	var out []Item
	_ = s.do(func(st *state) { out = st.snapshot() })
	return out
}

// Item returns a snapshot of one item.
func (s *Session) Item(id string) (Item, bool) {
	var (
		out Item
		ok  bool
	)
	_ = s.do(func(st *state) {
		if it, found := st.items[id]; found {
			out, ok = it.snapshot(), true
		}
	})
	return out, ok
}

// Summarize counts the session's items per reporting bucket.
func (s *Session) Summarize() Summary {
	return Summarize(s.Items())
}

// Reassign replaces an item's match. A nil entry clears it. The operator's
// choice is final, so the score becomes 1 (0 when cleared). Items that are
// uploading or uploaded keep their match.
func (s *Session) Reassign(id string, entry *catalog.Entry) error {
	var result error
	err := s.do(func(st *state) {
		it, ok := st.items[id]
		if !ok {
			result = fmt.Errorf("%w: %s", ErrUnknownItem, id)
			return
		}
		if it.locked() {
			result = stateError(it, "reassign")
			return
		}
		if entry == nil {
			it.Match, it.Score = nil, 0
		} else {
			e := *entry
			it.Match, it.Score = &e, 1
		}
		st.emit(it)
	})
	if err != nil {
		return err
	}
	return result
}

// Remove drops an item from the session. Items being uploaded cannot be
// removed.
func (s *Session) Remove(id string) error {
	var result error
	err := s.do(func(st *state) {
		it, ok := st.items[id]
		if !ok {
			result = fmt.Errorf("%w: %s", ErrUnknownItem, id)
			return
		}
		if it.Stage == StageUploading {
			result = stateError(it, "remove")
			return
		}
		delete(st.items, id)
		for i, oid := range st.order {
			if oid == id {
				st.order = append(st.order[:i], st.order[i+1:]...)
				break
			}
		}
		st.broadcast(Event{ItemID: id, FileName: it.FileName, Stage: it.Stage, Removed: true})
	})
	if err != nil {
		return err
	}
	return result
}

// begin runs fn and marks the session busy with phase, unless another phase
// runs or fn refuses to start.
func (s *Session) begin(phase string, fn func(*state) error) error {
	var result error
	err := s.do(func(st *state) {
		if st.busy != "" {
			result = fmt.Errorf("%w: %s in progress", ErrBusy, st.busy)
			return
		}
		if result = fn(st); result != nil {
			return
		}
		st.busy = phase
	})
	if err != nil {
		return err
	}
	return result
}

func (s *Session) end() {
	_ = s.do(func(st *state) { st.busy = "" })
}
