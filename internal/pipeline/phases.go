package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/AnyUserName/bulkimg/internal/transcoder"
)

// PhaseResult reports the outcome of one transcode or upload phase.
type PhaseResult struct {
	Attempted int
	Succeeded int
	Failed    int
	// Chunks is the number of transcode chunks run; zero for uploads.
	Chunks int
	// Errors holds one error per failed item, in completion order.
	Errors   []error
	Duration time.Duration
}

type job struct {
	id   string
	name string
	data []byte
}

// TranscodeAll processes every pending item. Items run in chunks of
// Options.Concurrency: a chunk starts only when the previous one has fully
// settled, so at most that many transcodes are in flight at any moment.
// One item failing does not stop the rest. Items removed while waiting are
// skipped; results for items removed mid-flight are dropped.
func (s *Session) TranscodeAll() (PhaseResult, error) {
	var res PhaseResult
	var queue []string

	err := s.begin("transcode", func(st *state) error {
		for _, id := range st.order {
			if st.items[id].Stage == StagePending {
				queue = append(queue, id)
			}
		}
		return nil
	})
	if err != nil {
		return res, err
	}
	defer s.end()

	start := time.Now()
	size := s.opts.Concurrency
	s.log.Info("transcode started", "items", len(queue), "concurrency", size)

	for lo := 0; lo < len(queue); lo += size {
		hi := min(lo+size, len(queue))
		jobs, err := s.startChunk(queue[lo:hi])
		if err != nil {
			return res, err
		}
		if len(jobs) == 0 {
			continue
		}
		res.Chunks++
		res.Attempted += len(jobs)

		var wg sync.WaitGroup
		var mu sync.Mutex
		for _, j := range jobs {
			wg.Add(1)
			go func(j job) {
				defer wg.Done()
				if err := s.transcodeOne(j); err != nil {
					mu.Lock()
					res.Errors = append(res.Errors, err)
					mu.Unlock()
				}
			}(j)
		}
		wg.Wait()

		select {
		case <-s.done:
			return res, ErrClosed
		default:
		}
	}

	res.Failed = len(res.Errors)
	res.Succeeded = res.Attempted - res.Failed
	res.Duration = time.Since(start)
	s.log.Info("transcode finished",
		"processed", res.Succeeded, "failed", res.Failed,
		"chunks", res.Chunks, "duration", res.Duration.Round(time.Millisecond))
	return res, nil
}

// startChunk moves the still-pending items of ids to processing and hands
// their bytes to the caller.
func (s *Session) startChunk(ids []string) ([]job, error) {
	var jobs []job
	err := s.do(func(st *state) {
		for _, id := range ids {
			it, ok := st.items[id]
			if !ok || it.Stage != StagePending {
				continue
			}
			it.Stage = StageProcessing
			it.Progress = transcoder.Progress{Stage: transcoder.StageLoading, Message: "Queued"}
			jobs = append(jobs, job{id: id, name: it.FileName, data: it.data})
			st.emit(it)
		}
	})
	return jobs, err
}

func (s *Session) transcodeOne(j job) error {
	progress := func(p transcoder.Progress) {
		_ = s.do(func(st *state) {
			it, ok := st.items[j.id]
			if !ok || it.Stage != StageProcessing {
				return
			}
			it.Progress = p
			st.emit(it)
		})
	}

	asset, err := s.opts.TranscodeFunc(j.name, j.data, s.opts.Transcode, progress)
	if err != nil {
		s.log.Warn("transcode failed", "file", j.name, "error", err)
	} else {
		s.log.Debug("transcoded", "file", j.name,
			"width", asset.Stats.ProcessedWidth, "height", asset.Stats.ProcessedHeight,
			"bytes", asset.Stats.ProcessedSize)
	}

	_ = s.do(func(st *state) {
		it, ok := st.items[j.id]
		if !ok || it.Stage != StageProcessing {
			return
		}
		it.data = nil
		if err != nil {
			it.Stage = StageError
			it.Err = err.Error()
			it.Progress = transcoder.Progress{Stage: transcoder.StageError, Message: "Failed"}
		} else {
			it.Stage = StageProcessed
			it.Asset = asset
			it.Progress = transcoder.Progress{Stage: transcoder.StageComplete, Percent: 100, Message: "Processing complete"}
		}
		st.emit(it)
	})
	return err
}

// UploadReady sends every ready item (processed and matched) to the gateway,
// at most Options.UploadConcurrency at a time. It refuses to start while any
// item is still pending or processing, so the whole batch is transcoded
// first. A gateway failure marks only its own item as error, with the
// gateway's message; the result carries it as an *UploadError.
func (s *Session) UploadReady(ctx context.Context) (PhaseResult, error) {
	var res PhaseResult
	if s.opts.Gateway == nil {
		return res, ErrNoGateway
	}

	var queue []string
	err := s.begin("upload", func(st *state) error {
		waiting := 0
		for _, id := range st.order {
			it := st.items[id]
			switch {
			case it.Stage == StagePending, it.Stage == StageProcessing:
				waiting++
			case it.Ready():
				queue = append(queue, id)
			}
		}
		if waiting > 0 {
			return fmt.Errorf("%w: %d items not transcoded", ErrNotTranscoded, waiting)
		}
		return nil
	})
	if err != nil {
		return res, err
	}
	defer s.end()

	start := time.Now()
	s.log.Info("upload started", "items", len(queue), "concurrency", s.opts.UploadConcurrency)

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		sem = make(chan struct{}, s.opts.UploadConcurrency)
	)
	for _, id := range queue {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			attempted, err := s.uploadOne(ctx, id)
			mu.Lock()
			defer mu.Unlock()
			if attempted {
				res.Attempted++
			}
			if err != nil {
				res.Errors = append(res.Errors, err)
			}
		}(id)
	}
	wg.Wait()

	res.Failed = len(res.Errors)
	res.Succeeded = res.Attempted - res.Failed
	res.Duration = time.Since(start)
	s.log.Info("upload finished",
		"uploaded", res.Succeeded, "failed", res.Failed,
		"duration", res.Duration.Round(time.Millisecond))

	select {
	case <-s.done:
		return res, ErrClosed
	default:
	}
	return res, nil
}

// uploadOne claims an item if it is still ready, uploads it and records the
// outcome. attempted is false when the item changed since it was queued.
func (s *Session) uploadOne(ctx context.Context, id string) (attempted bool, err error) {
	var (
		claimed bool
		entryID string
		name    string
		data    []byte
	)
	if derr := s.do(func(st *state) {
		it, ok := st.items[id]
		if !ok || !it.Ready() || it.Asset == nil {
			return
		}
		it.Stage = StageUploading
		claimed = true
		entryID, name, data = it.Match.ID, it.FileName, it.Asset.Data
		st.emit(it)
	}); derr != nil || !claimed {
		return false, nil
	}

	url, uerr := s.opts.Gateway.Upload(ctx, entryID, data)
	if uerr != nil {
		err = &UploadError{ItemID: id, EntryID: entryID, Err: uerr}
		s.log.Warn("upload failed", "file", name, "entry", entryID, "error", uerr)
	} else {
		s.log.Debug("uploaded", "file", name, "entry", entryID, "url", url)
	}

	_ = s.do(func(st *state) {
		it, ok := st.items[id]
		if !ok || it.Stage != StageUploading {
			return
		}
		if uerr != nil {
			it.Stage = StageError
			it.Err = uerr.Error()
		} else {
			it.Stage = StageUploaded
			it.AssetURL = url
			m := *it.Match
			m.HasExistingAsset, m.AssetURL = true, url
			it.Match = &m
			a := *it.Asset
			a.Data = nil
			it.Asset = &a
		}
		st.emit(it)
	})
	return true, err
}
