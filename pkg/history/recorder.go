package history

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"silverline-hq/portcullis/pkg/engine"
)

// Recorder is an asynchronous usage-record sink. Writes are buffered and
// flushed by a background worker, so a slow or failing archive never
// delays an admission decision.
type Recorder struct {
	storage Storage
	logger  *slog.Logger

	ch   chan engine.UsageRecord
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

// NewRecorder creates a recorder over the given archive. buffer <= 0 uses
// a default of 1000.
func NewRecorder(storage Storage, buffer int) *Recorder {
	if buffer <= 0 {
		buffer = 1000
	}
	r := &Recorder{
		storage: storage,
		logger:  slog.Default().With("component", "history.recorder"),
		ch:      make(chan engine.UsageRecord, buffer),
	}
	r.wg.Add(1)
	go r.run()
	return r
}

// Record implements engine.RecordSink. Never blocks: when the buffer is
// full the record is dropped and logged.
func (r *Recorder) Record(ctx context.Context, rec engine.UsageRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}

	select {
	case r.ch <- rec:
	default:
		r.logger.Warn("record buffer full, dropping usage record",
			"user_id", rec.UserID, "scope_key", rec.ScopeKey)
	}
}

// Close stops the recorder, flushing buffered records first.
func (r *Recorder) Close() {
	r.once.Do(func() {
		r.mu.Lock()
		r.closed = true
		close(r.ch)
		r.mu.Unlock()
		r.wg.Wait()
	})
}

func (r *Recorder) run() {
	defer r.wg.Done()
	for rec := range r.ch {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := r.storage.Insert(ctx, rec); err != nil {
			r.logger.Warn("failed to archive usage record",
				"user_id", rec.UserID, "error", err)
		}
		cancel()
	}
}
