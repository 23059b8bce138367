package audit

import (
	"context"
	"sync"

	"github.com/nerrad567/storefront-auth/internal/auth"
	"github.com/nerrad567/storefront-auth/internal/infrastructure/logging"
)

// DefaultBufferSize is the queue length used when none is configured.
const DefaultBufferSize = 256

// Recorder turns auth events into audit entries and writes them from a
// single goroutine. Enqueueing never blocks: when the queue is full the
// entry is dropped and a warning is logged.
//
// Thread Safety:
//   - RecordEvent is safe for concurrent use. Start and Close must be
//     called once each.
type Recorder struct {
	repo    Repository
	logger  *logging.Logger
	queue   chan *Entry
	dropped func()

	done      chan struct{}
	closeOnce sync.Once
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithDropHook is called every time an entry is dropped.
func WithDropHook(fn func()) RecorderOption {
	return func(r *Recorder) { r.dropped = fn }
}

// NewRecorder creates a Recorder. Call Start to begin writing.
func NewRecorder(repo Repository, bufferSize int, logger *logging.Logger, opts ...RecorderOption) *Recorder {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	if logger == nil {
		logger = logging.Discard()
	}
	r := &Recorder{
		repo:   repo,
		logger: logger.With("component", "audit"),
		queue:  make(chan *Entry, bufferSize),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RecordEvent implements auth.EventRecorder.
func (r *Recorder) RecordEvent(_ context.Context, e auth.Event) {
	entry := &Entry{
		Action:    string(e.Action),
		Role:      string(e.Role),
		Subject:   e.Email,
		Outcome:   string(e.Outcome),
		Source:    e.Source,
		CreatedAt: e.At,
	}
	if e.Reason != "" {
		entry.Details = map[string]any{"reason": e.Reason}
	}

	select {
	case r.queue <- entry:
	default:
		r.logger.Warn("audit queue full, dropping entry",
			"action", entry.Action,
			"role", entry.Role,
		)
		if r.dropped != nil {
			r.dropped()
		}
	}
}

// Start runs the writer until ctx is cancelled, then drains what is left.
func (r *Recorder) Start(ctx context.Context) {
	go r.drain(ctx)
}

// Close waits for the writer to finish. The context passed to Start must be
// cancelled first.
func (r *Recorder) Close() {
	r.closeOnce.Do(func() { <-r.done })
}

// drain writes entries serially; SQLite has a single writer anyway.
func (r *Recorder) drain(ctx context.Context) {
	defer close(r.done)
	for {
		select {
		case entry := <-r.queue:
			r.write(entry)
		case <-ctx.Done():
			for {
				select {
				case entry := <-r.queue:
					r.write(entry)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(entry *Entry) {
	if err := r.repo.Create(context.Background(), entry); err != nil {
		r.logger.Error("audit write failed",
			"action", entry.Action,
			"role", entry.Role,
			"error", err,
		)
	}
}
