package history

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/session"
)

const (
	// DefaultQueueSize is the number of events buffered between the loop
	// and the writer.
	DefaultQueueSize = 64

	// DefaultRetention is how many entries are kept.
	DefaultRetention = 10000

	// pruneEvery is how many writes pass between prunes.
	pruneEvery = 100

	// writeTimeout bounds each insert, including the final flush.
	writeTimeout = 5 * time.Second
)

// Logger is the logging interface used by the recorder.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Recorder is a session observer that persists events.
//
// OnSessionEvent never blocks; when the queue is full the event is counted
// as dropped. Run performs the writes.
type Recorder struct {
	repo      Repository
	queue     chan session.Event
	logger    Logger
	retention int

	written atomic.Uint64
	dropped atomic.Uint64
}

// NewRecorder creates a Recorder writing to repo. A non-positive size uses
// DefaultQueueSize.
func NewRecorder(repo Repository, size int, logger Logger) *Recorder {
	if size <= 0 {
		size = DefaultQueueSize
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Recorder{
		repo:      repo,
		queue:     make(chan session.Event, size),
		logger:    logger,
		retention: DefaultRetention,
	}
}

// SetRetention sets how many entries Run keeps. Zero or less disables
// pruning.
func (r *Recorder) SetRetention(keep int) {
	r.retention = keep
}

// OnSessionEvent queues e for writing.
func (r *Recorder) OnSessionEvent(e session.Event) {
	select {
	case r.queue <- e:
	default:
		r.dropped.Add(1)
	}
}

// Run writes queued events until ctx is cancelled, then flushes whatever
// is still queued. Shutdown events emitted while the scheduler stops are
// therefore stored as long as Run outlives the scheduler.
func (r *Recorder) Run(ctx context.Context) {
	for {
		select {
		case e := <-r.queue:
			r.write(context.WithoutCancel(ctx), e)
		case <-ctx.Done():
			r.flush(context.WithoutCancel(ctx))
			return
		}
	}
}

func (r *Recorder) flush(ctx context.Context) {
	for {
		select {
		case e := <-r.queue:
			r.write(ctx, e)
		default:
			return
		}
	}
}

func (r *Recorder) write(ctx context.Context, e session.Event) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	entry := FromEvent(e)
	if err := r.repo.Create(ctx, &entry); err != nil {
		r.logger.Warn("recording session event failed", "kind", entry.Kind, "error", err)
		return
	}

	n := r.written.Add(1)
	if r.retention > 0 && n%pruneEvery == 0 {
		if removed, err := r.repo.Prune(ctx, r.retention); err != nil {
			r.logger.Warn("pruning session history failed", "error", err)
		} else if removed > 0 {
			r.logger.Debug("pruned session history", "removed", removed)
		}
	}
}

// Written returns the number of events stored.
func (r *Recorder) Written() uint64 { return r.written.Load() }

// Dropped returns the number of events lost to a full queue.
func (r *Recorder) Dropped() uint64 { return r.dropped.Load() }

var _ session.Observer = (*Recorder)(nil)
