package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// DefaultInterval is the tick interval used when none is configured.
const DefaultInterval = 16 * time.Millisecond

// defaultQueueSize bounds the number of posted functions waiting for a tick.
const defaultQueueSize = 64

var (
	// ErrStopped is returned by Call once the loop has ended.
	ErrStopped = errors.New("lifecycle: scheduler stopped")

	// ErrQueueFull is returned by Call when the posted work queue is full.
	ErrQueueFull = errors.New("lifecycle: work queue full")

	// ErrAlreadyRunning is returned by Run when called twice.
	ErrAlreadyRunning = errors.New("lifecycle: scheduler already running")
)

// Scheduler owns the loop goroutine.
type Scheduler struct {
	interval time.Duration
	logger   Logger

	mu         sync.Mutex
	components []Component
	running    bool

	queue   chan func()
	stopped chan struct{}
}

// NewScheduler creates a Scheduler that ticks every interval.
// A non-positive interval uses DefaultInterval.
func NewScheduler(interval time.Duration, logger Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Scheduler{
		interval: interval,
		logger:   logger,
		queue:    make(chan func(), defaultQueueSize),
		stopped:  make(chan struct{}),
	}
}

// Register adds c. Components registered after Run has started are ignored.
func (s *Scheduler) Register(c Component) {
	if c == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.logger.Warn("component registered after start ignored", "component", fmt.Sprintf("%T", c))
		return
	}
	s.components = append(s.components, c)
}

// Post queues fn to run on the loop goroutine before the next tick.
// It returns false if the queue is full or the loop has ended.
func (s *Scheduler) Post(fn func()) bool {
	select {
	case <-s.stopped:
		return false
	default:
	}
	select {
	case s.queue <- fn:
		return true
	default:
		return false
	}
}

// Call runs fn on the loop goroutine and waits for it to finish.
func (s *Scheduler) Call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if !s.Post(func() {
		defer close(done)
		fn()
	}) {
		select {
		case <-s.stopped:
			return ErrStopped
		default:
			return ErrQueueFull
		}
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.stopped:
		return ErrStopped
	}
}

// Run sets up every registered component and ticks them until ctx ends.
//
// It returns the setup error of the first component that fails, or the
// cancellation cause of ctx when that cause is something other than a
// plain cancellation.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.running = true
	pending := make([]Component, len(s.components))
	copy(pending, s.components)
	s.mu.Unlock()

	defer close(s.stopped)

	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].SetupPriority() > pending[j].SetupPriority()
	})

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var active []Component
	defer func() { s.shutdown(active) }()

	for _, c := range pending {
		if err := c.Setup(); err != nil {
			return fmt.Errorf("setting up %T: %w", c, err)
		}
		c.DumpConfig()
		active = append(active, c)

		p, ok := c.(Proceeder)
		if !ok {
			continue
		}
		for !p.CanProceed() {
			select {
			case <-ctx.Done():
				return stopCause(ctx)
			case <-ticker.C:
				s.tick(active)
			}
		}
	}

	s.logger.Info("all components set up", "components", len(active))

	for {
		select {
		case <-ctx.Done():
			return stopCause(ctx)
		case <-ticker.C:
			s.tick(active)
		}
	}
}

// tick runs posted work and then every active component's Loop.
func (s *Scheduler) tick(active []Component) {
	for drained := false; !drained; {
		select {
		case fn := <-s.queue:
			s.guard("posted function", fn)
		default:
			drained = true
		}
	}
	for _, c := range active {
		s.guard(fmt.Sprintf("%T", c), c.Loop)
	}
}

func (s *Scheduler) shutdown(active []Component) {
	for i := len(active) - 1; i >= 0; i-- {
		if sd, ok := active[i].(Shutdowner); ok {
			s.guard(fmt.Sprintf("%T", active[i]), sd.Shutdown)
		}
	}
}

func (s *Scheduler) guard(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("loop panic recovered", "component", name, "panic", r)
		}
	}()
	fn()
}

func stopCause(ctx context.Context) error {
	cause := context.Cause(ctx)
	if cause == nil || errors.Is(cause, context.Canceled) {
		return nil
	}
	return cause
}
