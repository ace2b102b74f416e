package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc is invoked on every periodic or manual trigger.
type TickFunc func(ctx context.Context)

// Options tune trigger behaviour.
type Options struct {
	Interval     time.Duration
	StartupDelay time.Duration
	// StartRunning connects the periodic trigger immediately.
	StartRunning bool
}

// Trigger drives one monitor's check cycles. Ticks execute synchronously in
// the trigger's own loop goroutine, so cycles never overlap; a manual fire
// arriving while a tick is in flight collapses into a single pending run.
// Stop only disconnects future periodic ticks; manual fires keep working and
// in-flight work is never aborted.
type Trigger struct {
	mu       sync.Mutex
	interval time.Duration
	running  bool

	opts   Options
	kick   chan struct{}
	logger zerolog.Logger
}

// New constructs a Trigger instance.
func New(opts Options, logger zerolog.Logger) *Trigger {
	if opts.Interval <= 0 {
		panic("trigger interval must be positive")
	}
	return &Trigger{
		interval: opts.Interval,
		running:  opts.StartRunning,
		opts:     opts,
		kick:     make(chan struct{}, 1),
		logger:   logger.With().Str("component", "trigger").Logger(),
	}
}

// Run blocks, invoking the tick function on each interval until ctx is
// cancelled. Interval changes apply from the next scheduling decision
// onward, never to the tick already waiting.
func (t *Trigger) Run(ctx context.Context, tick TickFunc) error {
	if t.opts.StartupDelay > 0 {
		timer := time.NewTimer(t.opts.StartupDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	timer := time.NewTimer(t.Interval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-timer.C:
			if t.Running() {
				tick(ctx)
			} else {
				t.logger.Debug().Msg("periodic tick skipped while stopped")
			}
			timer.Reset(t.Interval())

		case <-t.kick:
			tick(ctx)
		}
	}
}

// Start connects the periodic trigger.
func (t *Trigger) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = true
}

// Stop disconnects the periodic trigger without touching in-flight work.
func (t *Trigger) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = false
}

// Running reports whether the periodic trigger is connected.
func (t *Trigger) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Interval returns the current period.
func (t *Trigger) Interval() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.interval
}

// SetInterval reconfigures the period for subsequent ticks.
func (t *Trigger) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.interval = d
}

// Fire requests an immediate tick. Multiple requests while the loop is busy
// collapse into one.
func (t *Trigger) Fire() {
	select {
	case t.kick <- struct{}{}:
	default:
	}
}
