// Package monitor orchestrates per-source check cycles: fetch, normalize,
// compare, then notify and persist when something worth reporting changed.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"sourcewatch/internal/compare"
	"sourcewatch/internal/diffrender"
	"sourcewatch/internal/fetcher"
	"sourcewatch/internal/normalize"
	"sourcewatch/internal/notify"
	"sourcewatch/internal/scheduler"
	"sourcewatch/internal/state"
)

// Comparator decides whether anything worth reporting changed between the
// previous snapshot and a freshly normalized payload. It returns the change
// set (nil or empty when nothing changed) and the snapshot that a completed
// cycle should carry forward.
type Comparator interface {
	Compare(prev json.RawMessage, next any, now time.Time) (compare.ChangeSet, json.RawMessage, error)
}

// Recorder observes every successfully normalized payload, e.g. to persist
// price history. Failures are logged, never escalated.
type Recorder interface {
	Record(ctx context.Context, monitor string, payload any, at time.Time) error
}

// Options parameterise one monitor.
type Options struct {
	Name     string
	Interval time.Duration
	// StartRunning connects the periodic trigger at construction.
	StartRunning bool
	Sources      []fetcher.Source
}

// Deps are the collaborators a monitor is wired with. Changes and Recorder
// are optional.
type Deps struct {
	Fetcher    fetcher.Fetcher
	Normalizer normalize.Normalizer
	Comparator Comparator
	Store      state.Store
	Changes    state.ChangeLog
	Recorder   Recorder
	Sink       notify.Sink
	Renderer   *diffrender.Renderer
	Logger     zerolog.Logger
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Status reports a monitor's identity and whether its periodic trigger is
// connected.
type Status struct {
	Name        string
	Running     bool
	Interval    time.Duration
	LastChecked time.Time
}

// Monitor owns one source's full check lifecycle. The comparator-defined
// snapshot is mutated only by a completed, successful cycle; a failed fetch
// or parse leaves the old snapshot authoritative.
type Monitor struct {
	name    string
	sources []fetcher.Source
	deps    Deps
	trigger *scheduler.Trigger
	logger  zerolog.Logger
	now     func() time.Time

	// cycleMu serialises cycles: snapshot mutation is not safe under
	// concurrent writers.
	cycleMu  sync.Mutex
	snapshot json.RawMessage
	loaded   bool

	statusMu    sync.Mutex
	lastChecked time.Time
}

// New constructs a monitor.
func New(opts Options, deps Deps) *Monitor {
	now := deps.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	if deps.Renderer == nil {
		deps.Renderer = diffrender.New(diffrender.Options{})
	}

	trigger := scheduler.New(scheduler.Options{
		Interval:     opts.Interval,
		StartRunning: opts.StartRunning,
	}, deps.Logger.With().Str("monitor", opts.Name).Logger())

	return &Monitor{
		name:    opts.Name,
		sources: opts.Sources,
		deps:    deps,
		trigger: trigger,
		logger:  deps.Logger.With().Str("component", "monitor").Str("monitor", opts.Name).Logger(),
		now:     now,
	}
}

// Name returns the monitor's identifier.
func (m *Monitor) Name() string { return m.name }

// Start connects the periodic trigger. It never affects an in-flight cycle.
func (m *Monitor) Start() { m.trigger.Start() }

// Stop disconnects the periodic trigger. In-flight work is not cancelled.
func (m *Monitor) Stop() { m.trigger.Stop() }

// SetInterval reconfigures the trigger for subsequent ticks.
func (m *Monitor) SetInterval(d time.Duration) { m.trigger.SetInterval(d) }

// TriggerNow requests an immediate check; requests arriving while a cycle is
// in flight collapse into one pending run.
func (m *Monitor) TriggerNow() { m.trigger.Fire() }

// Status reports the monitor's current state.
func (m *Monitor) Status() Status {
	m.statusMu.Lock()
	last := m.lastChecked
	m.statusMu.Unlock()

	return Status{
		Name:        m.name,
		Running:     m.trigger.Running(),
		Interval:    m.trigger.Interval(),
		LastChecked: last,
	}
}

// Run blocks, driving cycles from the trigger until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	return m.trigger.Run(ctx, func(ctx context.Context) {
		if err := m.RunCycle(ctx); err != nil {
			m.logger.Error().Err(err).Msg("check cycle failed")
		}
	})
}

// RunCycle executes one full check cycle. Cycles never overlap; a concurrent
// caller blocks until the in-flight cycle completes.
func (m *Monitor) RunCycle(ctx context.Context) error {
	m.cycleMu.Lock()
	defer m.cycleMu.Unlock()

	now := m.now()

	if !m.loaded {
		if err := m.loadSnapshot(ctx); err != nil {
			return err
		}
	}

	results := m.fetchAll(ctx)
	if len(results) == 0 {
		return fmt.Errorf("monitor %s: all sources failed to fetch", m.name)
	}

	payload, err := m.deps.Normalizer.Normalize(ctx, results)
	if err != nil {
		return fmt.Errorf("normalize: %w", err)
	}

	changes, snapshot, err := m.deps.Comparator.Compare(m.snapshot, payload, now)
	if err != nil {
		return fmt.Errorf("compare: %w", err)
	}

	m.statusMu.Lock()
	m.lastChecked = now
	m.statusMu.Unlock()

	if m.deps.Recorder != nil {
		if err := m.deps.Recorder.Record(ctx, m.name, payload, now); err != nil {
			m.logger.Warn().Err(err).Msg("failed to record observations")
		}
	}

	// The in-memory snapshot carries cycle-to-cycle bookkeeping (last seen
	// values, pending excursions) even when nothing is reported.
	m.snapshot = snapshot

	if changes == nil || changes.Empty() {
		m.logger.Debug().Msg("no change detected")
		return nil
	}

	msg := renderMessage(m.name, changes, m.deps.Renderer)
	delivered := m.deliver(ctx, msg)
	m.appendChange(ctx, changes, msg, delivered)

	if err := m.deps.Store.WriteSnapshot(ctx, m.name, snapshot); err != nil {
		// The in-memory snapshot stays updated so the running process keeps
		// correct state even while durable persistence is failing.
		m.logger.Error().Err(err).Msg("failed to persist snapshot")
		return fmt.Errorf("persist snapshot: %w", err)
	}

	m.logger.Info().Str("summary", changes.Summary()).Bool("delivered", delivered).Msg("change processed")
	return nil
}

func (m *Monitor) loadSnapshot(ctx context.Context) error {
	snapshot, err := m.deps.Store.ReadSnapshot(ctx, m.name)
	switch {
	case errors.Is(err, state.ErrNotFound):
		m.snapshot = nil
	case err != nil:
		return fmt.Errorf("load snapshot: %w", err)
	default:
		m.snapshot = snapshot
	}
	m.loaded = true
	return nil
}

// fetchAll fans the sub-source fetches out concurrently and collects the
// successes in source order. A failed sub-source is logged and omitted;
// downstream treats its absence as a partial failure, not a removal.
func (m *Monitor) fetchAll(ctx context.Context) []fetcher.Result {
	type outcome struct {
		body []byte
		err  error
	}

	outcomes := make([]outcome, len(m.sources))
	var wg sync.WaitGroup
	for i, src := range m.sources {
		wg.Add(1)
		go func(i int, src fetcher.Source) {
			defer wg.Done()
			body, err := m.deps.Fetcher.Fetch(ctx, src)
			outcomes[i] = outcome{body: body, err: err}
		}(i, src)
	}
	wg.Wait()

	results := make([]fetcher.Result, 0, len(m.sources))
	fetchedAt := m.now()
	for i, src := range m.sources {
		if outcomes[i].err != nil {
			m.logger.Warn().Err(outcomes[i].err).Str("source", src.Key).Msg("sub-source fetch failed")
			continue
		}
		results = append(results, fetcher.Result{Source: src, Body: outcomes[i].body, FetchedAt: fetchedAt})
	}
	return results
}

// deliver sends the rendered message, falling back to the bare summary when
// the sink rejects the full form. Total delivery failure is logged at error
// level and never blocks snapshot persistence.
func (m *Monitor) deliver(ctx context.Context, msg notify.Message) bool {
	if m.deps.Sink == nil {
		return false
	}
	if err := m.deps.Sink.Send(ctx, msg); err != nil {
		m.logger.Error().Err(err).Msg("notification delivery failed")
		return false
	}
	return true
}

func (m *Monitor) appendChange(ctx context.Context, changes compare.ChangeSet, msg notify.Message, delivered bool) {
	if m.deps.Changes == nil {
		return
	}
	rec := state.ChangeRecord{
		Monitor:   m.name,
		Summary:   changes.Summary(),
		Payload:   msg.Body,
		Delivered: delivered,
	}
	if err := m.deps.Changes.AppendChange(ctx, rec); err != nil {
		m.logger.Warn().Err(err).Msg("failed to append change record")
	}
}
