package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Registry owns all monitor instances and fans scheduling and aggregate
// control commands out to them. It is built once at process start from the
// explicit monitor list; monitors are never added or removed at runtime.
type Registry struct {
	mu       sync.RWMutex
	monitors map[string]*Monitor
	order    []string
	logger   zerolog.Logger
}

// NewRegistry constructs an empty registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		monitors: make(map[string]*Monitor),
		logger:   logger.With().Str("component", "registry").Logger(),
	}
}

// Add registers a monitor. Duplicate names are rejected.
func (r *Registry) Add(m *Monitor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.monitors[m.Name()]; exists {
		return fmt.Errorf("monitor %q already registered", m.Name())
	}
	r.monitors[m.Name()] = m
	r.order = append(r.order, m.Name())
	return nil
}

// Get looks a monitor up by name.
func (r *Registry) Get(name string) (*Monitor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.monitors[name]
	return m, ok
}

// Names lists registered monitors in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Run launches every monitor's trigger loop and blocks until ctx is
// cancelled and all loops have returned.
func (r *Registry) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, m := range r.all() {
		wg.Add(1)
		go func(m *Monitor) {
			defer wg.Done()
			_ = m.Run(ctx)
		}(m)
	}
	r.logger.Info().Int("monitors", len(r.Names())).Msg("registry running")
	wg.Wait()
	r.logger.Info().Msg("registry stopped")
}

// StartAll connects every monitor's periodic trigger.
func (r *Registry) StartAll() {
	for _, m := range r.all() {
		m.Start()
	}
}

// StopAll disconnects every monitor's periodic trigger.
func (r *Registry) StopAll() {
	for _, m := range r.all() {
		m.Stop()
	}
}

// SetIntervalAll reconfigures every monitor's trigger.
func (r *Registry) SetIntervalAll(d time.Duration) {
	for _, m := range r.all() {
		m.SetInterval(d)
	}
}

// TriggerAll requests an immediate check on every monitor.
func (r *Registry) TriggerAll() {
	for _, m := range r.all() {
		m.TriggerNow()
	}
}

// StatusAll reports every monitor's status in registration order.
func (r *Registry) StatusAll() []Status {
	all := r.all()
	statuses := make([]Status, 0, len(all))
	for _, m := range all {
		statuses = append(statuses, m.Status())
	}
	return statuses
}

func (r *Registry) all() []*Monitor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Monitor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.monitors[name])
	}
	return out
}
