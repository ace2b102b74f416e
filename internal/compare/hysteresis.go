package compare

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransitionKind labels a reportable price state transition.
type TransitionKind string

const (
	// TransitionNewLow marks a genuine new all-time-low observation.
	TransitionNewLow TransitionKind = "new_low"
	// TransitionBackToLow marks a return to the tracked minimum after a
	// confirmed excursion above it.
	TransitionBackToLow TransitionKind = "back_to_low"
)

// PendingExit marks a provisional departure from the tracked minimum. It is
// cancelled silently if the price comes back within tolerance before the
// grace period elapses.
type PendingExit struct {
	Date time.Time `json:"date"`
}

// PriceRecord tracks the historic minimum of one (item, field) series.
// MinPrice only ever decreases except through a confirmed exit, and LastPrice
// always equals the most recently observed value after a completed cycle.
type PriceRecord struct {
	MinPrice    decimal.Decimal `json:"min_price"`
	MinDate     time.Time       `json:"min_date"`
	LastPrice   decimal.Decimal `json:"last_price"`
	PendingExit *PendingExit    `json:"pending_exit,omitempty"`
}

// Clone returns an independent copy of the record.
func (r *PriceRecord) Clone() *PriceRecord {
	if r == nil {
		return nil
	}
	cp := *r
	if r.PendingExit != nil {
		pe := *r.PendingExit
		cp.PendingExit = &pe
	}
	return &cp
}

// atMinimum reports whether the record currently sits within tolerance of
// its minimum. Only meaningful while no exit is pending.
func (r *PriceRecord) atMinimum(tolerance decimal.Decimal) bool {
	return r.LastPrice.LessThanOrEqual(r.MinPrice.Add(tolerance))
}

// PriceSnapshot holds the tracked records keyed by item, then by field.
type PriceSnapshot map[string]map[string]*PriceRecord

// Clone deep-copies the snapshot.
func (s PriceSnapshot) Clone() PriceSnapshot {
	out := make(PriceSnapshot, len(s))
	for item, fields := range s {
		cp := make(map[string]*PriceRecord, len(fields))
		for field, rec := range fields {
			cp[field] = rec.Clone()
		}
		out[item] = cp
	}
	return out
}

// PriceObservation is one sampled value for a tracked item and field.
type PriceObservation struct {
	Item      string
	ItemName  string
	Field     string
	Price     decimal.Decimal
	// SeenAt optionally backfills the minimum date for brand-new records,
	// e.g. when historical data is available. Zero means "now".
	SeenAt time.Time
}

// PriceTransition is one confirmed, alert-worthy transition.
type PriceTransition struct {
	Item     string
	ItemName string
	Field    string
	Kind     TransitionKind
	Price    decimal.Decimal
	// PrevMin is the minimum before this transition; for BackToLow it equals
	// the minimum being returned to.
	PrevMin decimal.Decimal
	// MinDate references when the minimum was last seen: the observation
	// time for NewLow, the previously confirmed MinDate for BackToLow.
	MinDate time.Time
}

// PriceDiff carries all transitions of one cycle, grouped per item when the
// caller renders them.
type PriceDiff struct {
	Transitions []PriceTransition
}

// Empty reports whether any transition fired.
func (d *PriceDiff) Empty() bool {
	return d == nil || len(d.Transitions) == 0
}

// Summary renders a one-line digest of the transitions.
func (d *PriceDiff) Summary() string {
	if d.Empty() {
		return "no changes"
	}
	parts := make([]string, 0, len(d.Transitions))
	for _, tr := range d.Transitions {
		name := tr.ItemName
		if name == "" {
			name = tr.Item
		}
		switch tr.Kind {
		case TransitionNewLow:
			parts = append(parts, fmt.Sprintf("%s %s: new low %s", name, tr.Field, tr.Price))
		case TransitionBackToLow:
			parts = append(parts, fmt.Sprintf("%s %s: back to low %s", name, tr.Field, tr.Price))
		}
	}
	return strings.Join(parts, "; ")
}

// ByItem groups the transitions by item so that two fields firing in the
// same cycle end up in one combined notification.
func (d *PriceDiff) ByItem() [][]PriceTransition {
	order := make([]string, 0)
	grouped := make(map[string][]PriceTransition)
	for _, tr := range d.Transitions {
		if _, ok := grouped[tr.Item]; !ok {
			order = append(order, tr.Item)
		}
		grouped[tr.Item] = append(grouped[tr.Item], tr)
	}
	out := make([][]PriceTransition, 0, len(order))
	for _, item := range order {
		out = append(out, grouped[item])
	}
	return out
}

// Tracker runs the hysteresis state machine for one (item, field) series.
// Tolerance is the absolute band within which prices count as equal to the
// minimum; GracePeriod is how long an excursion above the band must persist
// before the exit is confirmed.
type Tracker struct {
	Tolerance   decimal.Decimal
	GracePeriod time.Duration
}

// Observe advances rec by one sampled price. It returns the transition to
// report, if any. A nil rec means a brand-new series: the returned record is
// initialised silently. rec is mutated in place when non-nil.
func (t *Tracker) Observe(rec *PriceRecord, price decimal.Decimal, now time.Time) (*PriceRecord, *PriceTransition) {
	if rec == nil {
		return &PriceRecord{MinPrice: price, MinDate: now, LastPrice: price}, nil
	}

	ceiling := rec.MinPrice.Add(t.Tolerance)
	floor := rec.MinPrice.Sub(t.Tolerance)
	var transition *PriceTransition

	switch {
	case rec.PendingExit != nil:
		switch {
		case price.LessThan(floor):
			// Excursion resolved straight into a new record low.
			rec.PendingExit = nil
			transition = &PriceTransition{Kind: TransitionNewLow, Price: price, PrevMin: rec.MinPrice, MinDate: now}
			rec.MinPrice = price
			rec.MinDate = now
		case price.LessThanOrEqual(ceiling):
			// Phantom spike: cancel silently, MinDate untouched.
			rec.PendingExit = nil
		case now.Sub(rec.PendingExit.Date) >= t.GracePeriod:
			// Exit confirmed. MinDate records when the minimum was last
			// seen, which is the excursion start, not now. Not alert-worthy.
			rec.MinDate = rec.PendingExit.Date
			rec.PendingExit = nil
		}
		// Grace period still running otherwise; stay pending.

	case price.LessThan(floor):
		transition = &PriceTransition{Kind: TransitionNewLow, Price: price, PrevMin: rec.MinPrice, MinDate: now}
		rec.MinPrice = price
		rec.MinDate = now

	case price.GreaterThan(ceiling):
		if rec.atMinimum(t.Tolerance) {
			rec.PendingExit = &PendingExit{Date: now}
		}
		// Already above the minimum: nothing new.

	case !rec.atMinimum(t.Tolerance):
		// Back within tolerance after a confirmed exit.
		transition = &PriceTransition{Kind: TransitionBackToLow, Price: price, PrevMin: rec.MinPrice, MinDate: rec.MinDate}

	default:
		// Within tolerance while at the minimum: noise.
	}

	rec.LastPrice = price
	return rec, transition
}

// HysteresisStrategy applies the Tracker per (item, field) pair across a
// whole price snapshot.
type HysteresisStrategy struct {
	Tracker Tracker
}

// Compare advances every observed series and returns the fired transitions
// plus the updated snapshot. Items and fields absent from the observations
// keep their previous records untouched.
func (s *HysteresisStrategy) Compare(prev json.RawMessage, next any, now time.Time) (ChangeSet, json.RawMessage, error) {
	observations, ok := next.([]PriceObservation)
	if !ok {
		return nil, nil, fmt.Errorf("hysteresis comparator: unexpected payload type %T", next)
	}

	state := PriceSnapshot{}
	if len(prev) > 0 {
		if err := json.Unmarshal(prev, &state); err != nil {
			return nil, nil, fmt.Errorf("decode previous snapshot: %w", err)
		}
	}
	state = state.Clone()

	diff := &PriceDiff{}
	for _, obs := range observations {
		fields := state[obs.Item]
		if fields == nil {
			fields = make(map[string]*PriceRecord)
			state[obs.Item] = fields
		}

		seen := now
		if fields[obs.Field] == nil && !obs.SeenAt.IsZero() {
			seen = obs.SeenAt
		}

		rec, tr := s.Tracker.Observe(fields[obs.Field], obs.Price, seen)
		fields[obs.Field] = rec
		if tr != nil {
			tr.Item = obs.Item
			tr.ItemName = obs.ItemName
			tr.Field = obs.Field
			diff.Transitions = append(diff.Transitions, *tr)
		}
	}

	snapshot, err := json.Marshal(state)
	if err != nil {
		return nil, nil, fmt.Errorf("encode snapshot: %w", err)
	}
	if diff.Empty() {
		return nil, snapshot, nil
	}
	return diff, snapshot, nil
}
