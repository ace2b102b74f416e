package compare

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

var t0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func newTracker(tolerance int64, grace time.Duration) Tracker {
	return Tracker{Tolerance: decimal.NewFromInt(tolerance), GracePeriod: grace}
}

func price(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestTrackerInitialisesSilently(t *testing.T) {
	tracker := newTracker(500, 12*time.Hour)

	rec, tr := tracker.Observe(nil, price(100000), t0)
	if tr != nil {
		t.Fatalf("new series must not notify, got %#v", tr)
	}
	if !rec.MinPrice.Equal(price(100000)) || !rec.MinDate.Equal(t0) {
		t.Fatalf("unexpected initial record %#v", rec)
	}
}

func TestTrackerNewLow(t *testing.T) {
	tracker := newTracker(500, 12*time.Hour)

	rec, _ := tracker.Observe(nil, price(100000), t0)
	rec, tr := tracker.Observe(rec, price(99000), t0.Add(time.Hour))

	if tr == nil || tr.Kind != TransitionNewLow {
		t.Fatalf("expected new low, got %#v", tr)
	}
	if !tr.PrevMin.Equal(price(100000)) {
		t.Fatalf("transition must carry previous minimum, got %s", tr.PrevMin)
	}
	if !rec.MinPrice.Equal(price(99000)) {
		t.Fatalf("minimum must advance, got %s", rec.MinPrice)
	}
	if !rec.MinDate.Equal(t0.Add(time.Hour)) {
		t.Fatalf("minimum date must advance, got %s", rec.MinDate)
	}
}

func TestTrackerToleranceSuppression(t *testing.T) {
	tracker := newTracker(500, 12*time.Hour)

	rec, _ := tracker.Observe(nil, price(100000), t0)
	for i, p := range []int64{100000, 100300, 100000} {
		var tr *PriceTransition
		rec, tr = tracker.Observe(rec, price(p), t0.Add(time.Duration(i+1)*time.Hour))
		if tr != nil {
			t.Fatalf("sample %d (%d) must be treated as noise, got %#v", i, p, tr)
		}
		if rec.PendingExit != nil {
			t.Fatalf("sample %d (%d) must not open a pending exit", i, p)
		}
	}

	if !rec.MinDate.Equal(t0) {
		t.Fatalf("minDate must stay at t0, got %s", rec.MinDate)
	}
	if !rec.LastPrice.Equal(price(100000)) {
		t.Fatalf("lastPrice must track the latest sample, got %s", rec.LastPrice)
	}
}

func TestTrackerGracePeriodCancellation(t *testing.T) {
	tracker := newTracker(500, 12*time.Hour)

	rec, _ := tracker.Observe(nil, price(100000), t0)

	rec, tr := tracker.Observe(rec, price(130000), t0)
	if tr != nil {
		t.Fatalf("excursion start must be silent, got %#v", tr)
	}
	if rec.PendingExit == nil || !rec.PendingExit.Date.Equal(t0) {
		t.Fatalf("pending exit must record the excursion time, got %#v", rec.PendingExit)
	}

	rec, tr = tracker.Observe(rec, price(130000), t0.Add(6*time.Hour))
	if tr != nil || rec.PendingExit == nil {
		t.Fatal("excursion within grace period must stay pending and silent")
	}

	// Phantom spike: back within tolerance before the grace period elapsed.
	rec, tr = tracker.Observe(rec, price(100000), t0.Add(7*time.Hour))
	if tr != nil {
		t.Fatalf("phantom spike must cancel silently, got %#v", tr)
	}
	if rec.PendingExit != nil {
		t.Fatal("pending exit must be cleared after cancellation")
	}
	if !rec.MinDate.Equal(t0) {
		t.Fatalf("cancellation must not advance minDate, got %s", rec.MinDate)
	}
}

func TestTrackerGracePeriodConfirmation(t *testing.T) {
	tracker := newTracker(500, 12*time.Hour)

	rec, _ := tracker.Observe(nil, price(100000), t0)
	rec, _ = tracker.Observe(rec, price(130000), t0)
	rec, _ = tracker.Observe(rec, price(130000), t0.Add(6*time.Hour))

	rec, tr := tracker.Observe(rec, price(130000), t0.Add(13*time.Hour))
	if tr != nil {
		t.Fatalf("exit confirmation is not alert-worthy, got %#v", tr)
	}
	if rec.PendingExit != nil {
		t.Fatal("pending exit must be cleared after confirmation")
	}
	if !rec.MinDate.Equal(t0) {
		t.Fatalf("minDate must be backdated to the excursion time t0, got %s", rec.MinDate)
	}
}

func TestTrackerBackToLow(t *testing.T) {
	tracker := newTracker(500, 12*time.Hour)

	rec, _ := tracker.Observe(nil, price(100000), t0)
	rec, _ = tracker.Observe(rec, price(130000), t0.Add(time.Hour))
	rec, _ = tracker.Observe(rec, price(130000), t0.Add(14*time.Hour)) // confirms exit

	rec, tr := tracker.Observe(rec, price(100200), t0.Add(20*time.Hour))
	if tr == nil || tr.Kind != TransitionBackToLow {
		t.Fatalf("expected back-to-low, got %#v", tr)
	}
	if !tr.MinDate.Equal(t0.Add(time.Hour)) {
		t.Fatalf("back-to-low must reference the confirmed minDate, got %s", tr.MinDate)
	}
	if !rec.MinPrice.Equal(price(100000)) {
		t.Fatalf("minimum must be unchanged, got %s", rec.MinPrice)
	}
}

func TestTrackerNewLowWhilePending(t *testing.T) {
	tracker := newTracker(500, 12*time.Hour)

	rec, _ := tracker.Observe(nil, price(100000), t0)
	rec, _ = tracker.Observe(rec, price(130000), t0.Add(time.Hour))

	rec, tr := tracker.Observe(rec, price(98000), t0.Add(2*time.Hour))
	if tr == nil || tr.Kind != TransitionNewLow {
		t.Fatalf("record low during a pending exit must report new low, got %#v", tr)
	}
	if rec.PendingExit != nil {
		t.Fatal("pending exit must be cancelled by the new low")
	}
}

func TestTrackerMonotonicMinimum(t *testing.T) {
	tracker := newTracker(500, 12*time.Hour)

	samples := []int64{100000, 101000, 99000, 130000, 130000, 98000, 97000, 150000, 96000}
	var rec *PriceRecord
	prevMin := decimal.Decimal{}
	for i, p := range samples {
		rec, _ = tracker.Observe(rec, price(p), t0.Add(time.Duration(i)*time.Hour))
		if i > 0 && rec.MinPrice.GreaterThan(prevMin) {
			t.Fatalf("minimum increased from %s to %s at sample %d", prevMin, rec.MinPrice, i)
		}
		prevMin = rec.MinPrice
	}
}

func TestHysteresisStrategyIdempotent(t *testing.T) {
	strategy := &HysteresisStrategy{Tracker: newTracker(500, 12*time.Hour)}
	observations := []PriceObservation{
		{Item: "mbp14", Field: "offer", Price: price(100000)},
		{Item: "mbp14", Field: "normal", Price: price(110000)},
	}

	_, snapshot, err := strategy.Compare(nil, observations, t0)
	if err != nil {
		t.Fatalf("compare failed: %v", err)
	}

	changes, _, err := strategy.Compare(snapshot, observations, t0.Add(time.Hour))
	if err != nil {
		t.Fatalf("compare failed: %v", err)
	}
	if changes != nil && !changes.Empty() {
		t.Fatalf("identical prices must report no change, got %#v", changes)
	}
}

func TestHysteresisStrategyCombinedFields(t *testing.T) {
	strategy := &HysteresisStrategy{Tracker: newTracker(500, 12*time.Hour)}

	_, snapshot, err := strategy.Compare(nil, []PriceObservation{
		{Item: "mbp14", ItemName: "MacBook Pro 14", Field: "offer", Price: price(100000)},
		{Item: "mbp14", ItemName: "MacBook Pro 14", Field: "normal", Price: price(110000)},
	}, t0)
	if err != nil {
		t.Fatalf("compare failed: %v", err)
	}

	changes, _, err := strategy.Compare(snapshot, []PriceObservation{
		{Item: "mbp14", ItemName: "MacBook Pro 14", Field: "offer", Price: price(95000)},
		{Item: "mbp14", ItemName: "MacBook Pro 14", Field: "normal", Price: price(105000)},
	}, t0.Add(time.Hour))
	if err != nil {
		t.Fatalf("compare failed: %v", err)
	}

	diff, ok := changes.(*PriceDiff)
	if !ok {
		t.Fatalf("expected *PriceDiff, got %T", changes)
	}
	if len(diff.Transitions) != 2 {
		t.Fatalf("both fields should fire, got %#v", diff.Transitions)
	}

	groups := diff.ByItem()
	if len(groups) != 1 || len(groups[0]) != 2 {
		t.Fatalf("both transitions must group into one item notification, got %#v", groups)
	}
}

func TestHysteresisStrategySnapshotRoundTrip(t *testing.T) {
	strategy := &HysteresisStrategy{Tracker: newTracker(500, 12*time.Hour)}

	_, snapshot, err := strategy.Compare(nil, []PriceObservation{
		{Item: "mbp14", Field: "offer", Price: price(100000)},
	}, t0)
	if err != nil {
		t.Fatalf("compare failed: %v", err)
	}

	var state PriceSnapshot
	if err := json.Unmarshal(snapshot, &state); err != nil {
		t.Fatalf("snapshot must round-trip through JSON: %v", err)
	}
	rec := state["mbp14"]["offer"]
	if rec == nil || !rec.MinPrice.Equal(price(100000)) {
		t.Fatalf("unexpected persisted record %#v", rec)
	}
}

func TestHysteresisStrategyAbsentItemUntouched(t *testing.T) {
	strategy := &HysteresisStrategy{Tracker: newTracker(500, 12*time.Hour)}

	_, snapshot, err := strategy.Compare(nil, []PriceObservation{
		{Item: "a", Field: "offer", Price: price(100000)},
		{Item: "b", Field: "offer", Price: price(200000)},
	}, t0)
	if err != nil {
		t.Fatalf("compare failed: %v", err)
	}

	// Item b missing this cycle, e.g. its page failed to fetch.
	_, snapshot, err = strategy.Compare(snapshot, []PriceObservation{
		{Item: "a", Field: "offer", Price: price(100000)},
	}, t0.Add(time.Hour))
	if err != nil {
		t.Fatalf("compare failed: %v", err)
	}

	var state PriceSnapshot
	if err := json.Unmarshal(snapshot, &state); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	rec := state["b"]["offer"]
	if rec == nil || !rec.MinPrice.Equal(price(200000)) {
		t.Fatalf("absent item's record must survive untouched, got %#v", rec)
	}
}
