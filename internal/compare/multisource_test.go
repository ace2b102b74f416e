package compare

import (
	"encoding/json"
	"testing"
	"time"
)

func str(s string) *string { return &s }

func TestPatchFillsAbsentSources(t *testing.T) {
	prev := MultiSourceState{
		"primary":   {Region: str("US\nCA")},
		"alternate": {Region: str("DE")},
	}
	next := MultiSourceState{
		"primary": {Region: str("US\nCA\nMX")},
	}

	patched := Patch(prev, next)

	if got := patched["primary"].Region; got == nil || *got != "US\nCA\nMX" {
		t.Fatalf("present source must keep its fresh value, got %v", got)
	}
	if got := patched["alternate"].Region; got == nil || *got != "DE" {
		t.Fatalf("absent source must be carried over, got %v", got)
	}
	if _, ok := next["alternate"]; ok {
		t.Fatal("Patch must not mutate its inputs")
	}
}

func TestPatchFillsNilFields(t *testing.T) {
	prev := MultiSourceState{
		"primary": {Region: str("US"), Identifiers: []Entry{{ID: "a"}}},
	}
	next := MultiSourceState{
		"primary": {Identifiers: []Entry{{ID: "a"}, {ID: "b"}}},
	}

	patched := Patch(prev, next)

	st := patched["primary"]
	if st.Region == nil || *st.Region != "US" {
		t.Fatalf("nil region must be backfilled from prev, got %v", st.Region)
	}
	if len(st.Identifiers) != 2 {
		t.Fatalf("fresh identifiers must win, got %#v", st.Identifiers)
	}
}

func TestPatchKeepsEmptyValueDistinctFromNil(t *testing.T) {
	prev := MultiSourceState{"primary": {Region: str("US")}}
	next := MultiSourceState{"primary": {Region: str("")}}

	patched := Patch(prev, next)
	if got := patched["primary"].Region; got == nil || *got != "" {
		t.Fatalf("explicit empty region must not be patched over, got %v", got)
	}
}

func TestMultiSourceStrategyPartialFailure(t *testing.T) {
	strategy := &MultiSourceStrategy{}

	prevSnapshot, err := json.Marshal(MultiSourceState{
		"primary":   {Region: str("US")},
		"alternate": {Region: str("DE")},
	})
	if err != nil {
		t.Fatalf("marshal prev: %v", err)
	}

	// alternate failed this cycle and is absent from the payload.
	changes, snapshot, err := strategy.Compare(prevSnapshot, MultiSourceState{
		"primary": {Region: str("US\nMX")},
	}, time.Now())
	if err != nil {
		t.Fatalf("compare failed: %v", err)
	}

	diff, ok := changes.(*MultiSourceDiff)
	if !ok {
		t.Fatalf("expected *MultiSourceDiff, got %T", changes)
	}
	if len(diff.Events) != 1 {
		t.Fatalf("only the live source may produce events, got %#v", diff.Events)
	}
	rd, ok := diff.Events[0].(RegionDiff)
	if !ok || rd.Source != "primary" || rd.New != "US\nMX" {
		t.Fatalf("unexpected event %#v", diff.Events[0])
	}

	var persisted MultiSourceState
	if err := json.Unmarshal(snapshot, &persisted); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if got := persisted["alternate"].Region; got == nil || *got != "DE" {
		t.Fatalf("failed source must survive in the snapshot, got %v", got)
	}
}

func TestMultiSourceStrategyIdentifierEvents(t *testing.T) {
	strategy := &MultiSourceStrategy{}

	prevSnapshot, err := json.Marshal(MultiSourceState{
		"primary": {Identifiers: []Entry{{ID: "1", Name: "One"}, {ID: "2", Name: "Two"}}},
	})
	if err != nil {
		t.Fatalf("marshal prev: %v", err)
	}

	changes, _, err := strategy.Compare(prevSnapshot, MultiSourceState{
		"primary": {Identifiers: []Entry{{ID: "2", Name: "Two"}, {ID: "3", Name: "Three"}}},
	}, time.Now())
	if err != nil {
		t.Fatalf("compare failed: %v", err)
	}

	diff := changes.(*MultiSourceDiff)
	var added, removed int
	for _, ev := range diff.Events {
		switch e := ev.(type) {
		case NewIdentifier:
			added++
			if e.Entry.ID != "3" {
				t.Fatalf("unexpected addition %#v", e)
			}
		case RemovedIdentifier:
			removed++
			if e.Entry.ID != "1" {
				t.Fatalf("unexpected removal %#v", e)
			}
		}
	}
	if added != 1 || removed != 1 {
		t.Fatalf("expected one addition and one removal, got %#v", diff.Events)
	}
}

func TestMultiSourceStrategyIdempotent(t *testing.T) {
	strategy := &MultiSourceStrategy{}
	payload := MultiSourceState{
		"primary":   {Region: str("US"), Identifiers: []Entry{{ID: "1"}}},
		"alternate": {Region: str("DE")},
	}

	_, snapshot, err := strategy.Compare(nil, payload, time.Now())
	if err != nil {
		t.Fatalf("compare failed: %v", err)
	}

	changes, _, err := strategy.Compare(snapshot, payload, time.Now())
	if err != nil {
		t.Fatalf("compare failed: %v", err)
	}
	if changes != nil && !changes.Empty() {
		t.Fatalf("compare(S, S) must report no change, got %#v", changes)
	}
}

func TestMultiSourceStrategyAllSourcesAbsent(t *testing.T) {
	strategy := &MultiSourceStrategy{}

	prevSnapshot, err := json.Marshal(MultiSourceState{
		"primary": {Region: str("US")},
	})
	if err != nil {
		t.Fatalf("marshal prev: %v", err)
	}

	changes, snapshot, err := strategy.Compare(prevSnapshot, MultiSourceState{}, time.Now())
	if err != nil {
		t.Fatalf("compare failed: %v", err)
	}
	if changes != nil && !changes.Empty() {
		t.Fatalf("empty payload must never look like removals, got %#v", changes)
	}

	var persisted MultiSourceState
	if err := json.Unmarshal(snapshot, &persisted); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if got := persisted["primary"].Region; got == nil || *got != "US" {
		t.Fatalf("previous state must persist unchanged, got %v", got)
	}
}
