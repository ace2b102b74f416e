package compare

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDiffEntriesAddedRemoved(t *testing.T) {
	oldItems := []Entry{{ID: "1"}, {ID: "2"}}
	newItems := []Entry{{ID: "2"}, {ID: "3"}}

	diff := DiffEntries(oldItems, newItems, KeyByID)

	if len(diff.Added) != 1 || diff.Added[0].ID != "3" {
		t.Fatalf("expected added [3], got %#v", diff.Added)
	}
	if len(diff.Removed) != 1 || diff.Removed[0].ID != "1" {
		t.Fatalf("expected removed [1], got %#v", diff.Removed)
	}
}

func TestDiffEntriesIdentical(t *testing.T) {
	items := []Entry{{ID: "a", Name: "Alpha"}, {ID: "b", Name: "Beta"}}

	diff := DiffEntries(items, items, KeyByIDName)
	if !diff.Empty() {
		t.Fatalf("identical collections must diff empty, got %#v", diff)
	}
}

func TestDiffEntriesOrderFollowsInputs(t *testing.T) {
	oldItems := []Entry{{ID: "x"}, {ID: "y"}, {ID: "z"}}
	newItems := []Entry{{ID: "c"}, {ID: "a"}, {ID: "b"}}

	diff := DiffEntries(oldItems, newItems, KeyByID)

	wantAdded := []string{"c", "a", "b"}
	for i, e := range diff.Added {
		if e.ID != wantAdded[i] {
			t.Fatalf("added order must follow newer collection, got %#v", diff.Added)
		}
	}
	wantRemoved := []string{"x", "y", "z"}
	for i, e := range diff.Removed {
		if e.ID != wantRemoved[i] {
			t.Fatalf("removed order must follow older collection, got %#v", diff.Removed)
		}
	}
}

func TestDiffEntriesRenameWithCompositeKey(t *testing.T) {
	oldItems := []Entry{{ID: "1", Name: "Old Name"}}
	newItems := []Entry{{ID: "1", Name: "New Name"}}

	if diff := DiffEntries(oldItems, newItems, KeyByID); !diff.Empty() {
		t.Fatalf("keying by id must ignore renames, got %#v", diff)
	}

	diff := DiffEntries(oldItems, newItems, KeyByIDName)
	if len(diff.Added) != 1 || len(diff.Removed) != 1 {
		t.Fatalf("keying by id+name must report rename as add+remove, got %#v", diff)
	}
}

func TestSetDiffStrategyFirstRun(t *testing.T) {
	strategy := &SetDiffStrategy{}
	entries := []Entry{{ID: "1"}, {ID: "2"}}

	changes, snapshot, err := strategy.Compare(nil, entries, time.Now())
	if err != nil {
		t.Fatalf("compare failed: %v", err)
	}
	if changes == nil || changes.Empty() {
		t.Fatal("first run with entries should report additions")
	}

	var stored []Entry
	if err := json.Unmarshal(snapshot, &stored); err != nil {
		t.Fatalf("snapshot must be a JSON entry list: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("snapshot should carry the new entries, got %#v", stored)
	}
}

func TestSetDiffStrategyIdempotent(t *testing.T) {
	strategy := &SetDiffStrategy{}
	entries := []Entry{{ID: "1"}, {ID: "2"}}

	_, snapshot, err := strategy.Compare(nil, entries, time.Now())
	if err != nil {
		t.Fatalf("compare failed: %v", err)
	}

	changes, _, err := strategy.Compare(snapshot, entries, time.Now())
	if err != nil {
		t.Fatalf("compare failed: %v", err)
	}
	if changes != nil && !changes.Empty() {
		t.Fatalf("compare(S, S) must report no change, got %#v", changes)
	}
}
