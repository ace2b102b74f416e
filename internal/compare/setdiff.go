package compare

import (
	"encoding/json"
	"fmt"
	"time"
)

// SetDiff is the result of comparing two collections of discrete items.
type SetDiff struct {
	Added   []Entry `json:"added"`
	Removed []Entry `json:"removed"`
}

// Empty reports whether the diff carries no additions and no removals.
func (d *SetDiff) Empty() bool {
	return d == nil || (len(d.Added) == 0 && len(d.Removed) == 0)
}

// Summary renders a one-line digest of the diff.
func (d *SetDiff) Summary() string {
	switch {
	case d.Empty():
		return "no changes"
	case len(d.Removed) == 0:
		return fmt.Sprintf("%d added", len(d.Added))
	case len(d.Added) == 0:
		return fmt.Sprintf("%d removed", len(d.Removed))
	default:
		return fmt.Sprintf("%d added, %d removed", len(d.Added), len(d.Removed))
	}
}

// DiffEntries compares two item collections by the supplied key. Added items
// keep the order of the newer collection, removed items the order of the
// older one; no additional sorting is imposed here.
func DiffEntries(oldItems, newItems []Entry, key KeyFunc) *SetDiff {
	if key == nil {
		key = KeyByID
	}

	oldKeys := make(map[string]struct{}, len(oldItems))
	for _, e := range oldItems {
		oldKeys[key(e)] = struct{}{}
	}
	newKeys := make(map[string]struct{}, len(newItems))
	for _, e := range newItems {
		newKeys[key(e)] = struct{}{}
	}

	diff := &SetDiff{}
	for _, e := range newItems {
		if _, ok := oldKeys[key(e)]; !ok {
			diff.Added = append(diff.Added, e)
		}
	}
	for _, e := range oldItems {
		if _, ok := newKeys[key(e)]; !ok {
			diff.Removed = append(diff.Removed, e)
		}
	}
	return diff
}

// SetDiffStrategy adapts DiffEntries to the monitor's snapshot contract:
// snapshots are JSON arrays of entries, normalized payloads are []Entry.
type SetDiffStrategy struct {
	Key KeyFunc
}

// Compare unpacks the previous snapshot, diffs it against the normalized
// entry list, and returns the new list as the snapshot to persist.
func (s *SetDiffStrategy) Compare(prev json.RawMessage, next any, _ time.Time) (ChangeSet, json.RawMessage, error) {
	entries, ok := next.([]Entry)
	if !ok {
		return nil, nil, fmt.Errorf("set-diff comparator: unexpected payload type %T", next)
	}

	var oldEntries []Entry
	if len(prev) > 0 {
		if err := json.Unmarshal(prev, &oldEntries); err != nil {
			return nil, nil, fmt.Errorf("decode previous snapshot: %w", err)
		}
	}

	snapshot, err := json.Marshal(entries)
	if err != nil {
		return nil, nil, fmt.Errorf("encode snapshot: %w", err)
	}

	diff := DiffEntries(oldEntries, entries, s.Key)
	if diff.Empty() {
		return nil, snapshot, nil
	}
	return diff, snapshot, nil
}
