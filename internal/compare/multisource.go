package compare

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// SourceState is the contribution of one sub-source to a composite snapshot.
// A nil field means the sub-source never supplied that field, which is
// distinct from an empty value.
type SourceState struct {
	Region      *string `json:"region,omitempty"`
	Identifiers []Entry `json:"identifiers,omitempty"`
}

// MultiSourceState maps sub-source key to its last known state. A key absent
// from a freshly normalized payload signals a failed sub-source, never a
// deletion.
type MultiSourceState map[string]SourceState

// SourceEvent is one detected change within a composite source.
type SourceEvent interface {
	sourceEvent()
	Describe() string
}

// RegionDiff records a textual change in a sub-source's region snapshot.
type RegionDiff struct {
	Source string
	Old    string
	New    string
}

func (RegionDiff) sourceEvent() {}

// Describe renders a one-line description of the event.
func (e RegionDiff) Describe() string {
	return fmt.Sprintf("%s: region list changed", e.Source)
}

// NewIdentifier records an identifier that appeared in a sub-source.
type NewIdentifier struct {
	Source string
	Entry  Entry
}

func (NewIdentifier) sourceEvent() {}

func (e NewIdentifier) Describe() string {
	return fmt.Sprintf("%s: added %s", e.Source, describeEntries([]Entry{e.Entry}))
}

// RemovedIdentifier records an identifier that disappeared from a sub-source.
type RemovedIdentifier struct {
	Source string
	Entry  Entry
}

func (RemovedIdentifier) sourceEvent() {}

func (e RemovedIdentifier) Describe() string {
	return fmt.Sprintf("%s: removed %s", e.Source, describeEntries([]Entry{e.Entry}))
}

// MultiSourceDiff aggregates all per-sub-source events of one cycle.
type MultiSourceDiff struct {
	Events []SourceEvent
}

// Empty reports whether any event was collected.
func (d *MultiSourceDiff) Empty() bool {
	return d == nil || len(d.Events) == 0
}

// Summary renders a one-line digest of the aggregated events.
func (d *MultiSourceDiff) Summary() string {
	if d.Empty() {
		return "no changes"
	}
	parts := make([]string, 0, len(d.Events))
	for _, ev := range d.Events {
		parts = append(parts, ev.Describe())
	}
	return strings.Join(parts, "; ")
}

// Patch overlays previous state onto a freshly normalized payload: every
// sub-source key (or field within a present key) that the new payload lacks
// is copied from prev. The patched copy is returned; inputs are not mutated.
// This must run before any diffing so a transient sub-source failure is never
// mistaken for removal.
func Patch(prev, next MultiSourceState) MultiSourceState {
	patched := make(MultiSourceState, len(prev)+len(next))
	for key, st := range next {
		patched[key] = st
	}
	for key, old := range prev {
		st, ok := patched[key]
		if !ok {
			patched[key] = old
			continue
		}
		if st.Region == nil && old.Region != nil {
			st.Region = old.Region
		}
		if st.Identifiers == nil && old.Identifiers != nil {
			st.Identifiers = old.Identifiers
		}
		patched[key] = st
	}
	return patched
}

// MultiSourceStrategy compares composite snapshots made of independent
// sub-sources, tolerating partial fetch failures via Patch.
type MultiSourceStrategy struct {
	Key KeyFunc
}

// Compare patches the normalized payload from the previous snapshot, diffs
// region text and identifier lists per sub-source, and returns the patched
// state as the snapshot to persist.
func (s *MultiSourceStrategy) Compare(prev json.RawMessage, next any, _ time.Time) (ChangeSet, json.RawMessage, error) {
	fresh, ok := next.(MultiSourceState)
	if !ok {
		return nil, nil, fmt.Errorf("multi-source comparator: unexpected payload type %T", next)
	}

	old := MultiSourceState{}
	if len(prev) > 0 {
		if err := json.Unmarshal(prev, &old); err != nil {
			return nil, nil, fmt.Errorf("decode previous snapshot: %w", err)
		}
	}

	patched := Patch(old, fresh)

	snapshot, err := json.Marshal(patched)
	if err != nil {
		return nil, nil, fmt.Errorf("encode snapshot: %w", err)
	}

	diff := s.diff(old, patched)
	if diff.Empty() {
		return nil, snapshot, nil
	}
	return diff, snapshot, nil
}

func (s *MultiSourceStrategy) diff(old, patched MultiSourceState) *MultiSourceDiff {
	diff := &MultiSourceDiff{}

	for _, key := range sortedKeys(patched) {
		st := patched[key]
		prev := old[key]

		if st.Region != nil {
			oldRegion := ""
			if prev.Region != nil {
				oldRegion = *prev.Region
			}
			if *st.Region != oldRegion {
				diff.Events = append(diff.Events, RegionDiff{Source: key, Old: oldRegion, New: *st.Region})
			}
		}

		if st.Identifiers != nil {
			ids := DiffEntries(prev.Identifiers, st.Identifiers, s.Key)
			for _, e := range ids.Added {
				diff.Events = append(diff.Events, NewIdentifier{Source: key, Entry: e})
			}
			for _, e := range ids.Removed {
				diff.Events = append(diff.Events, RemovedIdentifier{Source: key, Entry: e})
			}
		}
	}

	return diff
}

func sortedKeys(state MultiSourceState) []string {
	keys := make([]string, 0, len(state))
	for key := range state {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
