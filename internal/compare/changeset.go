package compare

import (
	"fmt"
	"strings"
)

// ChangeSet is the structured outcome of a comparison. A nil ChangeSet, or a
// non-nil one whose Empty method reports true, means nothing worth reporting
// changed. A produced ChangeSet is immutable and consumed exactly once by the
// notify+persist step.
type ChangeSet interface {
	Empty() bool
	// Summary returns a short single-line description suitable for audit
	// logs and reduced-fidelity fallback notifications.
	Summary() string
}

// Entry is a discrete item identified by a composite key. Items of this shape
// carry no comparable value, only presence.
type Entry struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// KeyFunc derives the comparison key for an Entry.
type KeyFunc func(Entry) string

// KeyByID keys entries by their identifier alone.
func KeyByID(e Entry) string { return e.ID }

// KeyByIDName keys entries by identifier and display name combined, so a
// rename shows up as a remove+add pair.
func KeyByIDName(e Entry) string { return e.ID + "\x1f" + e.Name }

func describeEntries(entries []Entry) string {
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Name != "" {
			parts = append(parts, fmt.Sprintf("%s (%s)", e.Name, e.ID))
			continue
		}
		parts = append(parts, e.ID)
	}
	return strings.Join(parts, ", ")
}
