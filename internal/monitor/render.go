package monitor

import (
	"fmt"
	"strings"
	"time"

	"sourcewatch/internal/compare"
	"sourcewatch/internal/diffrender"
	"sourcewatch/internal/notify"
)

// renderMessage turns a change set into the transport message: a bounded,
// human-readable body plus a one-line summary for the fallback form.
func renderMessage(name string, changes compare.ChangeSet, renderer *diffrender.Renderer) notify.Message {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]\n", name)

	switch cs := changes.(type) {
	case *compare.SetDiff:
		renderSetDiff(&b, cs)
	case *compare.MultiSourceDiff:
		renderMultiSourceDiff(&b, cs, renderer)
	case *compare.PriceDiff:
		renderPriceDiff(&b, cs)
	default:
		b.WriteString(changes.Summary())
	}

	return notify.Message{
		Monitor: name,
		Summary: changes.Summary(),
		Body:    renderer.Bound(strings.TrimRight(b.String(), "\n")),
	}
}

func renderSetDiff(b *strings.Builder, diff *compare.SetDiff) {
	for _, e := range diff.Added {
		fmt.Fprintf(b, "+ %s\n", entryLabel(e))
	}
	for _, e := range diff.Removed {
		fmt.Fprintf(b, "- %s\n", entryLabel(e))
	}
}

func renderMultiSourceDiff(b *strings.Builder, diff *compare.MultiSourceDiff, renderer *diffrender.Renderer) {
	for _, ev := range diff.Events {
		switch e := ev.(type) {
		case compare.RegionDiff:
			fmt.Fprintf(b, "%s:\n", e.Describe())
			if rendered := renderer.Render(e.Old, e.New); rendered != "" {
				b.WriteString(rendered)
				b.WriteByte('\n')
			}
		default:
			b.WriteString(ev.Describe())
			b.WriteByte('\n')
		}
	}
}

func renderPriceDiff(b *strings.Builder, diff *compare.PriceDiff) {
	for _, group := range diff.ByItem() {
		name := group[0].ItemName
		if name == "" {
			name = group[0].Item
		}
		fmt.Fprintf(b, "%s\n", name)
		for _, tr := range group {
			switch tr.Kind {
			case compare.TransitionNewLow:
				fmt.Fprintf(b, "  %s: new low %s (was %s)\n", tr.Field, tr.Price, tr.PrevMin)
			case compare.TransitionBackToLow:
				fmt.Fprintf(b, "  %s: back to low %s (last seen %s)\n", tr.Field, tr.Price, tr.MinDate.UTC().Format(time.RFC3339))
			}
		}
	}
}

func entryLabel(e compare.Entry) string {
	if e.Name != "" {
		return fmt.Sprintf("%s (%s)", e.Name, e.ID)
	}
	return e.ID
}
