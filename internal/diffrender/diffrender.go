// Package diffrender produces bounded, human-readable line diffs between two
// texts. Rendering is pure: identical inputs always yield identical output.
package diffrender

import (
	"strings"
	"unicode/utf8"
)

// LineKind classifies one line of a computed diff.
type LineKind int

const (
	// Context lines are present in both texts.
	Context LineKind = iota
	// Added lines exist only in the new text.
	Added
	// Removed lines exist only in the old text.
	Removed
)

// Line is one entry of a line-level diff.
type Line struct {
	Text string
	Kind LineKind
}

// Options tune rendering; zero values fall back to defaults.
type Options struct {
	// ContextLines is how many unchanged lines to keep adjacent to each
	// change; longer runs collapse into an ellipsis marker.
	ContextLines int
	// MaxLen is the hard budget on the rendered string, imposed by the
	// notification transport.
	MaxLen int
	// EllipsisMarker replaces collapsed context runs.
	EllipsisMarker string
	// TruncationMarker terminates output that hit MaxLen.
	TruncationMarker string
}

const (
	defaultContextLines     = 3
	defaultMaxLen           = 3500
	defaultEllipsisMarker   = "..."
	defaultTruncationMarker = "... [truncated]"
)

// Renderer renders diffs under a fixed output budget.
type Renderer struct {
	opts Options
}

// New constructs a Renderer, applying defaults for unset options.
func New(opts Options) *Renderer {
	if opts.ContextLines <= 0 {
		opts.ContextLines = defaultContextLines
	}
	if opts.MaxLen <= 0 {
		opts.MaxLen = defaultMaxLen
	}
	if opts.EllipsisMarker == "" {
		opts.EllipsisMarker = defaultEllipsisMarker
	}
	if opts.TruncationMarker == "" {
		opts.TruncationMarker = defaultTruncationMarker
	}
	return &Renderer{opts: opts}
}

// Diff computes the line-level diff between two texts via the longest common
// subsequence of their lines.
func Diff(oldText, newText string) []Line {
	oldLines := splitLines(oldText)
	newLines := splitLines(newText)

	// lcs[i][j] = LCS length of oldLines[i:] and newLines[j:].
	lcs := make([][]int, len(oldLines)+1)
	for i := range lcs {
		lcs[i] = make([]int, len(newLines)+1)
	}
	for i := len(oldLines) - 1; i >= 0; i-- {
		for j := len(newLines) - 1; j >= 0; j-- {
			if oldLines[i] == newLines[j] {
				lcs[i][j] = lcs[i+1][j+1] + 1
			} else if lcs[i+1][j] >= lcs[i][j+1] {
				lcs[i][j] = lcs[i+1][j]
			} else {
				lcs[i][j] = lcs[i][j+1]
			}
		}
	}

	lines := make([]Line, 0, len(oldLines)+len(newLines))
	i, j := 0, 0
	for i < len(oldLines) && j < len(newLines) {
		switch {
		case oldLines[i] == newLines[j]:
			lines = append(lines, Line{Text: oldLines[i], Kind: Context})
			i++
			j++
		case lcs[i+1][j] >= lcs[i][j+1]:
			lines = append(lines, Line{Text: oldLines[i], Kind: Removed})
			i++
		default:
			lines = append(lines, Line{Text: newLines[j], Kind: Added})
			j++
		}
	}
	for ; i < len(oldLines); i++ {
		lines = append(lines, Line{Text: oldLines[i], Kind: Removed})
	}
	for ; j < len(newLines); j++ {
		lines = append(lines, Line{Text: newLines[j], Kind: Added})
	}
	return lines
}

// Render diffs two texts and returns the marked-up, context-windowed,
// length-bounded report. An empty string means the texts are identical.
func (r *Renderer) Render(oldText, newText string) string {
	lines := Diff(oldText, newText)
	changed := false
	for _, line := range lines {
		if line.Kind != Context {
			changed = true
			break
		}
	}
	if !changed {
		return ""
	}

	kept := r.collapseContext(lines)

	var b strings.Builder
	for idx, line := range kept {
		if idx > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
	}
	return r.truncate(b.String())
}

// collapseContext drops context lines further than ContextLines away from
// any change, inserting a single ellipsis marker per collapsed run, and
// prefixes every surviving line with its kind marker.
func (r *Renderer) collapseContext(lines []Line) []string {
	keep := make([]bool, len(lines))
	for idx, line := range lines {
		if line.Kind == Context {
			continue
		}
		lo := idx - r.opts.ContextLines
		if lo < 0 {
			lo = 0
		}
		hi := idx + r.opts.ContextLines
		if hi >= len(lines) {
			hi = len(lines) - 1
		}
		for k := lo; k <= hi; k++ {
			keep[k] = true
		}
	}

	out := make([]string, 0, len(lines))
	skipping := false
	for idx, line := range lines {
		if !keep[idx] {
			if !skipping {
				out = append(out, r.opts.EllipsisMarker)
				skipping = true
			}
			continue
		}
		skipping = false
		out = append(out, marker(line.Kind)+line.Text)
	}
	return out
}

// Bound applies the transport length budget to arbitrary text, appending the
// truncation marker when it cuts.
func (r *Renderer) Bound(s string) string {
	return r.truncate(s)
}

func (r *Renderer) truncate(s string) string {
	if len(s) <= r.opts.MaxLen {
		return s
	}
	cut := r.opts.MaxLen - len(r.opts.TruncationMarker)
	if cut < 0 {
		cut = 0
	}
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + r.opts.TruncationMarker
}

func marker(kind LineKind) string {
	switch kind {
	case Added:
		return "+ "
	case Removed:
		return "- "
	default:
		return "  "
	}
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(strings.TrimRight(s, "\n"), "\n")
}
