// Package normalize turns raw fetched payloads into canonical, comparable
// snapshots. Each source kind supplies its own Normalizer implementation.
package normalize

import (
	"context"
	"fmt"

	"sourcewatch/internal/fetcher"
)

// Normalizer converts the successful fetch results of one cycle into the
// comparator's input payload. Results are keyed implicitly by Source.Key;
// a sub-source that failed to fetch is simply absent from results.
type Normalizer interface {
	Normalize(ctx context.Context, results []fetcher.Result) (any, error)
}

// ParseError reports a malformed or unexpectedly shaped payload.
type ParseError struct {
	Source string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
