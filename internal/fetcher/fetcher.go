package fetcher

import (
	"context"
	"fmt"
	"time"
)

// Source describes one fetchable sub-source of a monitor.
type Source struct {
	// Key identifies the sub-source within its monitor's composite
	// snapshot, e.g. "primary" / "alternate".
	Key string
	// URL is the HTTP endpoint; ignored by non-HTTP fetchers.
	URL string
	// Header carries extra request headers.
	Header map[string]string
}

// Result is the raw payload of one successfully fetched source.
type Result struct {
	Source    Source
	Body      []byte
	FetchedAt time.Time
}

// Fetcher retrieves raw bytes for a source. Implementations must respect ctx
// and bound their own timeouts and retries.
type Fetcher interface {
	Fetch(ctx context.Context, src Source) ([]byte, error)
}

// FetchError reports a failed retrieval: timeout, network error, or a
// non-success status.
type FetchError struct {
	Source  string
	URL     string
	Status  int
	Timeout bool
	Err     error
}

func (e *FetchError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("fetch %s: timed out", e.Source)
	case e.Status != 0:
		return fmt.Sprintf("fetch %s: unexpected status %d", e.Source, e.Status)
	default:
		return fmt.Sprintf("fetch %s: %v", e.Source, e.Err)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }
