package normalize

import (
	"context"
	"encoding/json"
	"errors"

	"sourcewatch/internal/compare"
	"sourcewatch/internal/fetcher"
)

// entryPayload accepts both a bare JSON array of entries and an object
// wrapping them under "items".
type entryPayload struct {
	Items []compare.Entry `json:"items"`
}

func decodeEntries(source string, body []byte) ([]compare.Entry, error) {
	var entries []compare.Entry
	if err := json.Unmarshal(body, &entries); err == nil {
		return entries, nil
	}

	var wrapped entryPayload
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, &ParseError{Source: source, Err: err}
	}
	if wrapped.Items == nil {
		return nil, &ParseError{Source: source, Err: errors.New("payload has no items")}
	}
	return wrapped.Items, nil
}

// EntryList normalizes a single source into a flat entry collection for the
// set-diff comparator.
type EntryList struct{}

// Normalize decodes the sole fetch result into []compare.Entry.
func (EntryList) Normalize(_ context.Context, results []fetcher.Result) (any, error) {
	if len(results) == 0 {
		return nil, &ParseError{Source: "entries", Err: errors.New("no fetch results")}
	}
	res := results[0]
	entries, err := decodeEntries(res.Source.Key, res.Body)
	if err != nil {
		return nil, err
	}
	return entries, nil
}

var _ Normalizer = EntryList{}
