package normalize

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rs/zerolog"

	"sourcewatch/internal/compare"
	"sourcewatch/internal/fetcher"
)

// multiSourcePayload is the wire shape of one sub-source contribution. The
// region may arrive either as prejoined text or as a list of lines.
type multiSourcePayload struct {
	Region      json.RawMessage `json:"region"`
	Identifiers []compare.Entry `json:"identifiers"`
}

// MultiSource normalizes several independent sub-sources into a composite
// state. A sub-source whose payload cannot be decoded is dropped from the
// result, which downstream treats exactly like a fetch failure: its previous
// state is patched in before comparison.
type MultiSource struct {
	logger zerolog.Logger
}

// NewMultiSource constructs a multi-source normalizer.
func NewMultiSource(logger zerolog.Logger) *MultiSource {
	return &MultiSource{logger: logger.With().Str("component", "multisource_normalizer").Logger()}
}

// Normalize builds a compare.MultiSourceState keyed by sub-source key.
func (n *MultiSource) Normalize(_ context.Context, results []fetcher.Result) (any, error) {
	state := compare.MultiSourceState{}
	for _, res := range results {
		var payload multiSourcePayload
		if err := json.Unmarshal(res.Body, &payload); err != nil {
			n.logger.Warn().Err(err).Str("source", res.Source.Key).Msg("dropping undecodable sub-source payload")
			continue
		}

		st := compare.SourceState{Identifiers: payload.Identifiers}
		if region, ok := decodeRegion(payload.Region); ok {
			st.Region = &region
		}
		if st.Region == nil && st.Identifiers == nil {
			n.logger.Warn().Str("source", res.Source.Key).Msg("sub-source payload carries neither region nor identifiers")
			continue
		}
		state[res.Source.Key] = st
	}
	return state, nil
}

// decodeRegion accepts either a string or an array of strings joined by
// newlines, the canonical form the diff renderer consumes.
func decodeRegion(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return strings.Join(list, "\n"), true
	}
	return "", false
}

var _ Normalizer = (*MultiSource)(nil)
