package normalize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"sourcewatch/internal/compare"
	"sourcewatch/internal/fetcher"
)

// pricePayload is the wire shape of a price feed: tracked items with one or
// more named numeric fields each. Prices may arrive as JSON numbers or as
// decimal strings.
type pricePayload struct {
	Items []priceItem `json:"items"`
}

type priceItem struct {
	ID     string                     `json:"id"`
	Name   string                     `json:"name"`
	Prices map[string]json.RawMessage `json:"prices"`
}

// Prices normalizes one or more price feeds into the hysteresis comparator's
// observation list. Multiple sources fan into a single list; a failed source
// simply contributes no observations, leaving its items' records untouched.
type Prices struct{}

// Normalize decodes every fetch result into compare.PriceObservation values.
func (Prices) Normalize(_ context.Context, results []fetcher.Result) (any, error) {
	if len(results) == 0 {
		return nil, &ParseError{Source: "prices", Err: errors.New("no fetch results")}
	}

	observations := make([]compare.PriceObservation, 0)
	for _, res := range results {
		var payload pricePayload
		if err := json.Unmarshal(res.Body, &payload); err != nil {
			return nil, &ParseError{Source: res.Source.Key, Err: err}
		}
		for _, item := range payload.Items {
			if item.ID == "" {
				return nil, &ParseError{Source: res.Source.Key, Err: errors.New("item without id")}
			}
			for _, field := range sortedFields(item.Prices) {
				price, err := decodePrice(item.Prices[field])
				if err != nil {
					return nil, &ParseError{Source: res.Source.Key, Err: fmt.Errorf("item %s field %s: %w", item.ID, field, err)}
				}
				observations = append(observations, compare.PriceObservation{
					Item:     item.ID,
					ItemName: item.Name,
					Field:    field,
					Price:    price,
				})
			}
		}
	}
	return observations, nil
}

func sortedFields(prices map[string]json.RawMessage) []string {
	fields := make([]string, 0, len(prices))
	for field := range prices {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

func decodePrice(raw json.RawMessage) (decimal.Decimal, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return decimal.NewFromString(s)
	}
	var f json.Number
	if err := json.Unmarshal(raw, &f); err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.NewFromString(f.String())
}

var _ Normalizer = Prices{}
