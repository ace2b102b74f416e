package normalize

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"sourcewatch/internal/compare"
	"sourcewatch/internal/fetcher"
)

func result(key string, body string) fetcher.Result {
	return fetcher.Result{Source: fetcher.Source{Key: key}, Body: []byte(body)}
}

func TestEntryListBareArray(t *testing.T) {
	payload, err := EntryList{}.Normalize(context.Background(), []fetcher.Result{
		result("main", `[{"id":"1","name":"One"},{"id":"2"}]`),
	})
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}

	entries := payload.([]compare.Entry)
	if len(entries) != 2 || entries[0].Name != "One" {
		t.Fatalf("unexpected entries %#v", entries)
	}
}

func TestEntryListWrappedItems(t *testing.T) {
	payload, err := EntryList{}.Normalize(context.Background(), []fetcher.Result{
		result("main", `{"items":[{"id":"a"}]}`),
	})
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if entries := payload.([]compare.Entry); len(entries) != 1 || entries[0].ID != "a" {
		t.Fatalf("unexpected entries %#v", payload)
	}
}

func TestEntryListMalformedPayload(t *testing.T) {
	_, err := EntryList{}.Normalize(context.Background(), []fetcher.Result{
		result("main", `{"unexpected":true}`),
	})
	if err == nil {
		t.Fatal("payload without items must fail")
	}
}

func TestMultiSourceKeysByResult(t *testing.T) {
	n := NewMultiSource(zerolog.Nop())

	payload, err := n.Normalize(context.Background(), []fetcher.Result{
		result("primary", `{"region":["US","CA"],"identifiers":[{"id":"1"}]}`),
		result("alternate", `{"region":"DE"}`),
	})
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}

	state := payload.(compare.MultiSourceState)
	if len(state) != 2 {
		t.Fatalf("expected two sub-sources, got %#v", state)
	}
	if got := state["primary"].Region; got == nil || *got != "US\nCA" {
		t.Fatalf("region list must join with newlines, got %v", got)
	}
	if got := state["alternate"].Region; got == nil || *got != "DE" {
		t.Fatalf("plain string region must pass through, got %v", got)
	}
	if len(state["primary"].Identifiers) != 1 {
		t.Fatalf("identifiers lost: %#v", state["primary"])
	}
	if state["alternate"].Identifiers != nil {
		t.Fatal("absent identifiers must stay nil so the comparator patches them")
	}
}

func TestMultiSourceDropsUndecodableSubSource(t *testing.T) {
	n := NewMultiSource(zerolog.Nop())

	payload, err := n.Normalize(context.Background(), []fetcher.Result{
		result("primary", `{"region":"US"}`),
		result("broken", `<html>gateway error</html>`),
	})
	if err != nil {
		t.Fatalf("one bad sub-source must not fail the batch: %v", err)
	}

	state := payload.(compare.MultiSourceState)
	if _, ok := state["broken"]; ok {
		t.Fatal("undecodable sub-source must be dropped, not included")
	}
	if _, ok := state["primary"]; !ok {
		t.Fatal("healthy sub-source must survive")
	}
}

func TestPricesNumbersAndStrings(t *testing.T) {
	payload, err := Prices{}.Normalize(context.Background(), []fetcher.Result{
		result("store", `{"items":[{"id":"mbp14","name":"MacBook Pro 14","prices":{"offer":99900,"normal":"109900.50"}}]}`),
	})
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}

	observations := payload.([]compare.PriceObservation)
	if len(observations) != 2 {
		t.Fatalf("expected two observations, got %#v", observations)
	}

	// Fields come out sorted for deterministic comparison.
	if observations[0].Field != "normal" || observations[1].Field != "offer" {
		t.Fatalf("fields must be sorted, got %#v", observations)
	}
	if !observations[0].Price.Equal(decimal.RequireFromString("109900.50")) {
		t.Fatalf("string price decoded wrong: %s", observations[0].Price)
	}
	if !observations[1].Price.Equal(decimal.NewFromInt(99900)) {
		t.Fatalf("numeric price decoded wrong: %s", observations[1].Price)
	}
	if observations[0].ItemName != "MacBook Pro 14" {
		t.Fatalf("item name lost: %#v", observations[0])
	}
}

func TestPricesMultipleSourcesFanIn(t *testing.T) {
	payload, err := Prices{}.Normalize(context.Background(), []fetcher.Result{
		result("a", `{"items":[{"id":"x","prices":{"offer":1}}]}`),
		result("b", `{"items":[{"id":"y","prices":{"offer":2}}]}`),
	})
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if observations := payload.([]compare.PriceObservation); len(observations) != 2 {
		t.Fatalf("both sources must contribute, got %#v", observations)
	}
}

func TestPricesRejectsItemWithoutID(t *testing.T) {
	_, err := Prices{}.Normalize(context.Background(), []fetcher.Result{
		result("store", `{"items":[{"prices":{"offer":1}}]}`),
	})
	if err == nil {
		t.Fatal("an item without an id must fail normalization")
	}
}

func TestPricesRejectsUnparsablePrice(t *testing.T) {
	_, err := Prices{}.Normalize(context.Background(), []fetcher.Result{
		result("store", `{"items":[{"id":"x","prices":{"offer":"not a number"}}]}`),
	})
	if err == nil {
		t.Fatal("an unparsable price must fail normalization")
	}
}
