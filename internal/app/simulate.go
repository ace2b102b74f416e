package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"sourcewatch/internal/compare"
)

// SimulatePrices drives a synthetic price sequence through the hysteresis
// state machine and prints every resulting transition, so comparator tuning
// can be previewed without touching any live source.
func (a *App) SimulatePrices(_ context.Context, opts SimulateOptions) error {
	if len(opts.Prices) == 0 {
		return errors.New("at least one price sample required")
	}
	if opts.Step <= 0 {
		opts.Step = time.Hour
	}

	tracker := compare.Tracker{
		Tolerance:   decimal.NewFromFloat(opts.Tolerance),
		GracePeriod: opts.GracePeriod,
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "T\tPrice\tMin\tMinDate\tPending\tEvent")

	start := time.Now().UTC().Truncate(time.Hour)
	var rec *compare.PriceRecord
	for i, price := range opts.Prices {
		now := start.Add(time.Duration(i) * opts.Step)
		var tr *compare.PriceTransition
		rec, tr = tracker.Observe(rec, decimal.NewFromFloat(price), now)

		event := ""
		if tr != nil {
			event = string(tr.Kind)
		}
		pending := ""
		if rec.PendingExit != nil {
			pending = rec.PendingExit.Date.Format("15:04")
		}
		fmt.Fprintf(
			writer,
			"+%s\t%s\t%s\t%s\t%s\t%s\n",
			time.Duration(i)*opts.Step,
			rec.LastPrice,
			rec.MinPrice,
			rec.MinDate.Format(time.RFC3339),
			pending,
			event,
		)
	}

	return writer.Flush()
}
