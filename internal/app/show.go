package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"
)

// Show prints recent change records.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show change history")
	}
	if closeStore != nil {
		defer closeStore()
	}

	records, err := store.ListRecentChanges(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(os.Stdout, "no changes recorded")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tMonitor\tDelivered\tSummary")

	for _, rec := range records {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%t\t%s\n",
			rec.CreatedAt.UTC().Format(time.RFC3339),
			rec.Monitor,
			rec.Delivered,
			sanitizeInline(rec.Summary),
		)
	}

	writer.Flush()
	return nil
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
