package monitor

import (
	"context"
	"time"

	"sourcewatch/internal/compare"
	"sourcewatch/internal/state"
)

// PriceRecorder persists every observed price sample so price history
// survives beyond the comparator's minimum-tracking snapshot.
type PriceRecorder struct {
	History state.PriceHistory
}

// Record appends the cycle's price observations; non-price payloads pass
// through untouched.
func (r *PriceRecorder) Record(ctx context.Context, monitor string, payload any, at time.Time) error {
	observations, ok := payload.([]compare.PriceObservation)
	if !ok || len(observations) == 0 {
		return nil
	}

	samples := make([]state.PriceSample, 0, len(observations))
	for _, obs := range observations {
		samples = append(samples, state.PriceSample{
			Monitor:    monitor,
			Item:       obs.Item,
			Field:      obs.Field,
			Price:      obs.Price,
			ObservedAt: at,
		})
	}
	return r.History.AppendPrices(ctx, samples)
}

var _ Recorder = (*PriceRecorder)(nil)
