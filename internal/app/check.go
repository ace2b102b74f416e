package app

import (
	"context"
	"errors"
	"fmt"
)

// Check runs a single cycle for one monitor, or for all of them, and exits.
func (a *App) Check(ctx context.Context, opts CheckOptions) error {
	if !opts.All && opts.Monitor == "" {
		return errors.New("either --monitor or --all must be provided")
	}

	st, closeStores, err := a.resolveStores(ctx)
	if err != nil {
		return err
	}
	defer closeStores()

	registry, err := a.buildRegistry(st)
	if err != nil {
		return err
	}

	names := registry.Names()
	if !opts.All {
		if _, ok := registry.Get(opts.Monitor); !ok {
			return fmt.Errorf("unknown monitor %q", opts.Monitor)
		}
		names = []string{opts.Monitor}
	}

	failed := 0
	for _, name := range names {
		mon, _ := registry.Get(name)
		if err := mon.RunCycle(ctx); err != nil {
			failed++
			a.Logger.Error().Err(err).Str("monitor", name).Msg("check failed")
			continue
		}
		a.Logger.Info().Str("monitor", name).Msg("check completed")
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d checks failed", failed, len(names))
	}
	return nil
}
