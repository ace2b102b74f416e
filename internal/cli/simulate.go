package cli

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"sourcewatch/internal/app"
)

var (
	simulatePrices []float64
	simulateTol    float64
	simulateGrace  time.Duration
	simulateStep   time.Duration
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-prices",
	Short: "Preview hysteresis behaviour for a synthetic price sequence",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(simulatePrices) == 0 {
			return errors.New("--prices must be provided")
		}

		opts := app.SimulateOptions{
			Prices:      simulatePrices,
			Tolerance:   simulateTol,
			GracePeriod: simulateGrace,
			Step:        simulateStep,
		}
		return getApp().SimulatePrices(cmd.Context(), opts)
	},
}

func init() {
	simulateCmd.Flags().Float64SliceVar(&simulatePrices, "prices", nil, "Comma-separated price sequence")
	simulateCmd.Flags().Float64Var(&simulateTol, "tolerance", 500, "Tolerance band (absolute)")
	simulateCmd.Flags().DurationVar(&simulateGrace, "grace", 12*time.Hour, "Grace period before an exit is confirmed")
	simulateCmd.Flags().DurationVar(&simulateStep, "step", time.Hour, "Simulated time between samples")
}
