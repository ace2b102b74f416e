package cli

import (
	"github.com/spf13/cobra"

	"sourcewatch/internal/app"
)

var (
	checkMonitor string
	checkAll     bool
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run a single check cycle and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.CheckOptions{
			Monitor: checkMonitor,
			All:     checkAll,
		}
		return getApp().Check(cmd.Context(), opts)
	},
}

func init() {
	checkCmd.Flags().StringVar(&checkMonitor, "monitor", "", "Name of the monitor to check")
	checkCmd.Flags().BoolVar(&checkAll, "all", false, "Check every configured monitor")
}
