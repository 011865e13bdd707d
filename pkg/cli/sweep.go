package cli

import (
	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Evict stale entries from the local cache",
	Long: `sweep walks the local plaintext cache and removes files whose last
access is older than the retention window. Files still held open by any
process are never removed. The merged view keeps serving removed files
from the remote copy.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}

		report, err := a.engine.Sweep(signalContext())
		if err != nil {
			return err
		}
		return printEvictionReport(report)
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}
