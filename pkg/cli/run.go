package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var runInterval time.Duration

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a mount-and-sweep cycle, or keep cycling on an interval",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		if err := a.checkDependencies(); err != nil {
			return err
		}

		orc := a.orchestrator()
		ctx := signalContext()

		if runInterval > 0 {
			if err := orc.RunLoop(ctx, runInterval); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		}

		report := orc.RunCycle(ctx)
		if err := printCycleReport(report); err != nil {
			return err
		}
		if failed := report.Failed(); len(failed) > 0 {
			return fmt.Errorf("%d of %d targets failed to mount", len(failed), len(report.Mounts))
		}
		return nil
	},
}

func init() {
	runCmd.Flags().DurationVar(&runInterval, "interval", 0, "keep running cycles this far apart (0 runs once)")
	rootCmd.AddCommand(runCmd)
}
