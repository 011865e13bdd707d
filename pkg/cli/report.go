package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/cloud-drive-tools/cdt/pkg/types"
)

func printCycleReport(report types.CycleReport) error {
	if jsonOutput {
		return outputJSON(report)
	}
	fmt.Print(formatCycleReport(report))
	return nil
}

func printEvictionReport(report *types.EvictionReport) error {
	if jsonOutput {
		return outputJSON(report)
	}
	fmt.Print(formatEvictionReport(report))
	return nil
}

func formatCycleReport(report types.CycleReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Cycle %s finished in %s\n", report.CycleID, report.Duration.Round(time.Millisecond))
	for _, outcome := range report.Mounts {
		if outcome.Failed() {
			fmt.Fprintf(&b, "  %s: %s (%s)\n", outcome.Target, outcome.State, outcome.Error)
		} else {
			fmt.Fprintf(&b, "  %s: %s in %s\n", outcome.Target, outcome.State, outcome.Duration.Round(time.Millisecond))
		}
	}
	if report.Sweep != nil {
		b.WriteString(formatEvictionReport(report.Sweep))
	}
	if report.SweepErr != "" {
		fmt.Fprintf(&b, "Sweep failed: %s\n", report.SweepErr)
	}
	return b.String()
}

func formatEvictionReport(report *types.EvictionReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Sweep of %s: scanned %d, evicted %d (~%d MB), kept %d fresh and %d in use, pruned %d empty dirs\n",
		report.Root, report.Scanned, report.Evicted, report.EvictedBytes/1024/1024,
		report.SkippedFresh, report.SkippedInUse, report.PrunedDirs)
	for _, evictionErr := range report.Errors {
		fmt.Fprintf(&b, "  failed: %s (%s)\n", evictionErr.Path, evictionErr.Reason)
	}
	return b.String()
}
