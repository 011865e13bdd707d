package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/cloud-drive-tools/cdt/pkg/types"
)

// Mounter is the mount side of a cycle: it owns per-target state and
// serializes transitions on each target.
type Mounter interface {
	EnsureReady(ctx context.Context, target types.MountTarget) error
	State(target types.MountTarget) types.MountState
}

// Sweeper runs one cache eviction pass.
type Sweeper interface {
	Sweep(ctx context.Context) (*types.EvictionReport, error)
}

const defaultParallelism = 4

// Orchestrator composes one cycle: bring every target to ready, then sweep
// the cache once. It holds no state of its own between cycles; mount state
// lives in the Mounter and cache state on disk.
type Orchestrator struct {
	mounter Mounter
	sweeper Sweeper
	targets []types.MountTarget

	// Parallelism bounds how many targets mount concurrently.
	Parallelism int
}

func New(mounter Mounter, sweeper Sweeper, targets []types.MountTarget) *Orchestrator {
	return &Orchestrator{
		mounter: mounter,
		sweeper: sweeper,
		targets: targets,
	}
}

// RunCycle processes every target, collecting failures instead of stopping
// at the first one, then runs the sweep regardless of mount outcomes.
func (o *Orchestrator) RunCycle(ctx context.Context) types.CycleReport {
	report := types.CycleReport{
		CycleID:   uuid.New(),
		StartedAt: time.Now(),
		Mounts:    make([]types.MountOutcome, len(o.targets)),
	}
	log.Info().Str("cycle_id", report.CycleID.String()).Int("targets", len(o.targets)).Msg("cycle started")

	parallelism := o.Parallelism
	if parallelism <= 0 {
		parallelism = defaultParallelism
	}

	var group errgroup.Group
	group.SetLimit(parallelism)
	for i, target := range o.targets {
		i, target := i, target
		group.Go(func() error {
			startedAt := time.Now()
			err := o.mounter.EnsureReady(ctx, target)
			outcome := types.MountOutcome{
				Target:   target.Name,
				State:    o.mounter.State(target),
				Duration: time.Since(startedAt),
			}
			if err != nil {
				outcome.Err = err
				outcome.Error = err.Error()
				log.Error().Err(err).Str("target", target.Name).Msg("mount target failed")
			}
			report.Mounts[i] = outcome
			return nil
		})
	}
	_ = group.Wait()

	// The sweep runs even when every mount failed: the local cache exists
	// independently of the mounts.
	sweepReport, err := o.sweeper.Sweep(ctx)
	report.Sweep = sweepReport
	if err != nil {
		report.SweepErr = err.Error()
		log.Error().Err(err).Msg("cache sweep failed")
	}

	report.Duration = time.Since(report.StartedAt)
	log.Info().
		Str("cycle_id", report.CycleID.String()).
		Int("failed_targets", len(report.Failed())).
		Dur("duration", report.Duration).
		Msg("cycle finished")
	return report
}

// RunLoop runs cycles on a fixed interval until the context is cancelled.
// The first cycle starts immediately.
func (o *Orchestrator) RunLoop(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		o.RunCycle(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
