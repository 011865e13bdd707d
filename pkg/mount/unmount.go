package mount

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/cloud-drive-tools/cdt/pkg/runner"
)

// unmountPoint detaches one FUSE mount point. Unmounting a path that is not
// mounted is a no-op, which keeps teardown idempotent.
func unmountPoint(ctx context.Context, r runner.ProcessRunner, prober Prober, mountPoint string) error {
	if !prober.IsMountPoint(mountPoint) {
		log.Debug().Str("mount_point", mountPoint).Msg("not mounted, skipping unmount")
		return nil
	}

	log.Info().Str("mount_point", mountPoint).Msg("unmounting")
	return r.Run(ctx, runner.CommandSpec{
		Path: "fusermount",
		Args: []string{"-u", mountPoint},
	})
}
