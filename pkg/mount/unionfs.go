package mount

import (
	"context"
	"fmt"

	"github.com/cloud-drive-tools/cdt/pkg/runner"
)

// mountUnion merges the local (writable) and remote (read-only) plaintext
// branches into the data directory. Copy-on-write keeps every modification
// local; deletions become whiteout objects under .unionfs-fuse/ that
// sync-deletes later reconciles against the remote.
func mountUnion(ctx context.Context, r runner.ProcessRunner, localBranch string, remoteBranch string, mountPoint string) error {
	return r.Run(ctx, runner.CommandSpec{
		Path: "unionfs-fuse",
		Args: []string{
			"-o", "cow,allow_other",
			fmt.Sprintf("%s=RW:%s=RO", localBranch, remoteBranch),
			mountPoint,
		},
	})
}
