package clouddrive

import (
	"os/exec"

	"github.com/cloud-drive-tools/cdt/pkg/types"
)

// requiredBinaries are the external tools the mount and sync paths shell
// out to. rclone comes from config and may be an absolute path.
var requiredBinaries = []string{"encfs", "encfsctl", "fusermount", "unionfs-fuse"}

// CheckDependencies verifies every external binary resolves before any
// mount or sync work starts, so a missing tool fails fast instead of
// halfway through a mount sequence.
func CheckDependencies(cfg *types.AppConfig) error {
	binaries := append([]string{cfg.Rclone}, requiredBinaries...)
	for _, binary := range binaries {
		if binary == "" {
			continue
		}
		if _, err := exec.LookPath(binary); err != nil {
			return &types.ErrDependencyMissing{Binary: binary}
		}
	}
	return nil
}
