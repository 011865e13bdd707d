package mount

import (
	"github.com/cloud-drive-tools/cdt/pkg/runner"
	"github.com/cloud-drive-tools/cdt/pkg/types"
)

// rcloneMountSpec builds the foreground rclone mount command for the remote
// ciphertext layer. The mount is read-only: all writes land in the local
// branch of the union and reach the remote via upload.
func rcloneMountSpec(cfg *types.AppConfig, target types.MountTarget) runner.CommandSpec {
	args := []string{"mount"}
	if target.RcloneConfigPath != "" {
		args = append(args, "--config", target.RcloneConfigPath)
	}
	args = append(args,
		target.RemoteSpec(),
		target.RemoteEncryptedPath(),
		"--allow-other",
		"--read-only",
		"--umask", "000",
		"-vv",
		"--fast-list",
		"--dir-cache-time", "24h",
	)

	return runner.CommandSpec{
		Path: cfg.Rclone,
		Args: args,
		Env:  cfg.ProxyEnv(),
	}
}
