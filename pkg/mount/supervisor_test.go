package mount

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloud-drive-tools/cdt/pkg/runner"
	"github.com/cloud-drive-tools/cdt/pkg/types"
)

func supervisorConfig(t *testing.T) *types.AppConfig {
	t.Helper()
	base := t.TempDir()
	cfg := &types.AppConfig{
		DataDir:          filepath.Join(base, "data"),
		MountBase:        filepath.Join(base, "mounts"),
		RcloneRemote:     "gdrive",
		PathOnCloudDrive: "backup/encfs",
		Rclone:           "/usr/bin/rclone",
	}
	require.NoError(t, os.MkdirAll(cfg.MountBase, 0o755))
	return cfg
}

func TestSupervisorExitsWhenLockPresent(t *testing.T) {
	cfg := supervisorConfig(t)
	target := types.TargetFromConfig(cfg)
	require.NoError(t, os.WriteFile(target.UnmountLockPath(), nil, 0o644))

	fake := runner.NewFakeRunner()
	s := NewSupervisor(cfg, fake, newFakeProber())

	require.NoError(t, s.Run(context.Background()))

	assert.Empty(t, fake.Calls())
	_, err := os.Stat(target.UnmountLockPath())
	assert.True(t, os.IsNotExist(err))
}

func TestSupervisorRemountsUntilLock(t *testing.T) {
	cfg := supervisorConfig(t)
	target := types.TargetFromConfig(cfg)

	fake := runner.NewFakeRunner()
	prober := newFakeProber()
	prober.setMounted(target.RemoteEncryptedPath(), true)

	mounts := 0
	fake.OnRun = func(spec runner.CommandSpec) error {
		if filepath.Base(spec.Path) == "rclone" {
			mounts++
			if mounts == 3 {
				require.NoError(t, os.WriteFile(target.UnmountLockPath(), nil, 0o644))
			}
		}
		return nil
	}

	s := NewSupervisor(cfg, fake, prober)
	s.RemountDelay = time.Millisecond

	require.NoError(t, s.Run(context.Background()))

	assert.Equal(t, 3, fake.CallCount("rclone mount"))
	// Each round clears the stale mount first.
	assert.Equal(t, 3, fake.CallCount("fusermount -u"))
	_, err := os.Stat(target.UnmountLockPath())
	assert.True(t, os.IsNotExist(err))
}

func TestSupervisorMountCommand(t *testing.T) {
	cfg := supervisorConfig(t)
	cfg.RcloneConfigPath = "/etc/cdt/rclone.conf"
	target := types.TargetFromConfig(cfg)

	spec := rcloneMountSpec(cfg, target)
	assert.Equal(t, "/usr/bin/rclone", spec.Path)

	line := strings.Join(spec.Args, " ")
	assert.Contains(t, line, "mount --config /etc/cdt/rclone.conf gdrive:/ "+target.RemoteEncryptedPath())
	assert.Contains(t, line, "--allow-other")
	assert.Contains(t, line, "--read-only")
	assert.Contains(t, line, "--umask 000")
	assert.Contains(t, line, "--fast-list")
	assert.Contains(t, line, "--dir-cache-time 24h")
}

func TestSupervisorStopsOnCancelledContext(t *testing.T) {
	cfg := supervisorConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewSupervisor(cfg, runner.NewFakeRunner(), newFakeProber())
	err := s.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLauncherPassesConfigWithoutPassphrase(t *testing.T) {
	cfg := supervisorConfig(t)
	cfg.EncfsPass = "super-secret"
	cfg.CloudDriveToolsPath = "/usr/local/bin/cdt"
	target := types.TargetFromConfig(cfg)

	fake := runner.NewFakeRunner()
	launcher := NewSupervisorLauncher(cfg, fake)

	pid, err := launcher.LaunchRemoteMount(target)
	require.NoError(t, err)
	assert.Equal(t, fake.DetachedPid, pid)

	calls := fake.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "/usr/local/bin/cdt", calls[0].Path)
	assert.Equal(t, []string{"remote-mount"}, calls[0].Args)

	var configEnv string
	for _, entry := range calls[0].Env {
		if strings.HasPrefix(entry, "CONFIG_JSON=") {
			configEnv = strings.TrimPrefix(entry, "CONFIG_JSON=")
		}
	}
	require.NotEmpty(t, configEnv)
	assert.NotContains(t, configEnv, "super-secret")

	var payload types.AppConfig
	require.NoError(t, json.Unmarshal([]byte(configEnv), &payload))
	assert.Equal(t, cfg.MountBase, payload.MountBase)
	assert.Empty(t, payload.EncfsPass)
}
