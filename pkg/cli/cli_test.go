package cli

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/cloud-drive-tools/cdt/pkg/types"
)

func writeConfigFile(t *testing.T, overrides map[string]any) string {
	t.Helper()
	base := t.TempDir()
	settings := map[string]any{
		"data_dir":            filepath.Join(base, "data"),
		"days_to_keep_local":  14,
		"encfs6_config":       filepath.Join(base, "encfs6.xml"),
		"encfs_pass":          "super-secret-pass",
		"mount_base":          base,
		"path_on_cloud_drive": "media",
		"rclone":              "rclone",
		"rclone_remote":       "gdrive",
	}
	for key, value := range overrides {
		if value == nil {
			delete(settings, key)
			continue
		}
		settings[key] = value
	}

	data, err := yaml.Marshal(settings)
	require.NoError(t, err)
	path := filepath.Join(base, "vars.yaml")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestLoadAppWiresComponents(t *testing.T) {
	t.Setenv("CONFIG_PATH", writeConfigFile(t, nil))
	t.Setenv("CONFIG_JSON", "")

	a, err := loadApp()
	require.NoError(t, err)

	assert.Empty(t, a.cfg.EncfsPass, "passphrase sealed away from the config struct")
	assert.False(t, a.secret.IsZero())
	assert.Equal(t, "gdrive", a.target.RcloneRemote)
	assert.NotNil(t, a.mounts)
	assert.NotNil(t, a.engine)
	assert.NotNil(t, a.uploader())
	assert.NotNil(t, a.orchestrator())
}

func TestLoadAppRejectsIncompleteConfig(t *testing.T) {
	t.Setenv("CONFIG_PATH", writeConfigFile(t, map[string]any{"rclone_remote": nil}))
	t.Setenv("CONFIG_JSON", "")

	_, err := loadApp()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required keys")
	assert.Contains(t, err.Error(), "rclone_remote")
}

func TestLoadAppRejectsUnknownKeys(t *testing.T) {
	t.Setenv("CONFIG_PATH", writeConfigFile(t, map[string]any{"rclone_verbose": true}))
	t.Setenv("CONFIG_JSON", "")

	_, err := loadApp()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown keys")
	assert.Contains(t, err.Error(), "rclone_verbose")
}

func TestLoadManagerRedactsSecrets(t *testing.T) {
	t.Setenv("CONFIG_PATH", writeConfigFile(t, nil))
	t.Setenv("CONFIG_JSON", "")

	manager, err := loadManager()
	require.NoError(t, err)

	printed := manager.Print()
	assert.Contains(t, printed, "encfs_pass -> [redacted]")
	assert.NotContains(t, printed, "super-secret-pass")
}

func TestRootRegistersCommands(t *testing.T) {
	names := map[string]bool{}
	for _, cmd := range rootCmd.Commands() {
		names[cmd.Name()] = true
	}

	for _, name := range []string{
		"mount", "unmount", "remote-mount", "run", "sweep",
		"upload", "sync-deletes", "show-encoded-path", "config",
	} {
		assert.True(t, names[name], "command %s registered", name)
	}
}

func TestFormatCycleReport(t *testing.T) {
	report := types.CycleReport{
		CycleID:  uuid.MustParse("7d444840-9dc0-11d1-b245-5ffdce74fad2"),
		Duration: 1500 * time.Millisecond,
		Mounts: []types.MountOutcome{
			{Target: "media", State: types.MountStateReady, Duration: 1200 * time.Millisecond},
			{
				Target: "backup",
				State:  types.MountStateMountFailed,
				Err:    errors.New("boom"),
				Error:  "mount unavailable: /mnt/backup/acd-encrypted not ready after 5 attempts",
			},
		},
		Sweep: &types.EvictionReport{
			Root:         "/mnt/media/local-decrypted",
			Scanned:      10,
			Evicted:      2,
			EvictedBytes: 5 << 20,
			SkippedFresh: 7,
			SkippedInUse: 1,
		},
	}

	out := formatCycleReport(report)
	assert.Contains(t, out, "media: ready in 1.2s")
	assert.Contains(t, out, "backup: mount-failed (mount unavailable")
	assert.Contains(t, out, "scanned 10, evicted 2 (~5 MB)")
}

func TestFormatEvictionReportListsErrors(t *testing.T) {
	report := &types.EvictionReport{
		Root:    "/mnt/media/local-decrypted",
		Scanned: 3,
		Errors: []types.EvictionError{
			{Path: "/mnt/media/local-decrypted/stuck", Reason: "permission denied"},
		},
	}

	out := formatEvictionReport(report)
	assert.Contains(t, out, "failed: /mnt/media/local-decrypted/stuck (permission denied)")
}
