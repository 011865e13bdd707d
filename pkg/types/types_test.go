package types

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetentionPolicyCutoff(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		days    float64
		expect  time.Time
		expectD time.Duration
	}{
		{
			name:    "two weeks",
			days:    14,
			expect:  now.Add(-14 * 24 * time.Hour),
			expectD: 14 * 24 * time.Hour,
		},
		{
			name:    "fractional day",
			days:    0.5,
			expect:  now.Add(-12 * time.Hour),
			expectD: 12 * time.Hour,
		},
		{
			name:    "zero keeps nothing",
			days:    0,
			expect:  now,
			expectD: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := RetentionPolicy{DaysToKeepLocal: tt.days}
			assert.Equal(t, tt.expectD, p.MaxAge())
			assert.True(t, p.Cutoff(now).Equal(tt.expect))
		})
	}
}

func TestTargetFromConfig(t *testing.T) {
	cfg := &AppConfig{
		DataDir:          "/srv/media",
		MountBase:        "/mnt/clouddrive",
		RcloneRemote:     "gdrive",
		PathOnCloudDrive: "backup/encfs",
		Encfs6Config:     "/etc/cdt/encfs6.xml",
	}

	target := TargetFromConfig(cfg)

	assert.Equal(t, "clouddrive", target.Name)
	assert.Equal(t, "/mnt/clouddrive/acd-encrypted", target.RemoteEncryptedPath())
	assert.Equal(t, "/mnt/clouddrive/acd-decrypted", target.RemoteDecryptedPath())
	assert.Equal(t, "/mnt/clouddrive/local-encrypted", target.LocalEncryptedPath())
	assert.Equal(t, "/mnt/clouddrive/local-decrypted", target.LocalDecryptedPath())
	assert.Equal(t, "/mnt/clouddrive/acd-encrypted/backup/encfs", target.RemoteMountPath())
	assert.Equal(t, "gdrive:/", target.RemoteSpec())
	assert.Equal(t, DefaultMaxRetriesRemoteMount, target.MaxRetries)

	// Union outermost, rclone mount at the bottom of the stack.
	points := target.MountPoints()
	require.Len(t, points, 4)
	assert.Equal(t, "/srv/media", points[0])
	assert.Equal(t, "/mnt/clouddrive/acd-encrypted", points[3])
}

func TestTargetFromConfigRetriesOverride(t *testing.T) {
	cfg := &AppConfig{MountBase: "/mnt/x", MaxRetriesRemoteMount: 12}
	assert.Equal(t, 12, TargetFromConfig(cfg).MaxRetries)
}

func TestCacheRoot(t *testing.T) {
	cfg := &AppConfig{MountBase: "/mnt/clouddrive"}
	assert.Equal(t, "/mnt/clouddrive/local-decrypted", cfg.CacheRoot())
}

func TestMountStateString(t *testing.T) {
	assert.Equal(t, "unmounted", MountStateUnmounted.String())
	assert.Equal(t, "ready", MountStateReady.String())
	assert.Equal(t, "mount-failed", MountStateMountFailed.String())
	assert.Equal(t, "invalid", MountState(99).String())

	assert.True(t, MountStateReady.Terminal())
	assert.False(t, MountStateEncryptedMounting.Terminal())
	assert.False(t, MountStateUnmounting.Terminal())
}

func TestErrorMatching(t *testing.T) {
	err := error(&ErrMountUnavailable{MountPoint: "/mnt/x/acd-encrypted/backup", Attempts: 5})
	assert.True(t, (&ErrMountUnavailable{}).From(err))
	assert.False(t, (&ErrMountUnavailable{}).From(errors.New("something else")))
	assert.False(t, (&ErrMountUnavailable{}).From(nil))
	assert.Contains(t, err.Error(), "after 5 attempts")

	layerErr := error(&ErrEncryptionMountFailed{Layer: "reverse", MountPoint: "/mnt/x/local-encrypted"})
	assert.True(t, (&ErrEncryptionMountFailed{}).From(layerErr))
	assert.False(t, (&ErrEncryptionMountFailed{}).From(err))
}

func TestConfigValidationError(t *testing.T) {
	err := &ConfigValidationError{Missing: []string{"encfs_pass", "mount_base"}, Extra: []string{"bogus"}}
	assert.Contains(t, err.Error(), "missing required keys: encfs_pass, mount_base")
	assert.Contains(t, err.Error(), "unknown keys: bogus")
}

func TestSecretNeverRevealsValue(t *testing.T) {
	secret := NewSecret("super-secret-pass")
	require.False(t, secret.IsZero())

	assert.Equal(t, "[redacted]", secret.String())

	serialized, err := json.Marshal(secret)
	require.NoError(t, err)
	assert.NotContains(t, string(serialized), "super-secret-pass")

	buf, err := secret.Open()
	require.NoError(t, err)
	defer buf.Destroy()
	assert.Equal(t, "super-secret-pass", buf.String())
}

func TestSecretEmpty(t *testing.T) {
	secret := NewSecret("")
	assert.True(t, secret.IsZero())
	assert.Equal(t, "", secret.String())

	_, err := secret.Open()
	assert.Error(t, err)
}

func TestCycleReportFailed(t *testing.T) {
	report := CycleReport{
		Mounts: []MountOutcome{
			{Target: "a", State: MountStateReady},
			{Target: "b", State: MountStateMountFailed, Err: errors.New("boom"), Error: "boom"},
		},
	}

	require.Len(t, report.Failed(), 1)
	assert.Equal(t, "b", report.Failed()[0].Target)
	assert.False(t, report.AllFailed())
	assert.False(t, report.Ok())

	report.Mounts[0].Err = errors.New("also boom")
	assert.True(t, report.AllFailed())
}
