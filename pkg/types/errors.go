package types

import (
	"fmt"
	"strings"
)

// ErrMountUnavailable indicates the remote rclone mount never exposed the
// expected cloud path within the configured number of readiness attempts.
type ErrMountUnavailable struct {
	MountPoint string
	Attempts   int
}

func (e *ErrMountUnavailable) Error() string {
	return fmt.Sprintf("mount unavailable: %s not ready after %d attempts", e.MountPoint, e.Attempts)
}

func (e *ErrMountUnavailable) From(err error) bool {
	if err == nil {
		return false
	}
	return strings.HasPrefix(err.Error(), "mount unavailable: ")
}

// ErrEncryptionMountFailed indicates one of the encfs layers (or the union
// on top of them) could not be established.
type ErrEncryptionMountFailed struct {
	Layer      string
	MountPoint string
}

func (e *ErrEncryptionMountFailed) Error() string {
	return fmt.Sprintf("encryption mount failed: %s layer at %s", e.Layer, e.MountPoint)
}

func (e *ErrEncryptionMountFailed) From(err error) bool {
	if err == nil {
		return false
	}
	return strings.HasPrefix(err.Error(), "encryption mount failed: ")
}

// ErrMountBusy indicates a teardown could not proceed because a mount point
// is still held open by other processes.
type ErrMountBusy struct {
	MountPoint string
}

func (e *ErrMountBusy) Error() string {
	return fmt.Sprintf("mount busy: %s", e.MountPoint)
}

func (e *ErrMountBusy) From(err error) bool {
	if err == nil {
		return false
	}
	return strings.HasPrefix(err.Error(), "mount busy: ")
}

// ConfigValidationError reports a config file whose key surface does not
// match the known schema.
type ConfigValidationError struct {
	Missing []string
	Extra   []string
}

func (e *ConfigValidationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing required keys: %s", strings.Join(e.Missing, ", ")))
	}
	if len(e.Extra) > 0 {
		parts = append(parts, fmt.Sprintf("unknown keys: %s", strings.Join(e.Extra, ", ")))
	}
	if len(parts) == 0 {
		return "invalid config"
	}
	return "invalid config: " + strings.Join(parts, "; ")
}

// ErrDependencyMissing indicates a required external binary is not on PATH.
type ErrDependencyMissing struct {
	Binary string
}

func (e *ErrDependencyMissing) Error() string {
	return fmt.Sprintf("dependency missing: %s not found in PATH", e.Binary)
}

func (e *ErrDependencyMissing) From(err error) bool {
	if err == nil {
		return false
	}
	return strings.HasPrefix(err.Error(), "dependency missing: ")
}

// ErrSweepActive indicates another eviction sweep already holds the sweep
// lock for this cache root.
type ErrSweepActive struct {
	LockPath string
}

func (e *ErrSweepActive) Error() string {
	return fmt.Sprintf("sweep already active: lock held at %s", e.LockPath)
}

func (e *ErrSweepActive) From(err error) bool {
	if err == nil {
		return false
	}
	return strings.HasPrefix(err.Error(), "sweep already active: ")
}

// ErrUploadActive indicates a previous upload run is still alive according
// to its pid file.
type ErrUploadActive struct {
	PidFile string
	Pid     int32
}

func (e *ErrUploadActive) Error() string {
	return fmt.Sprintf("upload already active: pid %d (from %s)", e.Pid, e.PidFile)
}

func (e *ErrUploadActive) From(err error) bool {
	if err == nil {
		return false
	}
	return strings.HasPrefix(err.Error(), "upload already active: ")
}
