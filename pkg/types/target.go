package types

import (
	"path"
	"path/filepath"
)

// MountTarget carries everything the mount state machine needs to bring one
// layered mount online. All paths are derived from mount_base so that a
// single config cannot produce targets whose layers interleave.
type MountTarget struct {
	Name             string `json:"name"`
	MountBase        string `json:"mount_base"`
	DataDir          string `json:"data_dir"`
	RcloneRemote     string `json:"rclone_remote"`
	PathOnCloudDrive string `json:"path_on_cloud_drive"`
	Encfs6Config     string `json:"encfs6_config"`
	RcloneConfigPath string `json:"rclone_config_path,omitempty"`
	MaxRetries       int    `json:"max_retries_remote_mount"`
}

// TargetFromConfig derives the canonical mount target of a configuration.
func TargetFromConfig(c *AppConfig) MountTarget {
	retries := c.MaxRetriesRemoteMount
	if retries <= 0 {
		retries = DefaultMaxRetriesRemoteMount
	}

	return MountTarget{
		Name:             filepath.Base(c.MountBase),
		MountBase:        c.MountBase,
		DataDir:          c.DataDir,
		RcloneRemote:     c.RcloneRemote,
		PathOnCloudDrive: c.PathOnCloudDrive,
		Encfs6Config:     c.Encfs6Config,
		RcloneConfigPath: c.RcloneConfigPath,
		MaxRetries:       retries,
	}
}

// RemoteEncryptedPath is the rclone FUSE mount point holding ciphertext
// straight from the remote.
func (t MountTarget) RemoteEncryptedPath() string {
	return filepath.Join(t.MountBase, RemoteEncryptedDirName)
}

// RemoteDecryptedPath is the encfs view decrypting the remote ciphertext.
func (t MountTarget) RemoteDecryptedPath() string {
	return filepath.Join(t.MountBase, RemoteDecryptedDirName)
}

// LocalEncryptedPath is the reverse-encfs view exposing local plaintext as
// ciphertext for upload.
func (t MountTarget) LocalEncryptedPath() string {
	return filepath.Join(t.MountBase, LocalEncryptedDirName)
}

// LocalDecryptedPath is the local plaintext cache branch of the union.
func (t MountTarget) LocalDecryptedPath() string {
	return filepath.Join(t.MountBase, LocalDecryptedDirName)
}

// RemoteMountPath is the directory inside the rclone mount that must become
// visible before the encfs layers may be stacked on top.
func (t MountTarget) RemoteMountPath() string {
	return filepath.Join(t.RemoteEncryptedPath(), t.PathOnCloudDrive)
}

// RemoteSpec is the rclone remote:path argument for the mount.
func (t MountTarget) RemoteSpec() string {
	return t.RcloneRemote + ":/"
}

// RemotePath is the rclone remote:path argument for the cloud-drive
// directory this target syncs with, optionally extended by sub-elements.
func (t MountTarget) RemotePath(elem ...string) string {
	return t.RcloneRemote + ":" + path.Join(append([]string{t.PathOnCloudDrive}, elem...)...)
}

// MountPoints lists every FUSE mount point of the target, outermost layer
// first. The union sits on top; the rclone mount is the bottom of the stack.
func (t MountTarget) MountPoints() []string {
	return []string{
		t.DataDir,
		t.LocalEncryptedPath(),
		t.RemoteDecryptedPath(),
		t.RemoteEncryptedPath(),
	}
}

// Directories lists every directory the target needs on disk before any
// mount is attempted.
func (t MountTarget) Directories() []string {
	return []string{
		t.RemoteEncryptedPath(),
		t.RemoteDecryptedPath(),
		t.LocalEncryptedPath(),
		t.LocalDecryptedPath(),
		t.DataDir,
	}
}

// UnmountLockPath is the handshake file between teardown and the remote
// mount supervisor. While it exists the supervisor exits instead of
// remounting.
func (t MountTarget) UnmountLockPath() string {
	return filepath.Join(t.MountBase, ".cdt-unmount")
}

// UploadPidPath is the pid file guarding against overlapping upload runs.
func (t MountTarget) UploadPidPath() string {
	return filepath.Join(t.MountBase, ".cdt-upload.pid")
}
