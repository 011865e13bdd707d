package types

import (
	"os"
	"path/filepath"
	"time"
)

const (
	// Directory names created under mount_base. These match the layout used
	// by the ACDTools-era shell scripts so existing deployments keep their
	// encrypted data where it already lives.
	RemoteEncryptedDirName = "acd-encrypted"
	RemoteDecryptedDirName = "acd-decrypted"
	LocalEncryptedDirName  = "local-encrypted"
	LocalDecryptedDirName  = "local-decrypted"

	DefaultMaxRetriesRemoteMount = 5
)

// AppConfig is the full configuration surface for cdt. The keys mirror the
// vars.yaml file consumed by earlier revisions of the tool; different
// deployments ship different subsets of the optional keys, so only the core
// mount keys are treated as required.
type AppConfig struct {
	CloudDriveToolsPath   string  `key:"cloud_drive_tools_path" json:"cloud_drive_tools_path,omitempty" yaml:"cloud_drive_tools_path,omitempty"`
	DataDir               string  `key:"data_dir" json:"data_dir" yaml:"data_dir"`
	DaysToKeepLocal       float64 `key:"days_to_keep_local" json:"days_to_keep_local" yaml:"days_to_keep_local"`
	DebugMode             bool    `key:"debug" json:"debug,omitempty" yaml:"debug,omitempty"`
	Encfs6Config          string  `key:"encfs6_config" json:"encfs6_config" yaml:"encfs6_config"`
	EncfsPass             string  `key:"encfs_pass" json:"encfs_pass,omitempty" yaml:"-"`
	HTTPProxy             string  `key:"http_proxy" json:"http_proxy,omitempty" yaml:"http_proxy,omitempty"`
	HTTPSProxy            string  `key:"https_proxy" json:"https_proxy,omitempty" yaml:"https_proxy,omitempty"`
	MaxRetriesRemoteMount int     `key:"max_retries_remote_mount" json:"max_retries_remote_mount" yaml:"max_retries_remote_mount"`
	MountBase             string  `key:"mount_base" json:"mount_base" yaml:"mount_base"`
	PathOnCloudDrive      string  `key:"path_on_cloud_drive" json:"path_on_cloud_drive" yaml:"path_on_cloud_drive"`
	Plexdrive             string  `key:"plexdrive" json:"plexdrive,omitempty" yaml:"plexdrive,omitempty"`
	PrettyLogs            bool    `key:"pretty_logs" json:"pretty_logs,omitempty" yaml:"pretty_logs,omitempty"`
	Rclone                string  `key:"rclone" json:"rclone" yaml:"rclone"`
	RcloneConfigPath      string  `key:"rclone_config_path" json:"rclone_config_path,omitempty" yaml:"rclone_config_path,omitempty"`
	RcloneRemote          string  `key:"rclone_remote" json:"rclone_remote" yaml:"rclone_remote"`
}

// RequiredConfigKeys are the keys every deployment has carried since the
// first release. ConfigManager refuses to start when any of them is absent.
var RequiredConfigKeys = []string{
	"data_dir",
	"days_to_keep_local",
	"encfs6_config",
	"encfs_pass",
	"mount_base",
	"path_on_cloud_drive",
	"rclone",
	"rclone_remote",
}

// OptionalConfigKeys came and went across releases. They are accepted from
// any config file; `plexdrive` is parsed but no longer drives anything.
var OptionalConfigKeys = []string{
	"cloud_drive_tools_path",
	"debug",
	"http_proxy",
	"https_proxy",
	"max_retries_remote_mount",
	"plexdrive",
	"pretty_logs",
	"rclone_config_path",
}

// SecretConfigKeys are redacted from any printed or serialized view of the
// configuration.
var SecretConfigKeys = []string{"encfs_pass"}

// RetentionPolicy is the single knob of the cache eviction engine: how many
// days a locally cached file may go untouched before it is reclaimed.
// Fractional days are allowed.
type RetentionPolicy struct {
	DaysToKeepLocal float64 `json:"days_to_keep_local"`
}

// MaxAge returns the retention window as a duration.
func (p RetentionPolicy) MaxAge() time.Duration {
	return time.Duration(p.DaysToKeepLocal * 24 * float64(time.Hour))
}

// Cutoff returns the oldest last-access time a file may have at `now`
// without becoming eligible for eviction.
func (p RetentionPolicy) Cutoff(now time.Time) time.Time {
	return now.Add(-p.MaxAge())
}

// Retention derives the eviction policy from the configuration.
func (c *AppConfig) Retention() RetentionPolicy {
	return RetentionPolicy{DaysToKeepLocal: c.DaysToKeepLocal}
}

// CacheRoot is the directory tree swept by the eviction engine: the
// plaintext local branch of the union. Files removed here fall through to
// the (authoritative) remote copy in the merged view.
func (c *AppConfig) CacheRoot() string {
	return filepath.Join(c.MountBase, LocalDecryptedDirName)
}

// ProxyEnv returns the proxy environment entries to inject into
// subprocesses, when configured.
func (c *AppConfig) ProxyEnv() []string {
	var env []string
	if c.HTTPProxy != "" {
		env = append(env, "http_proxy="+c.HTTPProxy)
	}
	if c.HTTPSProxy != "" {
		env = append(env, "https_proxy="+c.HTTPSProxy)
	}
	return env
}

// ExecutablePath resolves the cdt binary used for the detached remote-mount
// child: the configured cloud_drive_tools_path when present, otherwise the
// running executable.
func (c *AppConfig) ExecutablePath() (string, error) {
	if c.CloudDriveToolsPath != "" {
		return c.CloudDriveToolsPath, nil
	}
	return os.Executable()
}
