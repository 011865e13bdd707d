package clouddrive

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v4/process"

	"github.com/cloud-drive-tools/cdt/pkg/runner"
	"github.com/cloud-drive-tools/cdt/pkg/types"
)

const (
	// unionWhiteoutDir is where unionfs-fuse records deletions made through
	// the merged view against the read-only remote branch.
	unionWhiteoutDir = ".unionfs-fuse"

	// whiteoutSuffix marks one deleted object inside the whiteout tree.
	whiteoutSuffix = "_HIDDEN~"
)

// NameEncoder resolves plaintext names to their encfs-encoded form so they
// can be addressed on the ciphertext side of the remote.
type NameEncoder interface {
	EncodeName(ctx context.Context, rootDir string, name string) (string, error)
}

// Sweeper runs the local cache cleanup that follows a successful upload.
type Sweeper interface {
	Sweep(ctx context.Context) (*types.EvictionReport, error)
}

// Uploader pushes local ciphertext to the cloud drive and reconciles
// unionfs whiteouts against the remote copy.
type Uploader struct {
	target  types.MountTarget
	rclone  string
	env     []string
	runner  runner.ProcessRunner
	encoder NameEncoder
	sweeper Sweeper

	// UploadRetry bounds the rclone copy attempts of one run.
	UploadRetry runner.RetryPolicy

	// DeleteRetry bounds the remote delete attempts per whiteout.
	DeleteRetry runner.RetryPolicy
}

// NewUploader wires an uploader for one target. The sweeper may be nil when
// the caller only reconciles deletes.
func NewUploader(cfg *types.AppConfig, target types.MountTarget, r runner.ProcessRunner, encoder NameEncoder, sweeper Sweeper) *Uploader {
	return &Uploader{
		target:      target,
		rclone:      cfg.Rclone,
		env:         cfg.ProxyEnv(),
		runner:      r,
		encoder:     encoder,
		sweeper:     sweeper,
		UploadRetry: runner.RetryPolicy{MaxAttempts: 5, Interval: 2 * time.Second},
		DeleteRetry: runner.RetryPolicy{MaxAttempts: 3, Interval: 30 * time.Second},
	}
}

// rcloneArgs places the shared flags right after the subcommand.
func (u *Uploader) rcloneArgs(subcommand string, rest ...string) []string {
	args := []string{subcommand}
	if u.target.RcloneConfigPath != "" {
		args = append(args, "--config", u.target.RcloneConfigPath)
	}
	return append(args, rest...)
}

// Upload reconciles pending deletes, copies the local encrypted branch to
// the cloud drive, then reclaims stale cache entries. Overlapping runs are
// refused via a pid-file guard.
func (u *Uploader) Upload(ctx context.Context) error {
	release, err := u.acquireUploadGuard()
	if err != nil {
		return err
	}
	defer release()

	if err := u.SyncDeletes(ctx); err != nil {
		log.Warn().Err(err).Msg("sync-deletes incomplete, continuing with upload")
	}

	if err := u.copyToRemote(ctx); err != nil {
		return err
	}

	if u.sweeper != nil {
		if _, err := u.sweeper.Sweep(ctx); err != nil {
			log.Warn().Err(err).Msg("post-upload cache sweep failed")
		}
	}
	return nil
}

func (u *Uploader) copyToRemote(ctx context.Context) error {
	localEncrypted := u.target.LocalEncryptedPath()
	entries, err := os.ReadDir(localEncrypted)
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", localEncrypted, err)
	}
	if len(entries) == 0 {
		log.Info().Str("path", localEncrypted).Msg("local encrypted branch is empty, nothing to upload")
		return nil
	}

	// The whiteout directory must never reach the remote; compute its
	// encrypted name so the copy can exclude it.
	exclude, err := u.encoder.EncodeName(ctx, u.target.RemoteEncryptedPath(), unionWhiteoutDir)
	if err != nil {
		return fmt.Errorf("cannot resolve whiteout exclude: %w", err)
	}

	dest := u.target.RemotePath()
	args := u.rcloneArgs("copy", "-v", "--exclude", "/"+exclude+"/*", localEncrypted, dest)

	attempt := 0
	err = runner.RetryOp(ctx, u.UploadRetry, func() error {
		attempt++
		if attempt > 1 {
			log.Warn().Int("attempt", attempt).Msg("some uploads failed, copying again")
		}
		return u.runner.Run(ctx, runner.CommandSpec{Path: u.rclone, Args: args, Env: u.env})
	})
	if err != nil {
		return fmt.Errorf("upload failed after %d attempts: %w", attempt, err)
	}

	log.Info().Str("source", localEncrypted).Str("dest", dest).Int("attempts", attempt).Msg("upload complete")
	return nil
}

// SyncDeletes reflects unionfs whiteouts onto the cloud drive: every object
// deleted through the merged view is removed from the remote, then the
// local whiteout is dropped. The whiteout tree is cleared only when every
// entry reconciled, so failed entries are retried on the next run.
func (u *Uploader) SyncDeletes(ctx context.Context) error {
	searchDir := filepath.Join(u.target.LocalDecryptedPath(), unionWhiteoutDir)
	info, err := os.Stat(searchDir)
	if errors.Is(err, fs.ErrNotExist) {
		log.Debug().Str("path", searchDir).Msg("no whiteout directory, nothing to reconcile")
		return nil
	}
	if err != nil {
		return fmt.Errorf("cannot stat %s: %w", searchDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", searchDir)
	}

	var failures []error
	reconciled := 0
	err = filepath.WalkDir(searchDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == searchDir {
				return walkErr
			}
			failures = append(failures, fmt.Errorf("%s: %w", path, walkErr))
			return nil
		}
		if path == searchDir || !strings.HasSuffix(d.Name(), whiteoutSuffix) {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := u.reconcileWhiteout(ctx, searchDir, path, d.IsDir()); err != nil {
			failures = append(failures, err)
		} else {
			reconciled++
		}
		if d.IsDir() {
			// The whole subtree was handled as one remote purge.
			return fs.SkipDir
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("whiteout walk failed: %w", err)
	}

	if len(failures) > 0 {
		log.Warn().Int("failed", len(failures)).Msg("keeping whiteout directory, some deletes did not reconcile")
		return errors.Join(failures...)
	}

	if err := os.RemoveAll(searchDir); err != nil {
		return fmt.Errorf("cannot clear whiteout directory: %w", err)
	}
	log.Info().Int("reconciled", reconciled).Msg("whiteouts reconciled with cloud drive")
	return nil
}

func (u *Uploader) reconcileWhiteout(ctx context.Context, searchDir string, path string, isDir bool) error {
	rel, err := filepath.Rel(searchDir, path)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	logical := strings.TrimSuffix(rel, whiteoutSuffix)

	encoded, err := u.encoder.EncodeName(ctx, u.target.RemoteEncryptedPath(), logical)
	if err != nil {
		return fmt.Errorf("cannot encode %s: %w", logical, err)
	}
	remotePath := u.target.RemotePath(encoded)

	probe := runner.CommandSpec{
		Path: u.rclone,
		Args: u.rcloneArgs("ls", "--max-depth", "1", remotePath),
		Env:  u.env,
	}
	if err := u.runner.Run(ctx, probe); err != nil {
		// Never made it to the remote; only the local whiteout remains.
		log.Info().Str("path", logical).Msg("deleted object not on cloud drive")
		return u.removeWhiteout(path, isDir)
	}

	subcommand := "delete"
	if isDir {
		subcommand = "purge"
	}
	err = runner.RetryOp(ctx, u.DeleteRetry, func() error {
		return u.runner.Run(ctx, runner.CommandSpec{
			Path: u.rclone,
			Args: u.rcloneArgs(subcommand, remotePath),
			Env:  u.env,
		})
	})
	if err != nil {
		return fmt.Errorf("cannot delete %s from cloud drive: %w", logical, err)
	}

	log.Info().Str("path", logical).Str("remote", remotePath).Msg("deleted from cloud drive")
	return u.removeWhiteout(path, isDir)
}

func (u *Uploader) removeWhiteout(path string, isDir bool) error {
	var err error
	if isDir {
		err = os.RemoveAll(path)
	} else {
		err = os.Remove(path)
	}
	if err != nil {
		return fmt.Errorf("cannot remove whiteout %s: %w", path, err)
	}
	return nil
}

// acquireUploadGuard takes the upload flock and writes this pid into the
// pid file. A live pid from a previous run refuses the upload even when the
// lock itself is free, which covers locks dropped by a crashed holder whose
// process still runs under a supervisor restart.
func (u *Uploader) acquireUploadGuard() (func(), error) {
	pidPath := u.target.UploadPidPath()
	if err := os.MkdirAll(filepath.Dir(pidPath), 0755); err != nil {
		return nil, fmt.Errorf("cannot prepare upload guard: %w", err)
	}

	fileLock := flock.New(pidPath)
	locked, err := fileLock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("cannot acquire upload lock %s: %w", pidPath, err)
	}
	if !locked {
		return nil, &types.ErrUploadActive{PidFile: pidPath, Pid: readPidFile(pidPath)}
	}

	if pid := readPidFile(pidPath); pid > 0 && int(pid) != os.Getpid() {
		if alive, _ := process.PidExists(pid); alive {
			_ = fileLock.Unlock()
			return nil, &types.ErrUploadActive{PidFile: pidPath, Pid: pid}
		}
		log.Debug().Int32("pid", pid).Str("path", pidPath).Msg("stale upload pid file, taking over")
	}

	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
		_ = fileLock.Unlock()
		return nil, fmt.Errorf("cannot write upload pid file: %w", err)
	}

	return func() {
		if err := os.Remove(pidPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.Warn().Err(err).Str("path", pidPath).Msg("cannot remove upload pid file")
		}
		_ = fileLock.Unlock()
	}, nil
}

func readPidFile(path string) int32 {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0
	}
	return int32(pid)
}
