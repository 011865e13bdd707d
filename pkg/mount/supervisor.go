package mount

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cloud-drive-tools/cdt/pkg/runner"
	"github.com/cloud-drive-tools/cdt/pkg/types"
)

const defaultRemountDelay = 2 * time.Second

// Supervisor keeps the remote rclone mount alive. It runs the mount in the
// foreground, and whenever the process exits it pauses briefly and remounts
// - unless the unmount lock file has appeared, which is teardown's signal
// that the exit was intentional.
type Supervisor struct {
	cfg    *types.AppConfig
	target types.MountTarget
	runner runner.ProcessRunner
	prober Prober

	// RemountDelay overrides the pause between remount attempts.
	RemountDelay time.Duration
}

func NewSupervisor(cfg *types.AppConfig, r runner.ProcessRunner, prober Prober) *Supervisor {
	return &Supervisor{
		cfg:    cfg,
		target: types.TargetFromConfig(cfg),
		runner: r,
		prober: prober,
	}
}

func (s *Supervisor) Run(ctx context.Context) error {
	lockPath := s.target.UnmountLockPath()
	delay := s.RemountDelay
	if delay <= 0 {
		delay = defaultRemountDelay
	}

	for {
		if _, err := os.Stat(lockPath); err == nil {
			log.Info().Str("lock", lockPath).Msg("unmount requested, supervisor exiting")
			if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
				log.Warn().Err(err).Str("lock", lockPath).Msg("failed to remove unmount lock file")
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		// A previous rclone may have died and left its mount table entry
		// behind.
		if err := unmountPoint(ctx, s.runner, s.prober, s.target.RemoteEncryptedPath()); err != nil {
			log.Warn().Err(err).Msg("failed to clear stale remote mount")
		}

		log.Info().
			Str("remote", s.target.RcloneRemote).
			Str("mount_point", s.target.RemoteEncryptedPath()).
			Msg("running cloud storage mount in the foreground")

		if err := s.runForeground(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error().Err(err).Msg("cloud storage mount exited with error")
		} else {
			log.Info().Msg("cloud storage mount exited, checking whether to remount")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (s *Supervisor) runForeground(ctx context.Context) error {
	spec := rcloneMountSpec(s.cfg, s.target)
	spec.Stdout = log.Logger
	spec.Stderr = log.Logger

	handle, err := s.runner.Start(spec)
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() { done <- handle.Wait() }()

	select {
	case <-ctx.Done():
		_ = handle.Signal(syscall.SIGTERM)
		<-done
		return ctx.Err()
	case err := <-done:
		return err
	}
}

// SupervisorLauncher spawns the detached remote-mount child that runs a
// Supervisor. The child inherits its configuration through CONFIG_JSON; the
// passphrase is omitted because the remote layer only handles ciphertext.
type SupervisorLauncher struct {
	cfg    *types.AppConfig
	runner runner.ProcessRunner
}

func NewSupervisorLauncher(cfg *types.AppConfig, r runner.ProcessRunner) *SupervisorLauncher {
	return &SupervisorLauncher{cfg: cfg, runner: r}
}

func (l *SupervisorLauncher) LaunchRemoteMount(target types.MountTarget) (int, error) {
	exe, err := l.cfg.ExecutablePath()
	if err != nil {
		return 0, fmt.Errorf("cannot resolve supervisor executable: %w", err)
	}

	payload := *l.cfg
	payload.EncfsPass = ""
	configJSON, err := json.Marshal(payload)
	if err != nil {
		return 0, err
	}

	spec := runner.CommandSpec{
		Path: exe,
		Args: []string{"remote-mount"},
		Env:  []string{"CONFIG_JSON=" + string(configJSON)},
	}

	logFile, err := openSupervisorLog()
	if err != nil {
		log.Warn().Err(err).Msg("supervisor log unavailable, output discarded")
	} else {
		spec.Stdout = logFile
		spec.Stderr = logFile
		defer logFile.Close()
	}

	pid, err := l.runner.StartDetached(spec)
	if err != nil {
		return 0, err
	}

	log.Info().
		Int("pid", pid).
		Str("mount_point", target.RemoteEncryptedPath()).
		Msg("remote mount supervisor started")
	return pid, nil
}

func openSupervisorLog() (*os.File, error) {
	path := filepath.Join("/var/log", "cdt-remote-mount.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		path = filepath.Join(os.TempDir(), "cdt-remote-mount.log")
		f, err = os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	}
	return f, err
}
