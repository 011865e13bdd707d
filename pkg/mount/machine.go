package mount

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cloud-drive-tools/cdt/pkg/common"
	"github.com/cloud-drive-tools/cdt/pkg/runner"
	"github.com/cloud-drive-tools/cdt/pkg/types"
)

// Launcher starts the detached remote mount supervisor for a target.
type Launcher interface {
	LaunchRemoteMount(target types.MountTarget) (int, error)
}

type Options struct {
	// ReadyInterval is the pause between remote readiness probes.
	ReadyInterval time.Duration

	// HandshakeWait is how long teardown gives the supervisor to notice
	// the unmount lock file before removing it.
	HandshakeWait time.Duration

	// ProbeTimeout bounds the responsiveness probe on existing mounts.
	ProbeTimeout time.Duration

	// UnmountRetry bounds retries of a busy unmount.
	UnmountRetry runner.RetryPolicy
}

func (o Options) withDefaults() Options {
	if o.ReadyInterval <= 0 {
		o.ReadyInterval = 5 * time.Second
	}
	if o.HandshakeWait <= 0 {
		o.HandshakeWait = 6 * time.Second
	}
	if o.ProbeTimeout <= 0 {
		o.ProbeTimeout = 10 * time.Second
	}
	if o.UnmountRetry.MaxAttempts <= 0 {
		o.UnmountRetry = runner.RetryPolicy{MaxAttempts: 3, Interval: time.Second}
	}
	return o
}

// Machine drives one target through the layered mount sequence: remote
// ciphertext mount, the two encfs views, then the union on top. All state
// transitions for a target are serialized behind its mutex; the in-process
// state is reconciled against OS probes on every call because mounts live
// and die outside this process.
type Machine struct {
	target types.MountTarget
	runner runner.ProcessRunner
	prober Prober
	encfs  *EncfsMounter
	launch Launcher
	opts   Options

	mu    sync.Mutex
	state types.MountState
}

func NewMachine(target types.MountTarget, r runner.ProcessRunner, prober Prober, encfs *EncfsMounter, launch Launcher, opts Options) *Machine {
	return &Machine{
		target: target,
		runner: r,
		prober: prober,
		encfs:  encfs,
		launch: launch,
		opts:   opts.withDefaults(),
		state:  types.MountStateUnmounted,
	}
}

func (m *Machine) Target() types.MountTarget {
	return m.target
}

func (m *Machine) State() types.MountState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// EnsureReady brings the target to Ready. Already-healthy layers are left
// alone, so a call against a fully mounted, responsive target runs no
// commands at all.
func (m *Machine) EnsureReady(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == types.MountStateReady && m.unionHealthy() {
		return nil
	}

	if err := m.prepareDirectories(); err != nil {
		m.state = types.MountStateMountFailed
		return err
	}

	if err := m.ensureRemote(ctx); err != nil {
		m.state = types.MountStateMountFailed
		return err
	}
	m.state = types.MountStateRemoteMounted

	if err := m.ensureEncryptionLayers(ctx); err != nil {
		m.state = types.MountStateMountFailed
		return err
	}

	if err := m.ensureUnion(ctx); err != nil {
		m.state = types.MountStateMountFailed
		return err
	}

	m.state = types.MountStateReady
	log.Info().Str("target", m.target.Name).Str("data_dir", m.target.DataDir).Msg("mount target ready")
	return nil
}

// Release tears the stack down outermost first. "Not mounted" is a no-op;
// real unmount failures are logged and collected but never stop the
// remaining layers from being detached. The state ends Unmounted
// unconditionally.
func (m *Machine) Release(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state = types.MountStateUnmounting
	log.Info().Str("target", m.target.Name).Msg("unmounting all mount points")

	var errs []error
	unmount := func(mountPoint string) {
		err := runner.RetryOp(ctx, m.opts.UnmountRetry, func() error {
			return unmountPoint(ctx, m.runner, m.prober, mountPoint)
		})
		if err != nil {
			log.Error().Err(err).Str("mount_point", mountPoint).Msg("unmount failed")
			errs = append(errs, err)
		}
	}

	unmount(m.target.DataDir)

	// Handshake with the supervisor: the lock file tells it the rclone
	// exit it is about to observe was intentional.
	lockPath := m.target.UnmountLockPath()
	if err := os.WriteFile(lockPath, nil, 0o644); err != nil {
		log.Warn().Err(err).Str("lock", lockPath).Msg("failed to write unmount lock file")
	}

	unmount(m.target.RemoteEncryptedPath())

	select {
	case <-ctx.Done():
	case <-time.After(m.opts.HandshakeWait):
	}

	if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("lock", lockPath).Msg("failed to remove unmount lock file")
	}

	unmount(m.target.RemoteDecryptedPath())
	unmount(m.target.LocalEncryptedPath())

	m.state = types.MountStateUnmounted
	return errors.Join(errs...)
}

func (m *Machine) unionHealthy() bool {
	return m.prober.IsMountPoint(m.target.DataDir) &&
		m.prober.Responsive(m.target.DataDir, m.opts.ProbeTimeout)
}

func (m *Machine) remoteHealthy() bool {
	return m.prober.IsMountPoint(m.target.RemoteEncryptedPath()) &&
		m.prober.PathExists(m.target.RemoteMountPath()) &&
		m.prober.Responsive(m.target.RemoteEncryptedPath(), m.opts.ProbeTimeout)
}

func (m *Machine) prepareDirectories() error {
	for _, dir := range m.target.Directories() {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("cannot create %s: %w", dir, err)
		}
	}
	return nil
}

func (m *Machine) ensureRemote(ctx context.Context) error {
	if m.remoteHealthy() {
		return nil
	}

	m.state = types.MountStateRemoteMounting

	// A dead rclone can leave a stale, unresponsive mount table entry.
	if m.prober.IsMountPoint(m.target.RemoteEncryptedPath()) {
		if err := unmountPoint(ctx, m.runner, m.prober, m.target.RemoteEncryptedPath()); err != nil {
			log.Warn().Err(err).Msg("failed to clear stale remote mount")
		}
	}

	if _, err := m.launch.LaunchRemoteMount(m.target); err != nil {
		return fmt.Errorf("cannot start remote mount supervisor: %w", err)
	}

	remotePath := m.target.RemoteMountPath()
	policy := runner.RetryPolicy{MaxAttempts: m.target.MaxRetries, Interval: m.opts.ReadyInterval}
	attempts, err := runner.WaitReady(ctx, policy, func() bool {
		if m.prober.PathExists(remotePath) {
			return true
		}
		log.Info().Str("path", remotePath).Msg("remote mount not visible yet, waiting")
		return false
	})
	if err != nil {
		if errors.Is(err, runner.ErrNotReady) {
			return &types.ErrMountUnavailable{MountPoint: remotePath, Attempts: attempts}
		}
		return err
	}
	return nil
}

func (m *Machine) ensureEncryptionLayers(ctx context.Context) error {
	m.state = types.MountStateEncryptedMounting

	if !m.prober.IsMountPoint(m.target.LocalEncryptedPath()) {
		log.Info().Str("mount_point", m.target.LocalEncryptedPath()).Msg("mounting local encrypted filesystem")
		if err := m.encfs.MountReverse(ctx, m.target.LocalDecryptedPath(), m.target.LocalEncryptedPath()); err != nil {
			log.Error().Err(err).Msg("reverse encfs mount failed")
			return &types.ErrEncryptionMountFailed{Layer: "local-reverse", MountPoint: m.target.LocalEncryptedPath()}
		}
	}

	if !m.prober.IsMountPoint(m.target.RemoteDecryptedPath()) {
		log.Info().Str("mount_point", m.target.RemoteDecryptedPath()).Msg("mounting cloud decrypted filesystem")
		if err := m.encfs.MountForward(ctx, m.target.RemoteMountPath(), m.target.RemoteDecryptedPath()); err != nil {
			log.Error().Err(err).Msg("forward encfs mount failed")
			return &types.ErrEncryptionMountFailed{Layer: "remote-decrypt", MountPoint: m.target.RemoteDecryptedPath()}
		}
	}
	return nil
}

func (m *Machine) ensureUnion(ctx context.Context) error {
	if m.prober.IsMountPoint(m.target.DataDir) {
		return nil
	}

	log.Info().Str("mount_point", m.target.DataDir).Msg("mounting union filesystem")
	if err := mountUnion(ctx, m.runner, m.target.LocalDecryptedPath(), m.target.RemoteDecryptedPath(), m.target.DataDir); err != nil {
		log.Error().Err(err).Msg("union mount failed")
		return &types.ErrEncryptionMountFailed{Layer: "union", MountPoint: m.target.DataDir}
	}
	return nil
}

// Manager hands out the single Machine owning each target's state. Targets
// must not share a data directory; the table is keyed by it.
type Manager struct {
	runner runner.ProcessRunner
	prober Prober
	encfs  *EncfsMounter
	launch Launcher
	opts   Options

	machines *common.SafeMap[*Machine]
}

func NewManager(r runner.ProcessRunner, prober Prober, encfs *EncfsMounter, launch Launcher, opts Options) *Manager {
	return &Manager{
		runner:   r,
		prober:   prober,
		encfs:    encfs,
		launch:   launch,
		opts:     opts.withDefaults(),
		machines: common.NewSafeMap[*Machine](),
	}
}

func (mgr *Manager) Machine(target types.MountTarget) *Machine {
	machine, _ := mgr.machines.GetOrSet(target.DataDir, NewMachine(target, mgr.runner, mgr.prober, mgr.encfs, mgr.launch, mgr.opts))
	return machine
}

func (mgr *Manager) EnsureReady(ctx context.Context, target types.MountTarget) error {
	return mgr.Machine(target).EnsureReady(ctx)
}

func (mgr *Manager) Release(ctx context.Context, target types.MountTarget) error {
	return mgr.Machine(target).Release(ctx)
}

func (mgr *Manager) State(target types.MountTarget) types.MountState {
	return mgr.Machine(target).State()
}
