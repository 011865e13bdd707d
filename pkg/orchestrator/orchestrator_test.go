package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloud-drive-tools/cdt/pkg/types"
)

type fakeMounter struct {
	mu     sync.Mutex
	fail   map[string]error
	states map[string]types.MountState
	calls  []string
}

func newFakeMounter() *fakeMounter {
	return &fakeMounter{
		fail:   map[string]error{},
		states: map[string]types.MountState{},
	}
}

func (m *fakeMounter) EnsureReady(ctx context.Context, target types.MountTarget) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, target.Name)
	if err, ok := m.fail[target.Name]; ok {
		m.states[target.Name] = types.MountStateMountFailed
		return err
	}

	m.states[target.Name] = types.MountStateReady
	return nil
}

func (m *fakeMounter) State(target types.MountTarget) types.MountState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[target.Name]
}

type fakeSweeper struct {
	mu     sync.Mutex
	report *types.EvictionReport
	err    error
	calls  int
}

func (s *fakeSweeper) Sweep(ctx context.Context) (*types.EvictionReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.report, s.err
}

func targetNamed(name string) types.MountTarget {
	return types.MountTarget{
		Name:         name,
		MountBase:    "/mnt/" + name,
		DataDir:      "/data/" + name,
		RcloneRemote: "remote",
		MaxRetries:   types.DefaultMaxRetriesRemoteMount,
	}
}

func TestRunCyclePartialFailureStillSweeps(t *testing.T) {
	mounter := newFakeMounter()
	mounter.fail["broken"] = &types.ErrMountUnavailable{MountPoint: "/mnt/broken/acd-encrypted", Attempts: 5}

	sweeper := &fakeSweeper{report: &types.EvictionReport{Evicted: 3}}
	orc := New(mounter, sweeper, []types.MountTarget{targetNamed("good"), targetNamed("broken")})

	report := orc.RunCycle(context.Background())

	require.Len(t, report.Mounts, 2)
	byTarget := map[string]types.MountOutcome{}
	for _, outcome := range report.Mounts {
		byTarget[outcome.Target] = outcome
	}

	assert.Equal(t, types.MountStateReady, byTarget["good"].State)
	assert.False(t, byTarget["good"].Failed())

	assert.Equal(t, types.MountStateMountFailed, byTarget["broken"].State)
	assert.True(t, byTarget["broken"].Failed())
	assert.True(t, (&types.ErrMountUnavailable{}).From(byTarget["broken"].Err))

	require.NotNil(t, report.Sweep)
	assert.Equal(t, 3, report.Sweep.Evicted)
	assert.Empty(t, report.SweepErr)
	assert.Equal(t, 1, sweeper.calls)

	assert.Len(t, report.Failed(), 1)
	assert.False(t, report.AllFailed())
	assert.False(t, report.Ok())
}

func TestRunCycleOutcomesKeepTargetOrder(t *testing.T) {
	mounter := newFakeMounter()
	sweeper := &fakeSweeper{report: &types.EvictionReport{}}
	targets := []types.MountTarget{targetNamed("alpha"), targetNamed("beta"), targetNamed("gamma")}

	report := New(mounter, sweeper, targets).RunCycle(context.Background())

	require.Len(t, report.Mounts, 3)
	assert.Equal(t, "alpha", report.Mounts[0].Target)
	assert.Equal(t, "beta", report.Mounts[1].Target)
	assert.Equal(t, "gamma", report.Mounts[2].Target)
	assert.True(t, report.Ok())
}

func TestRunCycleAllFailed(t *testing.T) {
	mounter := newFakeMounter()
	mounter.fail["one"] = errors.New("fuse not available")
	mounter.fail["two"] = errors.New("fuse not available")

	sweeper := &fakeSweeper{report: &types.EvictionReport{}}
	report := New(mounter, sweeper, []types.MountTarget{targetNamed("one"), targetNamed("two")}).RunCycle(context.Background())

	assert.True(t, report.AllFailed())
	assert.Len(t, report.Failed(), 2)
	require.NotNil(t, report.Sweep)
}

func TestRunCycleRecordsSweepError(t *testing.T) {
	mounter := newFakeMounter()
	sweeper := &fakeSweeper{err: &types.ErrSweepActive{LockPath: "/cache/.cdt-sweep.lock"}}

	report := New(mounter, sweeper, []types.MountTarget{targetNamed("solo")}).RunCycle(context.Background())

	assert.Nil(t, report.Sweep)
	assert.Contains(t, report.SweepErr, "sweep already active")
	assert.False(t, report.Ok())
}

func TestRunCycleNoTargets(t *testing.T) {
	sweeper := &fakeSweeper{report: &types.EvictionReport{}}
	report := New(newFakeMounter(), sweeper, nil).RunCycle(context.Background())

	assert.Empty(t, report.Mounts)
	assert.Empty(t, report.Failed())
	assert.False(t, report.AllFailed())
	assert.True(t, report.Ok())
}

func TestRunLoopStopsOnCancel(t *testing.T) {
	mounter := newFakeMounter()
	sweeper := &fakeSweeper{report: &types.EvictionReport{}}
	orc := New(mounter, sweeper, []types.MountTarget{targetNamed("loop")})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- orc.RunLoop(ctx, 50*time.Millisecond)
	}()

	time.Sleep(120 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop after cancel")
	}

	mounter.mu.Lock()
	calls := len(mounter.calls)
	mounter.mu.Unlock()
	assert.GreaterOrEqual(t, calls, 2, "first cycle runs immediately, ticker drives the rest")
}
