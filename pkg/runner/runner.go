package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"
)

// CommandSpec describes one external command invocation. Env entries are
// appended to the ambient environment; secrets are passed via Env or Stdin,
// never via Args.
type CommandSpec struct {
	Path   string
	Args   []string
	Dir    string
	Env    []string
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Handle is a started process that the caller may wait on or signal.
type Handle interface {
	Pid() int
	Wait() error
	Signal(sig os.Signal) error
}

// ProcessRunner executes external commands. The mount sequence, teardown
// and upload paths are all driven through this interface so they can be
// exercised in tests without real FUSE helpers installed.
type ProcessRunner interface {
	// Run executes the command and waits for it to finish. On failure the
	// returned error carries the command's trimmed combined output.
	Run(ctx context.Context, spec CommandSpec) error

	// Output executes the command and returns its stdout.
	Output(ctx context.Context, spec CommandSpec) ([]byte, error)

	// Start launches the command in its own process group and returns
	// without waiting.
	Start(spec CommandSpec) (Handle, error)

	// StartDetached launches the command in a new session so it survives
	// this process, and returns its pid.
	StartDetached(spec CommandSpec) (int, error)
}

// OSRunner runs commands on the host.
type OSRunner struct{}

func NewOSRunner() *OSRunner {
	return &OSRunner{}
}

func (r *OSRunner) Run(ctx context.Context, spec CommandSpec) error {
	cmd := exec.CommandContext(ctx, spec.Path, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = append(os.Environ(), spec.Env...)
	cmd.Stdin = spec.Stdin

	output, err := cmd.CombinedOutput()
	if err != nil {
		return wrapCommandError(spec, err, output)
	}
	return nil
}

func (r *OSRunner) Output(ctx context.Context, spec CommandSpec) ([]byte, error) {
	cmd := exec.CommandContext(ctx, spec.Path, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = append(os.Environ(), spec.Env...)
	cmd.Stdin = spec.Stdin

	var stderr strings.Builder
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		return nil, wrapCommandError(spec, err, []byte(stderr.String()))
	}
	return output, nil
}

func (r *OSRunner) Start(spec CommandSpec) (Handle, error) {
	cmd := exec.Command(spec.Path, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = append(os.Environ(), spec.Env...)
	cmd.Stdin = spec.Stdin
	cmd.Stdout = spec.Stdout
	cmd.Stderr = spec.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true} // Kill entire process tree

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("error starting %s: %w", spec.Path, err)
	}

	return &osHandle{cmd: cmd}, nil
}

func (r *OSRunner) StartDetached(spec CommandSpec) (int, error) {
	cmd := exec.Command(spec.Path, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = append(os.Environ(), spec.Env...)
	cmd.Stdin = nil
	cmd.Stdout = spec.Stdout
	cmd.Stderr = spec.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("error starting %s: %w", spec.Path, err)
	}

	pid := cmd.Process.Pid
	if err := cmd.Process.Release(); err != nil {
		log.Warn().Err(err).Int("pid", pid).Msg("failed to release detached process")
	}

	return pid, nil
}

type osHandle struct {
	cmd *exec.Cmd
}

func (h *osHandle) Pid() int {
	return h.cmd.Process.Pid
}

func (h *osHandle) Wait() error {
	return h.cmd.Wait()
}

func (h *osHandle) Signal(sig os.Signal) error {
	return h.cmd.Process.Signal(sig)
}

func wrapCommandError(spec CommandSpec, err error, output []byte) error {
	trimmed := strings.TrimSpace(string(output))
	if trimmed == "" {
		return fmt.Errorf("error executing %s: %w", spec.Path, err)
	}
	return fmt.Errorf("error executing %s: %w: %s", spec.Path, err, trimmed)
}
