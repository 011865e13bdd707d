package runner

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FakeCall records one command dispatched through a FakeRunner.
type FakeCall struct {
	Path  string
	Args  []string
	Env   []string
	Stdin string
}

// Command returns the command basename plus its first argument, the key
// used for response lookup ("rclone mount", "fusermount -u", ...).
func (c FakeCall) Command() string {
	name := filepath.Base(c.Path)
	if len(c.Args) == 0 {
		return name
	}
	return name + " " + c.Args[0]
}

// FakeRunner records every dispatched command and replies from a canned
// response table. Tests use it to drive the mount machine and teardown
// paths without any real processes.
type FakeRunner struct {
	mu    sync.Mutex
	calls []FakeCall

	// Responses maps a command key (see FakeCall.Command) to the error Run
	// and Output should return for it. Missing keys succeed.
	Responses map[string]error

	// Outputs maps a command key to the stdout Output should return.
	Outputs map[string][]byte

	// OnRun, when set, is consulted before the response table.
	OnRun func(spec CommandSpec) error

	// DetachedPid is returned from StartDetached.
	DetachedPid int
}

func NewFakeRunner() *FakeRunner {
	return &FakeRunner{
		Responses:   map[string]error{},
		Outputs:     map[string][]byte{},
		DetachedPid: 4242,
	}
}

func (r *FakeRunner) record(spec CommandSpec) FakeCall {
	stdin := ""
	if spec.Stdin != nil {
		if data, err := io.ReadAll(spec.Stdin); err == nil {
			stdin = string(data)
		}
	}

	call := FakeCall{
		Path:  spec.Path,
		Args:  append([]string(nil), spec.Args...),
		Env:   append([]string(nil), spec.Env...),
		Stdin: stdin,
	}

	r.mu.Lock()
	r.calls = append(r.calls, call)
	r.mu.Unlock()
	return call
}

func (r *FakeRunner) respond(spec CommandSpec, call FakeCall) error {
	if r.OnRun != nil {
		if err := r.OnRun(spec); err != nil {
			return err
		}
	}
	return r.Responses[call.Command()]
}

func (r *FakeRunner) Run(ctx context.Context, spec CommandSpec) error {
	call := r.record(spec)
	return r.respond(spec, call)
}

func (r *FakeRunner) Output(ctx context.Context, spec CommandSpec) ([]byte, error) {
	call := r.record(spec)
	if err := r.respond(spec, call); err != nil {
		return nil, err
	}
	return r.Outputs[call.Command()], nil
}

func (r *FakeRunner) Start(spec CommandSpec) (Handle, error) {
	call := r.record(spec)
	if err := r.respond(spec, call); err != nil {
		return nil, err
	}
	return &fakeHandle{pid: r.DetachedPid}, nil
}

func (r *FakeRunner) StartDetached(spec CommandSpec) (int, error) {
	call := r.record(spec)
	if err := r.respond(spec, call); err != nil {
		return 0, err
	}
	return r.DetachedPid, nil
}

// Calls returns a copy of every recorded call in dispatch order.
func (r *FakeRunner) Calls() []FakeCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]FakeCall(nil), r.calls...)
}

// CallCount returns how many recorded calls match the command key.
func (r *FakeRunner) CallCount(command string) int {
	count := 0
	for _, call := range r.Calls() {
		if call.Command() == command {
			count++
		}
	}
	return count
}

// CommandLines renders every call as a single argv line, without env.
func (r *FakeRunner) CommandLines() []string {
	var lines []string
	for _, call := range r.Calls() {
		lines = append(lines, strings.Join(append([]string{call.Path}, call.Args...), " "))
	}
	return lines
}

// Reset clears the recorded calls but keeps the response tables.
func (r *FakeRunner) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

type fakeHandle struct {
	pid int
}

func (h *fakeHandle) Pid() int                   { return h.pid }
func (h *fakeHandle) Wait() error                { return nil }
func (h *fakeHandle) Signal(sig os.Signal) error { return nil }
