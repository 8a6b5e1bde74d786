// Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package executor

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
	"golang.org/x/time/rate"

	"github.com/NVIDIA/diagpack/pkg/defaults"
	"github.com/NVIDIA/diagpack/pkg/errors"
)

// Exit statuses synthesized by the executor, matching coreutils timeout(1)
// and POSIX shells.
const (
	StatusTimeout       = 124
	StatusNotExecutable = 126
	StatusNotFound      = 127

	// StatusNotRun marks a command that failed before any process
	// existed. The executor never returns it in a Result.
	StatusNotRun = -1
)

// Request describes one command invocation.
type Request struct {
	// Command is passed to the shell with -c.
	Command string
	// Timeout is the hard deadline. Zero means no deadline.
	Timeout time.Duration
	// Stderr merges standard error into Output.
	Stderr bool
	// Chroot runs the command with this directory as root. Empty or "/"
	// runs on the host root.
	Chroot string
	// Dir is the working directory, resolved inside Chroot when set.
	Dir string
	// Env is overlaid on the process environment after LC_ALL=C.
	Env map[string]string
	// SizeLimit keeps only the last SizeLimit bytes of output. Zero keeps
	// everything.
	SizeLimit int64
}

// Result is the outcome of a Request.
type Result struct {
	Status    int
	Output    []byte
	Truncated bool
	Duration  time.Duration
}

// Runner runs commands. Executor is the production implementation.
type Runner interface {
	Run(ctx context.Context, req Request) (*Result, error)
}

// Option configures an Executor.
type Option func(*Executor)

// WithRateLimit throttles process spawns to perSecond with the given burst.
// A non-positive rate disables throttling.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(e *Executor) {
		if perSecond <= 0 {
			e.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		e.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithKillGrace sets the delay between SIGTERM and SIGKILL on timeout.
func WithKillGrace(d time.Duration) Option {
	return func(e *Executor) {
		e.grace = d
	}
}

// WithShell overrides the shell used to interpret commands.
func WithShell(path string) Option {
	return func(e *Executor) {
		e.shell = path
	}
}

// Executor runs shell commands in their own process group.
type Executor struct {
	shell   string
	grace   time.Duration
	limiter *rate.Limiter
}

// New returns an Executor using /bin/sh.
func New(opts ...Option) *Executor {
	e := &Executor{
		shell: "/bin/sh",
		grace: defaults.CommandKillGrace,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes req and waits for it to finish. A non-zero exit status is
// reported in Result.Status, not as an error. Timeouts and cancellation of
// ctx kill the process group and yield StatusTimeout. A command that
// cannot be started because the shell is missing or not executable yields
// StatusNotFound or StatusNotExecutable.
func (e *Executor) Run(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.Command) == "" {
		return nil, errors.New(errors.ErrCodeInvalidRequest, "command must not be empty")
	}

	if err := checkDir(req); err != nil {
		return nil, err
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return &Result{Status: StatusTimeout}, nil
		}
	}

	start := time.Now()

	cmd := exec.Command(e.shell, "-c", req.Command)
	cmd.Dir = req.Dir
	cmd.Env = overlayEnv(os.Environ(), req.Env)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.WaitDelay = e.grace
	if req.Chroot != "" && req.Chroot != "/" {
		cmd.SysProcAttr.Chroot = req.Chroot
	}

	out := newTailBuffer(req.SizeLimit)
	cmd.Stdout = out
	if req.Stderr {
		cmd.Stderr = out
	}

	if err := cmd.Start(); err != nil {
		status, ok := startFailureStatus(err)
		if !ok {
			return nil, errors.WrapWithContext(errors.ErrCodeInternal, "failed to start command", err,
				map[string]any{"command": req.Command})
		}
		slog.Debug("command could not be started", "command", req.Command, "status", status, "error", err)
		return &Result{Status: status, Duration: time.Since(start)}, nil
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	var timeout <-chan time.Time
	if req.Timeout > 0 {
		timer := time.NewTimer(req.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	var waitErr error
	timedOut := false
	select {
	case waitErr = <-done:
	case <-timeout:
		timedOut = true
		waitErr = e.terminate(cmd, done)
	case <-ctx.Done():
		timedOut = true
		waitErr = e.terminate(cmd, done)
	}

	res := &Result{
		Output:    out.Bytes(),
		Truncated: out.Truncated(),
		Duration:  time.Since(start),
	}
	if timedOut {
		res.Status = StatusTimeout
		return res, nil
	}

	res.Status = exitStatus(waitErr)
	if res.Status < 0 && stderrors.Is(waitErr, exec.ErrWaitDelay) && cmd.ProcessState != nil {
		res.Status = cmd.ProcessState.ExitCode()
	}
	if res.Status < 0 {
		return nil, errors.WrapWithContext(errors.ErrCodeInternal, "failed to wait for command", waitErr,
			map[string]any{"command": req.Command})
	}
	return res, nil
}

// terminate sends SIGTERM to the process group, then SIGKILL after the
// grace period, and returns the wait result.
func (e *Executor) terminate(cmd *exec.Cmd, done <-chan error) error {
	signalGroup(cmd, unix.SIGTERM)
	grace := time.NewTimer(e.grace)
	defer grace.Stop()
	select {
	case err := <-done:
		return err
	case <-grace.C:
		signalGroup(cmd, unix.SIGKILL)
		return <-done
	}
}

func signalGroup(cmd *exec.Cmd, sig syscall.Signal) {
	if cmd.Process == nil {
		return
	}
	pid := cmd.Process.Pid
	if pid > 0 {
		if err := unix.Kill(-pid, sig); err == nil {
			return
		}
	}
	_ = cmd.Process.Signal(sig)
}

// checkDir fails when the working directory is missing, so a failed chdir
// is not mistaken for a missing shell.
func checkDir(req Request) error {
	if req.Dir == "" {
		return nil
	}
	dir := req.Dir
	if req.Chroot != "" && req.Chroot != "/" && filepath.IsAbs(dir) {
		dir = filepath.Join(req.Chroot, dir)
	}
	fi, err := os.Stat(dir)
	if err == nil && !fi.IsDir() {
		err = unix.ENOTDIR
	}
	if err != nil {
		return errors.WrapWithContext(errors.ErrCodeNotFound, "working directory is not available", err,
			map[string]any{"command": req.Command, "dir": req.Dir, "chroot": req.Chroot})
	}
	return nil
}

func startFailureStatus(err error) (int, bool) {
	switch {
	case stderrors.Is(err, unix.ENOENT), stderrors.Is(err, exec.ErrNotFound):
		return StatusNotFound, true
	case stderrors.Is(err, unix.EACCES), stderrors.Is(err, unix.EPERM), stderrors.Is(err, unix.ENOEXEC):
		return StatusNotExecutable, true
	default:
		return 0, false
	}
}

// exitStatus maps a Wait error to a shell style status. -1 means the error
// did not come from the child.
func exitStatus(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if !stderrors.As(err, &exitErr) {
		return -1
	}
	if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return exitErr.ExitCode()
}

func overlayEnv(base []string, overlay map[string]string) []string {
	m := make(map[string]string, len(base)+len(overlay)+1)
	for _, kv := range base {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		m[k] = v
	}
	m["LC_ALL"] = "C"
	for k, v := range overlay {
		m[k] = v
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, fmt.Sprintf("%s=%s", k, m[k]))
	}
	return out
}
