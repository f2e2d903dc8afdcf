// Package executor is the only component allowed to invoke privileged
// operations. Commands are built as argument vectors or staged as
// self-contained scripts; a shell command line is never assembled from
// interpolated strings.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/cochaviz/grubctl/internal/models"
	"github.com/cochaviz/grubctl/internal/validation"
)

// DefaultTimeout bounds every privileged call. The privilege prompt is part
// of the call, so the bound is generous; hitting it is treated as failure,
// never as a hang.
const DefaultTimeout = 120 * time.Second

// pkexec reports these exit codes for the two operator-driven outcomes that
// are expected rather than exceptional.
const (
	pkexecExitDismissed     = 126
	pkexecExitNotAuthorized = 127
)

// Result captures the outcome of one privileged invocation.
type Result struct {
	ExitCode int
	Output   string
}

// runFunc executes argv and returns the exit code with combined output. It
// exists so tests can substitute the process boundary.
type runFunc func(ctx context.Context, argv []string) (int, string, error)

// Executor invokes privileged operations through pkexec.
type Executor struct {
	Logger  *slog.Logger
	Timeout time.Duration
	// PkexecPath overrides the escalation helper binary.
	PkexecPath string
	// RunAsRoot skips privilege escalation; set automatically when the
	// process already runs as root.
	RunAsRoot bool

	run runFunc
}

// New constructs an executor with the default timeout and transport.
func New(logger *slog.Logger) *Executor {
	return &Executor{
		Logger:    logger,
		Timeout:   DefaultTimeout,
		RunAsRoot: os.Geteuid() == 0,
	}
}

func (e *Executor) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func (e *Executor) timeout() time.Duration {
	if e.Timeout > 0 {
		return e.Timeout
	}
	return DefaultTimeout
}

func (e *Executor) pkexec() string {
	if e.PkexecPath != "" {
		return e.PkexecPath
	}
	return "pkexec"
}

// RunDirect invokes a single privileged command given as an explicit
// argument vector. Every element must pass the sanitizer.
func (e *Executor) RunDirect(ctx context.Context, argv ...string) (*Result, error) {
	if len(argv) == 0 {
		return nil, models.NewError(models.KindCommand, "empty command", nil)
	}
	for _, arg := range argv {
		if _, err := validation.SanitizeValue(arg); err != nil {
			return nil, models.NewError(models.KindCommand, "refusing unsanitized argument", err)
		}
	}

	full := argv
	if !e.RunAsRoot {
		full = append([]string{e.pkexec()}, argv...)
	}
	return e.invoke(ctx, full)
}

// RunScript stages the spec as a private script file and invokes it once
// through the escalation helper, so a multi-step operation is a single
// privileged unit. The staged file is owner-only and removed on every exit
// path.
func (e *Executor) RunScript(ctx context.Context, spec *CommandSpec) (*Result, error) {
	if spec == nil || spec.Empty() {
		return nil, models.NewError(models.KindCommand, "empty command script", nil)
	}

	scriptPath, cleanup, err := e.stage(spec)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	argv := []string{"/bin/sh", scriptPath}
	if !e.RunAsRoot {
		argv = append([]string{e.pkexec()}, argv...)
	}
	return e.invoke(ctx, argv)
}

// stage writes the script to a private temporary file.
func (e *Executor) stage(spec *CommandSpec) (string, func(), error) {
	f, err := os.CreateTemp("", "grubctl-*.sh")
	if err != nil {
		return "", nil, models.NewError(models.KindCommand, "cannot stage command script", err)
	}
	path := f.Name()
	cleanup := func() { os.Remove(path) }

	if err := f.Chmod(0o700); err != nil {
		f.Close()
		cleanup()
		return "", nil, models.NewError(models.KindCommand, "cannot restrict script permissions", err)
	}
	if _, err := f.WriteString(spec.Script()); err != nil {
		f.Close()
		cleanup()
		return "", nil, models.NewError(models.KindCommand, "cannot write command script", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, models.NewError(models.KindCommand, "cannot write command script", err)
	}
	return path, cleanup, nil
}

func (e *Executor) invoke(ctx context.Context, argv []string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout())
	defer cancel()

	logger := e.logger().With("command", argv[0], "args", len(argv)-1)
	logger.Debug("invoking privileged command")

	exitCode, output, err := e.runner()(ctx, argv)
	result := &Result{ExitCode: exitCode, Output: output}

	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		logger.Error("privileged command timed out", "timeout", e.timeout())
		return result, models.NewError(models.KindCommand,
			fmt.Sprintf("command timed out after %s", e.timeout()), context.DeadlineExceeded)
	case err == nil && exitCode == 0:
		logger.Debug("privileged command succeeded")
		return result, nil
	case !e.RunAsRoot && (exitCode == pkexecExitDismissed || exitCode == pkexecExitNotAuthorized):
		// The operator declining authentication is an expected outcome,
		// not a crash.
		logger.Warn("privilege escalation declined by operator", "exit_code", exitCode)
		return result, models.NewError(models.KindPermission, "authentication was cancelled or denied", nil)
	case err != nil && exitCode < 0:
		logger.Error("privileged command could not be started", "error", err)
		return result, models.NewError(models.KindCommand, "command could not be started", err)
	default:
		logger.Error("privileged command failed", "exit_code", exitCode, "output", strings.TrimSpace(output))
		return result, models.NewError(models.KindCommand,
			fmt.Sprintf("command failed with exit code %d", exitCode), nil)
	}
}

func (e *Executor) runner() runFunc {
	if e.run != nil {
		return e.run
	}
	return runProcess
}

func runProcess(ctx context.Context, argv []string) (int, string, error) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	output, err := cmd.CombinedOutput()
	if err == nil {
		return 0, string(output), nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), string(output), err
	}
	return -1, string(output), err
}
