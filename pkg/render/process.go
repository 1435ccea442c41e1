package render

import (
	"context"
	stderrors "errors"
	"os/exec"
)

// ProcessRunner runs a command to completion.
//
// exitCode and output describe a process that ran; err is set only when it
// could not be started or was stopped by ctx.
type ProcessRunner interface {
	Run(ctx context.Context, argv []string) (exitCode int, output []byte, err error)
}

// ExecRunner runs commands with os/exec and captures stdout and stderr
// together.
type ExecRunner struct{}

// Run implements ProcessRunner.
func (ExecRunner) Run(ctx context.Context, argv []string) (int, []byte, error) {
	if len(argv) == 0 {
		return -1, nil, stderrors.New("empty command")
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	out, err := cmd.CombinedOutput()
	if err == nil {
		return 0, out, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return -1, out, ctxErr
	}
	var exitErr *exec.ExitError
	if stderrors.As(err, &exitErr) {
		return exitErr.ExitCode(), out, nil
	}
	return -1, out, err
}

var _ ProcessRunner = ExecRunner{}
