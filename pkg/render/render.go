package render

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/diagramgen/pkg/errors"
)

// Defaults used when an Invoker field is empty.
const (
	DefaultExecutable = "dot"
	DefaultFormat     = "png"

	// Builtin selects the in-process GraphvizRenderer instead of a process.
	Builtin = "builtin"
)

// Renderer converts one diagram file into an image.
type Renderer interface {
	Render(ctx context.Context, diagramPath, imagePath string) Outcome
}

// Outcome reports one render attempt. It never aborts a run.
type Outcome struct {
	Success  bool
	Cached   bool   // skipped because an up-to-date image exists
	ExitCode int    // process exit code, -1 when the process did not run
	Output   string // captured process output
	Err      error  // RENDER error when Success is false
	Duration time.Duration
}

// Invoker renders diagrams with an external executable.
type Invoker struct {
	Executable string
	Format     string
	Timeout    time.Duration // zero waits for the process indefinitely
	Runner     ProcessRunner
	Logger     *log.Logger
}

// Render runs the executable on diagramPath and writes imagePath.
func (iv *Invoker) Render(ctx context.Context, diagramPath, imagePath string) Outcome {
	start := time.Now()
	logger := iv.logger()

	argv, err := iv.Argv(diagramPath, imagePath)
	if err != nil {
		return iv.failed(logger, Outcome{ExitCode: -1, Err: err}, start)
	}

	if iv.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, iv.Timeout)
		defer cancel()
	}

	logger.Infof("Invoking renderer: %s", strings.Join(argv, " "))
	runner := iv.Runner
	if runner == nil {
		runner = ExecRunner{}
	}
	code, out, err := runner.Run(ctx, argv)
	outcome := Outcome{ExitCode: code, Output: string(out)}

	switch {
	case err != nil:
		outcome.Err = errors.Wrap(errors.ErrCodeRender, err, "unable to run %s", argv[0]).WithPath(diagramPath)
	case code != 0:
		outcome.Err = errors.New(errors.ErrCodeRender, "%s exited with code %d", argv[0], code).WithPath(diagramPath)
	default:
		outcome.Success = true
		outcome.Duration = time.Since(start)
		return outcome
	}
	return iv.failed(logger, outcome, start)
}

// Argv returns the command line for one render:
// executable, diagram path, -T<format> and -o<image path>, with absolute paths.
func (iv *Invoker) Argv(diagramPath, imagePath string) ([]string, error) {
	absDiagram, err := filepath.Abs(diagramPath)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeRender, err, "resolve diagram path").WithPath(diagramPath)
	}
	absImage, err := filepath.Abs(imagePath)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeRender, err, "resolve image path").WithPath(imagePath)
	}
	exe := iv.Executable
	if exe == "" {
		exe = DefaultExecutable
	}
	return []string{exe, absDiagram, "-T" + iv.format(), "-o" + absImage}, nil
}

func (iv *Invoker) format() string {
	if iv.Format == "" {
		return DefaultFormat
	}
	return iv.Format
}

func (iv *Invoker) logger() *log.Logger {
	if iv.Logger == nil {
		return log.Default()
	}
	return iv.Logger
}

func (iv *Invoker) failed(logger *log.Logger, o Outcome, start time.Time) Outcome {
	o.Duration = time.Since(start)
	logger.Warn("Renderer failed", "err", errors.UserMessage(o.Err), "exit", o.ExitCode, "output", strings.TrimSpace(o.Output))
	return o
}

// New returns the renderer for executable: a GraphvizRenderer for Builtin,
// an Invoker otherwise.
func New(executable, format string, timeout time.Duration, logger *log.Logger) Renderer {
	if executable == Builtin {
		return &GraphvizRenderer{Format: format, Logger: logger}
	}
	return &Invoker{Executable: executable, Format: format, Timeout: timeout, Logger: logger}
}

// ImagePath replaces the extension of the diagram's file name with format,
// or appends it when the name has no dot. Dots in directory names are ignored.
func ImagePath(diagramPath, format string) string {
	if format == "" {
		format = DefaultFormat
	}
	dir, file := filepath.Split(diagramPath)
	if i := strings.LastIndex(file, "."); i != -1 {
		file = file[:i]
	}
	return dir + file + "." + format
}

var _ Renderer = (*Invoker)(nil)
