package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"github.com/matzehuels/diagramgen/pkg/observability"
)

// progressReporter draws a file progress bar from pipeline events.
type progressReporter struct {
	observability.NoopPipelineHooks

	w        io.Writer
	bar      *progressbar.ProgressBar
	diagrams int
}

func newProgressReporter(w io.Writer) *progressReporter {
	return &progressReporter{w: w}
}

func (p *progressReporter) OnRunStart(_ context.Context, _ string, files int) {
	p.bar = progressbar.NewOptions(files,
		progressbar.OptionSetWriter(p.w),
		progressbar.OptionSetDescription("Generating diagrams"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("files/s"),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(p.w)
		}),
	)
}

func (p *progressReporter) OnFileStart(_ context.Context, file string) {
	if p.bar != nil {
		p.bar.Add(1)
	}
}

func (p *progressReporter) OnDiagramWritten(context.Context, string, int, string) {
	p.diagrams++
	if p.bar != nil {
		p.bar.Describe(fmt.Sprintf("Generating diagrams (%d written)", p.diagrams))
	}
}

func (p *progressReporter) OnRunComplete(context.Context, string, int, time.Duration, error) {
	if p.bar != nil {
		p.bar.Finish()
	}
}

// isTerminal reports whether f is an interactive terminal.
func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
