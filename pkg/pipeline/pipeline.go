// Package pipeline runs diagram generation over a whole file set.
//
// A run scans the configured file set, then handles the matched files one at
// a time: read the source, build a fresh extractor for it, write each diagram
// it yields and, when rendering is enabled, render that diagram right after
// it is written.
//
// # Failure policy
//
// The first configuration, parse, destination or I/O error stops the run and
// is returned with the offending source file in its message. Render failures
// are logged, counted in [Result.RenderFailures] and never stop the run. A
// missing base directory is not an error: the run succeeds with no output.
//
// # Usage
//
//	runner := pipeline.NewRunner(cfg, cache, logger)
//	result, err := runner.Run(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Diagrams, "diagrams written")
package pipeline

import (
	"time"

	"github.com/matzehuels/diagramgen/pkg/extract"
	"github.com/matzehuels/diagramgen/pkg/extract/java"
)

// DefaultRegistry returns a registry with every built-in extractor.
func DefaultRegistry() *extract.Registry {
	r := extract.NewRegistry()
	java.Register(r)
	return r
}

// Result summarises one run.
type Result struct {
	RunID          string
	Files          int // source files processed
	Skipped        int // matched files without a registered extractor
	Diagrams       int
	Rendered       int
	RenderCached   int
	RenderFailures int
	Outputs        []Output
	Duration       time.Duration
}

// Output is one written diagram and, when rendered, its image.
type Output struct {
	Source      string // source path relative to the file set directory
	Index       int
	DiagramPath string
	ImagePath   string // empty when rendering is disabled
	Rendered    bool
	RenderError error
}
