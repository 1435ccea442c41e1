package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/diagramgen/pkg/cache"
	"github.com/matzehuels/diagramgen/pkg/config"
	"github.com/matzehuels/diagramgen/pkg/emit"
	"github.com/matzehuels/diagramgen/pkg/errors"
	"github.com/matzehuels/diagramgen/pkg/extract"
	"github.com/matzehuels/diagramgen/pkg/fileset"
	"github.com/matzehuels/diagramgen/pkg/naming"
	"github.com/matzehuels/diagramgen/pkg/observability"
	"github.com/matzehuels/diagramgen/pkg/render"
)

// Runner executes generation runs for one configuration.
//
// Every field may be replaced before Run; tests substitute the matcher,
// registry and renderer.
type Runner struct {
	Config   config.Config
	Registry *extract.Registry
	Matcher  fileset.Matcher
	Renderer render.Renderer // nil disables rendering
	Hooks    observability.PipelineHooks
	Logger   *log.Logger
}

// NewRunner creates a runner for cfg.
// If cache is nil, a NullCache is used (render caching disabled).
// If logger is nil, log.Default() is used.
func NewRunner(cfg config.Config, c cache.Cache, logger *log.Logger) *Runner {
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	cfg = cfg.Clone()

	var renderer render.Renderer
	if cfg.Renderer.Enabled {
		renderer = &render.CachedRenderer{
			Renderer:   render.New(cfg.Renderer.Executable, cfg.Renderer.Format, cfg.Renderer.Timeout, logger),
			Cache:      c,
			Executable: cfg.Renderer.Executable,
			Format:     cfg.Renderer.Format,
			Logger:     logger,
		}
	}

	return &Runner{
		Config:   cfg,
		Registry: DefaultRegistry(),
		Matcher:  fileset.GlobMatcher{},
		Renderer: renderer,
		Logger:   logger,
	}
}

// Run scans the file set and generates every diagram. It returns the partial
// result together with the first fatal error.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	result := &Result{RunID: uuid.NewString()}
	logger := r.logger().With("run", result.RunID[:8])
	hooks := r.hooks()

	err := r.run(ctx, result, logger, hooks)
	result.Duration = time.Since(start)
	hooks.OnRunComplete(ctx, result.RunID, result.Diagrams, result.Duration, err)
	if err != nil {
		return result, err
	}

	logger.Info("Run complete",
		"files", result.Files,
		"diagrams", result.Diagrams,
		"rendered", result.Rendered,
		"render_failures", result.RenderFailures,
		"duration", result.Duration.Round(time.Millisecond))
	return result, nil
}

func (r *Runner) run(ctx context.Context, result *Result, logger *log.Logger, hooks observability.PipelineHooks) error {
	if err := r.Config.Validate(); err != nil {
		return err
	}
	if err := r.checkExtractors(); err != nil {
		return err
	}

	spec := r.Config.FileSetSpec()
	logger.Info("Creating diagrams", "directory", spec.Directory, "output", r.Config.OutputDirectory)
	files, err := r.Matcher.Match(spec.Directory, spec.Includes, spec.Excludes, spec.FollowSymlinks, spec.UseDefaultExcludes)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		logger.Info("No source files matched", "directory", spec.Directory)
	}
	hooks.OnRunStart(ctx, result.RunID, len(files))

	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.processFile(ctx, rel, result, logger, hooks); err != nil {
			return fmt.Errorf("%s: %w", rel, err)
		}
	}
	return nil
}

// checkExtractors builds one extractor per registered extension so that
// extractor configuration errors surface before the scan.
func (r *Runner) checkExtractors() error {
	registry := r.registry()
	for _, ext := range registry.Extensions() {
		if _, err := registry.New("check."+ext, r.Config.ExtractConfig()); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) processFile(ctx context.Context, rel string, result *Result, logger *log.Logger, hooks observability.PipelineHooks) error {
	factory, ok := r.registry().Lookup(rel)
	if !ok {
		logger.Debug("No extractor for file", "file", rel)
		result.Skipped++
		return nil
	}

	hooks.OnFileStart(ctx, rel)
	path := filepath.Join(r.Config.FileSet.Directory, filepath.FromSlash(rel))
	logger.Infof("Reading %s", path)
	src, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "read source").WithPath(path)
	}

	ex, err := factory(r.Config.ExtractConfig())
	if err != nil {
		return err
	}

	emitter := &emit.Emitter{
		Template:  r.Config.OutputFilenamePattern,
		OutputDir: r.Config.OutputDirectory,
		Logger:    logger,
		AfterWrite: func(ctx context.Context, job naming.DiagramJob) error {
			hooks.OnDiagramWritten(ctx, rel, job.Index, job.Path)
			result.Outputs = append(result.Outputs, r.renderJob(ctx, job, result, hooks))
			return nil
		},
	}

	res, err := emitter.Emit(ctx, ex, src, r.Config.Extractor.Encoding, naming.NewSourceFile(rel))
	result.Files++
	result.Diagrams += res.Count
	return err
}

// renderJob renders one written diagram. Failures are recorded, never returned.
func (r *Runner) renderJob(ctx context.Context, job naming.DiagramJob, result *Result, hooks observability.PipelineHooks) Output {
	out := Output{Source: job.Source.Path, Index: job.Index, DiagramPath: job.Path}
	if r.Renderer == nil {
		return out
	}

	out.ImagePath = render.ImagePath(job.Path, r.Config.Renderer.Format)
	o := r.Renderer.Render(ctx, job.Path, out.ImagePath)
	hooks.OnRenderComplete(ctx, out.ImagePath, o.Duration, o.Err)

	switch {
	case o.Success && o.Cached:
		out.Rendered = true
		result.RenderCached++
	case o.Success:
		out.Rendered = true
		result.Rendered++
	default:
		err := o.Err
		if err == nil {
			err = errors.New(errors.ErrCodeRender, "renderer failed").WithPath(out.ImagePath)
		} else if errors.IsFatal(err) {
			err = errors.Wrap(errors.ErrCodeRender, err, "render %s", job.Path)
		}
		out.RenderError = err
		result.RenderFailures++
	}
	return out
}

func (r *Runner) registry() *extract.Registry {
	if r.Registry == nil {
		return DefaultRegistry()
	}
	return r.Registry
}

func (r *Runner) logger() *log.Logger {
	if r.Logger == nil {
		return log.Default()
	}
	return r.Logger
}

func (r *Runner) hooks() observability.PipelineHooks {
	if r.Hooks != nil {
		return r.Hooks
	}
	return observability.Pipeline()
}
