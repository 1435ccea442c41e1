package cli

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/matzehuels/diagramgen/pkg/errors"
	"github.com/matzehuels/diagramgen/pkg/extract"
	"github.com/matzehuels/diagramgen/pkg/pipeline"
)

const defaultDebounce = 300 * time.Millisecond

// watchCommand creates the watch command.
func (c *CLI) watchCommand() *cobra.Command {
	var (
		opts     generateOptions
		debounce time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Regenerate diagrams whenever a source file changes",
		Long: `Run generate once, then watch the source directory and run it again after
every burst of changes. Failed runs are reported and watching continues.
Stop with Ctrl-C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			regenerate := func(ctx context.Context) {
				p := newProgress(c.Logger)
				result, err := c.generate(ctx, cfg, opts)
				if err != nil {
					if ctx.Err() == nil {
						printError("%v", err)
					}
					return
				}
				p.done("Regenerated " + plural(result.Diagrams, "diagram"))
			}

			regenerate(ctx)

			w, err := newSourceWatcher(cfg.FileSet.Directory, cfg.OutputDirectory, pipeline.DefaultRegistry(), c.Logger)
			if err != nil {
				return err
			}
			defer w.Close()
			w.debounce = debounce

			printInfo("Watching %s", cfg.FileSet.Directory)
			w.Run(ctx, regenerate)
			return nil
		},
	}

	opts.register(cmd.Flags())
	cmd.Flags().DurationVar(&debounce, "debounce", defaultDebounce, "quiet period before regenerating")
	return cmd
}

// sourceWatcher reports bursts of changes to source files under a root
// directory. Changes under the output directory are ignored.
type sourceWatcher struct {
	watcher  *fsnotify.Watcher
	root     string
	output   string
	registry *extract.Registry
	debounce time.Duration
	logger   *log.Logger
}

func newSourceWatcher(root, output string, registry *extract.Registry, logger *log.Logger) (*sourceWatcher, error) {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, errors.New(errors.ErrCodeConfiguration, "cannot watch %s: not a directory", root).WithPath(root)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeIO, err, "create file watcher")
	}

	w := &sourceWatcher{
		watcher:  fw,
		root:     root,
		registry: registry,
		debounce: defaultDebounce,
		logger:   logger,
	}
	if abs, err := filepath.Abs(output); err == nil {
		w.output = abs
	}
	if err := w.addRecursive(root); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

// Close stops watching.
func (w *sourceWatcher) Close() error {
	return w.watcher.Close()
}

// Run calls onChange once per burst of relevant events until ctx is done.
func (w *sourceWatcher) Run(ctx context.Context, onChange func(context.Context)) {
	var (
		timer   *time.Timer
		timerCh <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() && !w.ignored(event.Name) {
					if err := w.addRecursive(event.Name); err != nil {
						w.logger.Warn("Failed to watch new directory", "dir", event.Name, "error", err)
					}
				}
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("Source changed", "file", event.Name, "op", event.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			timerCh = timer.C

		case <-timerCh:
			timerCh = nil
			onChange(ctx)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("File watcher error", "error", err)
		}
	}
}

// relevant reports whether event concerns a file an extractor is registered for.
func (w *sourceWatcher) relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod || w.ignored(event.Name) {
		return false
	}
	_, ok := w.registry.Lookup(event.Name)
	return ok
}

func (w *sourceWatcher) ignored(path string) bool {
	if w.output == "" {
		return false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	return abs == w.output || strings.HasPrefix(abs, w.output+string(filepath.Separator))
}

func (w *sourceWatcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if w.ignored(path) || (path != dir && strings.HasPrefix(d.Name(), ".")) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return errors.Wrap(errors.ErrCodeIO, err, "watch directory").WithPath(path)
		}
		return nil
	})
}
