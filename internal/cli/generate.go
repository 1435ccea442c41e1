package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/matzehuels/diagramgen/pkg/config"
	"github.com/matzehuels/diagramgen/pkg/naming"
	"github.com/matzehuels/diagramgen/pkg/pipeline"
)

// generateOptions holds the flags shared by generate and watch. Flags that
// map to configuration keys are bound through flagKeys so that only flags
// given on the command line override the config file.
type generateOptions struct {
	configFile string
	noCache    bool
	progress   bool
	listFiles  bool
}

// flagKeys maps flag names to configuration keys.
var flagKeys = map[string]string{
	"dir":              "fileset.directory",
	"include":          "fileset.includes",
	"exclude":          "fileset.excludes",
	"follow-symlinks":  "fileset.follow_symlinks",
	"default-excludes": "fileset.default_excludes",
	"output-dir":       "output_directory",
	"pattern":          "output_filename_pattern",
	"format":           "extractor.format",
	"source-version":   "extractor.source_version",
	"base-style":       "extractor.base_style_url",
	"style-url":        "extractor.user_style_urls",
	"style-rule":       "extractor.user_style_rules",
	"option":           "extractor.options",
	"encoding":         "extractor.encoding",
	"render":           "renderer.enabled",
	"renderer":         "renderer.executable",
	"render-format":    "renderer.format",
	"render-timeout":   "renderer.timeout",
}

func (o *generateOptions) register(fs *pflag.FlagSet) {
	d := config.Default()

	fs.StringVarP(&o.configFile, "config", "c", "", "config file (default ./"+config.DefaultFile+")")
	fs.BoolVar(&o.noCache, "no-cache", false, "always invoke the renderer")
	fs.BoolVar(&o.progress, "progress", false, "show a progress bar on terminals")
	fs.BoolVar(&o.listFiles, "list", false, "list every written diagram")

	fs.StringP("dir", "d", d.FileSet.Directory, "source directory to scan")
	fs.StringSlice("include", d.FileSet.Includes, "include pattern (repeatable)")
	fs.StringSlice("exclude", nil, "exclude pattern (repeatable)")
	fs.Bool("follow-symlinks", d.FileSet.FollowSymlinks, "descend into symlinked directories")
	fs.Bool("default-excludes", d.FileSet.UseDefaultExcludes, "skip VCS and editor files")

	fs.StringP("output-dir", "o", d.OutputDirectory, "directory diagrams are written under")
	fs.StringP("pattern", "p", d.OutputFilenamePattern, "diagram path: {directory}, {basename}, {index}")

	fs.String("format", d.Extractor.Format, "diagram format")
	fs.String("source-version", d.Extractor.SourceVersion, "source language version")
	fs.String("base-style", d.Extractor.BaseStyleURL, "base style sheet")
	fs.StringSlice("style-url", nil, "additional style sheet (repeatable)")
	fs.StringArray("style-rule", nil, "graph attribute as key=value (repeatable)")
	fs.StringToString("option", nil, "extractor option as key=value (repeatable)")
	fs.String("encoding", d.Extractor.Encoding, "source file encoding")

	fs.Bool("render", d.Renderer.Enabled, "render each diagram to an image")
	fs.String("renderer", d.Renderer.Executable, `renderer executable, or "builtin"`)
	fs.String("render-format", d.Renderer.Format, "image format passed as -T")
	fs.Duration("render-timeout", d.Renderer.Timeout, "kill the renderer after this long (0 = never)")
}

// load builds the configuration for a command from file, environment and flags.
func (o *generateOptions) load(cmd *cobra.Command) (config.Config, error) {
	return config.Load(config.LoadOptions{
		File:     o.configFile,
		Flags:    cmd.Flags(),
		FlagKeys: flagKeys,
	})
}

// generateCommand creates the generate command.
func (c *CLI) generateCommand() *cobra.Command {
	var opts generateOptions

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write and render a diagram for every matched source file",
		Long: `Scan the source directory, write one Graphviz diagram per method of every
matched file under the output directory and render each diagram with dot.

Settings are read from diagramgen.toml, DIAGRAMGEN_* environment variables
and flags, in increasing priority.`,
		Example: `  diagramgen generate
  diagramgen generate -d src -o docs --pattern '{directory}/{basename}-{index}.dot'
  diagramgen generate --option edgerNames=control-flow,ast --render=false`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			_, err = c.generate(cmd.Context(), cfg, opts)
			return err
		},
	}

	opts.register(cmd.Flags())
	return cmd
}

// generate runs the pipeline once under the output directory lock and prints
// the summary.
func (c *CLI) generate(ctx context.Context, cfg config.Config, opts generateOptions) (*pipeline.Result, error) {
	if cfg.Verbose {
		c.SetLogLevel(LogDebug)
	}
	for _, token := range naming.Unrecognized(cfg.OutputFilenamePattern) {
		printWarning("Pattern %q contains %s, which is not a placeholder and is kept as is", cfg.OutputFilenamePattern, token)
	}
	if !naming.HasIndex(cfg.OutputFilenamePattern) {
		c.Logger.Debug("Pattern has no {index}, later diagrams of a file replace earlier ones", "pattern", cfg.OutputFilenamePattern)
	}

	unlock, err := lockOutput(cfg.OutputDirectory, c.Logger)
	if err != nil {
		return nil, err
	}
	defer unlock()

	cache, err := newCache(opts.noCache)
	if err != nil {
		return nil, err
	}
	defer cache.Close()

	runner := pipeline.NewRunner(cfg, cache, c.Logger)
	if opts.progress && isTerminal(os.Stderr) {
		runner.Hooks = newProgressReporter(os.Stderr)
	}

	result, err := runner.Run(ctx)
	if err != nil {
		return result, err
	}
	printSummary(result, opts.listFiles)
	return result, nil
}
