package config

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/matzehuels/diagramgen/pkg/errors"
)

// File naming of the config file.
const (
	FileName  = "diagramgen"
	FileType  = "toml"
	EnvPrefix = "DIAGRAMGEN"
)

// DefaultFile is the config file looked up in the working directory.
var DefaultFile = FileName + "." + FileType

// LoadOptions controls where Load looks for configuration.
type LoadOptions struct {
	// File is an explicit config file. It must exist.
	File string

	// Dir is searched for diagramgen.toml when File is empty.
	Dir string

	// Flags override every other source. FlagKeys maps flag names to keys.
	Flags    *pflag.FlagSet
	FlagKeys map[string]string
}

// Load builds the configuration from defaults, config file, environment and
// flags, then validates it.
func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	if opts.File != "" {
		v.SetConfigFile(opts.File)
	} else {
		dir := opts.Dir
		if dir == "" {
			dir = "."
		}
		v.SetConfigName(FileName)
		v.SetConfigType(FileType)
		v.AddConfigPath(dir)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if opts.Flags != nil {
		for name, key := range opts.FlagKeys {
			f := opts.Flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return Config{}, errors.Wrap(errors.ErrCodeInternal, err, "bind flag --%s", name)
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.File != "" || !stderrors.As(err, &notFound) {
			return Config{}, errors.Wrap(errors.ErrCodeConfiguration, err, "read config file").WithPath(v.ConfigFileUsed())
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeConfiguration, err, "decode configuration")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg.Clone(), nil
}

// setDefaults registers every key so that environment variables are seen
// for keys absent from the config file.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("fileset.directory", d.FileSet.Directory)
	v.SetDefault("fileset.includes", d.FileSet.Includes)
	v.SetDefault("fileset.excludes", []string{})
	v.SetDefault("fileset.follow_symlinks", d.FileSet.FollowSymlinks)
	v.SetDefault("fileset.default_excludes", d.FileSet.UseDefaultExcludes)

	v.SetDefault("output_directory", d.OutputDirectory)
	v.SetDefault("output_filename_pattern", d.OutputFilenamePattern)

	v.SetDefault("extractor.format", d.Extractor.Format)
	v.SetDefault("extractor.source_version", d.Extractor.SourceVersion)
	v.SetDefault("extractor.base_style_url", d.Extractor.BaseStyleURL)
	v.SetDefault("extractor.user_style_urls", []string{})
	v.SetDefault("extractor.user_style_rules", []string{})
	v.SetDefault("extractor.options", map[string]string{})
	v.SetDefault("extractor.encoding", d.Extractor.Encoding)

	v.SetDefault("renderer.enabled", d.Renderer.Enabled)
	v.SetDefault("renderer.executable", d.Renderer.Executable)
	v.SetDefault("renderer.format", d.Renderer.Format)
	v.SetDefault("renderer.timeout", d.Renderer.Timeout)

	v.SetDefault("verbose", d.Verbose)
}

// WriteFile writes cfg as a TOML config file. An existing file is only
// replaced when force is set.
func WriteFile(path string, cfg Config, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return errors.New(errors.ErrCodeDestination, "%s already exists (use --force to overwrite)", path).WithPath(path)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrap(errors.ErrCodeIO, err, "create directory").WithPath(path)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "create config file").WithPath(path)
	}
	defer f.Close()

	if _, err := f.WriteString(fileHeader); err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "write config file").WithPath(path)
	}
	enc := toml.NewEncoder(f)
	enc.Indent = ""
	if err := enc.Encode(newFileView(cfg)); err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "encode config file").WithPath(path)
	}
	return nil
}

const fileHeader = `# diagramgen configuration.
#
# Placeholders in output_filename_pattern: {directory}, {basename}, {index}.
# Every key can be overridden with an environment variable, e.g.
# DIAGRAMGEN_OUTPUT_DIRECTORY or DIAGRAMGEN_RENDERER_ENABLED=false.
# renderer.executable = "builtin" renders in-process without Graphviz.

`

// fileView is Config as written by WriteFile; the timeout is written as a
// duration string that viper reads back.
type fileView struct {
	FileSet               FileSet   `toml:"fileset"`
	OutputDirectory       string    `toml:"output_directory"`
	OutputFilenamePattern string    `toml:"output_filename_pattern"`
	Extractor             Extractor `toml:"extractor"`
	Renderer              struct {
		Enabled    bool   `toml:"enabled"`
		Executable string `toml:"executable"`
		Format     string `toml:"format"`
		Timeout    string `toml:"timeout"`
	} `toml:"renderer"`
}

func newFileView(cfg Config) fileView {
	var v fileView
	v.FileSet = cfg.FileSet
	v.OutputDirectory = cfg.OutputDirectory
	v.OutputFilenamePattern = cfg.OutputFilenamePattern
	v.Extractor = cfg.Extractor
	v.Renderer.Enabled = cfg.Renderer.Enabled
	v.Renderer.Executable = cfg.Renderer.Executable
	v.Renderer.Format = cfg.Renderer.Format
	v.Renderer.Timeout = cfg.Renderer.Timeout.String()
	return v
}
