// Package config defines the run configuration of diagramgen.
//
// A [Config] is built once at startup, by [Load] or [Default], and is not
// modified afterwards. Values are layered, lowest priority first:
//
//  1. built-in defaults ([Default])
//  2. the config file (diagramgen.toml in the working directory, or --config)
//  3. environment variables (DIAGRAMGEN_OUTPUT_DIRECTORY, DIAGRAMGEN_RENDERER_ENABLED, ...)
//  4. command-line flags
package config

import (
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/matzehuels/diagramgen/pkg/errors"
	"github.com/matzehuels/diagramgen/pkg/extract"
	"github.com/matzehuels/diagramgen/pkg/fileset"
)

// Defaults.
const (
	DefaultDirectory       = "src/main/java"
	DefaultOutputDirectory = "target/diagramgen"
	DefaultTemplate        = "{directory}/doc-files/{basename}.png"
	DefaultSourceVersion   = "11"
	DefaultBaseStyleURL    = "JavaToGraphviz.css"
	DefaultExecutable      = "dot"
	DefaultRenderFormat    = "png"
	DefaultEncoding        = extract.DefaultEncoding
	DefaultInclude         = "**/*.java"
)

// FileSet selects the source files.
type FileSet struct {
	Directory          string   `mapstructure:"directory" toml:"directory"`
	Includes           []string `mapstructure:"includes" toml:"includes"`
	Excludes           []string `mapstructure:"excludes" toml:"excludes"`
	FollowSymlinks     bool     `mapstructure:"follow_symlinks" toml:"follow_symlinks"`
	UseDefaultExcludes bool     `mapstructure:"default_excludes" toml:"default_excludes"`
}

// Extractor is forwarded to the extractor of each source file.
type Extractor struct {
	Format         string            `mapstructure:"format" toml:"format"`
	SourceVersion  string            `mapstructure:"source_version" toml:"source_version"`
	BaseStyleURL   string            `mapstructure:"base_style_url" toml:"base_style_url"`
	UserStyleURLs  []string          `mapstructure:"user_style_urls" toml:"user_style_urls"`
	UserStyleRules []string          `mapstructure:"user_style_rules" toml:"user_style_rules"`
	Options        map[string]string `mapstructure:"options" toml:"options"`
	Encoding       string            `mapstructure:"encoding" toml:"encoding"`
}

// Renderer controls image rendering after each diagram is written.
type Renderer struct {
	Enabled    bool          `mapstructure:"enabled" toml:"enabled"`
	Executable string        `mapstructure:"executable" toml:"executable"`
	Format     string        `mapstructure:"format" toml:"format"`
	Timeout    time.Duration `mapstructure:"timeout" toml:"timeout"`
}

// Config is the complete configuration of one run.
type Config struct {
	FileSet               FileSet   `mapstructure:"fileset" toml:"fileset"`
	OutputDirectory       string    `mapstructure:"output_directory" toml:"output_directory"`
	OutputFilenamePattern string    `mapstructure:"output_filename_pattern" toml:"output_filename_pattern"`
	Extractor             Extractor `mapstructure:"extractor" toml:"extractor"`
	Renderer              Renderer  `mapstructure:"renderer" toml:"renderer"`
	Verbose               bool      `mapstructure:"verbose" toml:"verbose"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		FileSet: FileSet{
			Directory:          DefaultDirectory,
			Includes:           []string{DefaultInclude},
			UseDefaultExcludes: true,
		},
		OutputDirectory:       DefaultOutputDirectory,
		OutputFilenamePattern: DefaultTemplate,
		Extractor: Extractor{
			Format:        extract.FormatDOT,
			SourceVersion: DefaultSourceVersion,
			BaseStyleURL:  DefaultBaseStyleURL,
			Encoding:      DefaultEncoding,
		},
		Renderer: Renderer{
			Enabled:    true,
			Executable: DefaultExecutable,
			Format:     DefaultRenderFormat,
		},
	}
}

// Clone returns a deep copy of c.
func (c Config) Clone() Config {
	out := c
	out.FileSet.Includes = slices.Clone(c.FileSet.Includes)
	out.FileSet.Excludes = slices.Clone(c.FileSet.Excludes)
	out.Extractor.UserStyleURLs = slices.Clone(c.Extractor.UserStyleURLs)
	out.Extractor.UserStyleRules = slices.Clone(c.Extractor.UserStyleRules)
	out.Extractor.Options = maps.Clone(c.Extractor.Options)
	return out
}

// Validate returns a CONFIGURATION error when a required field is missing
// or a value is out of range.
func (c Config) Validate() error {
	if strings.TrimSpace(c.OutputDirectory) == "" {
		return errors.New(errors.ErrCodeConfiguration, "output directory is not set")
	}
	if strings.TrimSpace(c.OutputFilenamePattern) == "" {
		return errors.New(errors.ErrCodeConfiguration, "output filename pattern is not set")
	}
	if c.Renderer.Timeout < 0 {
		return errors.New(errors.ErrCodeConfiguration, "renderer timeout must not be negative, got %s", c.Renderer.Timeout)
	}
	if c.Renderer.Enabled && strings.TrimSpace(c.Renderer.Executable) == "" {
		return errors.New(errors.ErrCodeConfiguration, "renderer is enabled but no executable is set")
	}
	return nil
}

// FileSetSpec returns the file set to scan.
func (c Config) FileSetSpec() fileset.Spec {
	return fileset.Spec{
		Directory:          c.FileSet.Directory,
		Includes:           slices.Clone(c.FileSet.Includes),
		Excludes:           slices.Clone(c.FileSet.Excludes),
		FollowSymlinks:     c.FileSet.FollowSymlinks,
		UseDefaultExcludes: c.FileSet.UseDefaultExcludes,
	}
}

// ExtractConfig returns the configuration passed to each extractor.
func (c Config) ExtractConfig() extract.Config {
	return extract.Config{
		Format:         c.Extractor.Format,
		SourceVersion:  c.Extractor.SourceVersion,
		BaseStyleURL:   c.Extractor.BaseStyleURL,
		UserStyleURLs:  slices.Clone(c.Extractor.UserStyleURLs),
		UserStyleRules: slices.Clone(c.Extractor.UserStyleRules),
		Options:        maps.Clone(c.Extractor.Options),
	}
}
