package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/diagramgen/pkg/errors"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "target/diagramgen", cfg.OutputDirectory)
	assert.Equal(t, "{directory}/doc-files/{basename}.png", cfg.OutputFilenamePattern)
	assert.Equal(t, "11", cfg.Extractor.SourceVersion)
	assert.Equal(t, "JavaToGraphviz.css", cfg.Extractor.BaseStyleURL)
	assert.Equal(t, "dot", cfg.Extractor.Format)
	assert.True(t, cfg.Renderer.Enabled)
	assert.Equal(t, "dot", cfg.Renderer.Executable)
	assert.Zero(t, cfg.Renderer.Timeout)
	assert.True(t, cfg.FileSet.UseDefaultExcludes)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"no output directory", func(c *Config) { c.OutputDirectory = "" }},
		{"blank pattern", func(c *Config) { c.OutputFilenamePattern = "  " }},
		{"negative timeout", func(c *Config) { c.Renderer.Timeout = -time.Second }},
		{"no executable", func(c *Config) { c.Renderer.Executable = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg)
			err := cfg.Validate()
			if !errors.Is(err, errors.ErrCodeConfiguration) {
				t.Errorf("Validate() = %v, want CONFIGURATION error", err)
			}
		})
	}

	cfg := Default()
	cfg.Renderer.Enabled = false
	cfg.Renderer.Executable = ""
	assert.NoError(t, cfg.Validate(), "executable is not needed when rendering is disabled")
}

func TestCloneIsDeep(t *testing.T) {
	cfg := Default()
	cfg.Extractor.Options = map[string]string{"edgerNames": "ast"}

	clone := cfg.Clone()
	clone.FileSet.Includes[0] = "changed"
	clone.Extractor.Options["edgerNames"] = "changed"

	assert.Equal(t, DefaultInclude, cfg.FileSet.Includes[0])
	assert.Equal(t, "ast", cfg.Extractor.Options["edgerNames"])

	ec := cfg.ExtractConfig()
	ec.Options["edgerNames"] = "changed"
	assert.Equal(t, "ast", cfg.Extractor.Options["edgerNames"])
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(LoadOptions{Dir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, Default().OutputDirectory, cfg.OutputDirectory)
	assert.Equal(t, []string{DefaultInclude}, cfg.FileSet.Includes)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	content := `output_directory = "build/diagrams"
output_filename_pattern = "{basename}-{index}.dot"

[fileset]
directory = "src"
includes = ["**/*.java"]
excludes = ["**/generated/**"]

[extractor.options]
edgerNames = "control-flow,ast"

[renderer]
enabled = false
timeout = "30s"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultFile), []byte(content), 0644))

	cfg, err := Load(LoadOptions{Dir: dir})
	require.NoError(t, err)

	assert.Equal(t, "build/diagrams", cfg.OutputDirectory)
	assert.Equal(t, "{basename}-{index}.dot", cfg.OutputFilenamePattern)
	assert.Equal(t, "src", cfg.FileSet.Directory)
	assert.Equal(t, []string{"**/generated/**"}, cfg.FileSet.Excludes)
	assert.False(t, cfg.Renderer.Enabled)
	assert.Equal(t, 30*time.Second, cfg.Renderer.Timeout)
	assert.Equal(t, "control-flow,ast", cfg.ExtractConfig().Option("edgerNames", ""))
	assert.Equal(t, "11", cfg.Extractor.SourceVersion)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultFile), []byte(`output_directory = "from-file"`), 0644))
	t.Setenv("DIAGRAMGEN_OUTPUT_DIRECTORY", "from-env")

	cfg, err := Load(LoadOptions{Dir: dir})
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.OutputDirectory)
}

func TestLoadFlagsOverrideEverything(t *testing.T) {
	t.Setenv("DIAGRAMGEN_OUTPUT_DIRECTORY", "from-env")
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("output-dir", "", "")
	flags.Bool("no-render", false, "")
	require.NoError(t, flags.Parse([]string{"--output-dir", "from-flag"}))

	cfg, err := Load(LoadOptions{
		Dir:      t.TempDir(),
		Flags:    flags,
		FlagKeys: map[string]string{"output-dir": "output_directory", "missing": "verbose"},
	})
	require.NoError(t, err)
	assert.Equal(t, "from-flag", cfg.OutputDirectory)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(LoadOptions{File: filepath.Join(t.TempDir(), "nope.toml")})
	assert.True(t, errors.Is(err, errors.ErrCodeConfiguration), "got %v", err)
}

func TestLoadInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultFile), []byte(`output_directory = ""`), 0644))

	_, err := Load(LoadOptions{Dir: dir})
	assert.True(t, errors.Is(err, errors.ErrCodeConfiguration), "got %v", err)
}

func TestWriteFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFile)

	want := Default()
	want.Renderer.Timeout = 2 * time.Minute
	require.NoError(t, WriteFile(path, want, false))

	got, err := Load(LoadOptions{File: path})
	require.NoError(t, err)
	assert.Equal(t, want.OutputDirectory, got.OutputDirectory)
	assert.Equal(t, want.OutputFilenamePattern, got.OutputFilenamePattern)
	assert.Equal(t, want.Renderer.Timeout, got.Renderer.Timeout)
	assert.Equal(t, want.FileSet.Includes, got.FileSet.Includes)

	err = WriteFile(path, want, false)
	assert.True(t, errors.Is(err, errors.ErrCodeDestination), "existing file must not be overwritten")
	assert.NoError(t, WriteFile(path, want, true))
}
