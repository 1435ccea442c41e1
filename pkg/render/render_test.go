package render

import (
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/diagramgen/pkg/cache"
	"github.com/matzehuels/diagramgen/pkg/errors"
)

type fakeRunner struct {
	code  int
	out   string
	err   error
	block bool
	argv  [][]string
}

func (f *fakeRunner) Run(ctx context.Context, argv []string) (int, []byte, error) {
	f.argv = append(f.argv, argv)
	if f.block {
		<-ctx.Done()
		return -1, nil, ctx.Err()
	}
	return f.code, []byte(f.out), f.err
}

var quiet = log.New(io.Discard)

func TestImagePath(t *testing.T) {
	tests := []struct {
		name    string
		diagram string
		format  string
		want    string
	}{
		{"swap extension", "out/pkg/Foo.dot", "png", "out/pkg/Foo.png"},
		{"same extension", "out/pkg/Foo.png", "png", "out/pkg/Foo.png"},
		{"last extension only", "out/Foo.tar.dot", "svg", "out/Foo.tar.svg"},
		{"no extension", "out/Foo", "png", "out/Foo.png"},
		{"dot in directory", "out.d/Foo", "png", "out.d/Foo.png"},
		{"default format", "Foo.dot", "", "Foo.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ImagePath(filepath.FromSlash(tt.diagram), tt.format); got != filepath.FromSlash(tt.want) {
				t.Errorf("ImagePath(%q, %q) = %q, want %q", tt.diagram, tt.format, got, tt.want)
			}
		})
	}
}

func TestInvokerArgv(t *testing.T) {
	dir := t.TempDir()
	runner := &fakeRunner{}
	iv := &Invoker{Executable: "dot", Format: "svg", Runner: runner, Logger: quiet}

	diagram := filepath.Join(dir, "Foo.dot")
	image := filepath.Join(dir, "Foo.svg")
	o := iv.Render(context.Background(), diagram, image)
	if !o.Success || o.Err != nil {
		t.Fatalf("Render() = %+v, want success", o)
	}

	want := []string{"dot", diagram, "-Tsvg", "-o" + image}
	if len(runner.argv) != 1 || strings.Join(runner.argv[0], " ") != strings.Join(want, " ") {
		t.Errorf("argv = %v, want %v", runner.argv, want)
	}
}

func TestInvokerDefaults(t *testing.T) {
	runner := &fakeRunner{}
	iv := &Invoker{Runner: runner, Logger: quiet}
	iv.Render(context.Background(), "a.dot", "a.png")

	argv := runner.argv[0]
	if argv[0] != DefaultExecutable || argv[2] != "-Tpng" {
		t.Errorf("argv = %v, want dot ... -Tpng", argv)
	}
	if !filepath.IsAbs(argv[1]) || !strings.HasPrefix(argv[3], "-o") || !filepath.IsAbs(strings.TrimPrefix(argv[3], "-o")) {
		t.Errorf("argv paths should be absolute: %v", argv)
	}
}

func TestInvokerFailures(t *testing.T) {
	tests := []struct {
		name     string
		runner   *fakeRunner
		timeout  time.Duration
		wantCode int
	}{
		{"non-zero exit", &fakeRunner{code: 2, out: "syntax error in line 1"}, 0, 2},
		{"launch failure", &fakeRunner{code: -1, err: exec.ErrNotFound}, 0, -1},
		{"timeout", &fakeRunner{block: true}, 10 * time.Millisecond, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			iv := &Invoker{Runner: tt.runner, Timeout: tt.timeout, Logger: quiet}
			o := iv.Render(context.Background(), "a.dot", "a.png")
			if o.Success {
				t.Fatal("Render() succeeded, want failure")
			}
			if !errors.Is(o.Err, errors.ErrCodeRender) {
				t.Errorf("Err = %v, want RENDER", o.Err)
			}
			if errors.IsFatal(o.Err) {
				t.Error("render failures must not be fatal")
			}
			if o.ExitCode != tt.wantCode {
				t.Errorf("ExitCode = %d, want %d", o.ExitCode, tt.wantCode)
			}
		})
	}
}

func TestExecRunner(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	ctx := context.Background()

	code, out, err := ExecRunner{}.Run(ctx, []string{"sh", "-c", "echo oops; exit 3"})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if code != 3 || strings.TrimSpace(string(out)) != "oops" {
		t.Errorf("Run() = %d, %q; want 3, oops", code, out)
	}

	if _, _, err := (ExecRunner{}).Run(ctx, []string{"definitely-not-a-real-binary-xyz"}); err == nil {
		t.Error("Run of missing binary should fail to launch")
	}
	if _, _, err := (ExecRunner{}).Run(ctx, nil); err == nil {
		t.Error("Run of empty argv should fail")
	}
}

func TestGraphvizRenderer(t *testing.T) {
	dir := t.TempDir()
	diagram := filepath.Join(dir, "g.dot")
	if err := os.WriteFile(diagram, []byte("digraph g { a -> b; }\n"), 0644); err != nil {
		t.Fatal(err)
	}

	r := &GraphvizRenderer{Format: "svg", Logger: quiet}
	image := ImagePath(diagram, "svg")
	o := r.Render(context.Background(), diagram, image)
	if !o.Success {
		t.Fatalf("Render() failed: %v", o.Err)
	}
	data, err := os.ReadFile(image)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "<svg") {
		t.Errorf("output is not SVG: %.80s", data)
	}
}

func TestGraphvizRendererBadInput(t *testing.T) {
	r := &GraphvizRenderer{Logger: quiet}
	o := r.Render(context.Background(), filepath.Join(t.TempDir(), "missing.dot"), "x.png")
	if o.Success || !errors.Is(o.Err, errors.ErrCodeRender) {
		t.Errorf("Render() = %+v, want RENDER failure", o)
	}
}

type countingRenderer struct{ calls int }

func (c *countingRenderer) Render(ctx context.Context, diagramPath, imagePath string) Outcome {
	c.calls++
	if err := os.WriteFile(imagePath, []byte("img"), 0644); err != nil {
		return Outcome{Err: err}
	}
	return Outcome{Success: true}
}

func TestCachedRenderer(t *testing.T) {
	dir := t.TempDir()
	fc, err := cache.NewFileCache(filepath.Join(dir, "cache"))
	if err != nil {
		t.Fatal(err)
	}
	inner := &countingRenderer{}
	r := &CachedRenderer{Renderer: inner, Cache: fc, Executable: "dot", Format: "png", Logger: quiet}
	ctx := context.Background()

	diagram := filepath.Join(dir, "Foo.dot")
	image := filepath.Join(dir, "Foo.png")
	if err := os.WriteFile(diagram, []byte("digraph { a }"), 0644); err != nil {
		t.Fatal(err)
	}

	if o := r.Render(ctx, diagram, image); !o.Success || o.Cached {
		t.Fatalf("first Render() = %+v, want fresh success", o)
	}
	if o := r.Render(ctx, diagram, image); !o.Success || !o.Cached {
		t.Errorf("second Render() = %+v, want cached", o)
	}
	if inner.calls != 1 {
		t.Errorf("inner calls = %d, want 1", inner.calls)
	}

	// a missing image forces a render
	if err := os.Remove(image); err != nil {
		t.Fatal(err)
	}
	r.Render(ctx, diagram, image)
	if inner.calls != 2 {
		t.Errorf("inner calls after image removal = %d, want 2", inner.calls)
	}

	// changed content forces a render
	if err := os.WriteFile(diagram, []byte("digraph { b }"), 0644); err != nil {
		t.Fatal(err)
	}
	r.Render(ctx, diagram, image)
	if inner.calls != 3 {
		t.Errorf("inner calls after change = %d, want 3", inner.calls)
	}
}

// copyingRenderer writes "IMG:" plus the diagram content to the image.
type copyingRenderer struct {
	calls int
	fail  bool
}

func (c *copyingRenderer) Render(ctx context.Context, diagramPath, imagePath string) Outcome {
	c.calls++
	if c.fail {
		return Outcome{Err: errors.New(errors.ErrCodeRender, "renderer exited with code 1")}
	}
	data, err := os.ReadFile(diagramPath)
	if err != nil {
		return Outcome{Err: err}
	}
	if err := os.WriteFile(imagePath, append([]byte("IMG:"), data...), 0644); err != nil {
		return Outcome{Err: err}
	}
	return Outcome{Success: true}
}

func TestCachedRendererRevertedContent(t *testing.T) {
	dir := t.TempDir()
	fc, err := cache.NewFileCache(filepath.Join(dir, "cache"))
	if err != nil {
		t.Fatal(err)
	}
	inner := &copyingRenderer{}
	r := &CachedRenderer{Renderer: inner, Cache: fc, Executable: "dot", Format: "png", Logger: quiet}
	ctx := context.Background()

	diagram := filepath.Join(dir, "Foo.dot")
	image := filepath.Join(dir, "Foo.png")
	for _, content := range []string{"A", "B", "A"} {
		if err := os.WriteFile(diagram, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
		if o := r.Render(ctx, diagram, image); !o.Success {
			t.Fatalf("Render(%s) failed: %v", content, o.Err)
		}
	}

	data, err := os.ReadFile(image)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "IMG:A" {
		t.Errorf("image = %q, want %q", data, "IMG:A")
	}
	if inner.calls != 3 {
		t.Errorf("inner calls = %d, want 3", inner.calls)
	}
}

func TestCachedRendererFailureForcesRerender(t *testing.T) {
	dir := t.TempDir()
	fc, err := cache.NewFileCache(filepath.Join(dir, "cache"))
	if err != nil {
		t.Fatal(err)
	}
	inner := &copyingRenderer{}
	r := &CachedRenderer{Renderer: inner, Cache: fc, Executable: "dot", Format: "png", Logger: quiet}
	ctx := context.Background()

	diagram := filepath.Join(dir, "Foo.dot")
	image := filepath.Join(dir, "Foo.png")
	steps := []struct {
		content string
		fail    bool
	}{
		{"A", false},
		{"B", true},
		{"A", false},
	}
	for _, step := range steps {
		if err := os.WriteFile(diagram, []byte(step.content), 0644); err != nil {
			t.Fatal(err)
		}
		inner.fail = step.fail
		if o := r.Render(ctx, diagram, image); o.Success == step.fail {
			t.Fatalf("Render(%s) = %+v, want success %v", step.content, o, !step.fail)
		}
	}

	// the failed render may have clobbered the image, so A is rendered again
	if inner.calls != 3 {
		t.Errorf("inner calls = %d, want 3", inner.calls)
	}
}

func TestCachedRendererSamePath(t *testing.T) {
	dir := t.TempDir()
	inner := &countingRenderer{}
	r := &CachedRenderer{Renderer: inner, Cache: cache.NewNullCache(), Logger: quiet}

	path := filepath.Join(dir, "Foo.png")
	if err := os.WriteFile(path, []byte("digraph {}"), 0644); err != nil {
		t.Fatal(err)
	}
	r.Render(context.Background(), path, path)
	r.Render(context.Background(), path, path)
	if inner.calls != 2 {
		t.Errorf("inner calls = %d, want 2", inner.calls)
	}
}

func TestNew(t *testing.T) {
	if _, ok := New(Builtin, "png", 0, quiet).(*GraphvizRenderer); !ok {
		t.Error("New(builtin) should return a GraphvizRenderer")
	}
	iv, ok := New("/usr/bin/dot", "svg", time.Second, quiet).(*Invoker)
	if !ok {
		t.Fatal("New(dot) should return an Invoker")
	}
	if iv.Executable != "/usr/bin/dot" || iv.Format != "svg" || iv.Timeout != time.Second {
		t.Errorf("New() = %+v", iv)
	}
}
