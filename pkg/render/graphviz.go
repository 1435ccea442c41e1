package render

import (
	"bytes"
	"context"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/diagramgen/pkg/dest"
	"github.com/matzehuels/diagramgen/pkg/errors"
)

// GraphvizRenderer renders diagrams in-process with go-graphviz, so no
// Graphviz installation is needed.
type GraphvizRenderer struct {
	Format string // png, svg or jpg
	Logger *log.Logger
}

// Render implements Renderer.
func (r *GraphvizRenderer) Render(ctx context.Context, diagramPath, imagePath string) Outcome {
	start := time.Now()
	logger := r.Logger
	if logger == nil {
		logger = log.Default()
	}

	logger.Infof("Rendering %s", imagePath)
	img, err := r.render(ctx, diagramPath)
	if err == nil {
		err = writeImage(imagePath, img)
	}
	if err != nil {
		o := Outcome{ExitCode: -1, Err: errors.Wrap(errors.ErrCodeRender, err, "render %s", diagramPath).WithPath(diagramPath), Duration: time.Since(start)}
		logger.Warn("Renderer failed", "err", errors.UserMessage(o.Err))
		return o
	}
	return Outcome{Success: true, Duration: time.Since(start)}
}

func (r *GraphvizRenderer) render(ctx context.Context, diagramPath string) ([]byte, error) {
	dot, err := os.ReadFile(diagramPath)
	if err != nil {
		return nil, err
	}

	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeRender, err, "init graphviz")
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes(dot)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeRender, err, "parse DOT")
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, r.format(), &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (r *GraphvizRenderer) format() graphviz.Format {
	switch strings.ToLower(r.Format) {
	case "svg":
		return graphviz.SVG
	case "jpg", "jpeg":
		return graphviz.JPG
	}
	return graphviz.PNG
}

// writeImage writes data to path under the same destination rules as
// diagram files.
func writeImage(path string, data []byte) (err error) {
	f, err := dest.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	_, err = f.Write(data)
	return err
}

var _ Renderer = (*GraphvizRenderer)(nil)
