package render

import (
	"context"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/diagramgen/pkg/cache"
	"github.com/matzehuels/diagramgen/pkg/observability"
)

const renderKeyType = "render"

// CachedRenderer skips rendering when imagePath still holds the render of
// the current diagram content: the hash stored for the image must equal the
// diagram's hash and the image must exist. Cache failures are logged and
// otherwise ignored.
type CachedRenderer struct {
	Renderer   Renderer
	Cache      cache.Cache
	Executable string
	Format     string
	Logger     *log.Logger
}

// Render implements Renderer.
func (c *CachedRenderer) Render(ctx context.Context, diagramPath, imagePath string) Outcome {
	logger := c.Logger
	if logger == nil {
		logger = log.Default()
	}

	diagram, err := os.ReadFile(diagramPath)
	if err != nil || samePath(diagramPath, imagePath) {
		// The diagram replaced the previous image, so there is nothing to reuse.
		return c.Renderer.Render(ctx, diagramPath, imagePath)
	}

	key := cache.RenderKey(c.Executable, c.Format, absPath(imagePath))
	sum := cache.Hash(diagram)
	if stored, hit, err := c.Cache.Get(ctx, key); err != nil {
		logger.Debug("render cache read failed", "err", err)
	} else if hit && string(stored) == sum && exists(imagePath) {
		observability.Cache().OnCacheHit(ctx, renderKeyType)
		logger.Debugf("Image up to date: %s", imagePath)
		return Outcome{Success: true, Cached: true}
	}
	observability.Cache().OnCacheMiss(ctx, renderKeyType)

	o := c.Renderer.Render(ctx, diagramPath, imagePath)
	if !o.Success {
		// The image may be gone or half written.
		if err := c.Cache.Delete(ctx, key); err != nil {
			logger.Debug("render cache delete failed", "err", err)
		}
		return o
	}
	if err := c.Cache.Set(ctx, key, []byte(sum), 0); err != nil {
		logger.Debug("render cache write failed", "err", err)
	} else {
		observability.Cache().OnCacheSet(ctx, renderKeyType, len(sum))
	}
	return o
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return absA == absB
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

var _ Renderer = (*CachedRenderer)(nil)
