// Package observability provides hooks for progress reporting and metrics.
//
// Libraries report what they are doing through small hook interfaces with
// no-op defaults, so instrumentation never becomes a hard dependency of the
// pipeline. Register implementations once at startup:
//
//	func main() {
//	    observability.SetPipelineHooks(&myPipelineHooks{})
//	    // ... run application
//	}
//
// Libraries then emit events:
//
//	observability.Pipeline().OnFileStart(ctx, "src/Foo.java")
//	// ... emit diagrams ...
//	observability.Pipeline().OnDiagramWritten(ctx, "src/Foo.java", 0, "out/Foo.dot")
//
// A pipeline.Runner may also carry its own hooks, which take precedence over
// the global registry.
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Pipeline Hooks
// =============================================================================

// PipelineHooks receives events from a generation run.
type PipelineHooks interface {
	// OnRunStart is called after scanning, with the number of matched files.
	OnRunStart(ctx context.Context, runID string, files int)

	// OnFileStart is called before a source file is read.
	OnFileStart(ctx context.Context, file string)

	// OnDiagramWritten is called after each diagram file is written.
	OnDiagramWritten(ctx context.Context, file string, index int, path string)

	// OnRenderComplete is called after each render attempt; err is nil on success.
	OnRenderComplete(ctx context.Context, imagePath string, duration time.Duration, err error)

	// OnRunComplete is called once per run, also when the run fails.
	OnRunComplete(ctx context.Context, runID string, diagrams int, duration time.Duration, err error)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopPipelineHooks is a no-op implementation of PipelineHooks.
type NoopPipelineHooks struct{}

func (NoopPipelineHooks) OnRunStart(context.Context, string, int)                        {}
func (NoopPipelineHooks) OnFileStart(context.Context, string)                            {}
func (NoopPipelineHooks) OnDiagramWritten(context.Context, string, int, string)          {}
func (NoopPipelineHooks) OnRenderComplete(context.Context, string, time.Duration, error) {}
func (NoopPipelineHooks) OnRunComplete(context.Context, string, int, time.Duration, error) {
}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	pipelineHooks PipelineHooks = NoopPipelineHooks{}
	cacheHooks    CacheHooks    = NoopCacheHooks{}
	hooksMu       sync.RWMutex
)

// SetPipelineHooks registers custom pipeline hooks.
// This should be called once at application startup before any run.
func SetPipelineHooks(h PipelineHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		pipelineHooks = h
	}
}

// SetCacheHooks registers custom cache hooks.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// Pipeline returns the registered pipeline hooks.
func Pipeline() PipelineHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return pipelineHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	pipelineHooks = NoopPipelineHooks{}
	cacheHooks = NoopCacheHooks{}
}
