// Package extract defines the boundary between the diagram pipeline and the
// code that turns one source file into diagram descriptions.
//
// An [Extractor] is used once per source file:
//
//	ex, _ := registry.New("Foo.java", cfg)
//	if err := ex.Parse(r, "UTF-8"); err != nil { ... }
//	for {
//	    more, err := ex.WriteDiagram(w)
//	    if err != nil || !more { break }
//	}
//
// Parse must be called exactly once before any WriteDiagram call. WriteDiagram
// writes the current diagram and reports whether another one is pending.
package extract

import (
	"io"
	"maps"
	"path"
	"slices"
	"strings"
	"sync"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"

	"github.com/matzehuels/diagramgen/pkg/errors"
)

// FormatDOT is the Graphviz description format.
const FormatDOT = "dot"

// DefaultEncoding is assumed when no source encoding is configured.
const DefaultEncoding = "UTF-8"

// Extractor converts one source file into a sequence of diagram descriptions.
type Extractor interface {
	// Parse reads the whole source. It returns a PARSE error on malformed input.
	Parse(r io.Reader, encoding string) error

	// WriteDiagram writes the current diagram to w and reports whether
	// another diagram is pending for the same source.
	WriteDiagram(w io.Writer) (more bool, err error)
}

// Config is passed opaquely from the run configuration to each extractor.
type Config struct {
	Format         string            // output format identifier, e.g. "dot"
	SourceVersion  string            // source language version
	BaseStyleURL   string            // base styling reference
	UserStyleURLs  []string          // additional styling references
	UserStyleRules []string          // additional styling rules
	Options        map[string]string // extractor-specific options
}

// Option returns Options[key], or def when the key is absent. Keys match
// case-insensitively when there is no exact match, since configuration
// files may lower-case them.
func (c Config) Option(key, def string) string {
	if v, ok := c.Options[key]; ok {
		return v
	}
	for k, v := range c.Options {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return def
}

// Factory builds a fresh Extractor for one source file.
type Factory func(cfg Config) (Extractor, error)

// Registry maps source file extensions to extractor factories.
// It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register associates ext (with or without the leading dot, case-insensitive)
// with f, replacing any previous registration.
func (r *Registry) Register(ext string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[normalizeExt(ext)] = f
}

// Lookup returns the factory for the extension of file.
func (r *Registry) Lookup(file string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[normalizeExt(path.Ext(file))]
	return f, ok
}

// New builds an extractor for file. It returns an INVALID_INPUT error when no
// factory is registered for the file's extension.
func (r *Registry) New(file string, cfg Config) (Extractor, error) {
	f, ok := r.Lookup(file)
	if !ok {
		return nil, errors.New(errors.ErrCodeInvalidInput, "no extractor registered for %s", file).WithPath(file)
	}
	return f(cfg)
}

// Extensions returns the registered extensions in sorted order.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.factories))
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// Decode wraps r so that it yields UTF-8 regardless of the source encoding.
// An empty encoding means UTF-8. Unknown encodings are PARSE errors.
func Decode(r io.Reader, encoding string) (io.Reader, error) {
	if encoding == "" || strings.EqualFold(encoding, "utf-8") || strings.EqualFold(encoding, "utf8") {
		return r, nil
	}
	enc, err := htmlindex.Get(encoding)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeParse, err, "unsupported source encoding %q", encoding)
	}
	return transform.NewReader(r, enc.NewDecoder()), nil
}
