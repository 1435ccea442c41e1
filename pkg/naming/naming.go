// Package naming maps a source file and a diagram index to an output path.
//
// A naming template is plain text with up to three placeholders:
//
//   - {directory} - the source file's directory, relative to the fileset base
//   - {basename}  - the source file name without directory or extension
//   - {index}     - the zero-based diagram index within that source file
//
// Expansion is pure string substitution. Unrecognised placeholders stay in
// the output verbatim; [Unrecognized] lists them so callers can warn.
package naming

import (
	"path"
	"regexp"
	"strconv"
	"strings"
)

// Recognised placeholders.
const (
	PlaceholderDirectory = "{directory}"
	PlaceholderBasename  = "{basename}"
	PlaceholderIndex     = "{index}"
)

// SourceFile is a scanned file with the parts a template needs.
type SourceFile struct {
	Path     string // relative path, slash separated
	Dir      string // relative parent directory, "" for files at the base
	BaseName string // file name up to the first '.'
}

// NewSourceFile derives a SourceFile from a relative path.
func NewSourceFile(rel string) SourceFile {
	rel = strings.ReplaceAll(rel, "\\", "/")
	dir := path.Dir(rel)
	if dir == "." {
		dir = ""
	}
	name := path.Base(rel)
	if i := strings.Index(name, "."); i != -1 {
		name = name[:i]
	}
	return SourceFile{Path: rel, Dir: dir, BaseName: name}
}

// DiagramJob is one diagram of one source file and where it is written.
type DiagramJob struct {
	Source SourceFile
	Index  int
	Path   string // resolved path under the output directory
}

// Resolve expands every placeholder occurrence in template.
func Resolve(template, directory, basename string, index int) string {
	r := strings.NewReplacer(
		PlaceholderDirectory, directory,
		PlaceholderBasename, basename,
		PlaceholderIndex, strconv.Itoa(index),
	)
	return r.Replace(template)
}

// ResolveFor expands template for src at index.
func ResolveFor(template string, src SourceFile, index int) string {
	return Resolve(template, src.Dir, src.BaseName, index)
}

var placeholderRe = regexp.MustCompile(`\{[A-Za-z_]+\}`)

// Unrecognized returns the placeholder-like tokens in template that Resolve
// leaves untouched, such as "{dir}".
func Unrecognized(template string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, tok := range placeholderRe.FindAllString(template, -1) {
		switch tok {
		case PlaceholderDirectory, PlaceholderBasename, PlaceholderIndex:
			continue
		}
		if !seen[tok] {
			seen[tok] = true
			out = append(out, tok)
		}
	}
	return out
}

// HasIndex reports whether template distinguishes diagrams of the same file.
// Without {index}, later diagrams overwrite earlier ones.
func HasIndex(template string) bool {
	return strings.Contains(template, PlaceholderIndex)
}
