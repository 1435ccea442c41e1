package fileset

import (
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gobwas/glob"

	"github.com/matzehuels/diagramgen/pkg/errors"
)

// Spec describes which files under Directory participate in a run.
type Spec struct {
	Directory          string
	Includes           []string
	Excludes           []string
	FollowSymlinks     bool
	UseDefaultExcludes bool
}

// DefaultExcludes are the version-control and editor artifacts skipped when
// Spec.UseDefaultExcludes is set.
var DefaultExcludes = []string{
	"**/*~",
	"**/#*#",
	"**/.#*",
	"**/%*%",
	"**/._*",
	"**/CVS",
	"**/CVS/**",
	"**/.cvsignore",
	"**/RCS",
	"**/RCS/**",
	"**/SCCS",
	"**/SCCS/**",
	"**/vssver.scc",
	"**/.svn",
	"**/.svn/**",
	"**/.arch-ids",
	"**/.arch-ids/**",
	"**/.bzr",
	"**/.bzr/**",
	"**/.DS_Store",
	"**/.metadata",
	"**/.metadata/**",
	"**/.hg",
	"**/.hg/**",
	"**/.git",
	"**/.git/**",
	"**/.gitignore",
	"**/.gitattributes",
	"**/BitKeeper",
	"**/BitKeeper/**",
	"**/_darcs",
	"**/_darcs/**",
	"**/.darcsrepo",
	"**/.darcsrepo/**",
}

// Matcher resolves a base directory and patterns to sorted relative paths.
type Matcher interface {
	Match(baseDir string, includes, excludes []string, followSymlinks, useDefaultExcludes bool) ([]string, error)
}

// GlobMatcher is the filesystem Matcher backed by gobwas/glob.
type GlobMatcher struct{}

// Scan resolves spec with a GlobMatcher.
func Scan(spec Spec) ([]string, error) {
	return GlobMatcher{}.Match(spec.Directory, spec.Includes, spec.Excludes, spec.FollowSymlinks, spec.UseDefaultExcludes)
}

// Match walks baseDir and returns every regular file that matches at least one
// include pattern and no exclude pattern.
func (GlobMatcher) Match(baseDir string, includes, excludes []string, followSymlinks, useDefaultExcludes bool) ([]string, error) {
	info, err := os.Stat(baseDir)
	if err != nil || !info.IsDir() {
		return []string{}, nil
	}

	if len(includes) == 0 {
		includes = []string{"**"}
	}
	inc, err := compileAll(includes)
	if err != nil {
		return nil, err
	}
	if useDefaultExcludes {
		excludes = append(slices.Clone(excludes), DefaultExcludes...)
	}
	exc, err := compileAll(excludes)
	if err != nil {
		return nil, err
	}

	w := &walker{
		root:     baseDir,
		follow:   followSymlinks,
		includes: inc,
		excludes: exc,
		visited:  make(map[string]bool),
		files:    []string{},
	}
	if real, err := filepath.EvalSymlinks(baseDir); err == nil {
		w.visited[real] = true
	}
	w.walk("")

	slices.Sort(w.files)
	return w.files, nil
}

type walker struct {
	root     string
	follow   bool
	includes []compiledPattern
	excludes []compiledPattern
	visited  map[string]bool // real paths of the directories being walked
	files    []string
}

// walk visits the directory at rel (relative to root, slash separated).
// Unreadable directories are skipped.
func (w *walker) walk(rel string) {
	entries, err := os.ReadDir(filepath.Join(w.root, filepath.FromSlash(rel)))
	if err != nil {
		return
	}

	for _, entry := range entries {
		childRel := entry.Name()
		if rel != "" {
			childRel = rel + "/" + entry.Name()
		}
		full := filepath.Join(w.root, filepath.FromSlash(childRel))

		isDir := entry.IsDir()
		if entry.Type()&os.ModeSymlink != 0 {
			if !w.follow {
				continue
			}
			target, err := os.Stat(full)
			if err != nil {
				continue // dangling link
			}
			isDir = target.IsDir()
		}

		if isDir {
			if w.prunable(childRel) {
				continue
			}
			real, err := filepath.EvalSymlinks(full)
			if err != nil || w.visited[real] {
				continue
			}
			w.visited[real] = true
			w.walk(childRel)
			delete(w.visited, real)
			continue
		}

		if !entry.Type().IsRegular() && entry.Type()&os.ModeSymlink == 0 {
			continue
		}
		if matchesAny(childRel, w.includes) && !matchesAny(childRel, w.excludes) {
			w.files = append(w.files, childRel)
		}
	}
}

// prunable reports whether every path below dirRel is excluded, e.g. ".git"
// under "**/.git/**". Only patterns ending in "/**" can prune.
func (w *walker) prunable(dirRel string) bool {
	for _, cp := range w.excludes {
		for _, g := range cp.dirGlobs {
			if g.Match(dirRel) {
				return true
			}
		}
	}
	return false
}

// compiledPattern holds both the pattern string and its compiled variants.
// dirGlobs match directories whose whole subtree the pattern covers.
type compiledPattern struct {
	pattern  string
	globs    []glob.Glob
	dirGlobs []glob.Glob
}

func compileAll(patterns []string) ([]compiledPattern, error) {
	out := make([]compiledPattern, 0, len(patterns))
	for _, p := range patterns {
		cp, err := compile(p)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, nil
}

func compile(pattern string) (compiledPattern, error) {
	normalized := normalize(pattern)
	cp := compiledPattern{pattern: pattern}
	for _, v := range variants(normalized) {
		g, err := glob.Compile(v, '/')
		if err != nil {
			return compiledPattern{}, errors.Wrap(errors.ErrCodeInvalidPattern, err, "invalid pattern %q", pattern)
		}
		cp.globs = append(cp.globs, g)

		if prefix, ok := strings.CutSuffix(v, "/**"); ok && prefix != "" {
			dg, err := glob.Compile(prefix, '/')
			if err != nil {
				return compiledPattern{}, errors.Wrap(errors.ErrCodeInvalidPattern, err, "invalid pattern %q", pattern)
			}
			cp.dirGlobs = append(cp.dirGlobs, dg)
		}
	}
	return cp, nil
}

func normalize(pattern string) string {
	p := filepath.ToSlash(strings.TrimSpace(pattern))
	p = strings.TrimPrefix(p, "./")
	if strings.HasSuffix(p, "/") {
		p += "**"
	}
	return p
}

// variants expands every "**/" into both itself and nothing, so that "**/"
// also matches zero directories.
func variants(p string) []string {
	idx := strings.Index(p, "**/")
	if idx < 0 {
		return []string{p}
	}
	if idx > 0 && p[idx-1] != '/' {
		// "a**/b" is not a directory wildcard; keep it literal for this occurrence.
		head := p[:idx+3]
		var out []string
		for _, rest := range variants(p[idx+3:]) {
			out = append(out, head+rest)
		}
		return out
	}
	var out []string
	for _, rest := range variants(p[idx+3:]) {
		out = append(out, p[:idx+3]+rest, p[:idx]+rest)
	}
	return out
}

func matchesAny(path string, patterns []compiledPattern) bool {
	for _, cp := range patterns {
		for _, g := range cp.globs {
			if g.Match(path) {
				return true
			}
		}
	}
	return false
}

// Ensure GlobMatcher implements Matcher.
var _ Matcher = GlobMatcher{}
