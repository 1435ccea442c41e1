// Package fileset resolves a base directory plus include/exclude glob patterns
// into a sorted list of relative file paths.
//
// # Patterns
//
// Patterns follow the Ant/Maven conventions that build users already know:
//
//   - "*" matches within one path segment, "**" matches across segments
//   - "**/" also matches zero directories, so "**/*.java" matches "Foo.java"
//   - a pattern ending in "/" is shorthand for "<pattern>**"
//   - paths and patterns always use "/" as the separator
//
// Matching is done with [github.com/gobwas/glob].
//
// # Usage
//
//	files, err := fileset.Scan(fileset.Spec{
//	    Directory:          "src/main/java",
//	    Includes:           []string{"**/*.java"},
//	    UseDefaultExcludes: true,
//	})
//
// A missing or non-directory base yields an empty list and a nil error.
package fileset
