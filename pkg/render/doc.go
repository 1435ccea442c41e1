// Package render turns written diagram files into images.
//
// # Renderers
//
// [Invoker] runs an external Graphviz-compatible executable once per diagram:
//
//	dot /abs/out/pkg/doc-files/Foo.dot -Tpng -o/abs/out/pkg/doc-files/Foo.png
//
// [GraphvizRenderer] does the same in-process with go-graphviz and is selected
// with the executable name "builtin". [CachedRenderer] wraps either one and
// skips diagrams whose content was already rendered to an image that still
// exists.
//
// # Failure policy
//
// Rendering is best effort. A renderer never returns an error; every failure,
// whether the executable cannot be launched, exits non-zero or times out, is
// reported as an [Outcome] with Success false and a RENDER error, and is
// logged at warn level. Callers continue with the next diagram.
//
// # Image paths
//
// [ImagePath] derives the image path by replacing the last extension of the
// diagram's file name with the format, or appending it when there is none.
// A diagram already named "Foo.png" therefore renders onto itself.
package render
