package java

import (
	"io"
	"strings"
	"unicode"
	"unicode/utf8"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tsjava "github.com/tree-sitter/tree-sitter-java/bindings/go"

	"github.com/matzehuels/diagramgen/pkg/errors"
	"github.com/matzehuels/diagramgen/pkg/extract"
)

// Extension is the source file extension handled by this package.
const Extension = ".java"

// maxLabel is the maximum number of runes of source text shown in a label.
const maxLabel = 48

// Extractor turns one Java source file into one diagram per method.
type Extractor struct {
	cfg      extract.Config
	opts     options
	language *sitter.Language

	parsed   bool
	diagrams []*diagram
	next     int
}

// New creates a Java extractor. It fails with a CONFIGURATION error for an
// unsupported format or invalid options.
func New(cfg extract.Config) (extract.Extractor, error) {
	if cfg.Format != "" && cfg.Format != extract.FormatDOT {
		return nil, errors.New(errors.ErrCodeConfiguration, "java extractor cannot produce format %q (only %q)", cfg.Format, extract.FormatDOT)
	}
	opts, err := parseOptions(cfg)
	if err != nil {
		return nil, err
	}
	return &Extractor{
		cfg:      cfg,
		opts:     opts,
		language: sitter.NewLanguage(tsjava.Language()),
	}, nil
}

// Register adds the Java extractor to r.
func Register(r *extract.Registry) {
	r.Register(Extension, New)
}

// Parse reads and parses the whole source.
func (e *Extractor) Parse(r io.Reader, encoding string) error {
	if e.parsed {
		return errors.New(errors.ErrCodeInternal, "Parse called twice")
	}
	e.parsed = true

	decoded, err := extract.Decode(r, encoding)
	if err != nil {
		return err
	}
	source, err := io.ReadAll(decoded)
	if err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "read source")
	}

	parser := sitter.NewParser()
	defer parser.Close()
	if err := parser.SetLanguage(e.language); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "load java grammar")
	}

	tree := parser.Parse(source, nil)
	if tree == nil {
		return errors.New(errors.ErrCodeParse, "java parser returned no tree")
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		row, col := firstError(root)
		return errors.New(errors.ErrCodeParse, "syntax error at line %d, column %d", row+1, col+1)
	}

	e.diagrams = e.build(root, source)
	return nil
}

// WriteDiagram writes the current diagram and reports whether more remain.
func (e *Extractor) WriteDiagram(w io.Writer) (bool, error) {
	if !e.parsed {
		return false, errors.New(errors.ErrCodeInternal, "WriteDiagram called before Parse")
	}
	if e.next >= len(e.diagrams) {
		return false, errors.New(errors.ErrCodeInternal, "no diagram pending")
	}
	d := e.diagrams[e.next]
	e.next++
	if err := d.writeDOT(w, e.graphAttributes()); err != nil {
		return false, errors.Wrap(errors.ErrCodeIO, err, "write diagram %s", d.name)
	}
	return e.next < len(e.diagrams), nil
}

// graphAttributes turns "key=value" style rules into graph attributes.
// Rules without '=' are ignored.
func (e *Extractor) graphAttributes() [][2]string {
	var attrs [][2]string
	for _, rule := range e.cfg.UserStyleRules {
		k, v, ok := strings.Cut(rule, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" || !isIdent(k) {
			continue
		}
		attrs = append(attrs, [2]string{k, strings.Trim(strings.TrimSpace(v), `"`)})
	}
	return attrs
}

// build creates the diagrams for a parsed compilation unit.
func (e *Extractor) build(root *sitter.Node, source []byte) []*diagram {
	var units []*sitter.Node
	walk(root, func(n *sitter.Node) bool {
		switch n.Kind() {
		case "method_declaration", "constructor_declaration", "compact_constructor_declaration":
			units = append(units, n)
			return false
		}
		return true
	})

	var out []*diagram
	for _, u := range units {
		out = append(out, e.buildMethod(u, source))
	}
	if len(out) == 0 {
		out = append(out, e.buildOutline(root, source))
	}
	return out
}

func (e *Extractor) newDiagram(name string) *diagram {
	d := newDiagram(name)
	d.comments = append(d.comments, "generated by diagramgen from "+name)
	if e.cfg.SourceVersion != "" {
		d.comments = append(d.comments, "source version "+e.cfg.SourceVersion)
	}
	if e.cfg.BaseStyleURL != "" {
		d.comments = append(d.comments, "style "+e.cfg.BaseStyleURL)
	}
	for _, u := range e.cfg.UserStyleURLs {
		d.comments = append(d.comments, "style "+u)
	}
	return d
}

// buildMethod creates the diagram of one method or constructor.
func (e *Extractor) buildMethod(m *sitter.Node, source []byte) *diagram {
	name := methodName(m, source)
	d := e.newDiagram(qualifiedName(m, source, name))

	entry := d.add(vertex{Type: camel(m.Kind()), Label: signature(m, source, name), Shape: "oval", Pinned: true})
	body := m.ChildByFieldName("body")
	var gv marks
	if body != nil {
		gv = scanMarks(body, source)
	}

	if e.opts.controlFlow {
		f := &flow{d: d, src: source, marks: gv}
		end := d.add(vertex{Type: "end", Label: "end", Shape: "oval", Pinned: true})
		f.exit = end
		var outs []exit
		if body != nil {
			outs = f.stmt(body, []exit{{from: entry}})
		} else {
			outs = []exit{{from: entry}}
		}
		f.link(outs, end)
	}
	if e.opts.ast && body != nil {
		var attrs map[string]string
		if e.opts.controlFlow {
			attrs = map[string]string{"style": "dashed", "color": "gray50"}
		}
		a := &astEdger{d: d, src: source, marks: gv, attrs: attrs}
		a.visit(body, entry)
	}

	d.filter(func(v vertex) bool { return e.opts.keeps(v.Type) })
	return d
}

// buildOutline creates the diagram of a file without methods: its type
// declarations and their members.
func (e *Extractor) buildOutline(root *sitter.Node, source []byte) *diagram {
	name := "compilationUnit"
	if pkg := findChild(root, "package_declaration"); pkg != nil {
		name = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(text(pkg, source), "package"), ";"))
	}
	d := e.newDiagram(name)
	top := d.add(vertex{Type: "compilationUnit", Label: name, Shape: "folder", Pinned: true})

	var visit func(n *sitter.Node, parent string)
	visit = func(n *sitter.Node, parent string) {
		for i := uint(0); i < n.NamedChildCount(); i++ {
			c := n.NamedChild(i)
			switch c.Kind() {
			case "class_declaration", "interface_declaration", "enum_declaration", "record_declaration", "annotation_type_declaration":
				label := camel(c.Kind())
				if nm := c.ChildByFieldName("name"); nm != nil {
					label = strings.TrimSuffix(label, "Declaration") + " " + text(nm, source)
				}
				id := d.add(vertex{Type: camel(c.Kind()), Label: label, Shape: "component"})
				d.connect(parent, id, nil)
				if b := c.ChildByFieldName("body"); b != nil {
					visit(b, id)
				}
			case "field_declaration", "constant_declaration", "enum_constant":
				id := d.add(vertex{Type: camel(c.Kind()), Label: snippet(c, source)})
				d.connect(parent, id, nil)
			case "enum_body_declarations":
				visit(c, parent)
			}
		}
	}
	visit(root, top)

	d.filter(func(v vertex) bool { return e.opts.keeps(v.Type) })
	return d
}

// walk visits n and its descendants depth first until visit returns false
// for a subtree.
func walk(n *sitter.Node, visit func(*sitter.Node) bool) {
	if n == nil || !visit(n) {
		return
	}
	for i := uint(0); i < n.ChildCount(); i++ {
		walk(n.Child(i), visit)
	}
}

func findChild(n *sitter.Node, kind string) *sitter.Node {
	for i := uint(0); i < n.NamedChildCount(); i++ {
		if c := n.NamedChild(i); c.Kind() == kind {
			return c
		}
	}
	return nil
}

// firstError returns the zero-based position of the first error or missing
// node below n.
func firstError(n *sitter.Node) (row, col uint) {
	var found *sitter.Node
	walk(n, func(c *sitter.Node) bool {
		if found != nil {
			return false
		}
		if c.IsError() || c.IsMissing() {
			found = c
			return false
		}
		return c.HasError()
	})
	if found == nil {
		found = n
	}
	p := found.StartPosition()
	return p.Row, p.Column
}

func text(n *sitter.Node, source []byte) string {
	if n == nil {
		return ""
	}
	return string(source[n.StartByte():n.EndByte()])
}

// snippet returns the first line of n's source, whitespace collapsed and
// truncated to maxLabel runes.
func snippet(n *sitter.Node, source []byte) string {
	s := text(n, source)
	if i := strings.IndexByte(s, '\n'); i != -1 {
		s = strings.TrimRight(s[:i], "\r") + " ..."
	}
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) > maxLabel {
		r := []rune(s)
		s = string(r[:maxLabel-3]) + "..."
	}
	return s
}

func methodName(m *sitter.Node, source []byte) string {
	if nm := m.ChildByFieldName("name"); nm != nil {
		return text(nm, source)
	}
	return camel(m.Kind())
}

func signature(m *sitter.Node, source []byte, name string) string {
	params := m.ChildByFieldName("parameters")
	if params == nil {
		return name
	}
	return name + strings.Join(strings.Fields(text(params, source)), " ")
}

// qualifiedName prefixes name with the names of the enclosing types.
func qualifiedName(n *sitter.Node, source []byte, name string) string {
	parts := []string{name}
	for p := n.Parent(); p != nil; p = p.Parent() {
		switch p.Kind() {
		case "class_declaration", "interface_declaration", "enum_declaration", "record_declaration":
			if nm := p.ChildByFieldName("name"); nm != nil {
				parts = append([]string{text(nm, source)}, parts...)
			}
		}
	}
	return strings.Join(parts, ".")
}

// camel converts a tree-sitter node kind such as "if_statement" to the
// camelCase node type "ifStatement" used by keepNode rules.
func camel(kind string) string {
	parts := strings.Split(kind, "_")
	for i := 1; i < len(parts); i++ {
		if parts[i] == "" {
			continue
		}
		r, size := utf8.DecodeRuneInString(parts[i])
		parts[i] = string(unicode.ToUpper(r)) + parts[i][size:]
	}
	return strings.Join(parts, "")
}

func isIdent(s string) bool {
	for i, r := range s {
		if r == '_' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
			continue
		}
		return false
	}
	return s != ""
}

// Ensure Extractor implements extract.Extractor.
var _ extract.Extractor = (*Extractor)(nil)
