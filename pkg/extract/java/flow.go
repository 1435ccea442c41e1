package java

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// exit is a dangling control-flow edge waiting for its target.
type exit struct {
	from  string
	label string
}

// frame is an enclosing break or continue target.
type frame struct {
	label  string // statement label, "" when unlabeled
	cont   string // continue target, "" for switch and labeled blocks
	loop   bool
	breaks []exit
}

// marks maps the start byte of a statement to the "// gv" comment preceding it.
type marks map[uint]string

// scanMarks finds "// gv" and "// gv: label" comments below n and attaches
// each one to the next named sibling that is not a comment.
func scanMarks(n *sitter.Node, src []byte) marks {
	m := make(marks)
	walk(n, func(c *sitter.Node) bool {
		var pending *string
		for i := uint(0); i < c.NamedChildCount(); i++ {
			child := c.NamedChild(i)
			if isComment(child.Kind()) {
				if label, ok := gvComment(text(child, src)); ok {
					pending = &label
				}
				continue
			}
			if pending != nil {
				m[child.StartByte()] = *pending
				pending = nil
			}
		}
		return true
	})
	return m
}

// gvComment reports whether c is a "gv" marker comment and returns its label.
func gvComment(c string) (string, bool) {
	body, ok := strings.CutPrefix(c, "//")
	if !ok {
		return "", false
	}
	body = strings.TrimSpace(body)
	rest, ok := strings.CutPrefix(body, "gv")
	if !ok {
		return "", false
	}
	switch {
	case rest == "":
		return "", true
	case rest[0] == ':':
		return strings.TrimSpace(rest[1:]), true
	case rest[0] == ' ' || rest[0] == '\t':
		return strings.TrimSpace(rest), true
	}
	return "", false
}

func isComment(kind string) bool {
	return kind == "line_comment" || kind == "block_comment"
}

// statementVertex returns the shared vertex for a statement node, creating
// it on first use.
func statementVertex(d *diagram, n *sitter.Node, src []byte, m marks) string {
	v := vertex{Type: camel(n.Kind()), Label: statementLabel(n, src), Shape: statementShape(n.Kind())}
	if label, ok := m[n.StartByte()]; ok {
		v.Pinned = true
		if label != "" {
			v.Label = label
		}
	}
	return d.addKeyed(nodeKey{start: n.StartByte(), end: n.EndByte(), kind: n.Kind()}, v)
}

func statementLabel(n *sitter.Node, src []byte) string {
	switch n.Kind() {
	case "if_statement":
		return "if " + collapse(text(n.ChildByFieldName("condition"), src))
	case "while_statement":
		return "while " + collapse(text(n.ChildByFieldName("condition"), src))
	case "switch_expression":
		return "switch " + collapse(text(n.ChildByFieldName("condition"), src))
	case "do_statement":
		return "do"
	case "try_statement":
		return "try"
	case "finally_clause":
		return "finally"
	case "labeled_statement":
		if id := findChild(n, "identifier"); id != nil {
			return text(id, src) + ":"
		}
	case "for_statement", "enhanced_for_statement", "catch_clause", "synchronized_statement", "try_with_resources_statement":
		return header(n, src)
	}
	return snippet(n, src)
}

func statementShape(kind string) string {
	switch kind {
	case "if_statement", "while_statement", "for_statement", "enhanced_for_statement", "switch_expression":
		return "diamond"
	case "return_statement", "throw_statement":
		return "box"
	}
	return ""
}

// header is the source text of n up to its body.
func header(n *sitter.Node, src []byte) string {
	body := n.ChildByFieldName("body")
	if body == nil {
		body = findChild(n, "block")
	}
	if body == nil {
		return snippet(n, src)
	}
	s := collapse(string(src[n.StartByte():body.StartByte()]))
	if r := []rune(s); len(r) > maxLabel {
		s = string(r[:maxLabel-3]) + "..."
	}
	return s
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// flow builds statement-level control flow for one method body.
type flow struct {
	d      *diagram
	src    []byte
	marks  marks
	exit   string
	frames []*frame
	label  string // label of the statement being entered
}

func (f *flow) vertex(n *sitter.Node) string {
	return statementVertex(f.d, n, f.src, f.marks)
}

// link connects every pending exit to target.
func (f *flow) link(outs []exit, target string) {
	for _, o := range outs {
		var attrs map[string]string
		if o.label != "" {
			attrs = map[string]string{"label": o.label}
		}
		f.d.connect(o.from, target, attrs)
	}
}

// simple adds n as a plain statement after in.
func (f *flow) simple(n *sitter.Node, in []exit) []exit {
	id := f.vertex(n)
	f.link(in, id)
	return []exit{{from: id}}
}

// sequence chains children one after another.
func (f *flow) sequence(children []*sitter.Node, in []exit) []exit {
	cur := in
	for _, c := range children {
		cur = f.stmt(c, cur)
	}
	return cur
}

func namedChildren(n *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	for i := uint(0); i < n.NamedChildCount(); i++ {
		c := n.NamedChild(i)
		if isComment(c.Kind()) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// stmt adds the flow of statement n entered from in and returns its exits.
func (f *flow) stmt(n *sitter.Node, in []exit) []exit {
	if n == nil {
		return in
	}
	label := f.label
	f.label = ""

	switch n.Kind() {
	case "block", "constructor_body":
		return f.sequence(namedChildren(n), in)

	case "line_comment", "block_comment":
		return in

	case "labeled_statement":
		id := f.vertex(n)
		f.link(in, id)
		name := ""
		if ident := findChild(n, "identifier"); ident != nil {
			name = text(ident, f.src)
		}
		var inner *sitter.Node
		for _, c := range namedChildren(n) {
			if c.Kind() != "identifier" {
				inner = c
			}
		}
		if inner != nil && isLoop(inner.Kind()) {
			f.label = name
			return f.stmt(inner, []exit{{from: id}})
		}
		fr := f.push(&frame{label: name})
		outs := f.stmt(inner, []exit{{from: id}})
		f.pop()
		return append(outs, fr.breaks...)

	case "if_statement":
		cond := f.vertex(n)
		f.link(in, cond)
		outs := f.stmt(n.ChildByFieldName("consequence"), []exit{{from: cond, label: "true"}})
		if alt := n.ChildByFieldName("alternative"); alt != nil {
			outs = append(outs, f.stmt(alt, []exit{{from: cond, label: "false"}})...)
		} else {
			outs = append(outs, exit{from: cond, label: "false"})
		}
		return outs

	case "while_statement", "for_statement", "enhanced_for_statement":
		cond := f.vertex(n)
		f.link(in, cond)
		fr := f.push(&frame{label: label, cont: cond, loop: true})
		body := f.stmt(n.ChildByFieldName("body"), []exit{{from: cond, label: "true"}})
		f.link(body, cond)
		f.pop()
		return append([]exit{{from: cond, label: "false"}}, fr.breaks...)

	case "do_statement":
		head := f.vertex(n)
		f.link(in, head)
		c := n.ChildByFieldName("condition")
		cond := f.d.addKeyed(nodeKey{start: c.StartByte(), end: c.EndByte(), kind: "do_condition"},
			vertex{Type: "doCondition", Label: "while " + collapse(text(c, f.src)), Shape: "diamond"})
		fr := f.push(&frame{label: label, cont: cond, loop: true})
		body := f.stmt(n.ChildByFieldName("body"), []exit{{from: head}})
		f.link(body, cond)
		f.pop()
		f.d.connect(cond, head, map[string]string{"label": "true"})
		return append([]exit{{from: cond, label: "false"}}, fr.breaks...)

	case "switch_expression":
		return f.switchStmt(n, in)

	case "expression_statement":
		// A switch used as a statement body keeps its branches.
		if inner := n.NamedChild(0); inner != nil && inner.Kind() == "switch_expression" {
			return f.switchStmt(inner, in)
		}
		return f.simple(n, in)

	case "try_statement", "try_with_resources_statement":
		return f.tryStmt(n, in)

	case "synchronized_statement":
		id := f.vertex(n)
		f.link(in, id)
		return f.stmt(n.ChildByFieldName("body"), []exit{{from: id}})

	case "return_statement", "throw_statement":
		id := f.vertex(n)
		f.link(in, id)
		f.d.connect(id, f.exit, nil)
		return nil

	case "break_statement":
		id := f.vertex(n)
		f.link(in, id)
		if fr := f.target(n, false); fr != nil {
			fr.breaks = append(fr.breaks, exit{from: id})
		}
		return nil

	case "continue_statement":
		id := f.vertex(n)
		f.link(in, id)
		if fr := f.target(n, true); fr != nil {
			f.d.connect(id, fr.cont, nil)
		}
		return nil

	case "yield_statement":
		id := f.vertex(n)
		f.link(in, id)
		for i := len(f.frames) - 1; i >= 0; i-- {
			if !f.frames[i].loop && f.frames[i].label == "" {
				f.frames[i].breaks = append(f.frames[i].breaks, exit{from: id})
				return nil
			}
		}
		return []exit{{from: id}}
	}

	return f.simple(n, in)
}

func (f *flow) switchStmt(n *sitter.Node, in []exit) []exit {
	sw := f.vertex(n)
	f.link(in, sw)
	fr := f.push(&frame{})
	defer f.pop()

	var outs, fall []exit
	hasDefault := false
	if body := n.ChildByFieldName("body"); body != nil {
		for _, group := range namedChildren(body) {
			var labels []string
			var stmts []*sitter.Node
			for _, c := range namedChildren(group) {
				if c.Kind() == "switch_label" {
					l := collapse(text(c, f.src))
					if strings.HasPrefix(l, "default") {
						hasDefault = true
					}
					labels = append(labels, l)
					continue
				}
				stmts = append(stmts, c)
			}
			entry := append([]exit{{from: sw, label: strings.Join(labels, ", ")}}, fall...)
			res := f.sequence(stmts, entry)
			if group.Kind() == "switch_rule" {
				outs = append(outs, res...)
				fall = nil
			} else {
				fall = res
			}
		}
	}
	outs = append(outs, fall...)
	if !hasDefault {
		outs = append(outs, exit{from: sw, label: "default"})
	}
	return append(outs, fr.breaks...)
}

func (f *flow) tryStmt(n *sitter.Node, in []exit) []exit {
	try := f.vertex(n)
	f.link(in, try)
	outs := f.stmt(n.ChildByFieldName("body"), []exit{{from: try}})

	var finally *sitter.Node
	for _, c := range namedChildren(n) {
		switch c.Kind() {
		case "catch_clause":
			catch := f.vertex(c)
			f.d.connect(try, catch, map[string]string{"label": "exception"})
			outs = append(outs, f.stmt(c.ChildByFieldName("body"), []exit{{from: catch}})...)
		case "finally_clause":
			finally = c
		}
	}
	if finally != nil {
		fin := f.vertex(finally)
		f.link(outs, fin)
		outs = f.stmt(findChild(finally, "block"), []exit{{from: fin}})
	}
	return outs
}

func (f *flow) push(fr *frame) *frame {
	f.frames = append(f.frames, fr)
	return fr
}

func (f *flow) pop() {
	f.frames = f.frames[:len(f.frames)-1]
}

// target finds the frame a break or continue statement jumps to.
func (f *flow) target(n *sitter.Node, cont bool) *frame {
	name := ""
	if ident := findChild(n, "identifier"); ident != nil {
		name = text(ident, f.src)
	}
	for i := len(f.frames) - 1; i >= 0; i-- {
		fr := f.frames[i]
		if cont && !fr.loop {
			continue
		}
		if name == "" || fr.label == name {
			return fr
		}
	}
	return nil
}

func isLoop(kind string) bool {
	switch kind {
	case "while_statement", "for_statement", "enhanced_for_statement", "do_statement":
		return true
	}
	return false
}

// astEdger connects every statement to its nearest enclosing statement.
type astEdger struct {
	d     *diagram
	src   []byte
	marks marks
	attrs map[string]string
}

func (a *astEdger) visit(n *sitter.Node, parent string) {
	for i := uint(0); i < n.NamedChildCount(); i++ {
		c := n.NamedChild(i)
		if !isStatement(c.Kind()) {
			a.visit(c, parent)
			continue
		}
		id := statementVertex(a.d, c, a.src, a.marks)
		a.d.connect(parent, id, a.attrs)
		a.visit(c, id)
	}
}

func isStatement(kind string) bool {
	switch kind {
	case "local_variable_declaration", "switch_expression", "catch_clause", "finally_clause":
		return true
	}
	return strings.HasSuffix(kind, "_statement")
}
