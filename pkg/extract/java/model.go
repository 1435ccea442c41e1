package java

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/dominikbraun/graph"
)

// vertex is one node of a diagram.
type vertex struct {
	ID     string
	Type   string // camelCase node type, e.g. "ifStatement"
	Label  string
	Shape  string
	Pinned bool // kept regardless of the node filter
}

// nodeKey identifies a syntax node across edgers so that both edgers share
// the same vertex for the same statement.
type nodeKey struct {
	start, end uint
	kind       string
}

// diagram is a directed graph of vertices plus the bookkeeping needed to
// write it out in a stable order.
type diagram struct {
	name     string
	g        graph.Graph[string, vertex]
	seq      map[string]int
	keys     map[nodeKey]string
	next     int
	comments []string
	dropped  int // edges rejected by the graph, e.g. to a removed vertex
}

func newDiagram(name string) *diagram {
	return &diagram{
		name: name,
		g:    graph.New(func(v vertex) string { return v.ID }, graph.Directed()),
		seq:  make(map[string]int),
		keys: make(map[nodeKey]string),
	}
}

// add inserts v with a fresh identifier and returns it.
func (d *diagram) add(v vertex) string {
	v.ID = fmt.Sprintf("n%d", d.next)
	d.seq[v.ID] = d.next
	d.next++
	_ = d.g.AddVertex(v)
	return v.ID
}

// addKeyed inserts v once per key; later calls return the existing identifier.
func (d *diagram) addKeyed(key nodeKey, v vertex) string {
	if id, ok := d.keys[key]; ok {
		return id
	}
	id := d.add(v)
	d.keys[key] = id
	return id
}

func (d *diagram) connect(from, to string, attrs map[string]string) {
	var opts []func(*graph.EdgeProperties)
	for _, k := range slices.Sorted(maps.Keys(attrs)) {
		opts = append(opts, graph.EdgeAttribute(k, attrs[k]))
	}
	// Duplicate edges from a second edger are expected and dropped.
	if err := d.g.AddEdge(from, to, opts...); err != nil && !stderrors.Is(err, graph.ErrEdgeAlreadyExists) {
		d.dropped++
	}
}

// ids returns vertex identifiers in insertion order.
func (d *diagram) ids() []string {
	ids := slices.Collect(maps.Keys(d.seq))
	slices.SortFunc(ids, func(a, b string) int { return d.seq[a] - d.seq[b] })
	return ids
}

// filter bypasses and removes every vertex for which keep returns false.
func (d *diagram) filter(keep func(vertex) bool) {
	for _, id := range d.ids() {
		v, err := d.g.Vertex(id)
		if err != nil || v.Pinned || keep(v) {
			continue
		}
		d.bypass(id)
	}
}

// bypass connects each predecessor of id to each successor, then removes id.
func (d *diagram) bypass(id string) {
	adj, err := d.g.AdjacencyMap()
	if err != nil {
		return
	}
	pred, err := d.g.PredecessorMap()
	if err != nil {
		return
	}

	preds := d.sorted(pred[id])
	succs := d.sorted(adj[id])
	for _, p := range preds {
		for _, s := range succs {
			if p == id || s == id || p == s {
				continue
			}
			in := pred[id][p].Properties.Attributes
			out := adj[id][s].Properties.Attributes
			var attrs map[string]string
			if maps.Equal(in, out) {
				attrs = in
			}
			d.connect(p, s, attrs)
		}
	}

	for _, p := range preds {
		_ = d.g.RemoveEdge(p, id)
	}
	for _, s := range succs {
		_ = d.g.RemoveEdge(id, s)
	}
	_ = d.g.RemoveVertex(id)
	delete(d.seq, id)
}

func (d *diagram) sorted(m map[string]graph.Edge[string]) []string {
	out := slices.Collect(maps.Keys(m))
	slices.SortFunc(out, func(a, b string) int { return d.seq[a] - d.seq[b] })
	return out
}

// vertexCount returns the number of vertices still in the diagram.
func (d *diagram) vertexCount() int {
	return len(d.seq)
}

// writeDOT serialises the diagram as a Graphviz digraph. graphAttrs are
// written as graph-level attributes in the given order.
func (d *diagram) writeDOT(w io.Writer, graphAttrs [][2]string) error {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "digraph %s {\n", quote(d.name))
	for _, c := range d.comments {
		fmt.Fprintf(&buf, "  // %s\n", strings.ReplaceAll(c, "\n", " "))
	}
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  node [shape=box, style=\"rounded\", fontname=\"Helvetica\", fontsize=10];\n")
	buf.WriteString("  edge [fontname=\"Helvetica\", fontsize=9];\n")
	for _, kv := range graphAttrs {
		fmt.Fprintf(&buf, "  %s=%s;\n", kv[0], quote(kv[1]))
	}
	buf.WriteString("\n")

	ids := d.ids()
	for _, id := range ids {
		v, err := d.g.Vertex(id)
		if err != nil {
			return err
		}
		attrs := []string{"label=" + quote(v.Label)}
		if v.Shape != "" {
			attrs = append(attrs, "shape="+v.Shape)
		}
		if v.Type != "" {
			attrs = append(attrs, "class="+quote(v.Type))
		}
		fmt.Fprintf(&buf, "  %s [%s];\n", id, strings.Join(attrs, ", "))
	}

	adj, err := d.g.AdjacencyMap()
	if err != nil {
		return err
	}
	buf.WriteString("\n")
	for _, from := range ids {
		for _, to := range d.sorted(adj[from]) {
			edge := adj[from][to]
			var attrs []string
			for _, k := range slices.Sorted(maps.Keys(edge.Properties.Attributes)) {
				attrs = append(attrs, k+"="+quote(edge.Properties.Attributes[k]))
			}
			if len(attrs) > 0 {
				fmt.Fprintf(&buf, "  %s -> %s [%s];\n", from, to, strings.Join(attrs, ", "))
			} else {
				fmt.Fprintf(&buf, "  %s -> %s;\n", from, to)
			}
		}
	}
	buf.WriteString("}\n")

	_, err = w.Write(buf.Bytes())
	return err
}

var dotEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", "")

func quote(s string) string {
	return `"` + dotEscaper.Replace(s) + `"`
}
