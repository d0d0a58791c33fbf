package sketch

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
)

// Exporter renders a graph to a target textual representation.
type Exporter interface {
	Export(GraphDoc) ([]byte, error)
}

// DOTExporter emits Graphviz DOT text for a graph. Nodes and edges are sorted
// so output is stable across runs.
type DOTExporter struct {
	// Undirected switches edge syntax from "->" to "--".
	Undirected bool
}

func (r DOTExporter) Export(doc GraphDoc) ([]byte, error) {
	var buf bytes.Buffer
	name := doc.ID
	if name == "" {
		name = "G"
	}
	kind, arrow := "digraph", "->"
	if r.Undirected {
		kind, arrow = "graph", "--"
	}
	fmt.Fprintf(&buf, "%s %q {\n", kind, name)
	nodes := flattenGraph(doc)
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	for _, n := range nodes {
		fmt.Fprintf(&buf, "  %q%s;\n", n.ID, buildDOTNodeAttrs(n))
	}
	edges := append([]GraphEdge(nil), doc.Edges...)
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})
	for _, e := range edges {
		attrs := buildDOTAttrs(map[string]string{"label": e.Label})
		fmt.Fprintf(&buf, "  %q %s %q%s;\n", e.From, arrow, e.To, attrs)
	}
	buf.WriteString("}\n")
	return buf.Bytes(), nil
}

// MermaidExporter emits a mermaid flowchart for a graph.
type MermaidExporter struct {
	// Direction is the flowchart direction header; defaults to "TD".
	Direction string
}

func (r MermaidExporter) Export(doc GraphDoc) ([]byte, error) {
	dir := r.Direction
	if dir == "" {
		dir = "TD"
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "graph %s\n", dir)
	nodes := flattenGraph(doc)
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	for _, n := range nodes {
		if n.Label != "" {
			fmt.Fprintf(&buf, "  %s[%q]\n", n.ID, n.Label)
		} else {
			fmt.Fprintf(&buf, "  %s\n", n.ID)
		}
	}
	edges := append([]GraphEdge(nil), doc.Edges...)
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})
	for _, e := range edges {
		if e.Label != "" {
			fmt.Fprintf(&buf, "  %s -->|%s| %s\n", e.From, e.Label, e.To)
		} else {
			fmt.Fprintf(&buf, "  %s --> %s\n", e.From, e.To)
		}
	}
	return buf.Bytes(), nil
}

// flattenGraph lists every node in the tree in depth-first order.
func flattenGraph(doc GraphDoc) []GraphNode {
	var out []GraphNode
	var walk func(nodes []GraphNode)
	walk = func(nodes []GraphNode) {
		for _, n := range nodes {
			out = append(out, n)
			walk(n.Children)
		}
	}
	walk(doc.Nodes)
	return out
}

func buildDOTNodeAttrs(n GraphNode) string {
	attrs := map[string]string{}
	label := n.Label
	if label == "" {
		label = n.ID
	}
	attrs["label"] = label
	for _, a := range n.Attrs {
		switch strings.ToLower(a.Name.Local) {
		case "shape":
			attrs["shape"] = mapDOTShape(a.Value)
		case "color":
			attrs["fillcolor"] = a.Value
			attrs["style"] = "filled"
		case "stroke":
			attrs["color"] = a.Value
		}
	}
	return buildDOTAttrs(attrs)
}

func mapDOTShape(shape string) string {
	switch strings.ToLower(shape) {
	case "circle":
		return "circle"
	case "square", "box":
		return "box"
	case "hex", "hexagon":
		return "hexagon"
	case "diamond":
		return "diamond"
	default:
		return "ellipse"
	}
}

func buildDOTAttrs(m map[string]string) string {
	var parts []string
	for k, v := range m {
		if strings.TrimSpace(v) == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%q", k, v))
	}
	if len(parts) == 0 {
		return ""
	}
	sort.Strings(parts)
	return " [" + strings.Join(parts, ",") + "]"
}
