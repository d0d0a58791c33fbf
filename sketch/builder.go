package sketch

import "encoding/xml"

// GraphBuilder provides a fluent API for constructing graph-xml content in
// code, for callers seeding a session programmatically instead of from model
// output.
type GraphBuilder struct {
	doc GraphDoc
}

// NewGraphBuilder creates a builder for a graph with the given id.
func NewGraphBuilder(id string) *GraphBuilder {
	return &GraphBuilder{doc: GraphDoc{ID: id}}
}

// Build returns the assembled graph.
func (b *GraphBuilder) Build() GraphDoc {
	return b.doc
}

// Content serializes the assembled graph to canonical graph-xml.
func (b *GraphBuilder) Content() (string, error) {
	return EncodeGraph(b.doc)
}

// Node appends a root-level node.
func (b *GraphBuilder) Node(id, label string, attrs ...xml.Attr) *GraphBuilder {
	b.doc.Nodes = append(b.doc.Nodes, GraphNode{ID: id, Label: label, Attrs: attrs})
	return b
}

// ChildNode appends a node under the named parent. When the parent does not
// exist the node lands at the root level instead.
func (b *GraphBuilder) ChildNode(parentID, id, label string, attrs ...xml.Attr) *GraphBuilder {
	node := GraphNode{ID: id, Label: label, Attrs: attrs}
	if parent := findNode(b.doc.Nodes, parentID); parent != nil {
		parent.Children = append(parent.Children, node)
	} else {
		b.doc.Nodes = append(b.doc.Nodes, node)
	}
	return b
}

// Edge appends an edge between two node ids.
func (b *GraphBuilder) Edge(from, to, label string, attrs ...xml.Attr) *GraphBuilder {
	b.doc.Edges = append(b.doc.Edges, GraphEdge{From: from, To: to, Label: label, Attrs: attrs})
	return b
}

// Attr sets an attribute on the graph root.
func (b *GraphBuilder) Attr(name, value string) *GraphBuilder {
	b.doc.Attrs = append(b.doc.Attrs, xml.Attr{Name: xml.Name{Local: name}, Value: value})
	return b
}
