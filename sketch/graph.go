package sketch

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
)

// GraphDoc is the native content model for the graph-xml format: a tree of
// labeled nodes under a single <graph> root plus edges between node ids.
type GraphDoc struct {
	XMLName xml.Name    `xml:"graph"`
	ID      string      `xml:"id,attr,omitempty"`
	Attrs   []xml.Attr  `xml:",any,attr"`
	Nodes   []GraphNode `xml:"node"`
	Edges   []GraphEdge `xml:"edge"`
}

// GraphNode is one node in the tree. Children nest for tree position; extra
// attributes (shape, style, geometry) are carried opaquely.
type GraphNode struct {
	ID       string      `xml:"id,attr"`
	Label    string      `xml:"label,attr,omitempty"`
	Attrs    []xml.Attr  `xml:",any,attr"`
	Children []GraphNode `xml:"node"`
}

// GraphEdge references two node ids. Endpoints that do not resolve are
// reported through diagnostics but the edge itself is never dropped.
type GraphEdge struct {
	From  string     `xml:"from,attr"`
	To    string     `xml:"to,attr"`
	Label string     `xml:"label,attr,omitempty"`
	Attrs []xml.Attr `xml:",any,attr"`
}

// ParseGraph decodes graph-xml content strictly. Content must be exactly one
// root element; anything but whitespace after the root is an error, so a
// second tree can never be silently discarded.
func ParseGraph(content string) (GraphDoc, error) {
	var doc GraphDoc
	dec := xml.NewDecoder(strings.NewReader(content))
	dec.Strict = true
	if err := dec.Decode(&doc); err != nil {
		return GraphDoc{}, decodeError("parse graph", err)
	}
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return doc, nil
			}
			return GraphDoc{}, decodeError("parse graph", err)
		}
		if cd, ok := tok.(xml.CharData); ok && strings.TrimSpace(string(cd)) == "" {
			continue
		}
		return GraphDoc{}, decodeError("parse graph", errors.New("content continues after the root element"))
	}
}

// EncodeGraph serializes a GraphDoc to its canonical indented form.
func EncodeGraph(doc GraphDoc) (string, error) {
	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", decodeError("encode graph", err)
	}
	return string(body), nil
}

// scanMarkup classifies markup content without building a tree: complete means
// exactly one root element was opened and fully closed; malformed means the
// content cannot become well-formed by appending more text (bad token syntax
// before the cut, a second root, or non-whitespace text outside the root).
// A mid-token or mid-tree cut is incomplete, not malformed.
func scanMarkup(content string) (complete bool, malformed bool) {
	dec := xml.NewDecoder(strings.NewReader(content))
	depth := 0
	seen := false
	for {
		tok, err := dec.RawToken()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return seen && depth == 0, false
			}
			var syn *xml.SyntaxError
			if errors.As(err, &syn) && strings.Contains(syn.Msg, "unexpected EOF") {
				return false, false
			}
			return false, true
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if seen && depth == 0 {
				// Second root: appending can never rejoin the trees.
				return false, true
			}
			depth++
			seen = true
		case xml.EndElement:
			depth--
			if depth < 0 {
				return false, true
			}
		case xml.CharData:
			if depth == 0 && strings.TrimSpace(string(t)) != "" {
				return false, true
			}
		}
	}
}

// ValidateGraph performs structural validation: non-empty unique node ids and
// edge endpoints that resolve to existing nodes.
func ValidateGraph(doc GraphDoc) error {
	var issues []string
	var details []ValidationDetail
	ids := make(map[string]struct{})
	var walk func(nodes []GraphNode)
	walk = func(nodes []GraphNode) {
		for _, n := range nodes {
			if strings.TrimSpace(n.ID) == "" {
				issues = append(issues, "node missing id")
				details = append(details, ValidationDetail{Scope: "node", Field: "id", Message: "missing id"})
			} else if _, dup := ids[n.ID]; dup {
				issues = append(issues, "duplicate node id "+n.ID)
				details = append(details, ValidationDetail{Scope: "node", Field: "id", Message: "duplicate id " + n.ID})
			} else {
				ids[n.ID] = struct{}{}
			}
			walk(n.Children)
		}
	}
	walk(doc.Nodes)
	for i, e := range doc.Edges {
		if strings.TrimSpace(e.From) == "" || strings.TrimSpace(e.To) == "" {
			issues = append(issues, fmt.Sprintf("edge[%d] missing from/to", i))
			details = append(details, ValidationDetail{Scope: "edge", Field: "from_to", Message: fmt.Sprintf("edge %d missing from/to", i)})
			continue
		}
		if _, ok := ids[e.From]; !ok {
			issues = append(issues, "edge from references missing node "+e.From)
			details = append(details, ValidationDetail{Scope: "edge", Field: "from", Message: "missing node " + e.From})
		}
		if _, ok := ids[e.To]; !ok {
			issues = append(issues, "edge to references missing node "+e.To)
			details = append(details, ValidationDetail{Scope: "edge", Field: "to", Message: "missing node " + e.To})
		}
	}
	if len(issues) > 0 {
		return &ValidationError{Issues: issues, Details: details}
	}
	return nil
}

// findNode locates a node by id depth-first and returns a pointer into the
// tree, or nil when absent.
func findNode(nodes []GraphNode, id string) *GraphNode {
	for i := range nodes {
		if nodes[i].ID == id {
			return &nodes[i]
		}
		if found := findNode(nodes[i].Children, id); found != nil {
			return found
		}
	}
	return nil
}

// removeNodes deletes every node whose id is in the set, cascading to the
// whole subtree of a removed node. It returns the pruned forest and the ids
// actually removed (including cascaded descendants).
func removeNodes(nodes []GraphNode, ids map[string]struct{}) ([]GraphNode, []string) {
	var kept []GraphNode
	var removed []string
	for _, n := range nodes {
		if _, hit := ids[n.ID]; hit {
			removed = append(removed, subtreeIDs(n)...)
			continue
		}
		children, sub := removeNodes(n.Children, ids)
		n.Children = children
		removed = append(removed, sub...)
		kept = append(kept, n)
	}
	return kept, removed
}

func subtreeIDs(n GraphNode) []string {
	out := []string{n.ID}
	for _, c := range n.Children {
		out = append(out, subtreeIDs(c)...)
	}
	return out
}

// graphNodeIDs collects every node id in the tree in depth-first order.
func graphNodeIDs(doc GraphDoc) []string {
	var out []string
	var walk func(nodes []GraphNode)
	walk = func(nodes []GraphNode) {
		for _, n := range nodes {
			out = append(out, n.ID)
			walk(n.Children)
		}
	}
	walk(doc.Nodes)
	return out
}

// danglingEdges reports edges whose endpoints do not resolve, sorted for
// stable diagnostics output.
func danglingEdges(doc GraphDoc) []string {
	ids := make(map[string]struct{})
	for _, id := range graphNodeIDs(doc) {
		ids[id] = struct{}{}
	}
	var out []string
	for _, e := range doc.Edges {
		if _, ok := ids[e.From]; !ok {
			out = append(out, e.From)
		}
		if _, ok := ids[e.To]; !ok {
			out = append(out, e.To)
		}
	}
	sort.Strings(out)
	return out
}
