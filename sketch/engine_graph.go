package sketch

import (
	"context"
	"fmt"
	"strings"
)

// graphEngine implements the engine contract for the graph-xml format. Its
// distinguishing concern is continuation handling: markup can be cut mid-tag,
// so content is kept verbatim while truncated and only parsed into a tree once
// the tag balance closes.
type graphEngine struct{}

func (graphEngine) Descriptor() EngineDescriptor {
	return EngineDescriptor{
		ID:     string(FormatGraphXML),
		Format: FormatGraphXML,
		Capabilities: Capabilities{
			Patch:   true,
			Append:  true,
			Convert: true,
			Export:  true,
		},
	}
}

func (graphEngine) IsComplete(content string) bool {
	complete, _ := scanMarkup(content)
	return complete
}

func (e graphEngine) Apply(state DiagramState, op Operation) (DiagramState, Diagnostics) {
	switch op.Kind {
	case OpDisplay, OpReplace:
		return e.applyReplace(state, op.Content, true)
	case OpAppend:
		return e.applyReplace(state, state.Content+op.Content, false)
	case OpPatch:
		return e.applyPatch(state, op.Content)
	case OpDelete:
		return e.applyDelete(state, op.IDs)
	default:
		return state, rejected(state, Issue{Kind: IssueUnknownOperation, Detail: string(op.Kind)})
	}
}

// applyReplace installs content wholesale. Content that ends mid-structure is
// accepted with the truncated flag set; content that can never become
// well-formed is rejected and the prior snapshot survives. Append funnels
// through here with the concatenated candidate, so a still-incomplete result
// stays truncated rather than being speculatively closed.
func (graphEngine) applyReplace(state DiagramState, content string, summarize bool) (DiagramState, Diagnostics) {
	complete, malformed := scanMarkup(content)
	if malformed {
		return state, rejected(state, Issue{Kind: IssueMalformedFragment, Detail: "markup cannot be completed by appending"})
	}
	var issues []Issue
	if summarize && !state.Empty() {
		if summary := changeSummary(state.Content, content); summary != "" {
			issues = append(issues, Issue{Kind: IssueContentReplaced, Detail: summary})
		}
	}
	next := state
	next.Content = content
	next.Version++
	if !complete {
		next.Truncated = true
		return next, accepted(next, issues...)
	}
	doc, err := ParseGraph(content)
	if err != nil {
		return state, rejected(state, Issue{Kind: IssueMalformedFragment, Detail: err.Error()})
	}
	if dup := firstDuplicateID(graphNodeIDs(doc)); dup != "" {
		return state, rejected(state, Issue{Kind: IssueMalformedFragment, Detail: "duplicate node id " + dup})
	}
	issues = append(issues, danglingIssues(doc)...)
	next.Truncated = false
	return next, accepted(next, issues...)
}

// applyPatch upserts nodes and edges from a fragment. Nodes are located by id
// anywhere in the tree (depth-first); a hit overwrites the node's label and
// attributes in place, leaving tree position and existing children untouched;
// a miss appends the node at the root level. Edges upsert by endpoint pair.
func (e graphEngine) applyPatch(state DiagramState, fragment string) (DiagramState, Diagnostics) {
	doc, diags, ok := e.parseCurrent(state)
	if !ok {
		return state, diags
	}
	frag, err := parseGraphFragment(fragment)
	if err != nil {
		return state, rejected(state, Issue{Kind: IssueMalformedFragment, Detail: err.Error()})
	}
	var issues []Issue
	for _, n := range flattenGraph(frag) {
		n.Children = nil
		if strings.TrimSpace(n.ID) == "" {
			issues = append(issues, Issue{Kind: IssueUnknownIdentifier, Detail: "patch node without id ignored"})
			continue
		}
		if existing := findNode(doc.Nodes, n.ID); existing != nil {
			existing.Label = n.Label
			existing.Attrs = n.Attrs
		} else {
			doc.Nodes = append(doc.Nodes, n)
		}
	}
	for _, edge := range frag.Edges {
		upserted := false
		for i := range doc.Edges {
			if doc.Edges[i].From == edge.From && doc.Edges[i].To == edge.To {
				doc.Edges[i] = edge
				upserted = true
				break
			}
		}
		if !upserted {
			doc.Edges = append(doc.Edges, edge)
		}
	}
	if dup := firstDuplicateID(graphNodeIDs(doc)); dup != "" {
		// Should be unreachable given the upsert contract above; treat as a
		// session-fatal invariant violation rather than tolerating it.
		return state, rejected(state, Issue{Kind: IssueInternalInvariant, Detail: "duplicate node id after merge: " + dup})
	}
	issues = append(issues, danglingIssues(doc)...)
	return e.commit(state, doc, issues)
}

// applyDelete removes the named nodes with their whole subtrees. Identifiers
// that do not resolve are ignored, so deleting twice is a no-op, not a
// failure; the content text is left untouched when nothing was removed.
// Edges referencing removed nodes are kept and flagged.
func (e graphEngine) applyDelete(state DiagramState, ids []string) (DiagramState, Diagnostics) {
	doc, diags, ok := e.parseCurrent(state)
	if !ok {
		return state, diags
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	var removed []string
	doc.Nodes, removed = removeNodes(doc.Nodes, set)
	if len(removed) == 0 {
		next := state
		next.Version++
		return next, accepted(next, danglingIssues(doc)...)
	}
	return e.commit(state, doc, danglingIssues(doc))
}

// parseCurrent loads the session tree for a structural edit. Truncated
// content is not editable: the caller must append the continuation first.
func (graphEngine) parseCurrent(state DiagramState) (GraphDoc, Diagnostics, bool) {
	if state.Truncated {
		return GraphDoc{}, rejected(state, Issue{Kind: IssueMalformedFragment, Detail: "content is truncated; append the continuation before editing"}), false
	}
	if state.Empty() {
		return GraphDoc{}, Diagnostics{}, true
	}
	doc, err := ParseGraph(state.Content)
	if err != nil {
		return GraphDoc{}, rejected(state, Issue{Kind: IssueMalformedFragment, Detail: err.Error()}), false
	}
	return doc, Diagnostics{}, true
}

func (graphEngine) commit(state DiagramState, doc GraphDoc, issues []Issue) (DiagramState, Diagnostics) {
	content, err := EncodeGraph(doc)
	if err != nil {
		return state, rejected(state, Issue{Kind: IssueMalformedFragment, Detail: err.Error()})
	}
	next := state
	next.Content = content
	next.Truncated = false
	next.Version++
	return next, accepted(next, issues...)
}

func (graphEngine) ConvertFrom(_ context.Context, grammar, text string) (string, error) {
	out, err := parseGrammar(grammar, text)
	if err != nil {
		return "", err
	}
	return EncodeGraph(outlineToGraph(out))
}

func (graphEngine) Export(content, target string) (string, error) {
	switch strings.ToLower(target) {
	case string(FormatGraphXML), "xml":
		return content, nil
	}
	doc, err := ParseGraph(content)
	if err != nil {
		return "", err
	}
	var exp Exporter
	switch strings.ToLower(target) {
	case "dot", "graphviz":
		exp = DOTExporter{}
	case GrammarMermaid:
		exp = MermaidExporter{}
	default:
		return "", fmt.Errorf("%w: export target %q", ErrNotImplemented, target)
	}
	body, err := exp.Export(doc)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// parseGraphFragment decodes a bare sequence of <node> and <edge> elements by
// wrapping it in a synthetic root.
func parseGraphFragment(fragment string) (GraphDoc, error) {
	trimmed := strings.TrimSpace(fragment)
	if strings.HasPrefix(trimmed, "<graph") {
		return ParseGraph(trimmed)
	}
	return ParseGraph("<graph>" + fragment + "</graph>")
}

// outlineToGraph builds a node tree from outline levels: a node nests under
// the nearest preceding node with a shallower level.
func outlineToGraph(out outline) GraphDoc {
	var doc GraphDoc
	type frame struct {
		level int
		node  *GraphNode
	}
	var stack []frame
	for _, n := range out.Nodes {
		gn := GraphNode{ID: n.ID, Label: n.Label}
		for len(stack) > 0 && stack[len(stack)-1].level >= n.Level {
			stack = stack[:len(stack)-1]
		}
		var ptr *GraphNode
		if len(stack) == 0 {
			doc.Nodes = append(doc.Nodes, gn)
			ptr = &doc.Nodes[len(doc.Nodes)-1]
		} else {
			parent := stack[len(stack)-1].node
			parent.Children = append(parent.Children, gn)
			ptr = &parent.Children[len(parent.Children)-1]
		}
		stack = append(stack, frame{level: n.Level, node: ptr})
	}
	for _, e := range out.Edges {
		doc.Edges = append(doc.Edges, GraphEdge{From: e.From, To: e.To, Label: e.Label})
	}
	return doc
}

func danglingIssues(doc GraphDoc) []Issue {
	var issues []Issue
	for _, id := range danglingEdges(doc) {
		issues = append(issues, Issue{Kind: IssueDanglingReference, Detail: "edge references missing node " + id})
	}
	return issues
}

func firstDuplicateID(ids []string) string {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return id
		}
		seen[id] = struct{}{}
	}
	return ""
}
