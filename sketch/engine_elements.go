package sketch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// elementsEngine implements the engine contract for the element-json format:
// an ordered sequence of self-contained elements addressed by id. Elements do
// not suffer mid-element truncation the way a markup tree does, so Append on
// complete content degenerates to a Patch merge; Append on a truncated tail
// still concatenates raw text so a diagram split across responses reassembles
// byte-for-byte.
type elementsEngine struct{}

func (elementsEngine) Descriptor() EngineDescriptor {
	return EngineDescriptor{
		ID:     string(FormatElementJSON),
		Format: FormatElementJSON,
		Capabilities: Capabilities{
			Patch:   true,
			Append:  true,
			Convert: true,
			Export:  true,
		},
	}
}

func (elementsEngine) IsComplete(content string) bool {
	complete, _ := scanElementJSON(content)
	return complete
}

func (e elementsEngine) Apply(state DiagramState, op Operation) (DiagramState, Diagnostics) {
	switch op.Kind {
	case OpDisplay, OpReplace:
		return e.applyReplace(state, op.Content, true)
	case OpAppend:
		if state.Truncated {
			return e.applyReplace(state, state.Content+op.Content, false)
		}
		return e.applyPatch(state, op.Content)
	case OpPatch:
		return e.applyPatch(state, op.Content)
	case OpDelete:
		return e.applyDelete(state, op.IDs)
	default:
		return state, rejected(state, Issue{Kind: IssueUnknownOperation, Detail: string(op.Kind)})
	}
}

func (elementsEngine) applyReplace(state DiagramState, content string, summarize bool) (DiagramState, Diagnostics) {
	complete, malformed := scanElementJSON(content)
	if malformed {
		return state, rejected(state, Issue{Kind: IssueMalformedFragment, Detail: "content is not an element array"})
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
	els, err := ParseElements(content)
	if err != nil {
		return state, rejected(state, Issue{Kind: IssueMalformedFragment, Detail: err.Error()})
	}
	if err := ValidateElements(els); err != nil {
		return state, rejected(state, Issue{Kind: IssueMalformedFragment, Detail: err.Error()})
	}
	next.Truncated = false
	return next, accepted(next, issues...)
}

// applyPatch upserts incoming elements by id: a hit overwrites the payload in
// place without moving the element; a miss appends at the end of the sequence.
func (e elementsEngine) applyPatch(state DiagramState, fragment string) (DiagramState, Diagnostics) {
	els, diags, ok := e.parseCurrent(state)
	if !ok {
		return state, diags
	}
	incoming, err := parseElementFragment(fragment)
	if err != nil {
		return state, rejected(state, Issue{Kind: IssueMalformedFragment, Detail: err.Error()})
	}
	var issues []Issue
	for _, in := range incoming {
		if strings.TrimSpace(in.ID) == "" {
			issues = append(issues, Issue{Kind: IssueUnknownIdentifier, Detail: "patch element without id ignored"})
			continue
		}
		replaced := false
		for i := range els {
			if els[i].ID == in.ID {
				els[i] = in
				replaced = true
				break
			}
		}
		if !replaced {
			els = append(els, in)
		}
	}
	if err := ValidateElements(els); err != nil {
		// Should be unreachable given the upsert contract above.
		return state, rejected(state, Issue{Kind: IssueInternalInvariant, Detail: err.Error()})
	}
	return e.commit(state, els, issues)
}

// applyDelete removes elements whose id is in the set; identifiers not present
// are silently ignored, so a repeated delete is a no-op and the content text
// is left untouched when nothing was removed.
func (e elementsEngine) applyDelete(state DiagramState, ids []string) (DiagramState, Diagnostics) {
	els, diags, ok := e.parseCurrent(state)
	if !ok {
		return state, diags
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	kept := els[:0:0]
	for _, el := range els {
		if _, hit := set[el.ID]; !hit {
			kept = append(kept, el)
		}
	}
	if len(kept) == len(els) {
		next := state
		next.Version++
		return next, accepted(next)
	}
	return e.commit(state, kept, nil)
}

func (elementsEngine) parseCurrent(state DiagramState) ([]Element, Diagnostics, bool) {
	if state.Truncated {
		return nil, rejected(state, Issue{Kind: IssueMalformedFragment, Detail: "content is truncated; append the continuation before editing"}), false
	}
	if state.Empty() {
		return nil, Diagnostics{}, true
	}
	els, err := ParseElements(state.Content)
	if err != nil {
		return nil, rejected(state, Issue{Kind: IssueMalformedFragment, Detail: err.Error()}), false
	}
	return els, Diagnostics{}, true
}

func (elementsEngine) commit(state DiagramState, els []Element, issues []Issue) (DiagramState, Diagnostics) {
	content, err := EncodeElements(els)
	if err != nil {
		return state, rejected(state, Issue{Kind: IssueMalformedFragment, Detail: err.Error()})
	}
	next := state
	next.Content = content
	next.Truncated = false
	next.Version++
	return next, accepted(next, issues...)
}

func (elementsEngine) ConvertFrom(_ context.Context, grammar, text string) (string, error) {
	out, err := parseGrammar(grammar, text)
	if err != nil {
		return "", err
	}
	return EncodeElements(outlineToElements(out))
}

func (elementsEngine) Export(content, target string) (string, error) {
	switch strings.ToLower(target) {
	case string(FormatElementJSON), "json":
		return content, nil
	}
	els, err := ParseElements(content)
	if err != nil {
		return "", err
	}
	switch strings.ToLower(target) {
	case "json-pretty":
		body, err := json.MarshalIndent(els, "", "  ")
		if err != nil {
			return "", decodeError("encode elements", err)
		}
		return string(body), nil
	case "dot", "graphviz":
		body, err := DOTExporter{}.Export(elementsToGraph(els))
		return string(body), err
	case GrammarMermaid:
		body, err := MermaidExporter{}.Export(elementsToGraph(els))
		return string(body), err
	default:
		return "", fmt.Errorf("%w: export target %q", ErrNotImplemented, target)
	}
}

// parseElementFragment accepts either a JSON array of elements or one bare
// element object.
func parseElementFragment(fragment string) ([]Element, error) {
	trimmed := strings.TrimSpace(fragment)
	if strings.HasPrefix(trimmed, "{") {
		trimmed = "[" + trimmed + "]"
	}
	return ParseElements(trimmed)
}

// outlineToElements flattens an outline into the element list: nodes carry
// label and parent attributes; edges become kind=edge elements.
func outlineToElements(out outline) []Element {
	var els []Element
	type frame struct {
		level int
		id    string
	}
	var stack []frame
	for _, n := range out.Nodes {
		for len(stack) > 0 && stack[len(stack)-1].level >= n.Level {
			stack = stack[:len(stack)-1]
		}
		attrs := map[string]any{}
		if n.Label != "" {
			attrs["label"] = n.Label
		}
		if len(stack) > 0 {
			attrs["parent"] = stack[len(stack)-1].id
		}
		if len(attrs) == 0 {
			attrs = nil
		}
		els = append(els, Element{ID: n.ID, Attrs: attrs})
		stack = append(stack, frame{level: n.Level, id: n.ID})
	}
	for _, e := range out.Edges {
		attrs := map[string]any{"kind": "edge", "from": e.From, "to": e.To}
		if e.Label != "" {
			attrs["label"] = e.Label
		}
		els = append(els, Element{ID: "edge-" + e.From + "-" + e.To, Attrs: attrs})
	}
	return els
}

// elementsToGraph interprets kind=edge elements as edges and everything else
// as flat nodes, for the shared exporters.
func elementsToGraph(els []Element) GraphDoc {
	var doc GraphDoc
	for _, el := range els {
		if kind, _ := el.Attrs["kind"].(string); kind == "edge" {
			from, _ := el.Attrs["from"].(string)
			to, _ := el.Attrs["to"].(string)
			label, _ := el.Attrs["label"].(string)
			doc.Edges = append(doc.Edges, GraphEdge{From: from, To: to, Label: label})
			continue
		}
		label, _ := el.Attrs["label"].(string)
		doc.Nodes = append(doc.Nodes, GraphNode{ID: el.ID, Label: label})
	}
	return doc
}
