package sketch

import (
	"context"
	"strings"
	"testing"
)

func intp(v int) *int { return &v }

func TestDispatchAppliesInOrder(t *testing.T) {
	s := NewSession(string(FormatElementJSON))
	ctx := context.Background()

	diags := s.Dispatch(ctx, ToolCall{Op: Operation{Kind: OpReplace, Content: `[{"id":"a","label":"A"}]`}})
	if !diags.Accepted || diags.Version != 1 {
		t.Fatalf("replace: %+v", diags)
	}
	diags = s.Dispatch(ctx, ToolCall{Op: Operation{Kind: OpPatch, Content: `{"id":"a","label":"A2"}`}})
	if !diags.Accepted || diags.Version != 2 {
		t.Fatalf("patch: %+v", diags)
	}
	diags = s.Dispatch(ctx, ToolCall{Op: Operation{Kind: OpDelete, IDs: []string{"a"}}})
	if !diags.Accepted || diags.Version != 3 {
		t.Fatalf("delete: %+v", diags)
	}
	if got := s.CurrentState().Content; got != "[]" {
		t.Fatalf("unexpected final content: %s", got)
	}
}

func TestDispatchAssignsCallID(t *testing.T) {
	s := NewSession(string(FormatGraphXML))
	diags := s.Dispatch(context.Background(), ToolCall{Op: Operation{Kind: OpReplace, Content: `<graph/>`}})
	if diags.CallID == "" {
		t.Fatalf("dispatcher must assign an id when the transport omits one")
	}
	diags = s.Dispatch(context.Background(), ToolCall{ID: "call-7", Op: Operation{Kind: OpReplace, Content: `<graph/>`}})
	if diags.CallID != "call-7" {
		t.Fatalf("caller-provided id must be echoed, got %q", diags.CallID)
	}
}

func TestDispatchVersionPrecondition(t *testing.T) {
	s := NewSession(string(FormatElementJSON))
	ctx := context.Background()
	s.Dispatch(ctx, ToolCall{Op: Operation{Kind: OpReplace, Content: `[{"id":"a"}]`}})

	diags := s.Dispatch(ctx, ToolCall{
		Op:              Operation{Kind: OpDelete, IDs: []string{"a"}},
		ExpectedVersion: intp(0),
	})
	if diags.Accepted {
		t.Fatalf("stale expected version must reject the call")
	}
	if len(diags.Issues) == 0 || diags.Issues[0].Kind != IssueVersionConflict {
		t.Fatalf("expected version_conflict, got %+v", diags.Issues)
	}
	if s.CurrentState().Version != 1 {
		t.Fatalf("rejected call must not advance the version")
	}

	diags = s.Dispatch(ctx, ToolCall{
		Op:              Operation{Kind: OpDelete, IDs: []string{"a"}},
		ExpectedVersion: intp(1),
	})
	if !diags.Accepted || diags.Version != 2 {
		t.Fatalf("matching expected version should pass: %+v", diags)
	}
}

func TestDispatchValidatesPayloads(t *testing.T) {
	s := NewSession(string(FormatElementJSON))
	ctx := context.Background()
	cases := []struct {
		name string
		op   Operation
		kind IssueKind
	}{
		{"blank replace", Operation{Kind: OpReplace, Content: "  "}, IssueEmptyPayload},
		{"delete without ids", Operation{Kind: OpDelete}, IssueEmptyPayload},
		{"convert without grammar", Operation{Kind: OpConvert, Content: "a --> b"}, IssueEmptyPayload},
		{"unknown kind", Operation{Kind: "rotate"}, IssueUnknownOperation},
	}
	for _, tc := range cases {
		diags := s.Dispatch(ctx, ToolCall{Op: tc.op})
		if diags.Accepted {
			t.Errorf("%s: call should be rejected", tc.name)
			continue
		}
		if len(diags.Issues) == 0 || diags.Issues[0].Kind != tc.kind {
			t.Errorf("%s: expected %s, got %+v", tc.name, tc.kind, diags.Issues)
		}
	}
	if s.CurrentState().Version != 0 {
		t.Fatalf("rejected calls must leave the state at version 0")
	}
}

func TestDispatchUnknownEngineFallsBack(t *testing.T) {
	s := NewSession("whiteboard-9000")
	if s.Descriptor().ID != string(FormatGraphXML) {
		t.Fatalf("unknown engine should bind to the primary, got %q", s.Descriptor().ID)
	}
	diags := s.Dispatch(context.Background(), ToolCall{Op: Operation{Kind: OpReplace, Content: `<graph/>`}})
	if !diags.Accepted {
		t.Fatalf("replace rejected: %+v", diags)
	}
	found := false
	for _, issue := range diags.Issues {
		if issue.Kind == IssueEngineFallback && strings.Contains(issue.Detail, "whiteboard-9000") {
			found = true
		}
	}
	if !found {
		t.Fatalf("fallback must surface on the first diagnostics: %+v", diags.Issues)
	}
	// Surfaced once, not on every call.
	diags = s.Dispatch(context.Background(), ToolCall{Op: Operation{Kind: OpReplace, Content: `<graph/>`}})
	for _, issue := range diags.Issues {
		if issue.Kind == IssueEngineFallback {
			t.Fatalf("fallback issue repeated: %+v", diags.Issues)
		}
	}
}

func TestDispatchPerCallEngineMismatch(t *testing.T) {
	s := NewSession(string(FormatGraphXML))
	diags := s.Dispatch(context.Background(), ToolCall{
		EngineID: string(FormatElementJSON),
		Op:       Operation{Kind: OpReplace, Content: `<graph/>`},
	})
	if !diags.Accepted {
		t.Fatalf("call should still run on the session engine: %+v", diags)
	}
	if len(diags.Issues) == 0 || diags.Issues[0].Kind != IssueEngineFallback {
		t.Fatalf("mismatched engine id must be flagged: %+v", diags.Issues)
	}
}

func TestDispatchDisplaySupersedesTruncation(t *testing.T) {
	s := NewSession(string(FormatGraphXML))
	ctx := context.Background()
	diags := s.Dispatch(ctx, ToolCall{Op: Operation{Kind: OpReplace, Content: `<graph><node id="1">`}})
	if !diags.Accepted || !diags.Truncated {
		t.Fatalf("truncated replace: %+v", diags)
	}
	diags = s.Dispatch(ctx, ToolCall{Op: Operation{Kind: OpDisplay, Content: `<graph><node id="fresh"/></graph>`}})
	if !diags.Accepted || diags.Truncated {
		t.Fatalf("display must supersede the pending truncation: %+v", diags)
	}
	state := s.CurrentState()
	if state.Truncated || !strings.Contains(state.Content, "fresh") {
		t.Fatalf("state not replaced: %+v", state)
	}
}

func TestDispatchConvertSuccess(t *testing.T) {
	s := NewSession(string(FormatGraphXML))
	diags := s.Dispatch(context.Background(), ToolCall{Op: Operation{
		Kind:    OpConvert,
		Grammar: GrammarMermaid,
		Content: "graph TD\na[Start] --> b[End]\n",
	}})
	if !diags.Accepted || len(diags.Issues) != 0 {
		t.Fatalf("convert: %+v", diags)
	}
	state := s.CurrentState()
	doc, err := ParseGraph(state.Content)
	if err != nil {
		t.Fatalf("converted content is not native markup: %v\n%s", err, state.Content)
	}
	if findNode(doc.Nodes, "a") == nil || findNode(doc.Nodes, "b") == nil || len(doc.Edges) != 1 {
		t.Fatalf("conversion lost structure: %s", state.Content)
	}
}

func TestDispatchConvertFailureKeepsVerbatimText(t *testing.T) {
	s := NewSession(string(FormatGraphXML))
	text := "strict digraph { a -> b }"
	diags := s.Dispatch(context.Background(), ToolCall{Op: Operation{
		Kind:    OpConvert,
		Grammar: "graphviz",
		Content: text,
	}})
	if !diags.Accepted {
		t.Fatalf("failed conversion must still accept the text: %+v", diags)
	}
	if len(diags.Issues) == 0 || diags.Issues[0].Kind != IssueConversionFailed {
		t.Fatalf("expected conversion_failed issue, got %+v", diags.Issues)
	}
	if got := s.CurrentState().Content; got != text {
		t.Fatalf("verbatim text not preserved: %q", got)
	}
}

func TestDispatchExportAs(t *testing.T) {
	s := NewSession(string(FormatGraphXML))
	s.Dispatch(context.Background(), ToolCall{Op: Operation{Kind: OpReplace, Content: graphSample}})
	out, err := s.ExportAs("dot")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.Contains(out, "digraph") {
		t.Fatalf("unexpected export output: %s", out)
	}
}

func TestDispatchExportAsRejectsTruncated(t *testing.T) {
	s := NewSession(string(FormatGraphXML))
	s.Dispatch(context.Background(), ToolCall{Op: Operation{Kind: OpReplace, Content: `<graph><node id="1">`}})
	if _, err := s.ExportAs("dot"); err == nil {
		t.Fatalf("truncated content must not export")
	}
}

func TestDispatchEmptyRegistryFailsSession(t *testing.T) {
	s := NewSessionWithRegistry("anything", NewEngineRegistry())
	diags := s.Dispatch(context.Background(), ToolCall{Op: Operation{Kind: OpReplace, Content: "x"}})
	if diags.Accepted {
		t.Fatalf("session without engines must reject every call")
	}
	found := false
	for _, issue := range diags.Issues {
		if issue.Kind == IssueInternalInvariant {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected internal_invariant, got %+v", diags.Issues)
	}
}
