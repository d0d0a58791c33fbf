package sketch

// OperationKind enumerates the mutations a tool call may request.
type OperationKind string

const (
	// OpDisplay installs fresh content, superseding whatever the session held,
	// including a pending truncated fragment.
	OpDisplay OperationKind = "display"
	// OpReplace overwrites the whole content with a version bump.
	OpReplace OperationKind = "replace"
	// OpPatch upserts a set of elements by identifier, leaving others untouched.
	OpPatch OperationKind = "patch"
	// OpDelete removes elements by identifier; missing identifiers are no-ops.
	OpDelete OperationKind = "delete"
	// OpAppend concatenates a raw fragment to resolve a prior truncation.
	OpAppend OperationKind = "append"
	// OpConvert parses an external grammar and installs the result via Replace.
	OpConvert OperationKind = "convert"
)

// Operation is one requested mutation. Exactly one kind applies per tool call.
// Content carries the payload text in the engine's native syntax (for OpPatch
// it is a fragment of elements the owning engine parses itself); IDs carries
// the deletion set; Grammar names the interchange grammar for OpConvert.
type Operation struct {
	Kind    OperationKind `json:"kind"`
	Content string        `json:"content,omitempty"`
	IDs     []string      `json:"ids,omitempty"`
	Grammar string        `json:"grammar,omitempty"`
}

// ToolCall is the envelope delivered by the transport layer. ExpectedVersion,
// when set, is a stale-edit guard: the call is rejected wholesale unless it
// matches the current state version.
type ToolCall struct {
	ID              string    `json:"id,omitempty"`
	EngineID        string    `json:"engine_id"`
	Op              Operation `json:"op"`
	ExpectedVersion *int      `json:"expected_version,omitempty"`
}

// IssueKind classifies one diagnostics finding.
type IssueKind string

const (
	IssueMalformedFragment IssueKind = "malformed_fragment"
	IssueUnknownIdentifier IssueKind = "unknown_identifier"
	IssueDanglingReference IssueKind = "dangling_reference"
	IssueVersionConflict   IssueKind = "version_conflict"
	IssueConversionFailed  IssueKind = "conversion_failed"
	IssueEngineFallback    IssueKind = "engine_fallback"
	IssueUnknownOperation  IssueKind = "unknown_operation"
	IssueEmptyPayload      IssueKind = "empty_payload"
	IssueContentReplaced   IssueKind = "content_replaced"
	IssueInternalInvariant IssueKind = "internal_invariant"
)

// Issue is one diagnostics finding returned to the caller.
type Issue struct {
	Kind   IssueKind `json:"kind"`
	Detail string    `json:"detail,omitempty"`
}

// Diagnostics reports the outcome of one operation. Rejected operations leave
// the state (and its version) untouched; accepted operations bump the version
// by exactly one. Issues may accompany either outcome. CallID echoes the tool
// call id (assigned by the dispatcher when the transport omitted one).
type Diagnostics struct {
	CallID    string  `json:"call_id,omitempty"`
	Accepted  bool    `json:"accepted"`
	Truncated bool    `json:"truncated"`
	Version   int     `json:"version"`
	Issues    []Issue `json:"issues,omitempty"`
}

func accepted(state DiagramState, issues ...Issue) Diagnostics {
	return Diagnostics{Accepted: true, Truncated: state.Truncated, Version: state.Version, Issues: issues}
}

func rejected(state DiagramState, issues ...Issue) Diagnostics {
	return Diagnostics{Accepted: false, Truncated: state.Truncated, Version: state.Version, Issues: issues}
}
