package sketch

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Session is the top-level entry point: it owns one DiagramState and applies
// tool calls against it strictly in arrival order. The transport layer may
// deliver calls from any goroutine; the session serializes them, so a state
// is never observed mid-application. The bound format is immutable for the
// session's lifetime.
type Session struct {
	mu       sync.Mutex
	registry *EngineRegistry
	engine   Engine
	state    DiagramState
	failed   bool
	pending  []Issue
}

// NewSession creates a session bound to the engine registered under engineID
// in the default registry.
func NewSession(engineID string) *Session {
	return NewSessionWithRegistry(engineID, DefaultEngineRegistry)
}

// NewSessionWithRegistry creates a session over a custom registry. An unknown
// engineID degrades to the registry's primary engine; the fallback is surfaced
// on the first Dispatch rather than silently swallowed.
func NewSessionWithRegistry(engineID string, reg *EngineRegistry) *Session {
	s := &Session{registry: reg}
	eng, exact := reg.Resolve(engineID)
	if eng == nil {
		s.failed = true
		s.pending = []Issue{{Kind: IssueInternalInvariant, Detail: "registry has no engines"}}
		return s
	}
	s.engine = eng
	s.state = NewState(eng.Descriptor().Format)
	if !exact {
		s.pending = []Issue{{
			Kind:   IssueEngineFallback,
			Detail: fmt.Sprintf("unknown engine %q; using primary engine %q", engineID, eng.Descriptor().ID),
		}}
	}
	return s
}

// Descriptor returns the descriptor of the engine the session is bound to.
func (s *Session) Descriptor() EngineDescriptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine == nil {
		return EngineDescriptor{}
	}
	return s.engine.Descriptor()
}

// CurrentState returns a read-only snapshot of the session's diagram.
func (s *Session) CurrentState() DiagramState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ExportAs renders the current content to the target representation without
// mutating state.
func (s *Session) ExportAs(target string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine == nil {
		return "", &EngineError{Type: ErrValidate, Message: "session has no engine"}
	}
	if s.state.Truncated {
		return "", &EngineError{Type: ErrValidate, Message: "content is truncated; not valid for export"}
	}
	return s.engine.Export(s.state.Content, target)
}

// Dispatch validates and applies one tool call, returning the diagnostics
// record. Rejections leave the state untouched; the session always holds a
// last-known-good snapshot after any single call.
func (s *Session) Dispatch(ctx context.Context, call ToolCall) Diagnostics {
	s.mu.Lock()
	defer s.mu.Unlock()

	if call.ID == "" {
		call.ID = uuid.New().String()
	}
	if s.failed || s.engine == nil {
		return s.finish(call, rejected(s.state, Issue{Kind: IssueInternalInvariant, Detail: "session is failed; open a new session"}))
	}
	if issue, ok := validateCall(call); !ok {
		return s.finish(call, rejected(s.state, issue))
	}
	if issue, ok := checkCapability(s.engine.Descriptor(), call.Op.Kind); !ok {
		return s.finish(call, rejected(s.state, issue))
	}
	if call.EngineID != "" {
		resolved, exact := s.registry.Resolve(call.EngineID)
		switch {
		case !exact:
			s.pending = append(s.pending, Issue{
				Kind:   IssueEngineFallback,
				Detail: fmt.Sprintf("unknown engine %q; using session engine %q", call.EngineID, s.engine.Descriptor().ID),
			})
		case resolved.Descriptor().ID != s.engine.Descriptor().ID:
			s.pending = append(s.pending, Issue{
				Kind:   IssueEngineFallback,
				Detail: fmt.Sprintf("session is bound to %q; engine %q ignored", s.engine.Descriptor().ID, call.EngineID),
			})
		}
	}
	if call.ExpectedVersion != nil && *call.ExpectedVersion != s.state.Version {
		return s.finish(call, rejected(s.state, Issue{
			Kind:   IssueVersionConflict,
			Detail: fmt.Sprintf("expected version %d, state is at %d", *call.ExpectedVersion, s.state.Version),
		}))
	}

	op := call.Op
	if op.Kind == OpConvert {
		converted, err := s.engine.ConvertFrom(ctx, op.Grammar, op.Content)
		if err != nil {
			// Keep the original text verbatim so the session is never left
			// without content; the caller decides whether to re-prompt.
			next := s.state
			next.Content = op.Content
			next.Truncated = !s.engine.IsComplete(op.Content)
			next.Version++
			s.state = next
			return s.finish(call, accepted(next, Issue{Kind: IssueConversionFailed, Detail: err.Error()}))
		}
		op = Operation{Kind: OpReplace, Content: converted}
	}

	next, diags := s.engine.Apply(s.state, op)
	if diags.Accepted {
		s.state = next
	}
	for _, issue := range diags.Issues {
		if issue.Kind == IssueInternalInvariant {
			s.failed = true
		}
	}
	return s.finish(call, diags)
}

// finish merges issues queued outside the apply path (engine fallbacks) and
// stamps the call id for correlation.
func (s *Session) finish(call ToolCall, diags Diagnostics) Diagnostics {
	if len(s.pending) > 0 {
		diags.Issues = append(s.pending, diags.Issues...)
		s.pending = nil
	}
	diags.CallID = call.ID
	return diags
}

// checkCapability consults the engine's declared capability flags instead of
// probing for support at call time.
func checkCapability(desc EngineDescriptor, kind OperationKind) (Issue, bool) {
	unsupported := func() (Issue, bool) {
		return Issue{
			Kind:   IssueUnknownOperation,
			Detail: fmt.Sprintf("engine %q does not support %s", desc.ID, kind),
		}, false
	}
	switch kind {
	case OpPatch, OpDelete:
		if !desc.Capabilities.Patch {
			return unsupported()
		}
	case OpAppend:
		if !desc.Capabilities.Append {
			return unsupported()
		}
	case OpConvert:
		if !desc.Capabilities.Convert {
			return unsupported()
		}
	}
	return Issue{}, true
}

// validateCall checks the operation kind and payload presence before any
// engine work happens.
func validateCall(call ToolCall) (Issue, bool) {
	op := call.Op
	switch op.Kind {
	case OpDisplay, OpReplace, OpAppend, OpPatch:
		if strings.TrimSpace(op.Content) == "" {
			return Issue{Kind: IssueEmptyPayload, Detail: fmt.Sprintf("%s requires content", op.Kind)}, false
		}
	case OpDelete:
		if len(op.IDs) == 0 {
			return Issue{Kind: IssueEmptyPayload, Detail: "delete requires at least one id"}, false
		}
	case OpConvert:
		if strings.TrimSpace(op.Grammar) == "" || strings.TrimSpace(op.Content) == "" {
			return Issue{Kind: IssueEmptyPayload, Detail: "convert requires grammar and content"}, false
		}
	default:
		return Issue{Kind: IssueUnknownOperation, Detail: string(op.Kind)}, false
	}
	return Issue{}, true
}
