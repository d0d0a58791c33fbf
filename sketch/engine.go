package sketch

import "context"

// Capabilities are the optional surfaces an engine declares up front.
// Callers check flags instead of probing methods at call time.
type Capabilities struct {
	Patch   bool
	Append  bool
	Convert bool
	Export  bool
}

// EngineDescriptor is the static metadata bound to a format implementation.
type EngineDescriptor struct {
	ID           string
	Format       Format
	Capabilities Capabilities
}

// Engine is the polymorphic unit each diagram format implements.
//
// Apply never returns a Go error for structurally invalid input: rejections
// are expressed through the Diagnostics record and the prior state survives
// unchanged, so a session always holds a last-known-good snapshot.
type Engine interface {
	Descriptor() EngineDescriptor
	// Apply validates op against state and returns the new (or unchanged)
	// state plus diagnostics. OpConvert is resolved by the Session before
	// Apply sees it.
	Apply(state DiagramState, op Operation) (DiagramState, Diagnostics)
	// IsComplete reports whether content is structurally closed; incomplete
	// content keeps the state truncated until an append resolves it.
	IsComplete(content string) bool
	// ConvertFrom parses text in an external interchange grammar into the
	// engine's native content representation.
	ConvertFrom(ctx context.Context, grammar, text string) (string, error)
	// Export renders content to a target textual representation.
	Export(content, target string) (string, error)
}
