package sketch

// Format enumerates the diagram representations the SDK understands.
type Format string

const (
	// FormatGraphXML is an XML node/edge tree: nested <node> elements under a
	// <graph> root plus flat <edge> references between node ids.
	FormatGraphXML Format = "graph-xml"
	// FormatElementJSON is an ordered JSON array of elements, each carrying a
	// unique string id and opaque attributes.
	FormatElementJSON Format = "element-json"
)

// DiagramState is the authoritative snapshot of one diagram: its format, the
// canonical serialized content, a monotonically increasing version, and a flag
// marking content that ended mid-structure and awaits a continuation.
//
// A state is owned by exactly one Session and mutated only through Dispatch.
// Content is an immutable string, so copying a DiagramState is a full snapshot.
type DiagramState struct {
	Format    Format `json:"format"`
	Version   int    `json:"version"`
	Content   string `json:"content"`
	Truncated bool   `json:"truncated"`
}

// NewState returns an empty version-zero state for the given format.
func NewState(format Format) DiagramState {
	return DiagramState{Format: format}
}

// Empty reports whether the state carries no content yet.
func (s DiagramState) Empty() bool {
	return s.Content == ""
}
