package sketch

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// EngineRegistry maps engine identifiers to contract implementations. It is
// populated at process start and read for the life of the process; lookups
// never fail — unknown identifiers degrade to the primary (first-registered)
// engine so that legacy or misspelled identifiers do not abort a session.
// Callers surface the fallback through diagnostics rather than hiding it.
type EngineRegistry struct {
	mu      sync.RWMutex
	engines map[string]Engine
	order   []string
}

// NewEngineRegistry builds an empty registry.
func NewEngineRegistry() *EngineRegistry {
	return &EngineRegistry{engines: make(map[string]Engine)}
}

// EngineExistsError indicates a duplicate registration attempt.
var EngineExistsError = errors.New("engine already registered")

// Register adds an engine under its descriptor id. Returns EngineExistsError
// when the id is already taken.
func (r *EngineRegistry) Register(eng Engine) error {
	if eng == nil {
		return errors.New("engine is nil")
	}
	id := engineKey(eng.Descriptor().ID)
	if id == "" {
		return errors.New("engine descriptor has no id")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.engines[id]; exists {
		return fmt.Errorf("%w: %s", EngineExistsError, id)
	}
	r.engines[id] = eng
	r.order = append(r.order, id)
	return nil
}

// Resolve returns the engine for id, or the primary engine when id is
// unknown. The second return reports whether the match was exact.
func (r *EngineRegistry) Resolve(id string) (Engine, bool) {
	key := engineKey(id)
	r.mu.RLock()
	defer r.mu.RUnlock()
	if eng, ok := r.engines[key]; ok {
		return eng, true
	}
	if len(r.order) == 0 {
		return nil, false
	}
	return r.engines[r.order[0]], false
}

// List returns descriptors for registered engines, sorted by id.
func (r *EngineRegistry) List() []EngineDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]EngineDescriptor, 0, len(r.engines))
	for _, eng := range r.engines {
		out = append(out, eng.Descriptor())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// DefaultEngineRegistry is pre-populated with the built-in graph-xml and
// element-json engines; graph-xml is primary.
var DefaultEngineRegistry = newDefaultEngineRegistry()

func newDefaultEngineRegistry() *EngineRegistry {
	reg := NewEngineRegistry()
	registerDefaultEngines(reg)
	return reg
}

// registerDefaultEngines wires built-ins onto the provided registry.
func registerDefaultEngines(reg *EngineRegistry) {
	// ignore duplicate errors to allow idempotent init in tests
	_ = reg.Register(graphEngine{})
	_ = reg.Register(elementsEngine{})
}

func engineKey(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
