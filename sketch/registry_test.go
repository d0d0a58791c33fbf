package sketch

import (
	"errors"
	"testing"
)

func TestRegistryResolveExact(t *testing.T) {
	eng, exact := DefaultEngineRegistry.Resolve(string(FormatElementJSON))
	if !exact {
		t.Fatalf("known id should resolve exactly")
	}
	if eng.Descriptor().Format != FormatElementJSON {
		t.Fatalf("wrong engine: %+v", eng.Descriptor())
	}
	if _, exact := DefaultEngineRegistry.Resolve("  Graph-XML  "); !exact {
		t.Fatalf("ids should match case- and space-insensitively")
	}
}

func TestRegistryResolveFallsBackToPrimary(t *testing.T) {
	eng, exact := DefaultEngineRegistry.Resolve("nope")
	if exact {
		t.Fatalf("unknown id must not report an exact match")
	}
	if eng == nil || eng.Descriptor().ID != string(FormatGraphXML) {
		t.Fatalf("fallback should be the first-registered engine, got %+v", eng)
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	reg := NewEngineRegistry()
	if err := reg.Register(graphEngine{}); err != nil {
		t.Fatalf("first register: %v", err)
	}
	err := reg.Register(graphEngine{})
	if !errors.Is(err, EngineExistsError) {
		t.Fatalf("expected EngineExistsError, got %v", err)
	}
}

func TestRegistryEmptyResolve(t *testing.T) {
	reg := NewEngineRegistry()
	if eng, _ := reg.Resolve("anything"); eng != nil {
		t.Fatalf("empty registry must resolve to nil")
	}
}

func TestRegistryList(t *testing.T) {
	descs := DefaultEngineRegistry.List()
	if len(descs) != 2 {
		t.Fatalf("expected the two built-ins, got %+v", descs)
	}
	if descs[0].ID > descs[1].ID {
		t.Fatalf("list should be sorted by id: %+v", descs)
	}
	for _, d := range descs {
		if !d.Capabilities.Patch || !d.Capabilities.Export {
			t.Fatalf("built-in engines should declare full capabilities: %+v", d)
		}
	}
}
