package sketch

import (
	"testing"
)

func TestParseElements(t *testing.T) {
	els, err := ParseElements(`[{"id":"a","label":"Alpha"},{"id":"b","x":1}]`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(els) != 2 || els[0].ID != "a" || els[1].ID != "b" {
		t.Fatalf("ids not split out: %+v", els)
	}
	if els[0].Attrs["label"] != "Alpha" {
		t.Fatalf("attrs lost: %+v", els[0].Attrs)
	}
	if _, hasID := els[0].Attrs["id"]; hasID {
		t.Fatalf("id must not linger in attrs: %+v", els[0].Attrs)
	}
}

func TestEncodeElementsDeterministic(t *testing.T) {
	els := []Element{{ID: "a", Attrs: map[string]any{"shape": "box", "label": "Alpha"}}}
	first, err := EncodeElements(els)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := `[{"id":"a","label":"Alpha","shape":"box"}]`
	if first != want {
		t.Fatalf("encoding not canonical:\n got %s\nwant %s", first, want)
	}
	if out, _ := EncodeElements(nil); out != "[]" {
		t.Fatalf("nil elements should encode to [], got %q", out)
	}
}

func TestScanElementJSON(t *testing.T) {
	cases := []struct {
		name      string
		content   string
		complete  bool
		malformed bool
	}{
		{"closed array", `[{"id":"a"}]`, true, false},
		{"empty array", `[]`, true, false},
		{"open array", `[{"id":"a"},`, false, false},
		{"cut mid object", `[{"id":"a`, false, false},
		{"cut mid string", `[{"id":"alp`, false, false},
		{"blank", "   ", false, false},
		{"object not array", `{"id":"a"}`, false, true},
		{"scalar", `42`, false, true},
		{"broken syntax", `[{"id"::}]`, false, true},
	}
	for _, tc := range cases {
		complete, malformed := scanElementJSON(tc.content)
		if complete != tc.complete || malformed != tc.malformed {
			t.Errorf("%s: got complete=%v malformed=%v, want %v/%v",
				tc.name, complete, malformed, tc.complete, tc.malformed)
		}
	}
}

func TestValidateElements(t *testing.T) {
	err := ValidateElements([]Element{{ID: "a"}, {ID: ""}, {ID: "a"}})
	if err == nil {
		t.Fatalf("expected validation failure")
	}
	verr, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if len(verr.Issues) != 2 {
		t.Fatalf("expected missing-id and duplicate-id issues, got %v", verr.Issues)
	}
	if err := ValidateElements([]Element{{ID: "a"}, {ID: "b"}}); err != nil {
		t.Fatalf("valid list rejected: %v", err)
	}
}
