package sketch

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Element is the atomic unit of the element-json format: a unique string id
// plus opaque attributes whose schema is format-specific and not validated
// beyond well-formedness.
type Element struct {
	ID    string
	Attrs map[string]any
}

// MarshalJSON flattens the element into one JSON object with the id inline.
// Map keys are emitted in sorted order, so encoding is deterministic.
func (e Element) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(e.Attrs)+1)
	for k, v := range e.Attrs {
		m[k] = v
	}
	m["id"] = e.ID
	return json.Marshal(m)
}

// UnmarshalJSON splits the id out of the object and keeps the rest opaque.
func (e *Element) UnmarshalJSON(body []byte) error {
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		return err
	}
	id, _ := m["id"].(string)
	delete(m, "id")
	e.ID = id
	if len(m) == 0 {
		e.Attrs = nil
	} else {
		e.Attrs = m
	}
	return nil
}

// ParseElements decodes element-json content: a JSON array of objects.
func ParseElements(content string) ([]Element, error) {
	var els []Element
	if err := json.Unmarshal([]byte(content), &els); err != nil {
		return nil, decodeError("parse elements", err)
	}
	return els, nil
}

// EncodeElements serializes elements to the canonical compact form,
// preserving sequence order.
func EncodeElements(els []Element) (string, error) {
	if els == nil {
		els = []Element{}
	}
	body, err := json.Marshal(els)
	if err != nil {
		return "", decodeError("encode elements", err)
	}
	return string(body), nil
}

// scanElementJSON classifies element-json content: complete means the text is
// one whole JSON array; a cut mid-token or mid-array is incomplete; anything
// that cannot become valid by appending more text is malformed.
func scanElementJSON(content string) (complete bool, malformed bool) {
	if strings.TrimSpace(content) == "" {
		return false, false
	}
	dec := json.NewDecoder(strings.NewReader(content))
	first, err := dec.Token()
	if err != nil {
		return false, !isTruncatedJSON(err)
	}
	if d, ok := first.(json.Delim); !ok || d != '[' {
		return false, true
	}
	for {
		_, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				// EOF from Token means the array closed; trailing garbage
				// would have produced a syntax error instead.
				return true, false
			}
			return false, !isTruncatedJSON(err)
		}
	}
}

func isTruncatedJSON(err error) bool {
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	var syn *json.SyntaxError
	return errors.As(err, &syn) && strings.Contains(syn.Error(), "unexpected end of JSON input")
}

// ValidateElements checks for missing and duplicate identifiers.
func ValidateElements(els []Element) error {
	var issues []string
	var details []ValidationDetail
	seen := make(map[string]struct{})
	for i, el := range els {
		if strings.TrimSpace(el.ID) == "" {
			issues = append(issues, fmt.Sprintf("element[%d] missing id", i))
			details = append(details, ValidationDetail{Scope: "element", Field: "id", Message: fmt.Sprintf("element %d missing id", i)})
			continue
		}
		if _, dup := seen[el.ID]; dup {
			issues = append(issues, "duplicate element id "+el.ID)
			details = append(details, ValidationDetail{Scope: "element", Field: "id", Message: "duplicate id " + el.ID})
		}
		seen[el.ID] = struct{}{}
	}
	if len(issues) > 0 {
		return &ValidationError{Issues: issues, Details: details}
	}
	return nil
}
