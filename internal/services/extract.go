package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

// DefaultResponseFields is the order in which reply fields are tried.
var DefaultResponseFields = []string{"output", "response", "answer", "message", "result"}

// ResponseExtractor turns a decoded webhook body into display text.
type ResponseExtractor interface {
	Extract(v any) string
}

// FieldPriorityExtractor returns the first non-empty field among Fields.
// A non-empty array is reduced to its first element first.
type FieldPriorityExtractor struct {
	Fields []string
}

func NewFieldPriorityExtractor() *FieldPriorityExtractor {
	return &FieldPriorityExtractor{Fields: DefaultResponseFields}
}

func (e *FieldPriorityExtractor) Extract(v any) string {
	if list, ok := v.([]any); ok && len(list) > 0 {
		v = list[0]
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return stringify(v)
	}

	for _, field := range e.Fields {
		if val, ok := obj[field]; ok && !isEmptyValue(val) {
			return stringify(val)
		}
	}
	return NoticeNoResponseField
}

// decodeJSON decodes body keeping numbers as json.Number. Trailing data
// after the first value counts as invalid JSON.
func decodeJSON(body []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("unexpected data after top-level JSON value")
	}
	return v, nil
}

func isEmptyValue(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case bool:
		return !val
	case json.Number:
		f, err := val.Float64()
		return err == nil && f == 0
	case []any:
		return len(val) == 0
	case map[string]any:
		return len(val) == 0
	default:
		return false
	}
}

func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return strings.TrimSpace(string(b))
	}
}
