// Package compliance is the pure evaluation core: no I/O, no clocks, no
// stores. Given a question's rules and a submitted value it produces a
// compliance status; given the per-answer statuses and weights it produces the
// visit score. Everything here is deterministic and safe to call concurrently.
package compliance

import (
	"encoding/json"

	tmplmodels "patrol/internal/template/models"
	dErrors "patrol/pkg/domain-errors"
)

// ValueKind discriminates the answer value union.
type ValueKind string

const (
	KindNull   ValueKind = "null"
	KindString ValueKind = "string"
	KindNumber ValueKind = "number"
	KindBool   ValueKind = "bool"
	KindList   ValueKind = "list"
)

// Value is the tagged union over the wire shapes an answer value may take:
// null, string, number, boolean, or a list of strings. Construct via the
// XxxValue constructors or UnmarshalJSON; the zero Value is null.
type Value struct {
	kind ValueKind
	str  string
	num  float64
	b    bool
	list []string
}

// NullValue is the absent/skipped answer value.
func NullValue() Value { return Value{kind: KindNull} }

// StringValue wraps a string answer.
func StringValue(s string) Value { return Value{kind: KindString, str: s} }

// NumberValue wraps a numeric answer.
func NumberValue(n float64) Value { return Value{kind: KindNumber, num: n} }

// BoolValue wraps a yes/no answer.
func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }

// ListValue wraps a multi-select answer.
func ListValue(items []string) Value {
	return Value{kind: KindList, list: append([]string(nil), items...)}
}

// Kind returns the active variant.
func (v Value) Kind() ValueKind {
	if v.kind == "" {
		return KindNull
	}
	return v.kind
}

// IsNull reports whether the value is absent.
func (v Value) IsNull() bool { return v.Kind() == KindNull }

// Str returns the string variant.
func (v Value) Str() (string, bool) { return v.str, v.Kind() == KindString }

// Num returns the number variant.
func (v Value) Num() (float64, bool) { return v.num, v.Kind() == KindNumber }

// Bool returns the boolean variant.
func (v Value) Bool() (bool, bool) { return v.b, v.Kind() == KindBool }

// List returns the list variant.
func (v Value) List() ([]string, bool) { return v.list, v.Kind() == KindList }

// MatchesType reports whether this value's kind is acceptable for a question
// type. Null is acceptable for every type (optionality is decided by the
// evaluator); photo questions ignore the value entirely.
func (v Value) MatchesType(qt tmplmodels.QuestionType) bool {
	if v.IsNull() {
		return true
	}
	switch qt {
	case tmplmodels.QuestionShortText, tmplmodels.QuestionSingleSelect:
		return v.Kind() == KindString
	case tmplmodels.QuestionNumber:
		return v.Kind() == KindNumber
	case tmplmodels.QuestionYesNo:
		return v.Kind() == KindBool
	case tmplmodels.QuestionMultiSelect:
		return v.Kind() == KindList
	case tmplmodels.QuestionPhoto:
		return true
	default:
		return false
	}
}

// UnmarshalJSON sniffs the JSON shape into the union. Numbers inside strings
// are not coerced; the caller submitted the wrong type.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "malformed answer value")
	}
	switch typed := raw.(type) {
	case nil:
		*v = NullValue()
	case string:
		*v = StringValue(typed)
	case float64:
		*v = NumberValue(typed)
	case bool:
		*v = BoolValue(typed)
	case []any:
		items := make([]string, len(typed))
		for i, item := range typed {
			s, ok := item.(string)
			if !ok {
				return dErrors.New(dErrors.CodeBadRequest, "answer value lists must contain only strings")
			}
			items[i] = s
		}
		*v = Value{kind: KindList, list: items}
	default:
		return dErrors.New(dErrors.CodeBadRequest, "answer value must be null, string, number, boolean, or a string list")
	}
	return nil
}

// MarshalJSON writes the underlying shape back out.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind() {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.b)
	case KindList:
		if v.list == nil {
			return json.Marshal([]string{})
		}
		return json.Marshal(v.list)
	default:
		return []byte("null"), nil
	}
}
