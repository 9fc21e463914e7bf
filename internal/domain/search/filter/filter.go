package filter

import (
	"errors"
	"fmt"

	"github.com/kailas-cloud/tocha/internal/domain/document"
)

// Operator is a comparison applied by a where-clause.
type Operator string

// Supported operators (document-store vocabulary).
const (
	Equal            Operator = "=="
	NotEqual         Operator = "!="
	Less             Operator = "<"
	LessOrEqual      Operator = "<="
	Greater          Operator = ">"
	GreaterOrEqual   Operator = ">="
	In               Operator = "in"
	NotIn            Operator = "not-in"
	ArrayContains    Operator = "array-contains"
	ArrayContainsAny Operator = "array-contains-any"
)

var (
	// ErrUnsupportedOperator signals an operator no backend understands.
	ErrUnsupportedOperator = errors.New("unsupported filter operator")
	// ErrArrayValueRequired signals a list operator given a non-list value.
	ErrArrayValueRequired = errors.New("filter value must be an array")
)

// IsValid reports whether the operator is one of the supported values.
func (o Operator) IsValid() bool {
	switch o {
	case Equal, NotEqual, Less, LessOrEqual, Greater, GreaterOrEqual,
		In, NotIn, ArrayContains, ArrayContainsAny:
		return true
	}
	return false
}

// NeedsArray reports whether the operator takes a list value.
func (o Operator) NeedsArray() bool {
	return o == In || o == NotIn || o == ArrayContainsAny
}

// Condition is a single (field, operator, value) triple.
// The operator is kept verbatim; backends reject ones they cannot translate.
type Condition struct {
	field string
	op    Operator
	value any
}

// NewCondition creates a condition. Field and operator are required.
func NewCondition(field string, op Operator, value any) (Condition, error) {
	if field == "" {
		return Condition{}, fmt.Errorf("filter field is required")
	}
	if op == "" {
		return Condition{}, fmt.Errorf("filter operator is required for field %q", field)
	}
	return Condition{field: field, op: op, value: value}, nil
}

// Field returns the filtered field name.
func (c Condition) Field() string { return c.field }

// Operator returns the comparison operator.
func (c Condition) Operator() Operator { return c.op }

// Value returns the comparison operand.
func (c Condition) Value() any { return c.value }

// Validate checks the operator and the operand shape.
func (c Condition) Validate() error {
	if !c.op.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnsupportedOperator, c.op)
	}
	if c.op.NeedsArray() {
		if _, ok := c.value.([]any); !ok {
			return fmt.Errorf("%w: operator %q on field %q", ErrArrayValueRequired, c.op, c.field)
		}
	}
	return nil
}

// Match evaluates the condition against a document. A document that lacks
// the field never matches, whatever the operator.
func (c Condition) Match(doc *document.Document) (bool, error) {
	if err := c.Validate(); err != nil {
		return false, err
	}
	v, ok := doc.Lookup(c.field)
	if !ok {
		return false, nil
	}

	switch c.op {
	case Equal:
		return document.Equal(v, c.value), nil
	case NotEqual:
		return !document.Equal(v, c.value), nil
	case Less, LessOrEqual, Greater, GreaterOrEqual:
		return compareOrdered(v, c.value, c.op), nil
	case In:
		return containsValue(c.value.([]any), v), nil
	case NotIn:
		return !containsValue(c.value.([]any), v), nil
	case ArrayContains:
		arr, ok := v.([]any)
		return ok && containsValue(arr, c.value), nil
	case ArrayContainsAny:
		arr, ok := v.([]any)
		if !ok {
			return false, nil
		}
		for _, want := range c.value.([]any) {
			if containsValue(arr, want) {
				return true, nil
			}
		}
		return false, nil
	}
	return false, fmt.Errorf("%w: %q", ErrUnsupportedOperator, c.op)
}

// MatchAll reports whether doc satisfies every condition (logical AND).
func MatchAll(conds []Condition, doc *document.Document) (bool, error) {
	for _, c := range conds {
		ok, err := c.Match(doc)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// compareOrdered only orders values of the same class: numbers with numbers,
// strings with strings. Mixed classes never match a range operator.
func compareOrdered(v, operand any, op Operator) bool {
	if !sameClass(v, operand) {
		return false
	}
	cmp := document.Compare(v, operand)
	switch op {
	case Less:
		return cmp < 0
	case LessOrEqual:
		return cmp <= 0
	case Greater:
		return cmp > 0
	case GreaterOrEqual:
		return cmp >= 0
	}
	return false
}

func sameClass(a, b any) bool {
	switch a.(type) {
	case float64, int, int64:
		switch b.(type) {
		case float64, int, int64:
			return true
		}
	case string:
		_, ok := b.(string)
		return ok
	case bool:
		_, ok := b.(bool)
		return ok
	}
	return false
}

func containsValue(list []any, v any) bool {
	for _, item := range list {
		if document.Equal(item, v) {
			return true
		}
	}
	return false
}
