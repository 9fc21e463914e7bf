package document

import (
	"strconv"
	"strings"
)

// DefaultRefField is the synthetic reference field that resolves to the storage identifier.
const DefaultRefField = "key"

// Document is a stored record as read from a backend (immutable value object).
// Fields hold decoded JSON values: string, float64, bool, nil, []any, map[string]any.
type Document struct {
	id     string
	fields map[string]any
}

// New creates a Document. The storage identifier survives any later projection.
func New(id string, fields map[string]any) Document {
	if fields == nil {
		fields = map[string]any{}
	}
	return Document{id: id, fields: fields}
}

// ID returns the storage identifier.
func (d *Document) ID() string { return d.id }

// Fields returns the full, unprojected field map.
func (d *Document) Fields() map[string]any { return d.fields }

// WithKey returns a copy whose fields include the synthetic "key" field set to
// the storage identifier. A stored "key" field is left as is.
func (d *Document) WithKey() Document {
	if _, ok := d.fields[DefaultRefField]; ok {
		return *d
	}
	fields := make(map[string]any, len(d.fields)+1)
	for k, v := range d.fields {
		fields[k] = v
	}
	fields[DefaultRefField] = d.id
	return Document{id: d.id, fields: fields}
}

// Lookup resolves a field by name. Dotted names walk nested objects ("author.name").
// "key" resolves to the storage identifier when the document has no such field.
func (d *Document) Lookup(path string) (any, bool) {
	if v, ok := d.fields[path]; ok {
		return v, true
	}
	if path == DefaultRefField {
		return d.id, true
	}
	if !strings.Contains(path, ".") {
		return nil, false
	}
	var cur any = d.fields
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Ref returns the reference value for the document: the refField value when it
// holds a scalar, otherwise the storage identifier. The synthetic "key" field
// always resolves to the storage identifier.
func (d *Document) Ref(refField string) string {
	if refField == "" || refField == DefaultRefField {
		return d.id
	}
	v, ok := d.Lookup(refField)
	if !ok {
		return d.id
	}
	if s, ok := ScalarString(v); ok {
		return s
	}
	return d.id
}

// ScalarString formats a scalar JSON value as text. Returns false for nil, arrays and objects.
func ScalarString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case bool:
		return strconv.FormatBool(x), true
	default:
		return "", false
	}
}
