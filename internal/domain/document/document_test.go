package document

import "testing"

func TestLookup_Nested(t *testing.T) {
	doc := New("a", map[string]any{
		"title":  "red apple",
		"author": map[string]any{"name": "ann"},
	})

	if v, ok := doc.Lookup("title"); !ok || v != "red apple" {
		t.Errorf("Lookup(title) = %v, %v", v, ok)
	}
	if v, ok := doc.Lookup("author.name"); !ok || v != "ann" {
		t.Errorf("Lookup(author.name) = %v, %v", v, ok)
	}
	if _, ok := doc.Lookup("author.age"); ok {
		t.Error("expected missing nested field")
	}
	if _, ok := doc.Lookup("title.x"); ok {
		t.Error("expected lookup through scalar to fail")
	}
}

func TestLookup_LiteralDottedKeyWins(t *testing.T) {
	doc := New("a", map[string]any{"a.b": "flat", "a": map[string]any{"b": "nested"}})
	if v, _ := doc.Lookup("a.b"); v != "flat" {
		t.Errorf("Lookup(a.b) = %v, want flat", v)
	}
}

func TestLookup_KeyFallsBackToID(t *testing.T) {
	doc := New("invoice42", map[string]any{"text": "paid"})
	if v, ok := doc.Lookup("key"); !ok || v != "invoice42" {
		t.Errorf("Lookup(key) = %v, %v, want invoice42", v, ok)
	}

	stored := New("invoice42", map[string]any{"key": "custom"})
	if v, _ := stored.Lookup("key"); v != "custom" {
		t.Errorf("Lookup(key) = %v, want stored value", v)
	}
}

func TestWithKey(t *testing.T) {
	doc := New("a1", map[string]any{"text": "red apple"})
	withKey := doc.WithKey()
	if withKey.Fields()["key"] != "a1" || withKey.Fields()["text"] != "red apple" {
		t.Errorf("WithKey().Fields() = %v", withKey.Fields())
	}
	if _, ok := doc.Fields()["key"]; ok {
		t.Error("WithKey must not modify the original fields")
	}

	stored := New("a1", map[string]any{"key": "custom"})
	if got := stored.WithKey(); got.Fields()["key"] != "custom" {
		t.Errorf("stored key overwritten: %v", got.Fields())
	}
}

func TestRef(t *testing.T) {
	tests := []struct {
		name     string
		fields   map[string]any
		refField string
		want     string
	}{
		{"default falls back to id", map[string]any{"text": "x"}, "", "doc-1"},
		{"explicit string field", map[string]any{"sku": "S-9"}, "sku", "S-9"},
		{"numeric field", map[string]any{"n": float64(42)}, "n", "42"},
		{"missing field falls back", map[string]any{}, "sku", "doc-1"},
		{"object field falls back", map[string]any{"sku": map[string]any{}}, "sku", "doc-1"},
		{"null field falls back", map[string]any{"sku": nil}, "sku", "doc-1"},
		{"synthetic key shadows stored key", map[string]any{"key": "other"}, "key", "doc-1"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			doc := New("doc-1", tc.fields)
			if got := doc.Ref(tc.refField); got != tc.want {
				t.Errorf("Ref(%q) = %q, want %q", tc.refField, got, tc.want)
			}
		})
	}
}

func TestNew_NilFields(t *testing.T) {
	doc := New("x", nil)
	if doc.Fields() == nil {
		t.Fatal("Fields() should never be nil")
	}
	if doc.ID() != "x" {
		t.Errorf("ID() = %q", doc.ID())
	}
}
