package document

import (
	"reflect"
	"testing"
)

func TestCorpus_InsertionOrder(t *testing.T) {
	c := NewCorpus()
	c.Add("b", New("b", nil))
	c.Add("a", New("a", nil))
	c.Add("c", New("c", nil))

	if got := c.Refs(); !reflect.DeepEqual(got, []string{"b", "a", "c"}) {
		t.Errorf("Refs() = %v", got)
	}
	if c.Len() != 3 {
		t.Errorf("Len() = %d", c.Len())
	}
}

func TestCorpus_DuplicateRefLastWriteWins(t *testing.T) {
	c := NewCorpus()
	c.Add("x", New("1", map[string]any{"v": "first"}))
	c.Add("y", New("2", nil))
	c.Add("x", New("3", map[string]any{"v": "second"}))

	if c.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", c.Len())
	}
	d, ok := c.Get("x")
	if !ok {
		t.Fatal("expected x")
	}
	if d.ID() != "3" || d.Fields()["v"] != "second" {
		t.Errorf("Get(x) = %s %v, want last written", d.ID(), d.Fields())
	}
	if got := c.Refs(); !reflect.DeepEqual(got, []string{"x", "y"}) {
		t.Errorf("Refs() = %v", got)
	}
}

func TestCorpus_GetMissing(t *testing.T) {
	if _, ok := NewCorpus().Get("nope"); ok {
		t.Error("expected missing")
	}
}
