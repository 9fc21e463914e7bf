package fts

import (
	"reflect"
	"testing"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"Red-Apple, green  APPLE!", []string{"red", "apple", "green", "apple"}},
		{"  ", []string{}},
		{"(hello) world.", []string{"hello", "world"}},
		{"snake_case stays", []string{"snake_case", "stays"}},
		{"café au lait", []string{"café", "au", "lait"}},
	}
	for _, tc := range tests {
		got := Tokenize(tc.in)
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("Tokenize(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestAnalyze_DropsStopWords(t *testing.T) {
	got := Analyze("the apple and the car")
	if len(got) != 2 {
		t.Fatalf("Analyze() = %v, want 2 terms", got)
	}
	for _, term := range got {
		if isStopWord(term) {
			t.Errorf("stop word %q survived analysis", term)
		}
	}
}

func TestAnalyze_StemsInflections(t *testing.T) {
	pairs := [][2]string{
		{"apple", "apples"},
		{"run", "running"},
		{"index", "indexes"},
	}
	for _, p := range pairs {
		a, b := Analyze(p[0]), Analyze(p[1])
		if len(a) != 1 || !reflect.DeepEqual(a, b) {
			t.Errorf("Analyze(%q) = %v, Analyze(%q) = %v; want same stem", p[0], a, p[1], b)
		}
	}
}

func TestAnalyze_CaseFolding(t *testing.T) {
	if !reflect.DeepEqual(Analyze("APPLE"), Analyze("apple")) {
		t.Error("case should not matter")
	}
}
