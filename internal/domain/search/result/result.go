package result

import "encoding/json"

// Result is a single ranked hit.
type Result struct {
	ref     string
	score   float64
	data    map[string]any
	missing bool
}

// New creates a search result carrying the full stored document.
func New(ref string, score float64, data map[string]any) Result {
	return Result{ref: ref, score: score, data: data}
}

// Missing creates a result whose reference had no corpus entry.
// It serializes with "data": null.
func Missing(ref string, score float64) Result {
	return Result{ref: ref, score: score, missing: true}
}

// Ref returns the document reference.
func (r *Result) Ref() string { return r.ref }

// Score returns the lexical relevance score.
func (r *Result) Score() float64 { return r.score }

// Data returns the stored document fields (nil when missing).
func (r *Result) Data() map[string]any { return r.data }

// IsMissing reports whether the document could not be resolved.
func (r *Result) IsMissing() bool { return r.missing }

type wireResult struct {
	ID    string         `json:"id"`
	Score float64        `json:"score"`
	Data  map[string]any `json:"data"`
}

// MarshalJSON encodes the result in the stored record layout.
func (r Result) MarshalJSON() ([]byte, error) {
	w := wireResult{ID: r.ref, Score: r.score}
	if !r.missing {
		w.Data = r.data
		if w.Data == nil {
			w.Data = map[string]any{}
		}
	}
	return json.Marshal(w)
}
