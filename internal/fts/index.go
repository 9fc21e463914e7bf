package fts

import (
	"errors"
	"fmt"
	"sort"

	"github.com/kailas-cloud/tocha/internal/domain/document"
)

// BM25 defaults.
const (
	DefaultK1 = 1.2
	DefaultB  = 0.75
)

// ErrFieldShape signals an indexed field holding a value that has no text form.
var ErrFieldShape = errors.New("unsupported field shape")

// Index is an immutable inverted index over one corpus.
type Index struct {
	fields   []string
	refs     []string
	lengths  [][]int
	avgLen   []float64
	postings map[string]map[int][]int // term -> doc ordinal -> tf per field
	terms    []string                 // sorted, for prefix expansion
	k1, b    float64
}

// Option configures Build.
type Option func(*Index)

// WithBM25 overrides the BM25 saturation (k1) and length normalization (b) parameters.
func WithBM25(k1, b float64) Option {
	return func(idx *Index) {
		if k1 > 0 {
			idx.k1 = k1
		}
		if b >= 0 && b <= 1 {
			idx.b = b
		}
	}
}

// Build indexes the listed fields of every corpus document under its reference.
// Unlisted fields are not indexed. An empty corpus yields an empty, usable index.
func Build(corpus *document.Corpus, fields []string, opts ...Option) (*Index, error) {
	idx := &Index{
		fields:   fields,
		postings: make(map[string]map[int][]int),
		k1:       DefaultK1,
		b:        DefaultB,
	}
	for _, opt := range opts {
		opt(idx)
	}

	totals := make([]int, len(fields))
	for _, ref := range corpus.Refs() {
		doc, _ := corpus.Get(ref)
		ord := len(idx.refs)
		idx.refs = append(idx.refs, ref)
		lengths := make([]int, len(fields))

		for fi, name := range fields {
			v, ok := doc.Lookup(name)
			if !ok {
				continue
			}
			texts, err := fieldText(v)
			if err != nil {
				return nil, fmt.Errorf("document %q field %q: %w", ref, name, err)
			}
			for _, text := range texts {
				for _, term := range Analyze(text) {
					idx.addPosting(term, ord, fi)
					lengths[fi]++
				}
			}
			totals[fi] += lengths[fi]
		}
		idx.lengths = append(idx.lengths, lengths)
	}

	idx.avgLen = make([]float64, len(fields))
	if n := len(idx.refs); n > 0 {
		for fi, total := range totals {
			idx.avgLen[fi] = float64(total) / float64(n)
		}
	}

	idx.terms = make([]string, 0, len(idx.postings))
	for term := range idx.postings {
		idx.terms = append(idx.terms, term)
	}
	sort.Strings(idx.terms)

	return idx, nil
}

// Len returns the number of indexed documents.
func (idx *Index) Len() int { return len(idx.refs) }

// Fields returns the indexed field names.
func (idx *Index) Fields() []string { return idx.fields }

func (idx *Index) addPosting(term string, ord, field int) {
	docs, ok := idx.postings[term]
	if !ok {
		docs = make(map[int][]int)
		idx.postings[term] = docs
	}
	tfs, ok := docs[ord]
	if !ok {
		tfs = make([]int, len(idx.fields))
		docs[ord] = tfs
	}
	tfs[field]++
}

// fieldText flattens a field value into its text pieces.
// Scalars are stringified, arrays recurse, null contributes nothing.
func fieldText(v any) ([]string, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case []any:
		var out []string
		for _, item := range x {
			texts, err := fieldText(item)
			if err != nil {
				return nil, err
			}
			out = append(out, texts...)
		}
		return out, nil
	case []string:
		return x, nil
	}
	if s, ok := document.ScalarString(v); ok {
		return []string{s}, nil
	}
	return nil, fmt.Errorf("%w: %T", ErrFieldShape, v)
}
