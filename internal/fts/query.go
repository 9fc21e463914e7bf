package fts

import (
	"errors"
	"fmt"
	"strings"
)

// ErrQueryParse signals a query the index cannot interpret.
var ErrQueryParse = errors.New("query parse error")

// presence controls how a clause constrains matching documents.
type presence int

const (
	optional presence = iota
	required
	prohibited
)

// clause is one analyzed query term.
type clause struct {
	term     string
	field    int // -1 = all indexed fields
	presence presence
	wildcard bool
}

// parseQuery splits the query on whitespace. Each chunk may carry a presence
// prefix ("+" required, "-" prohibited), a field scope ("title:apple") and a
// trailing "*" for prefix matching. Wildcard terms skip stop words and stemming.
func (idx *Index) parseQuery(q string) ([]clause, error) {
	var clauses []clause
	for _, chunk := range strings.Fields(q) {
		p := optional
		switch chunk[0] {
		case '+':
			p = required
			chunk = chunk[1:]
		case '-':
			p = prohibited
			chunk = chunk[1:]
		}

		field := -1
		if i := strings.Index(chunk, ":"); i > 0 {
			name := chunk[:i]
			field = idx.fieldIndex(name)
			if field < 0 {
				return nil, fmt.Errorf("%w: unrecognised field %q", ErrQueryParse, name)
			}
			chunk = chunk[i+1:]
		}

		wildcard := strings.HasSuffix(chunk, "*")
		var terms []string
		if wildcard {
			terms = Tokenize(strings.TrimRight(chunk, "*"))
		} else {
			terms = Analyze(chunk)
		}
		for _, term := range terms {
			clauses = append(clauses, clause{term: term, field: field, presence: p, wildcard: wildcard})
		}
	}
	return clauses, nil
}

func (idx *Index) fieldIndex(name string) int {
	for i, f := range idx.fields {
		if f == name {
			return i
		}
	}
	return -1
}
