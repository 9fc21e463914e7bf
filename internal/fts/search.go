package fts

import (
	"math"
	"sort"
	"strings"
)

// Match is a ranked document reference.
type Match struct {
	Ref   string
	Score float64
}

// negatedScore is the score of every document a query made only of
// prohibited clauses lets through.
const negatedScore = 1.0

// Search scores every document against the query and returns matches in
// descending score order. Ties keep corpus order. Documents scoring zero are
// dropped, except under a query made only of prohibited clauses, which
// matches every document it does not exclude with negatedScore.
// An empty query or an empty index yields no matches.
func (idx *Index) Search(q string) ([]Match, error) {
	if strings.TrimSpace(q) == "" || len(idx.refs) == 0 {
		return []Match{}, nil
	}

	clauses, err := idx.parseQuery(q)
	if err != nil {
		return nil, err
	}

	scores := make([]float64, len(idx.refs))
	excluded := make([]bool, len(idx.refs))
	var requiredSets []map[int]bool

	for _, c := range clauses {
		matched := make(map[int]bool)
		for _, term := range idx.expand(c) {
			docs := idx.postings[term]
			idf := idx.idf(len(docs))
			for ord, tfs := range docs {
				for fi, tf := range tfs {
					if tf == 0 || (c.field >= 0 && fi != c.field) {
						continue
					}
					matched[ord] = true
					if c.presence != prohibited {
						scores[ord] += idf * idx.bm25(tf, idx.lengths[ord][fi], idx.avgLen[fi])
					}
				}
			}
		}

		switch c.presence {
		case required:
			requiredSets = append(requiredSets, matched)
		case prohibited:
			for ord := range matched {
				excluded[ord] = true
			}
		}
	}

	if negatedOnly(clauses) {
		for ord := range scores {
			scores[ord] = negatedScore
		}
	}

	matches := make([]Match, 0)
	for ord, ref := range idx.refs {
		if excluded[ord] || scores[ord] <= 0 || !inAll(requiredSets, ord) {
			continue
		}
		matches = append(matches, Match{Ref: ref, Score: scores[ord]})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	return matches, nil
}

// expand resolves a clause to index terms, in sorted order.
func (idx *Index) expand(c clause) []string {
	if !c.wildcard {
		if _, ok := idx.postings[c.term]; ok {
			return []string{c.term}
		}
		return nil
	}
	start := sort.SearchStrings(idx.terms, c.term)
	end := start
	for end < len(idx.terms) && strings.HasPrefix(idx.terms[end], c.term) {
		end++
	}
	return idx.terms[start:end]
}

// idf = ln(1 + (N - df + 0.5) / (df + 0.5)), always positive for df >= 1.
func (idx *Index) idf(df int) float64 {
	n := float64(len(idx.refs))
	d := float64(df)
	return math.Log(1 + math.Abs((n-d+0.5)/(d+0.5)))
}

// bm25 = tf * (k1 + 1) / (tf + k1 * (1 - b + b * |d| / avgdl))
func (idx *Index) bm25(tf, docLen int, avgLen float64) float64 {
	norm := 1.0
	if avgLen > 0 {
		norm = 1 - idx.b + idx.b*float64(docLen)/avgLen
	}
	t := float64(tf)
	return t * (idx.k1 + 1) / (t + idx.k1*norm)
}

func inAll(sets []map[int]bool, ord int) bool {
	for _, s := range sets {
		if !s[ord] {
			return false
		}
	}
	return true
}

func negatedOnly(clauses []clause) bool {
	for _, c := range clauses {
		if c.presence != prohibited {
			return false
		}
	}
	return len(clauses) > 0
}
