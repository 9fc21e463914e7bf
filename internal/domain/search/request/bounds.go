package request

import (
	"fmt"
	"strings"
)

// Direction is a sort direction.
type Direction string

// Sort directions.
const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// ParseDirection accepts "", "asc", "ascending", "desc", "descending" (case-insensitive).
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(s) {
	case "", "asc", "ascending":
		return Asc, nil
	case "desc", "descending":
		return Desc, nil
	}
	return "", fmt.Errorf("invalid sort direction %q", s)
}

// Sort is a single ordering directive.
type Sort struct {
	field string
	dir   Direction
}

// NewSort creates a sort directive. Empty direction means ascending.
func NewSort(field string, dir Direction) Sort {
	if dir == "" {
		dir = Asc
	}
	return Sort{field: field, dir: dir}
}

// Field returns the ordering field.
func (s Sort) Field() string { return s.field }

// Direction returns the ordering direction.
func (s Sort) Direction() Direction { return s.dir }

// PageKind identifies which page bound is active.
type PageKind string

// Page bound kinds in priority order.
const (
	NoPage       PageKind = ""
	Limit        PageKind = "limit"
	LimitToFirst PageKind = "limitToFirst"
	LimitToLast  PageKind = "limitToLast"
)

// Page is the single page bound honored for a request.
type Page struct {
	kind PageKind
	n    int
}

// NewPage creates a page bound.
func NewPage(kind PageKind, n int) Page { return Page{kind: kind, n: n} }

// SelectPage returns the first present bound in priority order
// limit > limitToFirst > limitToLast. Nil and zero values count as absent.
func SelectPage(limit, limitToFirst, limitToLast *int) Page {
	candidates := []struct {
		kind PageKind
		v    *int
	}{
		{Limit, limit},
		{LimitToFirst, limitToFirst},
		{LimitToLast, limitToLast},
	}
	for _, c := range candidates {
		if c.v != nil && *c.v != 0 {
			return Page{kind: c.kind, n: *c.v}
		}
	}
	return Page{}
}

// Kind returns the active bound kind (NoPage when unbounded).
func (p Page) Kind() PageKind { return p.kind }

// N returns the bound size.
func (p Page) N() int { return p.n }

// IsSet reports whether a page bound is active.
func (p Page) IsSet() bool { return p.kind != NoPage }

// FromEnd reports whether the bound keeps the last N entries.
func (p Page) FromEnd() bool { return p.kind == LimitToLast }

// Bound is an optional range or equality value.
type Bound struct {
	value any
	set   bool
}

// NewBound creates a set bound.
func NewBound(v any) Bound { return Bound{value: v, set: true} }

// IsSet reports whether the bound was given.
func (b Bound) IsSet() bool { return b.set }

// Value returns the bound value.
func (b Bound) Value() any { return b.value }

// Range holds startAt/endAt/equalTo bounds.
type Range struct {
	startAt Bound
	endAt   Bound
	equalTo Bound
}

// NewRange creates a Range.
func NewRange(startAt, endAt, equalTo Bound) Range {
	return Range{startAt: startAt, endAt: endAt, equalTo: equalTo}
}

// StartAt returns the inclusive lower bound.
func (r Range) StartAt() Bound { return r.startAt }

// EndAt returns the inclusive upper bound.
func (r Range) EndAt() Bound { return r.endAt }

// EqualTo returns the equality bound.
func (r Range) EqualTo() Bound { return r.equalTo }

// IsEmpty reports whether no bound is set.
func (r Range) IsEmpty() bool {
	return !r.startAt.set && !r.endAt.set && !r.equalTo.set
}
