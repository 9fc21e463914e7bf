package redis

import (
	"fmt"
	"slices"
	"sort"
	"strconv"

	"github.com/kailas-cloud/tocha/internal/db"
	"github.com/kailas-cloud/tocha/internal/domain/document"
	"github.com/kailas-cloud/tocha/internal/domain/search/filter"
	"github.com/kailas-cloud/tocha/internal/domain/search/mode"
	"github.com/kailas-cloud/tocha/internal/domain/search/request"
)

// Plan is a constructed read of one node's children.
type Plan struct {
	Node    string
	Mode    mode.Mode
	Child   string
	Filters []filter.Condition
	Page    request.Page
	StartAt request.Bound
	EndAt   request.Bound
	EqualTo request.Bound
}

// BuildPlan translates a request into a tree-store read. Only the highest
// priority ordering mode is applied; directions are ignored since children
// are only ever read in ascending order.
func BuildPlan(req *request.Request) (Plan, error) {
	m, child := req.Ordering()
	bounds := req.Bounds()
	p := Plan{
		Node:    req.Source(),
		Mode:    m,
		Child:   child,
		Filters: req.Filters(),
		Page:    req.Page(),
		StartAt: bounds.StartAt(),
		EndAt:   bounds.EndAt(),
		EqualTo: bounds.EqualTo(),
	}

	for _, c := range p.Filters {
		if err := c.Validate(); err != nil {
			return Plan{}, fmt.Errorf("%w: %w", db.ErrUnsupportedQuery, err)
		}
	}
	if p.EqualTo.IsSet() && (p.StartAt.IsSet() || p.EndAt.IsSet()) {
		return Plan{}, fmt.Errorf("%w: equalTo cannot be combined with startAt or endAt", db.ErrUnsupportedQuery)
	}
	if p.keyOrdered() {
		for _, b := range []request.Bound{p.StartAt, p.EndAt, p.EqualTo} {
			if _, ok := b.Value().(string); b.IsSet() && !ok {
				return Plan{}, fmt.Errorf("%w: key bounds must be strings", db.ErrUnsupportedQuery)
			}
		}
	}
	return p, nil
}

func (p Plan) keyOrdered() bool {
	return p.Mode == mode.None || p.Mode == mode.Key
}

// Native reports whether bounds and the page are pushed down to the sorted set.
// Filtered or value-ordered reads load the whole node and finish in process.
func (p Plan) Native() bool {
	return p.keyOrdered() && len(p.Filters) == 0
}

// RangeArgs returns the ZRANGE arguments after the key. Native plans carry
// their bounds and page; other plans read every child.
func (p Plan) RangeArgs() []string {
	if !p.Native() {
		return []string{"-", "+", "BYLEX"}
	}

	lo, hi := "-", "+"
	if p.EqualTo.IsSet() {
		lo = "[" + p.EqualTo.Value().(string)
		hi = lo
	}
	if p.StartAt.IsSet() {
		lo = "[" + p.StartAt.Value().(string)
	}
	if p.EndAt.IsSet() {
		hi = "[" + p.EndAt.Value().(string)
	}

	args := []string{lo, hi, "BYLEX"}
	if p.Page.FromEnd() {
		args = []string{hi, lo, "BYLEX", "REV"}
	}
	if p.Page.IsSet() {
		args = append(args, "LIMIT", "0", strconv.Itoa(p.Page.N()))
	}
	return args
}

type child struct {
	key string
	doc document.Document
}

// apply finishes a non-native plan in process: filter, order, bound, page.
func (p Plan) apply(children []child) ([]child, error) {
	if p.Native() {
		if p.Page.FromEnd() {
			slices.Reverse(children)
		}
		return children, nil
	}

	kept := children[:0]
	for _, c := range children {
		ok, err := filter.MatchAll(p.Filters, &c.doc)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", db.ErrUnsupportedQuery, err)
		}
		if ok {
			kept = append(kept, c)
		}
	}

	if !p.keyOrdered() {
		sort.SliceStable(kept, func(i, j int) bool {
			if c := document.Compare(p.sortValue(kept[i]), p.sortValue(kept[j])); c != 0 {
				return c < 0
			}
			return kept[i].key < kept[j].key
		})
	}

	bounded := kept[:0]
	for _, c := range kept {
		if p.inRange(p.sortValue(c)) {
			bounded = append(bounded, c)
		}
	}

	return p.trim(bounded), nil
}

// trim applies the page bound to children in ascending order.
func (p Plan) trim(children []child) []child {
	if !p.Page.IsSet() || p.Page.N() >= len(children) {
		return children
	}
	if p.Page.FromEnd() {
		return children[len(children)-p.Page.N():]
	}
	return children[:p.Page.N()]
}

// unpaged returns the plan without its page bound, so the sorted set read
// covers the whole range in ascending order.
func (p Plan) unpaged() Plan {
	p.Page = request.Page{}
	return p
}

func (p Plan) sortValue(c child) any {
	switch p.Mode {
	case mode.Child:
		v, _ := c.doc.Lookup(p.Child)
		return v
	case mode.Value:
		return c.doc.Fields()
	default:
		return c.key
	}
}

func (p Plan) inRange(v any) bool {
	if p.EqualTo.IsSet() {
		return document.Equal(v, p.EqualTo.Value())
	}
	if p.StartAt.IsSet() && document.Compare(v, p.StartAt.Value()) < 0 {
		return false
	}
	if p.EndAt.IsSet() && document.Compare(v, p.EndAt.Value()) > 0 {
		return false
	}
	return true
}
