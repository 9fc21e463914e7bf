package postgres

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"github.com/kailas-cloud/tocha/internal/db"
	"github.com/kailas-cloud/tocha/internal/domain/search/filter"
	"github.com/kailas-cloud/tocha/internal/domain/search/mode"
	"github.com/kailas-cloud/tocha/internal/domain/search/request"
)

// Query is a constructed fetch: SQL text, positional args and the page bound it applies.
type Query struct {
	SQL  string
	Args []any
	Page request.Page
}

// builder accumulates positional args while the SQL is assembled.
type builder struct {
	args  []any
	where []string
}

func (b *builder) arg(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

// path renders a JSONB path expression for a dotted field name.
func (b *builder) path(field string) string {
	if field == mode.KeyField {
		return "id"
	}
	return "(data #> " + b.arg(pq.Array(strings.Split(field, "."))) + "::text[])"
}

// jsonArg renders a value as a jsonb literal placeholder.
func (b *builder) jsonArg(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode value: %w", err)
	}
	return b.arg(string(raw)) + "::jsonb", nil
}

// BuildQuery translates a request into one SELECT over the documents table.
// Filters are ANDed in order, sort directives become ORDER BY keys with the
// id as final tiebreak, then one page bound and the startAt/endAt cursors on
// the first ordering key.
func BuildQuery(req *request.Request) (Query, error) {
	b := &builder{}
	b.where = append(b.where, "collection = "+b.arg(req.Source()))

	for _, cond := range req.Filters() {
		clause, err := b.condition(cond)
		if err != nil {
			return Query{}, err
		}
		b.where = append(b.where, clause)
	}

	sorts := req.Sort()
	var keys []orderKey
	for _, s := range sorts {
		p := b.path(s.Field())
		if p != "id" {
			b.where = append(b.where, p+" IS NOT NULL")
		}
		keys = append(keys, orderKey{expr: p, desc: s.Direction() == request.Desc})
	}
	if len(keys) > 0 && keys[len(keys)-1].expr != "id" {
		keys = append(keys, orderKey{expr: "id", desc: keys[len(keys)-1].desc})
	}

	page := req.Page()
	if page.FromEnd() && len(keys) == 0 {
		return Query{}, fmt.Errorf("%w: limitToLast requires an orderBy clause", db.ErrUnsupportedQuery)
	}

	if err := b.cursors(req.Bounds(), keys); err != nil {
		return Query{}, err
	}

	sql := "SELECT id, data FROM documents WHERE " + strings.Join(b.where, " AND ")
	switch {
	case page.FromEnd():
		// Take the tail in reverse, then restore the requested order.
		inner := sql + " ORDER BY " + renderOrder(keys, true) + " LIMIT " + b.arg(page.N())
		sql = "SELECT id, data FROM (" + inner + ") AS page ORDER BY " + renderOrder(keys, false)
	case page.IsSet():
		if len(keys) > 0 {
			sql += " ORDER BY " + renderOrder(keys, false)
		}
		sql += " LIMIT " + b.arg(page.N())
	case len(keys) > 0:
		sql += " ORDER BY " + renderOrder(keys, false)
	}

	return Query{SQL: sql, Args: b.args, Page: page}, nil
}

func (b *builder) condition(c filter.Condition) (string, error) {
	if err := c.Validate(); err != nil {
		return "", fmt.Errorf("%w: %w", db.ErrUnsupportedQuery, err)
	}
	p := b.path(c.Field())
	if p == "id" {
		p = "to_jsonb(id)"
	}
	v, err := b.jsonArg(c.Value())
	if err != nil {
		return "", err
	}

	switch op := c.Operator(); op {
	case filter.Equal:
		return p + " = " + v, nil
	case filter.NotEqual:
		return p + " IS NOT NULL AND " + p + " <> " + v, nil
	case filter.Less, filter.LessOrEqual, filter.Greater, filter.GreaterOrEqual:
		return fmt.Sprintf("jsonb_typeof(%s) = jsonb_typeof(%s) AND %s %s %s", p, v, p, op, v), nil
	case filter.In:
		return p + " IS NOT NULL AND " + v + " @> jsonb_build_array(" + p + ")", nil
	case filter.NotIn:
		return p + " IS NOT NULL AND NOT (" + v + " @> jsonb_build_array(" + p + "))", nil
	case filter.ArrayContains:
		return "jsonb_typeof(" + p + ") = 'array' AND " + p + " @> jsonb_build_array(" + v + ")", nil
	case filter.ArrayContainsAny:
		return "jsonb_typeof(" + p + ") = 'array' AND EXISTS (SELECT 1 FROM jsonb_array_elements(" + v +
			") AS e(v) WHERE " + p + " @> jsonb_build_array(e.v))", nil
	default:
		return "", fmt.Errorf("%w: operator %q", db.ErrUnsupportedQuery, op)
	}
}

// cursors applies startAt/endAt to the first ordering key. equalTo has no
// document-store equivalent and is ignored.
func (b *builder) cursors(r request.Range, keys []orderKey) error {
	start, end := r.StartAt(), r.EndAt()
	if !start.IsSet() && !end.IsSet() {
		return nil
	}
	if len(keys) == 0 {
		return fmt.Errorf("%w: startAt/endAt require an orderBy clause", db.ErrUnsupportedQuery)
	}
	first := keys[0]
	lo, hi := ">=", "<="
	if first.desc {
		lo, hi = hi, lo
	}
	for _, c := range []struct {
		bound request.Bound
		op    string
	}{{start, lo}, {end, hi}} {
		if !c.bound.IsSet() {
			continue
		}
		if first.expr == "id" {
			s, ok := c.bound.Value().(string)
			if !ok {
				return fmt.Errorf("%w: key cursor must be a string", db.ErrUnsupportedQuery)
			}
			b.where = append(b.where, "id "+c.op+" "+b.arg(s))
			continue
		}
		v, err := b.jsonArg(c.bound.Value())
		if err != nil {
			return err
		}
		b.where = append(b.where, first.expr+" "+c.op+" "+v)
	}
	return nil
}

type orderKey struct {
	expr string
	desc bool
}

func renderOrder(keys []orderKey, reverse bool) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		dir := "ASC"
		if k.desc != reverse {
			dir = "DESC"
		}
		parts[i] = k.expr + " " + dir
	}
	return strings.Join(parts, ", ")
}
