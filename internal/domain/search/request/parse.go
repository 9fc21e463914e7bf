package request

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/kailas-cloud/tocha/internal/domain/search/filter"
)

// wireRequest is the stored request record layout.
type wireRequest struct {
	CollectionName string          `json:"collectionName"`
	Fields         []string        `json:"fields"`
	Query          *string         `json:"query"`
	QueryRef       string          `json:"queryRef"`
	Where          []wireFilter    `json:"where"`
	OrderBy        []wireSort      `json:"orderBy"`
	Limit          *int            `json:"limit"`
	LimitToFirst   *int            `json:"limitToFirst"`
	LimitToLast    *int            `json:"limitToLast"`
	StartAt        json.RawMessage `json:"startAt"`
	EndAt          json.RawMessage `json:"endAt"`
	EqualTo        json.RawMessage `json:"equalTo"`
	OrderByChild   string          `json:"orderByChild"`
	OrderByKey     bool            `json:"orderByKey"`
	OrderByValue   bool            `json:"orderByValue"`
}

type wireFilter struct {
	Field    string          `json:"field"`
	Operator string          `json:"operator"`
	Val      json.RawMessage `json:"val"`
	Value    json.RawMessage `json:"value"`
}

type wireSort struct {
	Field     string `json:"field"`
	Direction string `json:"direction"`
}

// ParseOption adjusts how Parse fills unset request parts.
type ParseOption func(*wireRequest)

// WithDefaultRefField sets the ref field used when the record has no queryRef.
func WithDefaultRefField(field string) ParseOption {
	return func(w *wireRequest) {
		if w.QueryRef == "" {
			w.QueryRef = field
		}
	}
}

// Parse decodes and validates a stored request record.
// Filter triples missing a field, operator or value are dropped, as are sort
// entries without a field.
func Parse(raw []byte, opts ...ParseOption) (Request, error) {
	var w wireRequest
	if err := json.Unmarshal(raw, &w); err != nil {
		return Request{}, fmt.Errorf("malformed request record: %w", err)
	}
	if w.Query == nil {
		return Request{}, fmt.Errorf("query is required")
	}
	for _, opt := range opts {
		opt(&w)
	}

	filters := make([]filter.Condition, 0, len(w.Where))
	for _, wf := range w.Where {
		operand := wf.Val
		if !present(operand) {
			operand = wf.Value
		}
		if wf.Field == "" || wf.Operator == "" || !present(operand) {
			continue
		}
		v, err := decode(operand)
		if err != nil {
			return Request{}, fmt.Errorf("where[%s]: %w", wf.Field, err)
		}
		c, err := filter.NewCondition(wf.Field, filter.Operator(wf.Operator), v)
		if err != nil {
			return Request{}, err
		}
		filters = append(filters, c)
	}

	sorts := make([]Sort, 0, len(w.OrderBy))
	for _, ws := range w.OrderBy {
		if ws.Field == "" {
			continue
		}
		dir, err := ParseDirection(ws.Direction)
		if err != nil {
			return Request{}, fmt.Errorf("orderBy[%s]: %w", ws.Field, err)
		}
		sorts = append(sorts, NewSort(ws.Field, dir))
	}

	bounds, err := parseRange(w.StartAt, w.EndAt, w.EqualTo)
	if err != nil {
		return Request{}, err
	}

	return New(Params{
		Source:       w.CollectionName,
		Fields:       w.Fields,
		Query:        *w.Query,
		RefField:     w.QueryRef,
		Filters:      filters,
		Sort:         sorts,
		Page:         SelectPage(w.Limit, w.LimitToFirst, w.LimitToLast),
		Bounds:       bounds,
		OrderByChild: w.OrderByChild,
		OrderByKey:   w.OrderByKey,
		OrderByValue: w.OrderByValue,
	})
}

func parseRange(startAt, endAt, equalTo json.RawMessage) (Range, error) {
	var out [3]Bound
	for i, raw := range []json.RawMessage{startAt, endAt, equalTo} {
		if !present(raw) {
			continue
		}
		v, err := decode(raw)
		if err != nil {
			return Range{}, fmt.Errorf("range bound: %w", err)
		}
		out[i] = NewBound(v)
	}
	return NewRange(out[0], out[1], out[2]), nil
}

func present(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

func decode(raw json.RawMessage) (any, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}
	return v, nil
}
