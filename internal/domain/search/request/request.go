package request

import (
	"fmt"

	"github.com/kailas-cloud/tocha/internal/domain/document"
	"github.com/kailas-cloud/tocha/internal/domain/search/filter"
	"github.com/kailas-cloud/tocha/internal/domain/search/mode"
)

// MaxQueryLength is the maximum allowed search query length.
const MaxQueryLength = 4096

// Request is a validated search request record.
type Request struct {
	source   string
	fields   []string
	query    string
	refField string
	filters  []filter.Condition
	sort     []Sort
	page     Page
	bounds   Range

	orderByChild string
	orderByKey   bool
	orderByValue bool
}

// Params carries the already-decoded request parts for New.
type Params struct {
	Source       string
	Fields       []string
	Query        string
	RefField     string
	Filters      []filter.Condition
	Sort         []Sort
	Page         Page
	Bounds       Range
	OrderByChild string
	OrderByKey   bool
	OrderByValue bool
}

// New validates and normalizes request parameters.
// Defaults: refField = "key".
func New(p Params) (Request, error) {
	if p.Source == "" {
		return Request{}, fmt.Errorf("collectionName is required")
	}
	if len(p.Fields) == 0 {
		return Request{}, fmt.Errorf("fields must contain at least one field name")
	}
	for i, f := range p.Fields {
		if f == "" {
			return Request{}, fmt.Errorf("fields[%d] is empty", i)
		}
	}
	if len(p.Query) > MaxQueryLength {
		return Request{}, fmt.Errorf("query too long (max %d chars)", MaxQueryLength)
	}
	if p.Page.N() < 0 {
		return Request{}, fmt.Errorf("%s must not be negative", p.Page.Kind())
	}
	if p.RefField == "" {
		p.RefField = document.DefaultRefField
	}

	return Request{
		source:       p.Source,
		fields:       append([]string(nil), p.Fields...),
		query:        p.Query,
		refField:     p.RefField,
		filters:      p.Filters,
		sort:         p.Sort,
		page:         p.Page,
		bounds:       p.Bounds,
		orderByChild: p.OrderByChild,
		orderByKey:   p.OrderByKey,
		orderByValue: p.OrderByValue,
	}, nil
}

// Source returns the collection or node to search.
func (r *Request) Source() string { return r.source }

// Fields returns the ordered field names to index.
func (r *Request) Fields() []string { return r.fields }

// Query returns the free-text query.
func (r *Request) Query() string { return r.query }

// RefField returns the reference field name.
func (r *Request) RefField() string { return r.refField }

// Filters returns the well-formed filter triples in request order.
func (r *Request) Filters() []filter.Condition { return r.filters }

// Sort returns the sort directives in request order.
func (r *Request) Sort() []Sort { return r.sort }

// Page returns the single honored page bound.
func (r *Request) Page() Page { return r.page }

// Bounds returns the range and equality bounds.
func (r *Request) Bounds() Range { return r.bounds }

// Ordering resolves the one ordering mode a key-ordered store applies.
// Priority: orderByChild, orderByKey, orderByValue, then the first sort directive.
// The returned field is only meaningful for mode.Child.
func (r *Request) Ordering() (mode.Mode, string) {
	switch {
	case r.orderByChild != "":
		return mode.Child, r.orderByChild
	case r.orderByKey:
		return mode.Key, ""
	case r.orderByValue:
		return mode.Value, ""
	}
	for _, s := range r.sort {
		m := mode.FromSortField(s.Field())
		if m == mode.Child {
			return m, s.Field()
		}
		if m != mode.None {
			return m, ""
		}
	}
	return mode.None, ""
}
