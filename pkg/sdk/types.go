package tocha

// SearchRequest mirrors a stored request record.
type SearchRequest struct {
	Collection string      `json:"collectionName"`
	Fields     []string    `json:"fields"`
	Query      string      `json:"query"`
	QueryRef   string      `json:"queryRef,omitempty"`
	Where      []Condition `json:"where,omitempty"`
	OrderBy    []Order     `json:"orderBy,omitempty"`

	// At most one page bound is honored: Limit, then LimitToFirst, then LimitToLast.
	Limit        int `json:"limit,omitempty"`
	LimitToFirst int `json:"limitToFirst,omitempty"`
	LimitToLast  int `json:"limitToLast,omitempty"`

	StartAt      any    `json:"startAt,omitempty"`
	EndAt        any    `json:"endAt,omitempty"`
	EqualTo      any    `json:"equalTo,omitempty"`
	OrderByChild string `json:"orderByChild,omitempty"`
	OrderByKey   bool   `json:"orderByKey,omitempty"`
	OrderByValue bool   `json:"orderByValue,omitempty"`
}

// Condition is a backend filter triple, e.g. {"price", "<=", 10}.
type Condition struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
}

// Order is a sort directive. Direction is "asc" (default) or "desc".
type Order struct {
	Field     string `json:"field"`
	Direction string `json:"direction,omitempty"`
}

// Hit is a ranked document.
type Hit struct {
	ID    string
	Score float64
	// Data is nil when the ranked reference had no stored document.
	Data map[string]any
}
