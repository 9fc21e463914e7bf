package document

import (
	"encoding/json"
	"strings"
)

// rank orders value classes the way key-ordered stores sort children:
// null < false < true < numbers < strings < objects.
func rank(v any) int {
	switch x := v.(type) {
	case nil:
		return 0
	case bool:
		if !x {
			return 1
		}
		return 2
	case float64, int, int64:
		return 3
	case string:
		return 4
	default:
		return 5
	}
}

// Compare orders two decoded JSON values. Objects and arrays compare by their
// JSON encoding so the ordering stays total.
func Compare(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch ra {
	case 3:
		fa, fb := toFloat(a), toFloat(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	case 4:
		return strings.Compare(a.(string), b.(string))
	case 5:
		ea, _ := json.Marshal(a)
		eb, _ := json.Marshal(b)
		return strings.Compare(string(ea), string(eb))
	}
	return 0
}

// Equal reports whether two decoded JSON values are equal under Compare.
func Equal(a, b any) bool { return Compare(a, b) == 0 }

func toFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case int:
		return float64(x)
	case int64:
		return float64(x)
	}
	return 0
}
