package mode

// Mode is the single ordering mode a key-ordered store applies to a node's children.
type Mode string

// Ordering modes, highest priority first.
const (
	None Mode = ""
	// Child orders children by the value of one of their fields.
	Child Mode = "child"
	// Key orders children by key (the store's native order).
	Key Mode = "key"
	// Value orders children by their whole value.
	Value Mode = "value"
)

// Reserved sort field names mapping to the key and value modes.
const (
	KeyField   = "$key"
	ValueField = "$value"
)

// IsValid checks if the mode is one of the supported values.
func (m Mode) IsValid() bool {
	return m == None || m == Child || m == Key || m == Value
}

// FromSortField maps a sort directive's field to an ordering mode.
func FromSortField(field string) Mode {
	switch field {
	case "":
		return None
	case KeyField:
		return Key
	case ValueField:
		return Value
	default:
		return Child
	}
}
