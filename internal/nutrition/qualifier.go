package nutrition

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Qualifier describes the certainty of a nutrient quantity.
type Qualifier int

const (
	// Exact is a measured value.
	Exact Qualifier = iota
	// BelowLimit is an upper bound (below the detection limit).
	BelowLimit
	// Trace is present but effectively zero.
	Trace
	// Unknown means not measured; the quantity is always 0.
	Unknown
)

// Qualifier tags as they appear in composition tables.
const (
	TagExact      = "N"
	TagBelowLimit = "<"
	TagTrace      = "T"
	TagUnknown    = "-"
)

var qualifierTags = [...]string{
	Exact:      TagExact,
	BelowLimit: TagBelowLimit,
	Trace:      TagTrace,
	Unknown:    TagUnknown,
}

var qualifierNames = [...]string{
	Exact:      "exact",
	BelowLimit: "below_limit",
	Trace:      "trace",
	Unknown:    "unknown",
}

// AllQualifiers lists the closed set in declaration order.
var AllQualifiers = []Qualifier{Exact, BelowLimit, Trace, Unknown}

// ParseQualifier converts a table tag into a Qualifier.
func ParseQualifier(tag string) (Qualifier, error) {
	for q, t := range qualifierTags {
		if t == tag {
			return Qualifier(q), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownQualifier, tag)
}

// Valid reports whether q belongs to the closed set.
func (q Qualifier) Valid() bool {
	return q >= Exact && q <= Unknown
}

// Tag returns the single-character table tag.
func (q Qualifier) Tag() string {
	if !q.Valid() {
		return "?"
	}
	return qualifierTags[q]
}

func (q Qualifier) String() string {
	if !q.Valid() {
		return fmt.Sprintf("Qualifier(%d)", int(q))
	}
	return qualifierNames[q]
}

// Value implements the driver.Valuer interface
func (q Qualifier) Value() (driver.Value, error) {
	if !q.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownQualifier, int(q))
	}
	return qualifierTags[q], nil
}

// Scan implements the sql.Scanner interface. Unknown tags are rejected here,
// at the storage boundary.
func (q *Qualifier) Scan(value interface{}) error {
	var tag string
	switch v := value.(type) {
	case nil:
		*q = Unknown
		return nil
	case []byte:
		tag = string(v)
	case string:
		tag = v
	default:
		return fmt.Errorf("%w: unsupported type %T", ErrUnknownQualifier, value)
	}

	parsed, err := ParseQualifier(tag)
	if err != nil {
		return err
	}
	*q = parsed
	return nil
}

func (q Qualifier) MarshalJSON() ([]byte, error) {
	if !q.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownQualifier, int(q))
	}
	return json.Marshal(qualifierTags[q])
}

func (q *Qualifier) UnmarshalJSON(data []byte) error {
	var tag string
	if err := json.Unmarshal(data, &tag); err != nil {
		return err
	}
	parsed, err := ParseQualifier(tag)
	if err != nil {
		return err
	}
	*q = parsed
	return nil
}
