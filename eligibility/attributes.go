package eligibility

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Attributes holds a participant's private values keyed by Field.
// A field with no value never matches any bin.
type Attributes struct {
	values map[Field]decimal.Decimal
}

// NewAttributes builds Attributes from enum-keyed values.
func NewAttributes(values map[Field]decimal.Decimal) (Attributes, error) {
	a := Attributes{values: make(map[Field]decimal.Decimal, len(values))}
	for f, v := range values {
		if !f.Valid() {
			return Attributes{}, fmt.Errorf("%w: %d", ErrUnknownField, int(f))
		}
		a.values[f] = v
	}
	return a, nil
}

// Value returns the attribute for f, if present.
func (a Attributes) Value(f Field) (decimal.Decimal, bool) {
	v, ok := a.values[f]
	return v, ok
}

// Len returns the number of present attributes
func (a Attributes) Len() int {
	return len(a.values)
}

// UnmarshalJSON reads an object of field name to number. Nulls are treated as absent.
func (a *Attributes) UnmarshalJSON(data []byte) error {
	var raw map[Field]decimal.NullDecimal
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode attributes: %w", err)
	}

	a.values = make(map[Field]decimal.Decimal, len(raw))
	for f, v := range raw {
		if v.Valid {
			a.values[f] = v.Decimal
		}
	}
	return nil
}

// MarshalJSON writes the present attributes as an object of field name to number.
func (a Attributes) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.values)
}
