package eligibility

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// BinType distinguishes range bins from categorical bins
type BinType string

const (
	BinRange       BinType = "RANGE"
	BinCategorical BinType = "CATEGORICAL"
)

// UnmarshalText rejects unknown bin types at decode time
func (t *BinType) UnmarshalText(text []byte) error {
	switch v := BinType(text); v {
	case BinRange, BinCategorical:
		*t = v
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBinType, string(text))
	}
}

// DataBin is one bucket of an eligibility schema.
// Range bins default to a closed lower and open upper bound so adjacent bins
// sharing a boundary never both match it. A nil bound is unbounded.
type DataBin struct {
	ID            string            `json:"id"`
	NumericID     int               `json:"numericId"`
	Type          BinType           `json:"type"`
	CriteriaField Field             `json:"criteriaField"`
	MinValue      *decimal.Decimal  `json:"minValue,omitempty"`
	MaxValue      *decimal.Decimal  `json:"maxValue,omitempty"`
	IncludeMin    *bool             `json:"includeMin,omitempty"`
	IncludeMax    *bool             `json:"includeMax,omitempty"`
	Categories    []decimal.Decimal `json:"categories,omitempty"`
}

// InclusiveMin reports whether the lower bound itself matches. Defaults to true.
func (b DataBin) InclusiveMin() bool {
	return b.IncludeMin == nil || *b.IncludeMin
}

// InclusiveMax reports whether the upper bound itself matches. Defaults to false.
func (b DataBin) InclusiveMax() bool {
	return b.IncludeMax != nil && *b.IncludeMax
}

// Contains reports whether value falls in the bin. Comparisons are exact.
func (b DataBin) Contains(value decimal.Decimal) bool {
	switch b.Type {
	case BinRange:
		if b.MinValue != nil {
			c := value.Cmp(*b.MinValue)
			if c < 0 || (c == 0 && !b.InclusiveMin()) {
				return false
			}
		}
		if b.MaxValue != nil {
			c := value.Cmp(*b.MaxValue)
			if c > 0 || (c == 0 && !b.InclusiveMax()) {
				return false
			}
		}
		return true
	case BinCategorical:
		for _, category := range b.Categories {
			if value.Equal(category) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func (b DataBin) validate() error {
	if b.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidBin)
	}
	if !b.CriteriaField.Valid() {
		return fmt.Errorf("%w: bin %s: %v", ErrInvalidBin, b.ID, ErrUnknownField)
	}

	switch b.Type {
	case BinRange:
		if b.MinValue == nil && b.MaxValue == nil {
			return fmt.Errorf("%w: range bin %s has no bounds", ErrInvalidBin, b.ID)
		}
		if len(b.Categories) > 0 {
			return fmt.Errorf("%w: range bin %s has categories", ErrInvalidBin, b.ID)
		}
		if b.MinValue != nil && b.MaxValue != nil && b.MinValue.GreaterThan(*b.MaxValue) {
			return fmt.Errorf("%w: range bin %s has min above max", ErrInvalidBin, b.ID)
		}
	case BinCategorical:
		if len(b.Categories) == 0 {
			return fmt.Errorf("%w: categorical bin %s has no categories", ErrInvalidBin, b.ID)
		}
		if b.MinValue != nil || b.MaxValue != nil {
			return fmt.Errorf("%w: categorical bin %s has range bounds", ErrInvalidBin, b.ID)
		}
	default:
		return fmt.Errorf("%w: bin %s: %q", ErrUnknownBinType, b.ID, b.Type)
	}
	return nil
}

// Schema is a validated, ordered list of bins. Bin position is the bitmap index.
type Schema struct {
	bins   []DataBin
	fields []Field
}

// NewSchema validates bins and fixes their order
func NewSchema(bins []DataBin) (*Schema, error) {
	s := &Schema{bins: make([]DataBin, len(bins))}
	copy(s.bins, bins)

	ids := make(map[string]struct{}, len(bins))
	seen := make(map[Field]struct{})
	for _, b := range s.bins {
		if err := b.validate(); err != nil {
			return nil, err
		}
		if _, dup := ids[b.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %s", ErrInvalidBin, b.ID)
		}
		ids[b.ID] = struct{}{}

		if _, ok := seen[b.CriteriaField]; !ok {
			seen[b.CriteriaField] = struct{}{}
			s.fields = append(s.fields, b.CriteriaField)
		}
	}
	return s, nil
}

// Len returns the number of bins, which is also the bitmap length
func (s *Schema) Len() int {
	if s == nil {
		return 0
	}
	return len(s.bins)
}

// Bin returns the bin at index i
func (s *Schema) Bin(i int) DataBin {
	return s.bins[i]
}

// Fields returns the distinct criteria fields in first-seen order
func (s *Schema) Fields() []Field {
	if s == nil {
		return []Field{}
	}
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}
