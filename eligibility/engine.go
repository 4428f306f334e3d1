// Package eligibility classifies private attributes into the discrete bins of a
// study's eligibility schema and renders the matches as a fixed-length bitmap
// that a zero-knowledge circuit takes as public input.
package eligibility

import "math/big"

// MembershipResult lists the bins an attribute set falls into, in schema order.
type MembershipResult struct {
	MatchedBinIDs     []string       `json:"matchedBinIds"`
	MatchedNumericIDs []int          `json:"matchedNumericIds"`
	MatchedIndices    []int          `json:"matchedIndices"`
	FieldCoverage     map[Field]bool `json:"fieldCoverage"`
}

// CoverageReport tells which required fields matched no bin
type CoverageReport struct {
	Valid         bool    `json:"valid"`
	MissingFields []Field `json:"missingFields"`
}

// ComputeMembership tests every bin against attrs. Absent attributes match nothing
// and a nil schema yields an empty result.
func ComputeMembership(attrs Attributes, schema *Schema) MembershipResult {
	result := MembershipResult{
		MatchedBinIDs:     []string{},
		MatchedNumericIDs: []int{},
		MatchedIndices:    []int{},
		FieldCoverage:     map[Field]bool{},
	}
	if schema == nil {
		return result
	}

	for _, f := range schema.fields {
		result.FieldCoverage[f] = false
	}

	numericSeen := make(map[int]struct{})
	for i, bin := range schema.bins {
		value, ok := attrs.Value(bin.CriteriaField)
		if !ok || !bin.Contains(value) {
			continue
		}

		result.MatchedBinIDs = append(result.MatchedBinIDs, bin.ID)
		result.MatchedIndices = append(result.MatchedIndices, i)
		if _, dup := numericSeen[bin.NumericID]; !dup {
			numericSeen[bin.NumericID] = struct{}{}
			result.MatchedNumericIDs = append(result.MatchedNumericIDs, bin.NumericID)
		}
		result.FieldCoverage[bin.CriteriaField] = true
	}
	return result
}

// ToBitmap renders matched indices as a 0/1 vector of length totalBins.
// Indices outside [0, totalBins) are ignored.
func ToBitmap(matchedIndices []int, totalBins int) []int {
	if totalBins < 0 {
		totalBins = 0
	}
	bitmap := make([]int, totalBins)
	for _, i := range matchedIndices {
		if i >= 0 && i < totalBins {
			bitmap[i] = 1
		}
	}
	return bitmap
}

// PackBitmap folds a bitmap into one integer with bit i set when bitmap[i] is 1,
// for circuits that take the bitmap as a single field element.
func PackBitmap(bitmap []int) *big.Int {
	packed := new(big.Int)
	for i, bit := range bitmap {
		if bit != 0 {
			packed.SetBit(packed, i, 1)
		}
	}
	return packed
}

// ValidateCoverage reports required fields that matched no bin.
// It never fails the computation; callers decide what missing coverage means.
func ValidateCoverage(result MembershipResult, required []Field) CoverageReport {
	report := CoverageReport{MissingFields: []Field{}}
	for _, f := range required {
		if !result.FieldCoverage[f] {
			report.MissingFields = append(report.MissingFields, f)
		}
	}
	report.Valid = len(report.MissingFields) == 0
	return report
}
