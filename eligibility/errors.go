package eligibility

import "errors"

// Schema construction errors. Matching itself never fails.
var (
	ErrUnknownField   = errors.New("unknown criteria field")
	ErrUnknownBinType = errors.New("unknown bin type")
	ErrInvalidBin     = errors.New("invalid bin")
)
