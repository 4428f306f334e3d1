package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/cura-labs/cura/eligibility"
	"github.com/cura-labs/cura/internal/metrics"
)

// EligibilityRequest is a participant's attributes evaluated against a study schema
type EligibilityRequest struct {
	Attributes     eligibility.Attributes `json:"attributes"`
	Bins           []eligibility.DataBin  `json:"bins"`
	RequiredFields []eligibility.Field    `json:"requiredFields"`
}

// EligibilityReport bundles the membership result with its circuit inputs
type EligibilityReport struct {
	Result      eligibility.MembershipResult `json:"result"`
	Bitmap      []int                        `json:"bitmap"`
	PublicInput string                       `json:"publicInput"`
	Coverage    eligibility.CoverageReport   `json:"coverage"`
}

// EligibilityService computes bin membership for authenticated wallets
type EligibilityService struct {
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewEligibilityService creates a new eligibility service
func NewEligibilityService(m *metrics.Metrics, logger *slog.Logger) *EligibilityService {
	return &EligibilityService{metrics: m, logger: logger}
}

// Evaluate builds the schema from req.Bins and classifies req.Attributes against it.
// Only schema construction can fail.
func (s *EligibilityService) Evaluate(ctx context.Context, wallet string, req EligibilityRequest) (*EligibilityReport, error) {
	schema, err := eligibility.NewSchema(req.Bins)
	if err != nil {
		return nil, fmt.Errorf("failed to build schema: %w", err)
	}

	result := eligibility.ComputeMembership(req.Attributes, schema)
	bitmap := eligibility.ToBitmap(result.MatchedIndices, schema.Len())
	coverage := eligibility.ValidateCoverage(result, req.RequiredFields)

	s.metrics.ObserveEligibility(len(result.MatchedIndices))
	s.logger.InfoContext(ctx, "eligibility computed",
		"wallet", wallet,
		"bins", schema.Len(),
		"matched", len(result.MatchedIndices),
		"coverage_valid", coverage.Valid,
	)

	return &EligibilityReport{
		Result:      result,
		Bitmap:      bitmap,
		PublicInput: hexutil.EncodeBig(eligibility.PackBitmap(bitmap)),
		Coverage:    coverage,
	}, nil
}
