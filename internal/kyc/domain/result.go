package domain

import (
	"fmt"
	"time"

	dErrors "accountopen/pkg/domain-errors"
)

// ProviderName identifies the simulated verification provider.
const ProviderName = "Mock KYC Provider v1.0"

// VerificationIDPrefix prefixes every verification id.
const VerificationIDPrefix = "kyc_"

// Result is a complete scorer output. It is built once and never mutated.
type Result struct {
	Provider       string              `json:"provider"`
	VerificationID string              `json:"verificationId"`
	Status         Status              `json:"status"`
	Confidence     float64             `json:"confidence"`
	VerifiedAt     *time.Time          `json:"verifiedAt,omitempty"`
	Results        VerificationResults `json:"results"`
}

// Validate checks the structural invariants of a result.
func (r *Result) Validate() error {
	if !r.Status.IsValid() {
		return invariant("unknown status %q", r.Status)
	}
	if (r.VerifiedAt != nil) != (r.Status != StatusPending) {
		return invariant("verifiedAt must be set iff status is not pending (status=%s)", r.Status)
	}
	if !inUnitInterval(r.Confidence) {
		return invariant("confidence %v outside [0,1]", r.Confidence)
	}
	for name, c := range map[string]float64{
		ComponentIdentity: r.Results.Identity.Confidence,
		ComponentAddress:  r.Results.Address.Confidence,
		ComponentPhone:    r.Results.Phone.Confidence,
		ComponentEmail:    r.Results.Email.Confidence,
	} {
		if !inUnitInterval(c) {
			return invariant("%s confidence %v outside [0,1]", name, c)
		}
	}
	if (len(r.Results.Ofac.Matches) > 0) == r.Results.Ofac.Passed {
		return invariant("ofac matches must be present iff screening failed")
	}
	return nil
}

func inUnitInterval(v float64) bool {
	return v >= 0 && v <= 1
}

func invariant(format string, args ...any) error {
	return dErrors.New(dErrors.CodeInvariantViolation, fmt.Sprintf(format, args...))
}
