package domain

// Aggregation weights. They sum to 1.0.
const (
	weightIdentity = 0.4
	weightAddress  = 0.2
	weightPhone    = 0.2
	weightEmail    = 0.1
	weightOfac     = 0.1
)

// Fixed confidences reported for hard failures.
const (
	OfacFailConfidence     = 0.1
	IdentityFailConfidence = 0.2
)

// Decision thresholds on the weighted confidence.
const (
	FailThreshold   = 0.6
	ReviewThreshold = 0.8
)

// Aggregate derives the overall status and confidence from the five verdicts.
//
// A sanctions hit fails the verification at 0.1 and an identity failure fails
// it at 0.2, whatever the other checks say. Otherwise the weighted confidence
// decides, and any reported issue forces manual review.
func Aggregate(r VerificationResults) (Status, float64) {
	if !r.Ofac.Passed {
		return StatusFailed, OfacFailConfidence
	}
	if !r.Identity.Passed {
		return StatusFailed, IdentityFailConfidence
	}

	confidence := WeightedConfidence(r)
	return DecideStatus(confidence, r.HasIssues()), confidence
}

// WeightedConfidence is the weighted sum of component confidences, with OFAC
// contributing 1 when it passed and 0 otherwise.
func WeightedConfidence(r VerificationResults) float64 {
	var ofac float64
	if r.Ofac.Passed {
		ofac = 1
	}
	// Explicit conversions force each product to be rounded on its own, so the
	// sum is identical on architectures that would otherwise fuse multiply-add.
	return float64(r.Identity.Confidence*weightIdentity) +
		float64(r.Address.Confidence*weightAddress) +
		float64(r.Phone.Confidence*weightPhone) +
		float64(r.Email.Confidence*weightEmail) +
		float64(ofac*weightOfac)
}

// DecideStatus applies the thresholds: below 0.6 fails, below 0.8 or with
// issues needs review, anything else passes.
func DecideStatus(confidence float64, hasIssues bool) Status {
	switch {
	case confidence < FailThreshold:
		return StatusFailed
	case confidence < ReviewThreshold || hasIssues:
		return StatusNeedsReview
	default:
		return StatusPassed
	}
}
