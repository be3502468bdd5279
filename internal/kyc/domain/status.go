package domain

// Status is the overall outcome of a verification.
//
// Pending is never produced by the scorer. It marks a verification record
// that has been created but not yet scored, and is owned by the service layer.
type Status string

const (
	StatusPending     Status = "pending"
	StatusPassed      Status = "passed"
	StatusFailed      Status = "failed"
	StatusNeedsReview Status = "needs_review"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusPassed, StatusFailed, StatusNeedsReview:
		return true
	}
	return false
}

// IsTerminal reports whether scoring has completed.
func (s Status) IsTerminal() bool {
	return s == StatusPassed || s == StatusFailed || s == StatusNeedsReview
}

func (s Status) String() string {
	return string(s)
}
