// Package models holds the persisted verification record and the workflow
// step an application moves to once scoring completes.
package models

import (
	"time"

	"github.com/google/uuid"

	"accountopen/internal/kyc/domain"
	dErrors "accountopen/pkg/domain-errors"
)

// NextStep is the account-opening step implied by a verification outcome.
type NextStep string

const (
	NextStepNone         NextStep = ""
	NextStepAdvance      NextStep = "advance"
	NextStepManualReview NextStep = "manual_review"
	NextStepBlocked      NextStep = "blocked"
)

// NextStepFor maps a terminal status to the workflow step. Pending has none.
func NextStepFor(status domain.Status) NextStep {
	switch status {
	case domain.StatusPassed:
		return NextStepAdvance
	case domain.StatusNeedsReview:
		return NextStepManualReview
	case domain.StatusFailed:
		return NextStepBlocked
	default:
		return NextStepNone
	}
}

// Verification is one KYC run for an application. ProviderVerificationID is
// the id the scorer gave its result and is empty while pending.
type Verification struct {
	ID                     string                      `json:"id"`
	ApplicationID          uuid.UUID                   `json:"applicationId"`
	Provider               string                      `json:"provider"`
	ProviderVerificationID string                      `json:"providerVerificationId,omitempty"`
	Status                 domain.Status               `json:"status"`
	Confidence             float64                     `json:"confidence"`
	NextStep               NextStep                    `json:"nextStep,omitempty"`
	Results                *domain.VerificationResults `json:"results,omitempty"`
	FailureReason          string                      `json:"failureReason,omitempty"`
	RequestID              string                      `json:"requestId,omitempty"`
	VerifiedAt             *time.Time                  `json:"verifiedAt,omitempty"`
	CreatedAt              time.Time                   `json:"createdAt"`
	UpdatedAt              time.Time                   `json:"updatedAt"`
}

// NewPendingVerification creates the record saved before scoring starts.
func NewPendingVerification(id string, applicationID uuid.UUID, now time.Time) (*Verification, error) {
	if id == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "verification id required")
	}
	if applicationID == uuid.Nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "application id required")
	}
	return &Verification{
		ID:            id,
		ApplicationID: applicationID,
		Provider:      domain.ProviderName,
		Status:        domain.StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// Complete records a scorer result on a pending verification. The record
// keeps its own id and stores the scorer's id alongside it.
func (v *Verification) Complete(result *domain.Result, now time.Time) error {
	if v.Status != domain.StatusPending {
		return dErrors.New(dErrors.CodeConflict, "verification already completed")
	}
	if err := result.Validate(); err != nil {
		return err
	}
	if result.Status == domain.StatusPending {
		return dErrors.New(dErrors.CodeInvariantViolation, "scorer returned a pending result")
	}
	results := result.Results
	v.Provider = result.Provider
	v.ProviderVerificationID = result.VerificationID
	v.Status = result.Status
	v.Confidence = result.Confidence
	v.Results = &results
	v.VerifiedAt = result.VerifiedAt
	v.NextStep = NextStepFor(result.Status)
	v.FailureReason = ""
	v.UpdatedAt = now
	return nil
}

// Abandon notes why scoring did not finish. The record stays pending.
func (v *Verification) Abandon(reason string, now time.Time) {
	v.FailureReason = reason
	v.UpdatedAt = now
}

func (v *Verification) IsCompleted() bool {
	return v.Status.IsTerminal()
}

// OfacHit reports whether sanctions screening failed.
func (v *Verification) OfacHit() bool {
	return v.Results != nil && !v.Results.Ofac.Passed
}
