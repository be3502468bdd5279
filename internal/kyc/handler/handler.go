package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"accountopen/internal/kyc/domain"
	"accountopen/internal/kyc/models"
	"accountopen/pkg/platform/httputil"
	"accountopen/pkg/platform/privacy"
	"accountopen/pkg/requestcontext"
	s "accountopen/pkg/string"
	"accountopen/pkg/validation"
)

// Service defines the verification operations used by handlers.
type Service interface {
	Verify(ctx context.Context, applicationID string, info domain.PersonalInfo) (*models.Verification, error)
	Submit(ctx context.Context, applicationID string, info domain.PersonalInfo) (*models.Verification, error)
	Get(ctx context.Context, verificationID string) (*models.Verification, error)
	Latest(ctx context.Context, applicationID string) (*models.Verification, error)
}

// Handler serves the KYC verification endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the handler routes on the given router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/applications/{applicationID}/kyc", h.HandleVerify)
	r.Get("/applications/{applicationID}/kyc", h.HandleLatest)
	r.Get("/kyc/{verificationID}", h.HandleGet)
}

// VerifyRequest carries the applicant's personal information.
type VerifyRequest struct {
	FirstName      string         `json:"firstName" validate:"required,notblank,max=100"`
	LastName       string         `json:"lastName" validate:"required,notblank,max=100"`
	DateOfBirth    string         `json:"dateOfBirth" validate:"omitempty,isodate"`
	SSN            string         `json:"ssn" validate:"required,ssn"`
	Phone          string         `json:"phone" validate:"required,notblank,max=32"`
	Email          string         `json:"email" validate:"required,email,max=254"`
	MailingAddress AddressRequest `json:"mailingAddress"`
}

type AddressRequest struct {
	Street1 string `json:"street1" validate:"max=200"`
	Street2 string `json:"street2" validate:"max=200"`
	City    string `json:"city" validate:"max=100"`
	State   string `json:"state" validate:"omitempty,len=2"`
	ZipCode string `json:"zipCode" validate:"max=10"`
	Country string `json:"country" validate:"max=56"`
}

func (r *VerifyRequest) Normalize() {
	s.TrimStrings(&r.FirstName, &r.LastName, &r.DateOfBirth, &r.SSN, &r.Phone, &r.Email,
		&r.MailingAddress.Street1, &r.MailingAddress.Street2, &r.MailingAddress.City,
		&r.MailingAddress.State, &r.MailingAddress.ZipCode, &r.MailingAddress.Country)
}

func (r *VerifyRequest) Validate() error {
	return validation.Validate(r)
}

func (r *VerifyRequest) toPersonalInfo() domain.PersonalInfo {
	return domain.PersonalInfo{
		FirstName:   r.FirstName,
		LastName:    r.LastName,
		DateOfBirth: r.DateOfBirth,
		SSN:         r.SSN,
		Phone:       r.Phone,
		Email:       r.Email,
		MailingAddress: domain.MailingAddress{
			Street1: r.MailingAddress.Street1,
			Street2: r.MailingAddress.Street2,
			City:    r.MailingAddress.City,
			State:   r.MailingAddress.State,
			ZipCode: r.MailingAddress.ZipCode,
			Country: r.MailingAddress.Country,
		},
	}
}

// VerificationResponse is the public shape of a verification.
type VerificationResponse struct {
	VerificationID         string                      `json:"verificationId"`
	ApplicationID          string                      `json:"applicationId"`
	Provider               string                      `json:"provider"`
	ProviderVerificationID string                      `json:"providerVerificationId,omitempty"`
	Status                 string                      `json:"status"`
	Confidence             float64                     `json:"confidence"`
	NextStep               string                      `json:"nextStep,omitempty"`
	FailureReason          string                      `json:"failureReason,omitempty"`
	VerifiedAt             string                      `json:"verifiedAt,omitempty"`
	CreatedAt              string                      `json:"createdAt"`
	Results                *domain.VerificationResults `json:"results,omitempty"`
}

func toResponse(v *models.Verification) VerificationResponse {
	resp := VerificationResponse{
		VerificationID:         v.ID,
		ApplicationID:          v.ApplicationID.String(),
		Provider:               v.Provider,
		ProviderVerificationID: v.ProviderVerificationID,
		Status:                 string(v.Status),
		Confidence:             v.Confidence,
		NextStep:               string(v.NextStep),
		FailureReason:          v.FailureReason,
		CreatedAt:              v.CreatedAt.Format(time.RFC3339),
		Results:                v.Results,
	}
	if v.VerifiedAt != nil {
		resp.VerifiedAt = v.VerifiedAt.Format(time.RFC3339)
	}
	return resp
}

// HandleVerify handles POST /applications/{applicationID}/kyc. With
// ?async=true the verification is queued and 202 returned with the pending
// record; otherwise the response carries the completed verification.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	applicationID := chi.URLParam(r, "applicationID")

	req, ok := httputil.DecodeAndPrepare[VerifyRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	async := r.URL.Query().Get("async") == "true"
	run, status := h.service.Verify, http.StatusOK
	if async {
		run, status = h.service.Submit, http.StatusAccepted
	}

	v, err := run(ctx, applicationID, req.toPersonalInfo())
	if err != nil {
		h.logger.ErrorContext(ctx, "kyc verification failed",
			"request_id", requestID,
			"application_id", applicationID,
			"ssn_last4", privacy.LastFour(req.SSN),
			"email", privacy.MaskEmail(req.Email),
			"async", async,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "kyc verification accepted",
		"request_id", requestID,
		"application_id", applicationID,
		"verification_id", v.ID,
		"status", v.Status,
		"ssn_last4", privacy.LastFour(req.SSN),
		"async", async,
	)
	httputil.WriteJSON(w, status, toResponse(v))
}

// HandleLatest handles GET /applications/{applicationID}/kyc.
func (h *Handler) HandleLatest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	applicationID := chi.URLParam(r, "applicationID")

	v, err := h.service.Latest(ctx, applicationID)
	if err != nil {
		h.logger.WarnContext(ctx, "latest kyc verification lookup failed",
			"request_id", requestcontext.RequestID(ctx),
			"application_id", applicationID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(v))
}

// HandleGet handles GET /kyc/{verificationID}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	verificationID := chi.URLParam(r, "verificationID")

	v, err := h.service.Get(ctx, verificationID)
	if err != nil {
		h.logger.WarnContext(ctx, "kyc verification lookup failed",
			"request_id", requestcontext.RequestID(ctx),
			"verification_id", verificationID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(v))
}
