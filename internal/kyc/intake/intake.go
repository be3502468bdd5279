// Package intake consumes submitted account applications from Kafka and runs
// their KYC verification.
package intake

import (
	"context"
	"encoding/json"
	"log/slog"

	"accountopen/internal/kyc/domain"
	"accountopen/internal/kyc/models"
	"accountopen/internal/platform/kafka/consumer"
	"accountopen/internal/platform/tracer"
	dErrors "accountopen/pkg/domain-errors"
	"accountopen/pkg/platform/privacy"
	"accountopen/pkg/requestcontext"
)

type Verifier interface {
	Verify(ctx context.Context, applicationID string, info domain.PersonalInfo) (*models.Verification, error)
}

// ApplicationSubmitted is the payload of the intake topic.
type ApplicationSubmitted struct {
	ApplicationID string              `json:"applicationId"`
	PersonalInfo  domain.PersonalInfo `json:"personalInfo"`
}

// Handler implements consumer.Handler.
type Handler struct {
	verifier Verifier
	tracer   tracer.Tracer
	logger   *slog.Logger
}

func NewHandler(verifier Verifier, t tracer.Tracer, logger *slog.Logger) *Handler {
	if verifier == nil {
		panic("intake.NewHandler: verifier is required")
	}
	if t == nil {
		t = tracer.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{verifier: verifier, tracer: t, logger: logger}
}

// Handle verifies one submitted application. Malformed or invalid messages
// are logged and dropped so they do not block the partition. Timeouts and
// infrastructure errors are returned to the consumer.
func (h *Handler) Handle(ctx context.Context, msg *consumer.Message) (err error) {
	if id := msg.Headers["request_id"]; id != "" {
		ctx = requestcontext.WithRequestID(ctx, id)
	}
	ctx, span := h.tracer.Start(ctx, tracer.SpanKYCIntake,
		tracer.String("messaging.topic", msg.Topic),
		tracer.Int64("messaging.offset", msg.Offset),
	)
	defer func() { span.End(err) }()

	var payload ApplicationSubmitted
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		h.logger.ErrorContext(ctx, "failed to decode application message",
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)
		return nil
	}
	payload.PersonalInfo.Normalize()
	span.SetAttributes(tracer.String(tracer.AttrApplicationID, payload.ApplicationID))

	v, err := h.verifier.Verify(ctx, payload.ApplicationID, payload.PersonalInfo)
	if err != nil {
		if isRejected(err) {
			h.logger.WarnContext(ctx, "dropping invalid application message",
				"application_id", payload.ApplicationID,
				"ssn_last4", privacy.LastFour(payload.PersonalInfo.SSN),
				"error", err,
			)
			return nil
		}
		return err
	}

	h.logger.InfoContext(ctx, "application verified from intake",
		"application_id", payload.ApplicationID,
		"verification_id", v.ID,
		"status", v.Status,
	)
	return nil
}

func isRejected(err error) bool {
	return dErrors.HasCode(err, dErrors.CodeBadRequest) ||
		dErrors.HasCode(err, dErrors.CodeInvalidInput) ||
		dErrors.HasCode(err, dErrors.CodeValidation) ||
		dErrors.HasCode(err, dErrors.CodeConflict)
}
