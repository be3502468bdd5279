// Package tracer is a small tracing abstraction over OpenTelemetry.
//
// Services depend on Tracer and Span only; NoopTracer serves tests and OTelTracer
// serves production. Setup installs the process-wide SDK provider.
package tracer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Span represents an active trace span.
type Span interface {
	// End completes the span and marks it failed when err is non-nil.
	// End must be called exactly once, typically via defer.
	End(err error)
	SetAttributes(attrs ...Attribute)
	AddEvent(name string, attrs ...Attribute)
}

// Tracer creates spans. Implementations must be safe for concurrent use.
//
//	ctx, span := t.Start(ctx, tracer.SpanKYCScore,
//	    tracer.String(tracer.AttrApplicationID, appID),
//	)
//	defer span.End(err)
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Attribute represents a key-value pair attached to spans.
type Attribute struct {
	Key   string
	Value any
}

func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

func Int64(key string, value int64) Attribute {
	return Attribute{Key: key, Value: value}
}

func Float64(key string, value float64) Attribute {
	return Attribute{Key: key, Value: value}
}

// Duration records a duration in milliseconds.
func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value.Milliseconds()}
}

// HashPII returns a short SHA-256 prefix of a personal identifier so traces can
// be correlated without carrying the value itself.
func HashPII(value string) string {
	if value == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(value))
	return hex.EncodeToString(hash[:8])
}

// Span names.
const (
	SpanKYCVerify  = "kyc.verify"
	SpanKYCScore   = "kyc.score"
	SpanKYCPersist = "kyc.persist"
	SpanKYCPublish = "kyc.publish"
	SpanKYCIntake  = "kyc.intake"
)

// Attribute keys.
const (
	AttrApplicationID    = "application_id"
	AttrVerificationID   = "verification_id"
	AttrSSNHash          = "ssn_hash"
	AttrStatus           = "kyc.status"
	AttrConfidence       = "kyc.confidence"
	AttrOfacPassed       = "kyc.ofac_passed"
	AttrSimulatedLatency = "simulated_latency_ms"
	AttrCacheHit         = "cache.hit"
	AttrAsync            = "async"
)
