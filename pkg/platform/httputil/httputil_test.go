package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	dErrors "accountopen/pkg/domain-errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type validatingRequest struct {
	Name       string `json:"name"`
	normalized bool
}

func (r *validatingRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.normalized = true
}

func (r *validatingRequest) Validate() error {
	if r.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not found", dErrors.New(dErrors.CodeNotFound, "verification not found"), http.StatusNotFound, "not_found"},
		{"invalid input", dErrors.New(dErrors.CodeInvalidInput, "email is required"), http.StatusBadRequest, "bad_request"},
		{"validation", dErrors.New(dErrors.CodeValidation, "bad"), http.StatusBadRequest, "validation_error"},
		{"payload too large", dErrors.New(dErrors.CodePayloadTooLarge, "too big"), http.StatusRequestEntityTooLarge, "payload_too_large"},
		{"timeout", dErrors.New(dErrors.CodeTimeout, "slow"), http.StatusGatewayTimeout, "verification_timeout"},
		{"canceled", dErrors.New(dErrors.CodeCanceled, "gone"), 499, "request_canceled"},
		{"unavailable", dErrors.New(dErrors.CodeUnavailable, "down"), http.StatusServiceUnavailable, "service_unavailable"},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(rec, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.Equal(t, tt.wantCode, decodeBody(t, rec)["error"])
		})
	}
}

func TestWriteError_PlainErrorHidesDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, errors.New("connection refused on 10.0.0.3"))

	assert.NotContains(t, decodeBody(t, rec), "error_description")
}

func TestDecodeAndPrepare(t *testing.T) {
	ctx := context.Background()

	t.Run("normalizes and validates", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"name":"  jane  "}`))
		rec := httptest.NewRecorder()

		got, ok := DecodeAndPrepare[validatingRequest](rec, req, discardLogger(), ctx, "req-1")

		require.True(t, ok)
		assert.Equal(t, "jane", got.Name)
		assert.True(t, got.normalized)
	})

	t.Run("malformed json is a bad request", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{not json`))
		rec := httptest.NewRecorder()

		got, ok := DecodeAndPrepare[validatingRequest](rec, req, discardLogger(), ctx, "req-2")

		assert.False(t, ok)
		assert.Nil(t, got)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "bad_request", decodeBody(t, rec)["error"])
	})

	t.Run("plain validation error maps to validation_error", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"name":"   "}`))
		rec := httptest.NewRecorder()

		_, ok := DecodeAndPrepare[validatingRequest](rec, req, discardLogger(), ctx, "req-3")

		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "validation_error", decodeBody(t, rec)["error"])
	})
	t.Run("empty body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", http.NoBody)
		rec := httptest.NewRecorder()

		_, ok := DecodeAndPrepare[validatingRequest](rec, req, discardLogger(), ctx, "req-4")

		assert.False(t, ok)
		assert.Equal(t, "request body is empty", decodeBody(t, rec)["error_description"])
	})

	t.Run("trailing data after the object", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"name":"a"}{"name":"b"}`))
		rec := httptest.NewRecorder()

		_, ok := DecodeAndPrepare[validatingRequest](rec, req, discardLogger(), ctx, "req-5")

		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("body over the reader limit is 413", func(t *testing.T) {
		body := `{"name":"` + strings.Repeat("x", 256) + `"}`
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		rec := httptest.NewRecorder()
		req.Body = http.MaxBytesReader(rec, req.Body, 64)

		_, ok := DecodeAndPrepare[validatingRequest](rec, req, discardLogger(), ctx, "req-6")

		assert.False(t, ok)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		assert.Equal(t, "payload_too_large", decodeBody(t, rec)["error"])
	})
}
