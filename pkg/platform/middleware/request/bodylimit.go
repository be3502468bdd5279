package request

import (
	"net/http"

	dErrors "accountopen/pkg/domain-errors"
	"accountopen/pkg/platform/httputil"
)

// DefaultMaxBodyBytes fits a verification request with room to spare.
const DefaultMaxBodyBytes int64 = 64 << 10

// BodyLimit caps request bodies at maxBytes. A declared Content-Length over
// the cap is answered with 413 before the handler runs; otherwise the body is
// wrapped in http.MaxBytesReader and the decoder reports the overflow.
func BodyLimit(maxBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				httputil.WriteError(w, dErrors.New(dErrors.CodePayloadTooLarge, "request body too large"))
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
