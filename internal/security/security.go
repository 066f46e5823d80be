// Package security holds transport hardening middleware for the public API.
package security

import (
	"net/http"
	"strconv"

	"github.com/noah-isme/backend-pressing/internal/common"
)

// BodyLimit caps request bodies at Max bytes. Declared oversize bodies are
// rejected up front; others fail inside common.DecodeJSON once the cap is hit.
type BodyLimit struct {
	Max int64
}

// Middleware implements chi middleware.
func (b BodyLimit) Middleware(next http.Handler) http.Handler {
	if b.Max <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > b.Max {
			common.JSONError(w, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", "request body too large", map[string]int64{"max": b.Max})
			return
		}
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, b.Max)
		}
		next.ServeHTTP(w, r)
	})
}

// Headers sets response hardening headers. HSTS is only sent over TLS.
type Headers struct {
	HSTS       bool
	HSTSMaxAge int
}

// Middleware implements chi middleware. Write responses are marked
// uncacheable since they carry draft ids and customer data.
func (h Headers) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers := w.Header()
		headers.Set("X-Content-Type-Options", "nosniff")
		headers.Set("X-Frame-Options", "DENY")
		headers.Set("Referrer-Policy", "no-referrer")
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			headers.Set("Cache-Control", "no-store")
		}
		if h.HSTS && r.TLS != nil {
			maxAge := h.HSTSMaxAge
			if maxAge <= 0 {
				maxAge = 31536000
			}
			headers.Set("Strict-Transport-Security", "max-age="+strconv.Itoa(maxAge)+"; includeSubDomains")
		}
		next.ServeHTTP(w, r)
	})
}
