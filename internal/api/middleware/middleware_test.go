package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/tracelight/ppm-backend/internal/auth"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"ok": "true"})
	})
}

func TestAuthRejectsMissingToken(t *testing.T) {
	verifier, _ := auth.NewStaticVerifier("tok:alice")
	handler := Auth(verifier)(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/variances", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestAuthRejectsUnknownToken(t *testing.T) {
	verifier, _ := auth.NewStaticVerifier("tok:alice")
	handler := Auth(verifier)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/variances", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestAuthPutsIdentityInContext(t *testing.T) {
	verifier, _ := auth.NewStaticVerifier("tok:alice:import")

	var seen *auth.Identity
	handler := Auth(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/variances", nil)
	req.Header.Set("Authorization", "Bearer tok")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if seen == nil {
		t.Fatal("no identity in request context")
	}
	if seen.UserID != "alice" || !seen.CanImportFinancial {
		t.Errorf("identity = %+v", seen)
	}
}

func TestAuthSkipsPublicPaths(t *testing.T) {
	verifier, _ := auth.NewStaticVerifier("")
	handler := Auth(verifier, "/health")(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("public path status = %d, want 200", rec.Code)
	}
}

func TestRecoveryTurnsPanicsInto500(t *testing.T) {
	handler := Recovery(zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestRequestIDHeader(t *testing.T) {
	handler := RequestID(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("no request ID assigned")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "given-id")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "given-id" {
		t.Errorf("request ID = %q, want the caller's value", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	handler := CORS(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/variances", nil))

	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("no CORS headers on preflight response")
	}
}
