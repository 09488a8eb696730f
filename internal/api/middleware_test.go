package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mikeyhost/homedash/internal/logging"
)

func TestResponseWriter_WriteHeader(t *testing.T) {
	tests := []struct {
		name           string
		codes          []int
		wantStatusCode int
	}{
		{"single write", []int{http.StatusOK}, http.StatusOK},
		{"first write wins", []int{http.StatusCreated, http.StatusBadRequest}, http.StatusCreated},
		{"error code", []int{http.StatusUnauthorized}, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			rw := &responseWriter{ResponseWriter: rec, statusCode: http.StatusOK}

			for _, code := range tt.codes {
				rw.WriteHeader(code)
			}

			if rw.StatusCode() != tt.wantStatusCode {
				t.Errorf("StatusCode() = %d, want %d", rw.StatusCode(), tt.wantStatusCode)
			}
			if rec.Code != tt.wantStatusCode {
				t.Errorf("underlying Code = %d, want %d", rec.Code, tt.wantStatusCode)
			}
		})
	}
}

func TestResponseWriter_WriteImpliesOK(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec, statusCode: http.StatusOK}

	rw.Write([]byte("data"))
	rw.WriteHeader(http.StatusNotFound)

	if rw.statusCode != http.StatusOK {
		t.Errorf("statusCode = %d, want %d", rw.statusCode, http.StatusOK)
	}
	if rec.Body.String() != "data" {
		t.Errorf("body = %q, want %q", rec.Body.String(), "data")
	}
}

func TestResponseWriter_NilStatusCode(t *testing.T) {
	var rw *responseWriter
	if rw.StatusCode() != http.StatusInternalServerError {
		t.Errorf("StatusCode() = %d, want 500", rw.StatusCode())
	}
}

func TestWriteErrorResponse(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/resume", nil)
	ctx, _ := logging.WithRequestID(req.Context(), "req-42")
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()

	writeErrorResponse(rec, req, http.StatusNotFound, "not_found", "Resume not found")

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var got APIError
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ErrorMessage != "Resume not found" || got.Code != "not_found" || got.StatusCode != 404 {
		t.Errorf("unexpected body %+v", got)
	}
	if got.RequestID != "req-42" {
		t.Errorf("RequestID = %q, want req-42", got.RequestID)
	}
	if got.Timestamp == 0 {
		t.Error("Timestamp should be set")
	}
}

func TestErrorHandler_EmptyPath(t *testing.T) {
	var capturedPath string
	handler := ErrorHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
	req.URL.Path = ""
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if capturedPath != "/" {
		t.Errorf("expected empty path to be normalized to '/', got %q", capturedPath)
	}
}

func TestErrorHandler_RequestIDInContext(t *testing.T) {
	var fromCtx string
	handler := ErrorHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromCtx = logging.RequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if fromCtx == "" {
		t.Fatal("request ID missing from context")
	}
	if rec.Header().Get("X-Request-ID") != fromCtx {
		t.Errorf("header %q does not match context %q", rec.Header().Get("X-Request-ID"), fromCtx)
	}
}
