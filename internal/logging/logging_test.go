package logging

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMiddlewareAssignsRequestID(t *testing.T) {
	InitNop()

	var seen string
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/abc12342", nil))

	if seen == "" {
		t.Fatal("handler saw no request id")
	}
	if got := rec.Header().Get("X-Request-ID"); got != seen {
		t.Errorf("X-Request-ID = %q, want %q", got, seen)
	}
	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestMiddlewareKeepsIncomingRequestID(t *testing.T) {
	InitNop()

	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("X-Request-ID", "edge-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "edge-123" {
		t.Errorf("X-Request-ID = %q, want edge-123", got)
	}
}

func TestResponseWriterFlushesThroughUnwrap(t *testing.T) {
	InitNop()

	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("chunk"))
		if err := http.NewResponseController(w).Flush(); err != nil {
			t.Errorf("Flush: %v", err)
		}
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/abc12342", nil))

	if !rec.Flushed {
		t.Error("expected the recorder to be flushed")
	}
}

func TestWithContextFallsBackToGlobal(t *testing.T) {
	InitNop()
	if WithContext(context.Background()) != L() {
		t.Error("expected the global logger for a bare context")
	}
	if GetRequestID(context.Background()) != "" {
		t.Error("expected no request id")
	}
}

func TestSetLevelIgnoresGarbage(t *testing.T) {
	SetLevel("debug")
	SetLevel("not-a-level")
	if globalLevel.Level().String() != "debug" {
		t.Errorf("level = %s, want debug", globalLevel.Level())
	}
	SetLevel("info")
}
