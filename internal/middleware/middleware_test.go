package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/chat/rooms", "/api/chat/rooms"},
		{"/api/chat/rooms/abc/messages", "/api/chat/rooms/:id/messages"},
		{"/sse/chat/abc", "/sse/chat/:id"},
		{"/ws/chat/abc", "/ws/chat/:id"},
		{"/health", "/health"},
	}
	for _, tt := range tests {
		if got := normalizePath(tt.path); got != tt.want {
			t.Errorf("normalizePath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestMetrics_PreservesFlusher(t *testing.T) {
	var flushable bool
	h := Metrics(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, flushable = w.(http.Flusher)
		w.WriteHeader(http.StatusTeapot)
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sse/chat/r1", nil))

	if !flushable {
		t.Error("Expected wrapped writer to implement http.Flusher")
	}
	if w.Code != http.StatusTeapot {
		t.Errorf("Expected status to pass through, got %d", w.Code)
	}
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name        string
		origins     []string
		origin      string
		wantAllow   string
		wantCredits string
	}{
		{"explicit origin", []string{"https://app.example.com"}, "https://app.example.com", "https://app.example.com", "true"},
		{"wildcard", []string{"*"}, "https://evil.example.com", "*", ""},
		{"not allowed", []string{"https://app.example.com"}, "https://evil.example.com", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := CORS(tt.origins)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))
			req := httptest.NewRequest(http.MethodGet, "/api/chat/rooms", nil)
			req.Header.Set("Origin", tt.origin)
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.wantAllow {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.wantAllow)
			}
			if got := w.Header().Get("Access-Control-Allow-Credentials"); got != tt.wantCredits {
				t.Errorf("Allow-Credentials = %q, want %q", got, tt.wantCredits)
			}
		})
	}
}
