package hub

import (
	"bufio"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/aice-relay/internal/domain"
	"github.com/ashureev/aice-relay/internal/events"
	"github.com/ashureev/aice-relay/internal/identity"
	"github.com/go-chi/chi/v5"
)

type fakeRooms map[string]*domain.Room

func (f fakeRooms) GetRoom(_ context.Context, roomID string) (*domain.Room, error) {
	return f[roomID], nil
}

func newTestServer(t *testing.T, h *Hub) *httptest.Server {
	t.Helper()
	handler := NewHandler(h, fakeRooms{"r1": {RoomID: "r1", OwnerID: "owner"}}, HandlerConfig{RetryDelay: time.Second})

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := identity.WithUser(req.Context(), req.Header.Get("X-Test-User"), "")
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	handler.RegisterRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestHandleSSE_Forbidden(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, New(4, 0, nil))

	for _, tc := range []struct{ user, room string }{
		{"intruder", "r1"},
		{"owner", "missing"},
	} {
		req, _ := http.NewRequest(http.MethodGet, srv.URL+"/sse/chat/"+tc.room, nil)
		req.Header.Set("X-Test-User", tc.user)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("Request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("user=%s room=%s: expected 403, got %d", tc.user, tc.room, resp.StatusCode)
		}
	}
}

func TestHandleSSE_Stream(t *testing.T) {
	t.Parallel()
	h := New(4, 0, nil)
	srv := newTestServer(t, h)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/sse/chat/r1", nil)
	req.Header.Set("X-Test-User", "owner")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("X-Accel-Buffering"); got != "no" {
		t.Errorf("Expected X-Accel-Buffering: no, got %q", got)
	}
	if got := resp.Header.Get("Cache-Control"); got != "no-cache" {
		t.Errorf("Expected Cache-Control: no-cache, got %q", got)
	}

	lines := make(chan string, 32)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	waitForLine(t, lines, "retry: 1000")
	waitForLine(t, lines, "event: connected")

	h.Push("r1", events.PushSkeleton, events.Skeleton{Role: "assistant", TurnIndex: 1})
	waitForLine(t, lines, "event: skeleton")
	waitForLine(t, lines, `data: {"role":"assistant","content":"","turnIndex":1}`)

	cancel()
	deadline := time.Now().Add(2 * time.Second)
	for len(h.ActiveConnections()) > 0 {
		if time.Now().After(deadline) {
			t.Fatal("Expected subscription to be removed after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func waitForLine(t *testing.T, lines <-chan string, want string) {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				t.Fatalf("Stream ended before %q", want)
			}
			if line == want {
				return
			}
		case <-timeout:
			t.Fatalf("Timed out waiting for %q", want)
		}
	}
}

func TestWriteEvent_MultilineData(t *testing.T) {
	var buf bytes.Buffer
	if err := writeEvent(&buf, Event{ID: "7", Name: "delta", Data: "a\nb"}); err != nil {
		t.Fatalf("writeEvent() error = %v", err)
	}
	want := "id: 7\nevent: delta\ndata: a\ndata: b\n\n"
	if buf.String() != want {
		t.Errorf("writeEvent() = %q, want %q", buf.String(), want)
	}
}

func TestHandleConnections(t *testing.T) {
	h := New(4, 0, nil)
	h.Subscribe("r1")
	w := httptest.NewRecorder()
	NewHandler(h, fakeRooms{}, HandlerConfig{}).HandleConnections(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if !strings.Contains(w.Body.String(), `"r1":1`) {
		t.Errorf("Unexpected body: %s", w.Body.String())
	}
}

func TestOriginHosts(t *testing.T) {
	got := originHosts([]string{"*", "https://app.example.com", "http://localhost:5173", "*.example.org"})
	want := []string{"*", "app.example.com", "localhost:5173", "*.example.org"}
	if len(got) != len(want) {
		t.Fatalf("originHosts() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("originHosts()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
