package identity

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/aice-relay/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

type fakeUsers struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: make(map[string]*domain.User)}
}

func (f *fakeUsers) GetUser(_ context.Context, userID string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[userID], nil
}

func (f *fakeUsers) UpsertUser(_ context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[user.UserID] = user
	return nil
}

func signToken(t *testing.T, subject, issuer string, expires time.Time) string {
	t.Helper()
	claims := Claims{
		Username: "alice",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	return tok
}

func serve(t *testing.T, users UserStore, opts Options, req *http.Request) (*httptest.ResponseRecorder, string) {
	t.Helper()
	var seen string
	h := Middleware(users, opts)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w, seen
}

func TestMiddleware_BearerToken(t *testing.T) {
	t.Parallel()
	users := newFakeUsers()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "u1", "", time.Now().Add(time.Hour)))

	w, seen := serve(t, users, Options{Secret: testSecret}, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d", w.Code)
	}
	if seen != "u1" {
		t.Errorf("Expected user u1, got %q", seen)
	}
	if u := users.users["u1"]; u == nil || u.Username != "alice" {
		t.Errorf("Expected user record to be created, got %+v", u)
	}
}

func TestMiddleware_QueryTokenForEventSource(t *testing.T) {
	t.Parallel()
	tok := signToken(t, "u2", "", time.Now().Add(time.Hour))
	req := httptest.NewRequest(http.MethodGet, "/sse/chat/r1?token="+tok, nil)

	w, seen := serve(t, newFakeUsers(), Options{Secret: testSecret}, req)
	if w.Code != http.StatusNoContent || seen != "u2" {
		t.Errorf("Expected u2 with 204, got %q with %d", seen, w.Code)
	}
}

func TestMiddleware_RejectsExpiredAndMissing(t *testing.T) {
	t.Parallel()
	expired := httptest.NewRequest(http.MethodGet, "/", nil)
	expired.Header.Set("Authorization", "Bearer "+signToken(t, "u1", "", time.Now().Add(-time.Hour)))
	if w, _ := serve(t, newFakeUsers(), Options{Secret: testSecret}, expired); w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for expired token, got %d", w.Code)
	}

	missing := httptest.NewRequest(http.MethodGet, "/", nil)
	missing.Header.Set(DevUserHeader, "u1")
	if w, _ := serve(t, newFakeUsers(), Options{Secret: testSecret}, missing); w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 when dev header is disabled, got %d", w.Code)
	}
}

func TestMiddleware_DevHeader(t *testing.T) {
	t.Parallel()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(DevUserHeader, "dev-user")

	w, seen := serve(t, newFakeUsers(), Options{AllowDevHeader: true}, req)
	if w.Code != http.StatusNoContent || seen != "dev-user" {
		t.Errorf("Expected dev-user with 204, got %q with %d", seen, w.Code)
	}
}

func TestParseToken_WrongIssuer(t *testing.T) {
	t.Parallel()
	tok := signToken(t, "u1", "someone-else", time.Now().Add(time.Hour))
	if _, err := ParseToken(tok, testSecret, "aice"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken, got %v", err)
	}
}
