// Package identity resolves the calling user from a signed bearer token.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/ashureev/aice-relay/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

const (
	// TokenCookieName carries the bearer token for clients that cannot set
	// headers, such as browser EventSource.
	TokenCookieName = "aice_token"
	// TokenQueryParam is the query fallback for the same clients.
	TokenQueryParam = "token"
	// DevUserHeader names the caller directly; honored only in development.
	DevUserHeader = "X-User-ID"
)

type contextKey int

const (
	userIDKey contextKey = iota
	usernameKey
)

var (
	// ErrMissingToken is returned when a request carries no credentials.
	ErrMissingToken = errors.New("missing bearer token")
	// ErrInvalidToken is returned for tokens that fail verification.
	ErrInvalidToken = errors.New("invalid bearer token")

	devUserPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)
)

// Claims are the token claims the relay reads. The user id is the subject.
type Claims struct {
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// UserStore is the subset of the repository identity needs.
type UserStore interface {
	GetUser(ctx context.Context, userID string) (*domain.User, error)
	UpsertUser(ctx context.Context, user *domain.User) error
}

// Options configures token verification.
type Options struct {
	Secret string
	Issuer string
	// AllowDevHeader accepts DevUserHeader when no token is present.
	AllowDevHeader bool
}

// UserIDFromContext extracts the user ID from the request context.
func UserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey).(string); ok {
		return v
	}
	return ""
}

// UsernameFromContext extracts the username from the request context.
func UsernameFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(usernameKey).(string); ok {
		return v
	}
	return ""
}

// WithUser returns a copy of ctx carrying the given identity.
func WithUser(ctx context.Context, userID, username string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, usernameKey, username)
}

// ParseToken verifies an HMAC-signed token and returns its claims.
func ParseToken(tokenString, secret, issuer string) (*Claims, error) {
	claims := &Claims{}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func tokenFromRequest(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if c, err := r.Cookie(TokenCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	return r.URL.Query().Get(TokenQueryParam)
}

func deriveUsername(userID string) string {
	if len(userID) > 13 {
		return "user-" + userID[len(userID)-8:]
	}
	return "user-" + userID
}

func ensureUser(ctx context.Context, users UserStore, userID, username string) error {
	user, err := users.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if user != nil {
		return nil
	}

	if username == "" {
		username = deriveUsername(userID)
	}
	now := time.Now()
	return users.UpsertUser(ctx, &domain.User{
		UserID:    userID,
		Username:  username,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (o Options) resolve(r *http.Request) (userID, username string, err error) {
	if tok := tokenFromRequest(r); tok != "" {
		if o.Secret == "" {
			return "", "", ErrInvalidToken
		}
		claims, err := ParseToken(tok, o.Secret, o.Issuer)
		if err != nil {
			return "", "", err
		}
		return claims.Subject, claims.Username, nil
	}

	if o.AllowDevHeader {
		if id := strings.TrimSpace(r.Header.Get(DevUserHeader)); devUserPattern.MatchString(id) {
			return id, "", nil
		}
	}
	return "", "", ErrMissingToken
}

// Middleware authenticates the caller, makes sure a user record exists, and
// injects the identity into the request context.
func Middleware(users UserStore, opts Options) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, username, err := opts.resolve(r)
			if err != nil {
				slog.Debug("Identity rejected", "error", err, "path", r.URL.Path, "ip", IPFromRequest(r))
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}

			if err := ensureUser(r.Context(), users, userID, username); err != nil {
				slog.Error("Failed to initialize user", "error", err, "user_id", userID)
				http.Error(w, `{"error":"failed to initialize user"}`, http.StatusInternalServerError)
				return
			}

			if username == "" {
				username = deriveUsername(userID)
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), userID, username)))
		})
	}
}

// IPFromRequest returns a normalized remote IP for optional request tracing.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
