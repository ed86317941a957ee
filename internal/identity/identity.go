// Package identity attaches a supervisor identity to each request.
package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"
)

const (
	SupervisorCookieName = "supervisor_id"
	SupervisorHeaderName = "X-Supervisor-ID"
	supervisorCookieAge  = 30 * 24 * time.Hour
)

type contextKey int

const supervisorIDKey contextKey = iota

var supervisorIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,64}$`)

// SupervisorIDFromContext extracts the supervisor ID from the request context.
func SupervisorIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(supervisorIDKey).(string); ok {
		return v
	}
	return ""
}

// WithSupervisorID returns a copy of ctx carrying id.
func WithSupervisorID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, supervisorIDKey, id)
}

func generateSupervisorID() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate supervisor id: %w", err)
	}
	return "sup-" + hex.EncodeToString(buf), nil
}

func isValidSupervisorID(id string) bool {
	return supervisorIDPattern.MatchString(id)
}

func setCookie(w http.ResponseWriter, id string, isDev bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SupervisorCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(supervisorCookieAge.Seconds()),
		Expires:  time.Now().Add(supervisorCookieAge),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   !isDev,
	})
}

// resolve picks the supervisor ID for r: an explicit header wins, then the
// cookie, and otherwise a new ID is minted and remembered in the cookie.
func resolve(w http.ResponseWriter, r *http.Request, isDev bool) (string, error) {
	if id := strings.TrimSpace(r.Header.Get(SupervisorHeaderName)); isValidSupervisorID(id) {
		return id, nil
	}
	if c, err := r.Cookie(SupervisorCookieName); err == nil && isValidSupervisorID(c.Value) {
		setCookie(w, c.Value, isDev)
		return c.Value, nil
	}

	id, err := generateSupervisorID()
	if err != nil {
		return "", err
	}
	setCookie(w, id, isDev)
	return id, nil
}

// Middleware injects the supervisor identity into the request context.
func Middleware(isDev bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := resolve(w, r, isDev)
			if err != nil {
				http.Error(w, `{"error":"failed to establish supervisor identity"}`, http.StatusInternalServerError)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSupervisorID(r.Context(), id)))
		})
	}
}
