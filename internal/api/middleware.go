package api

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/writing-studio/studio/internal/auth"
	"github.com/writing-studio/studio/internal/ratelimit"
	"github.com/writing-studio/studio/internal/store"
)

type contextKey string

const userContextKey contextKey = "user"

func userFromContext(ctx context.Context) (*store.User, bool) {
	user, ok := ctx.Value(userContextKey).(*store.User)
	return user, ok && user != nil
}

// mustUser is only called behind JWTAuthMiddleware.
func mustUser(r *http.Request) *store.User {
	user, ok := userFromContext(r.Context())
	if !ok {
		panic("api: handler mounted without JWTAuthMiddleware")
	}
	return user
}

func (h *APIHandler) JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeErrorMessage(w, http.StatusUnauthorized, "Authorization header is required")
			return
		}

		tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok {
			writeErrorMessage(w, http.StatusUnauthorized, "Authorization header must use the Bearer scheme")
			return
		}
		externalUserID, err := auth.ValidateJWT(strings.TrimSpace(tokenString))
		if err != nil {
			writeErrorMessage(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		user, err := h.users.GetUserByExternalID(externalUserID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeErrorMessage(w, http.StatusUnauthorized, "User not found")
				return
			}
			log.Printf("Error in JWTAuthMiddleware for user %s: %v", externalUserID, err)
			writeErrorMessage(w, http.StatusInternalServerError, "Failed to process user identity")
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RateLimit admits a request only if limiter has quota left for the caller.
// Authenticated callers are keyed by user, everyone else by client IP.
func RateLimit(limiter *ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := limiter.Check(clientKey(r))

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.Config().MaxRequests))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

			if !res.Allowed {
				retry := res.RetryAfter(time.Now())
				w.Header().Set("Retry-After", strconv.Itoa(int(retry/time.Second)))
				writeErrorMessage(w, http.StatusTooManyRequests, "Too many requests, please try again later")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	if user, ok := userFromContext(r.Context()); ok {
		return "user:" + strconv.FormatInt(user.ID, 10)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
