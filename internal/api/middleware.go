package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/erazemk/rewear/internal/apperr"
	"github.com/erazemk/rewear/internal/auth"
	"github.com/erazemk/rewear/internal/db"
	"github.com/erazemk/rewear/internal/logger"
	"github.com/erazemk/rewear/internal/metrics"
	"github.com/erazemk/rewear/internal/model"
	"github.com/erazemk/rewear/internal/store"
)

type contextKey string

const (
	claimsKey contextKey = "claims"
	userKey   contextKey = "user"
)

const requestIDHeader = "X-Request-Id"

var (
	errUnauthenticated = apperr.New(apperr.CodeUnauthorized, "authentication required")
	errInvalidToken    = apperr.New(apperr.CodeUnauthorized, "invalid or expired token")
	errAdminOnly       = apperr.New(apperr.CodeForbidden, "admin access required")
)

// RequestID tags the request context and response with a request ID.
func RequestID(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := r.Header.Get(requestIDHeader)
			if reqID == "" {
				reqID = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, reqID)

			ctx := log.WithField(r.Context(), "request_id", reqID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Logging logs each request and records its latency per route pattern.
func Logging(log *logger.Logger, m *metrics.HTTP) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := log.WithFields(r.Context(), map[string]any{
				"method": r.Method,
				"path":   r.URL.Path,
			})

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r.WithContext(ctx))

			route := ""
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				route = rctx.RoutePattern()
			}
			elapsed := time.Since(start)
			m.Observe(r.Method, route, rec.status, elapsed)

			ctx = log.WithFields(ctx, map[string]any{
				"status":      rec.status,
				"duration_ms": elapsed.Milliseconds(),
			})
			log.Info(ctx, "request complete")
		})
	}
}

// Recoverer turns panics into logged internal errors.
func Recoverer(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					writeError(r.Context(), log, w, fmt.Errorf("panic: %v", rec))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// Authenticator resolves bearer tokens to users.
type Authenticator struct {
	DB     *db.DB
	Issuer *auth.Issuer
	Log    *logger.Logger
}

// authenticate returns the claims and current user for r. A missing header
// yields errUnauthenticated.
func (a *Authenticator) authenticate(r *http.Request) (*auth.Claims, *model.User, error) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return nil, nil, errUnauthenticated
	}

	claims, err := a.Issuer.ValidateToken(strings.TrimPrefix(header, "Bearer "))
	if err != nil {
		return nil, nil, errInvalidToken
	}

	revoked, err := store.IsTokenRevoked(r.Context(), a.DB, claims.ID)
	if err != nil {
		return nil, nil, err
	}
	if revoked {
		return nil, nil, errInvalidToken
	}

	user, err := store.GetUser(r.Context(), a.DB, claims.UserID)
	if err != nil {
		return nil, nil, err
	}
	if user == nil {
		return nil, nil, errInvalidToken
	}
	return claims, user, nil
}

func (a *Authenticator) withUser(r *http.Request, claims *auth.Claims, user *model.User) *http.Request {
	ctx := context.WithValue(r.Context(), claimsKey, claims)
	ctx = context.WithValue(ctx, userKey, user)
	ctx = a.Log.WithField(ctx, "user_id", user.ID)
	return r.WithContext(ctx)
}

// Required rejects requests without a valid token.
func (a *Authenticator) Required(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, user, err := a.authenticate(r)
		if err != nil {
			writeError(r.Context(), a.Log, w, err)
			return
		}
		next.ServeHTTP(w, a.withUser(r, claims, user))
	})
}

// Optional attaches the user when a valid token is present and otherwise
// continues anonymously.
func (a *Authenticator) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, user, err := a.authenticate(r)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, a.withUser(r, claims, user))
	})
}

// RequireAdmin rejects authenticated users without the admin flag. It reads
// the flag from the stored user, not the token, so demotions apply at once.
func RequireAdmin(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := CurrentUser(r.Context())
			if user == nil {
				writeError(r.Context(), log, w, errUnauthenticated)
				return
			}
			if !user.IsAdmin {
				writeError(r.Context(), log, w, errAdminOnly)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetClaims retrieves the JWT claims from the context.
func GetClaims(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsKey).(*auth.Claims)
	return claims
}

// CurrentUser retrieves the authenticated user from the context.
func CurrentUser(ctx context.Context) *model.User {
	user, _ := ctx.Value(userKey).(*model.User)
	return user
}
