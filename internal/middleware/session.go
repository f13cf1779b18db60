package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/AnshRaj112/lovedoctor-backend/internal/models"
	"github.com/AnshRaj112/lovedoctor-backend/internal/services"
	"github.com/AnshRaj112/lovedoctor-backend/pkg/logger"
	"go.uber.org/zap"
)

// SessionReader validates a credential and returns its current state.
type SessionReader interface {
	Read(ctx context.Context, token string) (*services.SessionState, error)
}

// SessionCookie describes the cookie carrying the session credential.
type SessionCookie struct {
	Name   string
	Secure bool
	TTL    time.Duration
}

func (c SessionCookie) Set(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Value:    token,
		Path:     "/",
		MaxAge:   int(c.TTL.Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (c SessionCookie) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

type sessionCtxKey struct{}

type sessionValue struct {
	claims *services.SessionClaims
	token  string
}

// SessionFromContext returns the claims of the current request, or nil.
func SessionFromContext(ctx context.Context) *services.SessionClaims {
	if v, ok := ctx.Value(sessionCtxKey{}).(*sessionValue); ok {
		return v.claims
	}
	return nil
}

// SessionTokenFromContext returns the credential the claims were read from.
func SessionTokenFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(sessionCtxKey{}).(*sessionValue); ok {
		return v.token
	}
	return ""
}

// WithSession stores claims on ctx. Used by Session and by tests.
func WithSession(ctx context.Context, claims *services.SessionClaims, token string) context.Context {
	return context.WithValue(ctx, sessionCtxKey{}, &sessionValue{claims: claims, token: token})
}

// TokenFromRequest reads the credential from the session cookie, then the
// Authorization header. Browser websocket clients cannot set headers, so
// upgrade requests may also pass it as ?token=.
func TokenFromRequest(r *http.Request, cookieName string) string {
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if auth := r.Header.Get("Authorization"); len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return r.URL.Query().Get("token")
	}
	return ""
}

// Session reads the credential when one is presented and attaches the claims
// to the context. Requests without a valid credential continue anonymously.
// When reading renewed or enriched the credential, the new one is sent back.
func Session(reader SessionReader, cookie SessionCookie) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r, cookie.Name)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			state, err := reader.Read(r.Context(), token)
			if err != nil {
				if services.KindOf(err) == services.KindUnauthorized {
					if _, cerr := r.Cookie(cookie.Name); cerr == nil {
						cookie.Clear(w)
					}
				} else {
					logger.FromContext(r.Context()).Warn("session read failed", zap.Error(err))
				}
				next.ServeHTTP(w, r)
				return
			}

			if state.Refreshed {
				cookie.Set(w, state.Token)
			}
			ctx := WithSession(r.Context(), state.Claims, state.Token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireSession rejects requests without a session with 401.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if SessionFromContext(r.Context()) == nil {
			reject(w, r, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole rejects requests without a session with 401 and requests whose
// session has a different role with 403, before the handler runs.
func RequireRole(role models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := SessionFromContext(r.Context())
			if claims == nil {
				reject(w, r, http.StatusUnauthorized, "Unauthorized")
				return
			}
			if claims.Role != role {
				reject(w, r, http.StatusForbidden, "Forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// InternalKey requires the X-Internal-Key header to equal key. An empty key
// disables the check.
func InternalKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			got := r.Header.Get("X-Internal-Key")
			if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				reject(w, r, http.StatusUnauthorized, "Unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
