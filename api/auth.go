/*
auth.go - Bearer tokens, session middleware and login throttling

TOKENS:
  HS256 JWTs. Claims: sub (user id), role, jti (session id), iat, exp.
  The role claim is informational; every request reloads the user so a
  deactivated account or a changed role takes effect immediately.

LOGOUT:
  Revoked session ids are kept in memory until their token would have
  expired anyway. A restart forgets them, which is acceptable for
  tokens with a TTL measured in hours.

THROTTLING:
  POST /api/login is limited per client IP with a token bucket.
*/
package api

import (
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/warp/library-engine/library"
	"golang.org/x/time/rate"
)

var errInvalidToken = errors.New("invalid or expired token")

type sessionClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies session tokens.
type TokenIssuer struct {
	secret []byte
	clock  library.Clock

	mu      sync.Mutex
	revoked map[string]time.Time
}

func NewTokenIssuer(secret string, clock library.Clock) *TokenIssuer {
	return &TokenIssuer{
		secret:  []byte(secret),
		clock:   clock,
		revoked: make(map[string]time.Time),
	}
}

// Issue signs a token for s.
func (t *TokenIssuer) Issue(s library.Session) (string, error) {
	claims := sessionClaims{
		Role: string(s.User.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(s.User.ID, 10),
			ID:        s.ID,
			IssuedAt:  jwt.NewNumericDate(s.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Verify checks signature, expiry and revocation.
func (t *TokenIssuer) Verify(token string) (*sessionClaims, error) {
	claims := &sessionClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(tok *jwt.Token) (interface{}, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.clock.Now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, errInvalidToken
	}
	if t.isRevoked(claims.ID) {
		return nil, errInvalidToken
	}
	return claims, nil
}

// Revoke invalidates a session id until expiresAt.
func (t *TokenIssuer) Revoke(id string, expiresAt time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	for jti, exp := range t.revoked {
		if !now.Before(exp) {
			delete(t.revoked, jti)
		}
	}
	t.revoked[id] = expiresAt
}

func (t *TokenIssuer) isRevoked(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.revoked[id]
	return ok
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

// Authenticate resolves the bearer token into a library.Session on the
// request context. Requests without a valid token get 401.
func (h *Handler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "authentication required", nil)
			return
		}
		claims, err := h.Tokens.Verify(raw)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error(), nil)
			return
		}
		userID, err := strconv.ParseInt(claims.Subject, 10, 64)
		if err != nil {
			writeError(w, http.StatusUnauthorized, errInvalidToken.Error(), nil)
			return
		}

		user, err := h.Directory.GetUser(r.Context(), userID)
		if err != nil {
			if library.IsNotFound(err) {
				writeError(w, http.StatusUnauthorized, errInvalidToken.Error(), nil)
				return
			}
			h.writeDomainError(w, err)
			return
		}
		if !user.Active {
			writeError(w, http.StatusUnauthorized, "account is inactive", nil)
			return
		}

		sess := library.Session{ID: claims.ID, User: *user}
		if claims.IssuedAt != nil {
			sess.IssuedAt = claims.IssuedAt.Time
		}
		if claims.ExpiresAt != nil {
			sess.ExpiresAt = claims.ExpiresAt.Time
		}
		next.ServeHTTP(w, r.WithContext(library.WithSession(r.Context(), sess)))
	})
}

// RequireAdmin rejects sessions without the administrator role.
func (h *Handler) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := library.RequireAdmin(r.Context()); err != nil {
			h.writeDomainError(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}

// =============================================================================
// LOGIN THROTTLING
// =============================================================================

// loginIdleTTL is how long an IP's bucket survives without requests. A
// bucket refills completely within a minute, so dropping it loses nothing.
const loginIdleTTL = 5 * time.Minute

// LoginLimiter hands out one token bucket per client IP. Buckets idle for
// loginIdleTTL are pruned on the next request.
type LoginLimiter struct {
	perMinute int
	clock     library.Clock

	mu        sync.Mutex
	limiters  map[string]*ipBucket
	lastPrune time.Time
}

type ipBucket struct {
	lim  *rate.Limiter
	seen time.Time
}

func NewLoginLimiter(perMinute int) *LoginLimiter {
	if perMinute <= 0 {
		perMinute = 10
	}
	return &LoginLimiter{perMinute: perMinute, limiters: make(map[string]*ipBucket)}
}

func (l *LoginLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	if now.Sub(l.lastPrune) >= loginIdleTTL {
		for key, b := range l.limiters {
			if now.Sub(b.seen) >= loginIdleTTL {
				delete(l.limiters, key)
			}
		}
		l.lastPrune = now
	}

	b, ok := l.limiters[ip]
	if !ok {
		b = &ipBucket{lim: rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.perMinute)), l.perMinute)}
		l.limiters[ip] = b
	}
	b.seen = now
	return b.lim.AllowN(now, 1)
}

// Middleware answers 429 once a client exhausts its bucket.
func (l *LoginLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(clientIP(r)) {
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "too many login attempts, try again later", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
