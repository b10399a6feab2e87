// internal/app/system/auth/auth.go

// Package auth authenticates operator calls to the admin API with HS256
// bearer tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// Roles that may call the admin API.
const (
	RoleAdmin      = "admin"
	RoleDispatcher = "dispatcher"
)

var (
	ErrNoToken      = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid bearer token")
)

// Claims is the token body. Subject names the operator.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

/*─────────────────────────────────────────────────────────────────────────────*
| Current-Admin helper                                                       |
*─────────────────────────────────────────────────────────────────────────────*/

// Admin is what we inject into r.Context() after a token checks out.
type Admin struct {
	Subject string
	Role    string
}

type ctxKey string

const currentAdminKey ctxKey = "currentAdmin"

// CurrentAdmin returns the admin & “found?” flag.
func CurrentAdmin(r *http.Request) (*Admin, bool) {
	a, ok := r.Context().Value(currentAdminKey).(*Admin)
	return a, ok
}

// WithAdmin returns r carrying a. Used by middleware and tests.
func WithAdmin(r *http.Request, a *Admin) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), currentAdminKey, a))
}

/*─────────────────────────────────────────────────────────────────────────────*
| Verifier                                                                    |
*─────────────────────────────────────────────────────────────────────────────*/

// Verifier checks tokens signed with a shared secret.
type Verifier struct {
	secret []byte
	issuer string
	parser *jwt.Parser
	log    *zap.Logger
}

// NewVerifier builds a Verifier. issuer may be empty to skip the iss check.
func NewVerifier(secret, issuer string, logger *zap.Logger) (*Verifier, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("admin jwt secret must be at least 32 bytes")
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30 * time.Second),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	return &Verifier{
		secret: []byte(secret),
		issuer: issuer,
		parser: jwt.NewParser(opts...),
		log:    logger,
	}, nil
}

// Verify parses and validates a raw token.
func (v *Verifier) Verify(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := v.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: no subject", ErrInvalidToken)
	}
	return claims, nil
}

// Issue signs a token for subject. Used by operators' tooling and tests.
func (v *Verifier) Issue(subject, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

func bearer(r *http.Request) (string, error) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", ErrNoToken
	}
	scheme, tok, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(tok) == "" {
		return "", ErrNoToken
	}
	return strings.TrimSpace(tok), nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| Middleware                                                                  |
*─────────────────────────────────────────────────────────────────────────────*/

// RequireRole ensures the request carries a valid token whose role is one of
// allowed. Failures answer 401 (no or bad token) or 403 (wrong role).
func (v *Verifier) RequireRole(allowed ...string) func(http.Handler) http.Handler {
	set := make(map[string]struct{}, len(allowed))
	for _, role := range allowed {
		set[strings.ToLower(strings.TrimSpace(role))] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := bearer(r)
			if err != nil {
				unauthorized(w, err)
				return
			}
			claims, err := v.Verify(raw)
			if err != nil {
				v.log.Warn("admin token rejected", zap.Error(err))
				unauthorized(w, ErrInvalidToken)
				return
			}
			if _, has := set[strings.ToLower(claims.Role)]; !has {
				v.log.Warn("admin role not allowed",
					zap.String("subject", claims.Subject),
					zap.String("role", claims.Role))
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, WithAdmin(r, &Admin{Subject: claims.Subject, Role: claims.Role}))
		})
	}
}

func unauthorized(w http.ResponseWriter, err error) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="whosthat-admin"`)
	http.Error(w, err.Error(), http.StatusUnauthorized)
}
