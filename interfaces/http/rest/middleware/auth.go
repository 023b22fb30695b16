package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	pkgerrors "github.com/HansC-anafter/mindscape-ai-local-core-sub007/pkg/errors"
	"github.com/golang-jwt/jwt/v5"
)

// Claims represents the JWT claims
type Claims struct {
	UserID     string   `json:"sub"`
	Email      string   `json:"email,omitempty"`
	Workspaces []string `json:"workspaces,omitempty"`
	jwt.RegisteredClaims
}

// CanAccess reports whether the token grants workspaceID. Tokens without a
// workspace list grant every workspace.
func (c *Claims) CanAccess(workspaceID string) bool {
	if len(c.Workspaces) == 0 {
		return true
	}
	for _, ws := range c.Workspaces {
		if ws == workspaceID {
			return true
		}
	}
	return false
}

type claimsKey struct{}

// ClaimsFromContext returns the claims set by Authenticator, if any
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*Claims)
	return c, ok
}

// Authenticator validates HS256 bearer tokens
type Authenticator struct {
	secret []byte
	issuer string
	errors *pkgerrors.ErrorHandler
}

// NewAuthenticator creates an HS256 authenticator
func NewAuthenticator(secret, issuer string, errs *pkgerrors.ErrorHandler) (*Authenticator, error) {
	if secret == "" {
		return nil, errors.New("secret key required for HS256")
	}
	return &Authenticator{secret: []byte(secret), issuer: issuer, errors: errs}, nil
}

// Validate parses and checks a raw token
func (a *Authenticator) Validate(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, pkgerrors.NewUnauthorizedError("token has expired")
		}
		return nil, pkgerrors.NewUnauthorizedError(fmt.Sprintf("invalid token: %v", err))
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, pkgerrors.NewUnauthorizedError("invalid token claims")
	}
	return claims, nil
}

// Middleware rejects requests without a valid bearer token
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			a.errors.Handle(w, r, pkgerrors.NewUnauthorizedError("missing or malformed authorization header"))
			return
		}

		claims, err := a.Validate(strings.TrimSpace(parts[1]))
		if err != nil {
			a.errors.Handle(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
	})
}
