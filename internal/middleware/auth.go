package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"

	"github.com/BerylCAtieno/unitydesk-api/internal/utils"
)

// RoleOfficer is the role claim required on officer routes.
const RoleOfficer = "officer"

type contextKey string

const claimsKey contextKey = "officer_claims"

// ErrNotOfficer means the token is valid but lacks the officer role.
var ErrNotOfficer = errors.New("officer role required")

// Claims are the JWT claims carried by officer tokens.
type Claims struct {
	Role string `json:"role"`
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// IssueOfficerToken signs an HS256 officer token for subject.
func IssueOfficerToken(secret, subject, name string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("signing secret is empty")
	}
	now := time.Now()
	claims := &Claims{
		Role: RoleOfficer,
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseOfficerToken validates signature, expiry and role.
func ParseOfficerToken(secret, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Role != RoleOfficer {
		return nil, fmt.Errorf("%w: got %q", ErrNotOfficer, claims.Role)
	}
	return claims, nil
}

// OfficerAuth requires a valid officer bearer token and stores its claims in the
// request context.
func OfficerAuth(secret string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeAppError(w, utils.NewUnauthorizedError("Missing authorization header"))
				return
			}

			scheme, tokenString, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || tokenString == "" {
				writeAppError(w, utils.NewUnauthorizedError("Invalid authorization header format"))
				return
			}

			claims, err := ParseOfficerToken(secret, strings.TrimSpace(tokenString))
			if err != nil {
				if errors.Is(err, jwt.ErrTokenExpired) {
					writeAppError(w, utils.NewUnauthorizedError("Token expired"))
					return
				}
				if errors.Is(err, ErrNotOfficer) {
					writeAppError(w, utils.NewForbiddenError("Officer access required"))
					return
				}
				writeAppError(w, utils.NewUnauthorizedError("Invalid token"))
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
		})
	}
}

// ClaimsFromContext returns the officer claims set by OfficerAuth.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*Claims)
	return claims, ok
}
