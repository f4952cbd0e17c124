package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const ServiceRole = "service_role"

var errInvalidClaims = errors.New("invalid token claims")

// ServiceAuth admits callers holding an HS256 token whose role claim is
// service_role. With an empty secret every request is admitted.
type ServiceAuth struct {
	Secret []byte
}

func NewServiceAuth(secret string) *ServiceAuth {
	return &ServiceAuth{Secret: []byte(secret)}
}

func (a *ServiceAuth) Enabled() bool { return len(a.Secret) > 0 }

// GenerateServiceToken mints a service_role token for schedulers and cron jobs.
func (a *ServiceAuth) GenerateServiceToken(ttl time.Duration) (string, error) {
	if !a.Enabled() {
		return "", errors.New("service auth is disabled: JWT_SECRET is empty")
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"role": ServiceRole,
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.Secret)
}

func (a *ServiceAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		// Extract Authorization header
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing authorization header", r)
			return
		}

		// Must be Bearer format
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid authorization format", r)
			return
		}

		claims, err := ParseToken(a.Secret, parts[1])
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				writeError(w, http.StatusUnauthorized, "TOKEN_EXPIRED", "Token has expired", r)
			} else {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token", r)
			}
			return
		}

		if role, _ := claims["role"].(string); role != ServiceRole {
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Service role required", r)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ParseToken verifies an HS256 token and returns its claims.
func ParseToken(secret []byte, tokenStr string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errInvalidClaims
	}
	return claims, nil
}

// UserIDFromToken accepts a signed-in user's token, carrying either a
// user_id or a sub claim.
func UserIDFromToken(secret []byte, tokenStr string) (uuid.UUID, error) {
	claims, err := ParseToken(secret, tokenStr)
	if err != nil {
		return uuid.Nil, err
	}

	userIDStr, _ := claims["user_id"].(string)
	if userIDStr == "" {
		userIDStr, _ = claims["sub"].(string)
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid user ID in token: %w", err)
	}
	return userID, nil
}

func writeError(w http.ResponseWriter, status int, code, message string, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{
			"code":       code,
			"message":    message,
			"request_id": requestID,
		},
	})
}
