// Package middleware содержит HTTP middleware сервиса автошколы.
package middleware

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mmeshcher/driveright-academy/internal/model"
)

type contextKey string

const claimsKey contextKey = "claims"

const (
	tokenTTL     = 24 * time.Hour
	tokenIssuer  = "driveright-academy"
	bearerPrefix = "Bearer "
)

var errInvalidToken = errors.New("invalid token")

// Claims содержит данные пользователя, подписанные в токене.
type Claims struct {
	UserID string     `json:"userId"`
	Role   model.Role `json:"role"`
	jwt.RegisteredClaims
}

// AuthMiddleware выпускает и проверяет JWT-токены пользователей.
type AuthMiddleware struct {
	secretKey []byte
	ttl       time.Duration
}

// NewAuthMiddleware создаёт новый экземпляр AuthMiddleware с указанным секретным ключом.
// Пустой секрет заменяется случайным ключом, и токены перестают действовать после перезапуска.
func NewAuthMiddleware(secret string) *AuthMiddleware {
	key := []byte(secret)
	if len(key) == 0 {
		randomKey := make([]byte, 32)
		if _, err := rand.Read(randomKey); err == nil {
			key = randomKey
		} else {
			key = []byte("default-secret-key")
		}
	}

	return &AuthMiddleware{
		secretKey: key,
		ttl:       tokenTTL,
	}
}

// IssueToken выпускает подписанный токен для пользователя.
func (a *AuthMiddleware) IssueToken(userID string, role model.Role) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secretKey)
}

// ParseToken проверяет подпись и срок действия токена.
func (a *AuthMiddleware) ParseToken(tokenStr string) (*Claims, error) {
	if tokenStr == "" {
		return nil, errInvalidToken
	}

	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (any, error) {
		return a.secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, errInvalidToken
	}
	return claims, nil
}

func (a *AuthMiddleware) claimsFromRequest(r *http.Request) (*Claims, bool) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, bearerPrefix) {
		return nil, false
	}

	claims, err := a.ParseToken(strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix)))
	if err != nil {
		return nil, false
	}
	return claims, true
}

// Middleware требует действительный Bearer-токен и добавляет его данные в контекст запроса.
func (a *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := a.claimsFromRequest(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

// Optional добавляет данные токена в контекст, если он передан и действителен.
// Запросы без токена пропускаются дальше.
func (a *AuthMiddleware) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if claims, ok := a.claimsFromRequest(r); ok {
			r = r.WithContext(WithClaims(r.Context(), claims))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole пропускает только пользователей с указанной ролью.
func RequireRole(role model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "Authentication required")
				return
			}
			if claims.Role != role {
				writeError(w, http.StatusForbidden, "Access denied")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithClaims кладёт данные токена в контекст.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// ClaimsFromContext извлекает данные токена из контекста запроса.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*Claims)
	return claims, ok && claims != nil
}

// GetUserIDFromContext извлекает идентификатор пользователя из контекста запроса.
func GetUserIDFromContext(ctx context.Context) (string, bool) {
	claims, ok := ClaimsFromContext(ctx)
	if !ok {
		return "", false
	}
	return claims.UserID, true
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"message": message,
	})
}
