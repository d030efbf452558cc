package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/Dhoini/subscription-service/internal/domain"
	"github.com/Dhoini/subscription-service/pkg/logger"
	"github.com/Dhoini/subscription-service/pkg/res"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// ContextKey тип для ключей контекста во избежание коллизий.
type ContextKey string

const (
	// ContextUserIDKey ключ для хранения ID пользователя в контексте gin.
	ContextUserIDKey ContextKey = "userID"
	// ContextUserEmailKey ключ для хранения email пользователя.
	ContextUserEmailKey ContextKey = "userEmail"

	authHeaderPrefix = "Bearer "
)

type TokenValidator interface {
	Validate(tokenString string) (*TokenClaims, error)
}

type TokenClaims struct {
	UserEmail string `json:"email"`
	Scope     string `json:"scope"`
	jwt.RegisteredClaims
}

type JWTMiddleware struct {
	log       *logger.Logger
	validator TokenValidator
}

func NewJWTMiddleware(log *logger.Logger, validator TokenValidator) *JWTMiddleware {
	return &JWTMiddleware{
		log:       log,
		validator: validator,
	}
}

// RequireAuth пропускает запрос только с валидным Bearer токеном.
// Если заданы scopes, токен должен содержать один из них.
func (m *JWTMiddleware) RequireAuth(requiredScopes ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			m.handleAuthError(c, "Missing authorization token", nil)
			return
		}
		if !strings.HasPrefix(authHeader, authHeaderPrefix) {
			m.handleAuthError(c, "Invalid authorization header", nil)
			return
		}

		tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, authHeaderPrefix))
		claims, err := m.validator.Validate(tokenString)
		if err != nil {
			m.handleAuthError(c, "Invalid authorization token", err)
			return
		}

		if len(requiredScopes) > 0 && !slices.Contains(requiredScopes, claims.Scope) {
			m.handleAuthError(c, "Insufficient token permissions", nil)
			return
		}

		userID := claims.Subject
		if userID == "" {
			m.handleAuthError(c, "User ID (sub) missing in token", nil)
			return
		}

		c.Set(string(ContextUserIDKey), userID)
		c.Set(string(ContextUserEmailKey), claims.UserEmail)
		m.log.Debugw("User authenticated", "userID", userID)
		c.Next()
	}
}

func (m *JWTMiddleware) handleAuthError(c *gin.Context, message string, cause error) {
	m.log.Warnw("HTTP authentication failed", "path", c.Request.URL.Path, "reason", message, "error", cause)
	res.JsonResponse(c.Writer, res.ErrorResponse{
		Error:     message,
		ErrorCode: http.StatusUnauthorized,
	}, http.StatusUnauthorized)
	c.Abort()
}

// SubscriberResolver извлекает подписчика из запроса.
type SubscriberResolver func(c *gin.Context) (domain.Subscriber, error)

// SubscriberFromContext читает подписчика, сохраненного RequireAuth.
func SubscriberFromContext(c *gin.Context) (domain.Subscriber, error) {
	userID := c.GetString(string(ContextUserIDKey))
	if userID == "" {
		return domain.Subscriber{}, domain.ErrUnauthenticated
	}
	return domain.Subscriber{
		ID:    userID,
		Email: c.GetString(string(ContextUserEmailKey)),
	}, nil
}

// DefaultTokenValidator - реализация валидатора по умолчанию (HMAC).
type DefaultTokenValidator struct {
	Secret []byte
}

func (v *DefaultTokenValidator) Validate(tokenString string) (*TokenClaims, error) {
	if len(v.Secret) == 0 {
		return nil, errors.New("token secret is not configured")
	}
	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.Secret, nil
	})

	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, errors.New("malformed token")
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, errors.New("invalid token signature")
		case errors.Is(err, jwt.ErrTokenExpired), errors.Is(err, jwt.ErrTokenNotValidYet):
			return nil, errors.New("token expired")
		default:
			return nil, fmt.Errorf("invalid token: %w", err)
		}
	}

	if claims, ok := token.Claims.(*TokenClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token claims")
}
