package serverutils

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const (
	SessionKeyLocal  = "session_key"
	SessionKeyHeader = "X-Session-Key"
	SessionCookie    = "doc_session"
	DefaultSession   = "default"

	userKeyPrefix      = "user:"
	anonymousKeyPrefix = "anon:"
)

// SessionKeyMiddleware stores the caller's session key in ctx.Locals. A
// bearer token is honored only when secret is set; its user_id claim wins
// over the header and cookie. With a secret set, header and cookie keys are
// namespaced apart from token keys so an anonymous caller can never name a
// user's session.
func SessionKeyMiddleware(secret string) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		if secret != "" {
			if authHeader := ctx.Get(fiber.HeaderAuthorization); authHeader != "" {
				key, err := userIDFromToken(authHeader, secret)
				if err != nil {
					return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, err.Error()))
				}
				ctx.Locals(SessionKeyLocal, key)
				return ctx.Next()
			}
		}

		key := strings.TrimSpace(ctx.Get(SessionKeyHeader))
		if key == "" {
			key = ctx.Cookies(SessionCookie)
		}
		if key == "" {
			key = DefaultSession
		}
		if secret != "" {
			key = anonymousKeyPrefix + key
		}
		ctx.Locals(SessionKeyLocal, key)
		return ctx.Next()
	}
}

// SessionKey returns the key resolved by SessionKeyMiddleware.
func SessionKey(ctx *fiber.Ctx) string {
	if key, ok := ctx.Locals(SessionKeyLocal).(string); ok && key != "" {
		return key
	}
	return DefaultSession
}

func userIDFromToken(authHeader, secret string) (string, error) {
	tokenStr, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok {
		return "", fmt.Errorf("missing token")
	}

	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid claims")
	}
	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("invalid claims")
	}
	return userKeyPrefix + userID, nil
}
