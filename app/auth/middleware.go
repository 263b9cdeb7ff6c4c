package auth

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const userIDContextKey = "auth.user_id"

// RequireUser validates the Authorization bearer token and stores the
// authenticated user id on the request context. Tokens are HMAC-signed with
// the shared secret and carry the user id in the subject claim.
func RequireUser(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			header := ctx.Request().Header.Get(echo.HeaderAuthorization)
			token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
			if header == "" || token == header {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
			}

			userID, err := parseUserID(token, secret)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			ctx.Set(userIDContextKey, userID)
			return next(ctx)
		}
	}
}

func parseUserID(token, secret string) (uint64, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil || !parsed.Valid {
		return 0, jwt.ErrTokenSignatureInvalid
	}

	subject, err := parsed.Claims.GetSubject()
	if err != nil {
		return 0, err
	}

	userID, err := strconv.ParseUint(subject, 10, 64)
	if err != nil || userID == 0 {
		return 0, jwt.ErrTokenInvalidClaims
	}
	return userID, nil
}

// UserID returns the authenticated user id set by RequireUser, or zero when
// the route is unauthenticated.
func UserID(ctx echo.Context) uint64 {
	if id, ok := ctx.Get(userIDContextKey).(uint64); ok {
		return id
	}
	return 0
}
