package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/OldStager01/heartrisk/internal/auth"
	"github.com/gin-gonic/gin"
)

const (
	AuthorizationHeader = "Authorization"
	BearerPrefix        = "Bearer "
	TokenQueryParam     = "access_token"
	UserIDKey           = "user_id"
	UsernameKey         = "username"
)

// JWTAuth accepts a bearer token, then the auth cookie, then the
// access_token query parameter (browsers cannot set headers on a
// websocket handshake).
func JWTAuth(authService *auth.Service, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := extractToken(c, cookieName)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "authentication required",
			})
			return
		}

		claims, err := authService.ValidateToken(token)
		if err != nil {
			message := "invalid token"
			if errors.Is(err, auth.ErrExpiredToken) {
				message = "token expired"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": message,
			})
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(UsernameKey, claims.Username)

		c.Next()
	}
}

func extractToken(c *gin.Context, cookieName string) (string, bool) {
	if header := c.GetHeader(AuthorizationHeader); header != "" {
		if !strings.HasPrefix(header, BearerPrefix) {
			return "", false
		}
		token := strings.TrimSpace(strings.TrimPrefix(header, BearerPrefix))
		return token, token != ""
	}
	if cookieName != "" {
		if token, err := c.Cookie(cookieName); err == nil && token != "" {
			return token, true
		}
	}
	if token := c.Query(TokenQueryParam); token != "" {
		return token, true
	}
	return "", false
}

func GetUserID(c *gin.Context) int {
	userID, exists := c.Get(UserIDKey)
	if !exists {
		return 0
	}
	return userID.(int)
}

func GetUsername(c *gin.Context) string {
	username, exists := c.Get(UsernameKey)
	if !exists {
		return ""
	}
	return username.(string)
}
