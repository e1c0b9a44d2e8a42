package server

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/openwatch/netmon-server/internal/config"
)

// jwtAuthMiddleware validates Bearer tokens against the shared HMAC key
// read once at start.
func jwtAuthMiddleware(cfg config.Authentication) (gin.HandlerFunc, error) {
	key, err := os.ReadFile(cfg.JWTFilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read JWT key: %w", err)
	}

	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		_, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return key, nil
		})
		if err != nil {
			zap.S().Named("server").Debugw("rejected token", "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Next()
	}, nil
}
