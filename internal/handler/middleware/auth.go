package middleware

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/licensify/licensify/internal/ierr"
	"github.com/licensify/licensify/internal/service"
	"go.uber.org/zap"
)

const (
	authorizationHeader = "Authorization"
	bearerPrefix        = "Bearer "
	userClaimsKey       = "userClaims"
)

func AuthMiddleware(authService *service.AuthService, logger *zap.Logger) gin.HandlerFunc {
	log := logger.Named("AuthMiddleware")
	return func(c *gin.Context) {
		authHeader := c.GetHeader(authorizationHeader)
		if authHeader == "" {
			log.Debug("Authorization header is missing")
			_ = c.Error(fmt.Errorf("%w: authorization header required", ierr.ErrUnauthorized))
			c.Abort()
			return
		}

		if !strings.HasPrefix(authHeader, bearerPrefix) {
			log.Debug("Authorization header format is invalid")
			_ = c.Error(fmt.Errorf("%w: invalid authorization header format", ierr.ErrUnauthorized))
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(authHeader, bearerPrefix)
		if tokenString == "" {
			_ = c.Error(fmt.Errorf("%w: token missing", ierr.ErrUnauthorized))
			c.Abort()
			return
		}

		claims, err := authService.ValidateToken(c.Request.Context(), tokenString)
		if err != nil {
			log.Warn("Token validation failed", zap.Error(err))
			_ = c.Error(err)
			c.Abort()
			return
		}

		log.Debug("Access token validated, setting claims in context", zap.String("username", claims.Username))
		c.Set(userClaimsKey, claims)

		c.Next()
	}
}

func GetUserClaims(c *gin.Context) *service.Claims {
	value, exists := c.Get(userClaimsKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*service.Claims)
	if !ok {
		return nil
	}
	return claims
}
