package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/gamelib-auth/internal/dto"
	"github.com/prperemyshlev/gamelib-auth/internal/service"
)

const (
	ctxAccountID = "account_id"
	ctxClaims    = "claims"
)

// AuthMiddleware validates the bearer access token and adds the account id to the context
func AuthMiddleware(authService service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.ErrorResponse{
				Error:   "Unauthorized",
				Message: "Not authorized, no token",
			})
			return
		}

		// Extract token from "Bearer <token>"
		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.ErrorResponse{
				Error:   "Unauthorized",
				Message: "Invalid authorization header format",
			})
			return
		}

		claims, err := authService.ValidateToken(c.Request.Context(), parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.ErrorResponse{
				Error:   "Unauthorized",
				Message: "Not authorized, token failed",
			})
			return
		}

		c.Set(ctxAccountID, claims.AccountID)
		c.Set(ctxClaims, claims)

		c.Next()
	}
}

// accountID returns the id set by AuthMiddleware
func accountID(c *gin.Context) (string, bool) {
	id := c.GetString(ctxAccountID)
	return id, id != ""
}
