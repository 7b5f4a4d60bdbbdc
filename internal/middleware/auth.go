package middleware

import (
	"net/http"
	"strings"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/gin-gonic/gin"
	"github.com/zhangqx2025/video-progress-service/internal/config"
	"github.com/zhangqx2025/video-progress-service/internal/repositories"
	"github.com/zhangqx2025/video-progress-service/internal/utils"
)

// NewCasdoorClient builds the token-parsing client from config. The service
// never issues tokens; it only verifies them against the provider's cert.
func NewCasdoorClient(cfg *config.Config) *casdoorsdk.Client {
	return casdoorsdk.NewClient(
		cfg.CasdoorEndpoint,
		cfg.CasdoorClientID,
		cfg.CasdoorClientSecret,
		cfg.CasdoorCertificate,
		cfg.CasdoorOrganization,
		cfg.CasdoorApplication,
	)
}

// AuthMiddleware parses the Bearer token and resolves the local user row,
// storing user_id, user_role and username in the gin context.
func AuthMiddleware(client *casdoorsdk.Client, users repositories.UserRepository, logger utils.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"message": "Missing authorization token",
			})
			return
		}

		claims, err := client.ParseJwtToken(token)
		if err != nil {
			logger.Warn("Token parse failed", "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"message": "Invalid authorization token",
			})
			return
		}

		user, err := users.GetByUsername(c.Request.Context(), claims.Name)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"message": "Unknown user",
				})
				return
			}
			logger.Error("User lookup failed", "username", claims.Name, "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"message": "Internal server error",
			})
			return
		}
		if !user.IsActive {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"message": "Account disabled",
			})
			return
		}

		c.Set("user_id", user.ID)
		c.Set("user_role", user.Role)
		c.Set("username", user.Username)
		c.Next()
	}
}

func extractBearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
