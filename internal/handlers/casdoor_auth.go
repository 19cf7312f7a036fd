package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/gin-gonic/gin"

	"github.com/moheebaljmaly/tafawuq-exam-central/internal/config"
	"github.com/moheebaljmaly/tafawuq-exam-central/internal/models"
	"github.com/moheebaljmaly/tafawuq-exam-central/internal/repositories"
)

// CasdoorAuthMiddleware authenticates requests against Casdoor-issued
// bearer tokens and loads the caller onto the gin context.
type CasdoorAuthMiddleware struct {
	client   *casdoorsdk.Client
	userRepo repositories.UserRepository
	config   config.CasdoorConfig
}

func NewCasdoorAuthMiddleware(cfg config.CasdoorConfig, userRepo repositories.UserRepository) *CasdoorAuthMiddleware {
	return &CasdoorAuthMiddleware{
		client: casdoorsdk.NewClient(
			cfg.Endpoint,
			cfg.ClientID,
			cfg.ClientSecret,
			cfg.Certificate,
			cfg.Application,
			cfg.Organization,
		),
		userRepo: userRepo,
		config:   cfg,
	}
}

// AuthMiddleware rejects requests without a valid token and stores the
// resolved user under "user"/"user_id"/"user_role" for handlers.
func (cam *CasdoorAuthMiddleware) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, newErrorResponse("unauthorized", "missing or malformed authorization header", nil))
			c.Abort()
			return
		}

		claims, err := cam.client.ParseJwtToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, newErrorResponse("unauthorized", fmt.Sprintf("invalid token: %v", err), nil))
			c.Abort()
			return
		}

		user, err := cam.extractUserFromClaims(c.Request.Context(), claims)
		if err != nil {
			c.JSON(http.StatusUnauthorized, newErrorResponse("unauthorized", "failed to resolve user", nil))
			c.Abort()
			return
		}
		if !user.IsActive {
			c.JSON(http.StatusForbidden, newErrorResponse("forbidden", "account is disabled", nil))
			c.Abort()
			return
		}

		c.Set("user_id", user.ID)
		c.Set("user", user)
		c.Set("user_role", user.Role)
		c.Set("user_email", user.Email)

		c.Next()
	}
}

// RequireRoleMiddleware checks if user has required role. Admins pass
// every role gate.
func (cam *CasdoorAuthMiddleware) RequireRoleMiddleware(requiredRoles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		userRole, exists := c.Get("user_role")
		if !exists {
			c.JSON(http.StatusForbidden, newErrorResponse("forbidden", "user role not found in context", nil))
			c.Abort()
			return
		}

		role, ok := userRole.(models.UserRole)
		if !ok {
			c.JSON(http.StatusForbidden, newErrorResponse("forbidden", "invalid user role format", nil))
			c.Abort()
			return
		}

		allowed := role == models.RoleAdmin
		for _, required := range requiredRoles {
			allowed = allowed || role == required
		}

		if !allowed {
			c.JSON(http.StatusForbidden, newErrorResponse("forbidden", fmt.Sprintf("insufficient permissions, required role: %v", requiredRoles), nil))
			c.Abort()
			return
		}

		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

// extractUserFromClaims resolves the authenticated user, preferring the
// repository (cache or Casdoor) and falling back to the claims payload.
func (cam *CasdoorAuthMiddleware) extractUserFromClaims(ctx context.Context, claims *casdoorsdk.Claims) (*models.User, error) {
	userID := claims.Id
	if userID == "" {
		return nil, fmt.Errorf("token carries no user id")
	}

	user, err := cam.userRepo.GetByID(ctx, userID)
	if err == nil {
		return user, nil
	}

	user = cam.userFromClaims(claims)
	if user == nil {
		return nil, fmt.Errorf("failed to build user from claims")
	}
	return user, nil
}

func (cam *CasdoorAuthMiddleware) userFromClaims(claims *casdoorsdk.Claims) *models.User {
	if claims.Id == "" {
		return nil
	}

	return &models.User{
		ID:          claims.Id,
		Email:       claims.User.Email,
		Name:        claims.User.Name,
		DisplayName: claims.User.DisplayName,
		Avatar:      claims.User.Avatar,
		Role:        mapCasdoorTypeToRole(claims.User.Type),
		IsActive:    !claims.User.IsForbidden,
		CreatedAt:   time.Now().UTC(),
	}
}

func mapCasdoorTypeToRole(casdoorType string) models.UserRole {
	switch strings.ToLower(casdoorType) {
	case "admin", "administrator":
		return models.RoleAdmin
	case "teacher", "instructor", "educator":
		return models.RoleTeacher
	default:
		return models.RoleStudent
	}
}

// GetUserFromContext returns the authenticated user set by AuthMiddleware.
func GetUserFromContext(c *gin.Context) (*models.User, bool) {
	v, exists := c.Get("user")
	if !exists {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok
}
