package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/moheebaljmaly/tafawuq-exam-central/internal/models"
	"github.com/moheebaljmaly/tafawuq-exam-central/internal/repositories"
	"github.com/moheebaljmaly/tafawuq-exam-central/internal/utils"
)

type UserHandler struct {
	BaseHandler
	userRepo repositories.UserRepository
}

func NewUserHandler(userRepo repositories.UserRepository, logger utils.Logger) *UserHandler {
	return &UserHandler{
		BaseHandler: NewBaseHandler(logger),
		userRepo:    userRepo,
	}
}

// GetMe returns the authenticated user's profile
// @Summary Current user
// @Tags users
// @Produce json
// @Success 200 {object} models.User
// @Router /users/me [get]
func (h *UserHandler) GetMe(c *gin.Context) {
	if user, ok := GetUserFromContext(c); ok {
		c.JSON(http.StatusOK, user)
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	user, err := h.userRepo.GetByID(c.Request.Context(), userID)
	if err != nil {
		h.LogError(c, err, "Failed to load current user", "user_id", userID)
		c.JSON(http.StatusNotFound, newErrorResponse("not_found", "User not found", nil))
		return
	}

	c.JSON(http.StatusOK, user)
}

// ListUsers lists users, mainly for teachers picking collaborators
// @Summary List users
// @Tags users
// @Produce json
// @Param q query string false "Search query (name or email)"
// @Success 200 {object} models.PaginatedResponse[models.User]
// @Router /users [get]
func (h *UserHandler) ListUsers(c *gin.Context) {
	if _, ok := h.requireUserID(c); !ok {
		return
	}

	page := h.parseIntQuery(c, "page", 1)
	size := h.parseIntQuery(c, "size", 20)

	filters := repositories.UserFilters{
		Query:  strings.TrimSpace(c.Query("q")),
		Limit:  size,
		Offset: (page - 1) * size,
	}

	users, total, err := h.userRepo.List(c.Request.Context(), filters)
	if err != nil {
		h.LogError(c, err, "Failed to list users")
		c.JSON(http.StatusInternalServerError, newErrorResponse("internal_error", "Failed to list users", nil))
		return
	}

	c.JSON(http.StatusOK, models.NewPaginatedResponse(users, total, page, size))
}
