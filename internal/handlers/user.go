package handlers

import (
	"time"

	"github.com/cryptobank/backend/internal/middleware"
	"github.com/cryptobank/backend/internal/models"
	"github.com/cryptobank/backend/internal/services"
	"github.com/cryptobank/backend/pkg/response"
	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	userService *services.UserService
}

func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// UserRoleResponse is one granted role.
type UserRoleResponse struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// UserResponse is the public view of a user.
type UserResponse struct {
	ID        uint               `json:"id"`
	Email     string             `json:"email"`
	BirthDate string             `json:"birth_date"`
	CreatedAt time.Time          `json:"created_at"`
	Roles     []UserRoleResponse `json:"roles"`
}

func newUserResponse(u *models.User) UserResponse {
	roles := make([]UserRoleResponse, 0, len(u.Roles))
	for _, r := range u.Roles {
		roles = append(roles, UserRoleResponse{Name: string(r.Name), CreatedAt: r.CreatedAt})
	}
	return UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		BirthDate: u.BirthDate.Format("2006-01-02"),
		CreatedAt: u.CreatedAt,
		Roles:     roles,
	}
}

// Register creates a user account
// POST /users/register
func (h *UserHandler) Register(c *gin.Context) {
	var req services.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}

	user, err := h.userService.Register(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Created(c, newUserResponse(user))
}

// GetInfo returns the current user
// GET /users/get-info
func (h *UserHandler) GetInfo(c *gin.Context) {
	user, err := h.userService.GetInfo(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, newUserResponse(user))
}

// UpdateRole grants a role to another user
// PUT /users/update-role
func (h *UserHandler) UpdateRole(c *gin.Context) {
	var req services.UpdateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}

	user, err := h.userService.UpdateRole(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, newUserResponse(user))
}
