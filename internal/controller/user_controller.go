package controller

import (
	"github.com/gin-gonic/gin"

	"ojudge/internal/model"
	"ojudge/internal/service"
	"ojudge/pkg/utils/response"
)

// UserController handles account requests.
type UserController struct {
	users *service.UserService
}

// NewUserController creates a new controller.
func NewUserController(users *service.UserService) *UserController {
	return &UserController{users: users}
}

// Save creates a user when no id is given, or renames an existing one.
func (h *UserController) Save(c *gin.Context) {
	var user model.User
	if err := c.ShouldBindJSON(&user); err != nil || user.Name == "" {
		response.BadRequest(c, "Invalid request body.")
		return
	}
	saved, err := h.users.Save(c.Request.Context(), user)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, saved)
}

// List returns all users, smallest id first.
func (h *UserController) List(c *gin.Context) {
	users, err := h.users.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, users)
}
