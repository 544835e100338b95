package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ojudge/pkg/utils/logger"
)

// AdminController exposes the internal control endpoints.
type AdminController struct {
	shutdown func()
}

// NewAdminController creates a new controller. shutdown is invoked
// after the exit response is written.
func NewAdminController(shutdown func()) *AdminController {
	return &AdminController{shutdown: shutdown}
}

// Exit requests a graceful server shutdown.
func (h *AdminController) Exit(c *gin.Context) {
	logger.Info(c.Request.Context(), "exit requested")
	c.Status(http.StatusOK)
	if h.shutdown != nil {
		go h.shutdown()
	}
}
