package http

import (
	"net/http"

	"github.com/dkeye/TeamChat/internal/domain"
	"github.com/gin-gonic/gin"
)

type userCheckRequest struct {
	Name string      `json:"name"`
	Role domain.Role `json:"role"`
}

type userCheckResponse struct {
	User domain.User `json:"user"`
}

// handleUserCheck lets the login screen validate a display name and role
// before opening the websocket. It stores nothing.
func handleUserCheck(c *gin.Context) {
	var req userCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid user"})
		return
	}
	u, err := domain.NewUser(req.Name, req.Role)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, userCheckResponse{User: *u})
}
