package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"patent-backend/internal/shared/auth"
	"patent-backend/internal/shared/server/middleware"
	"patent-backend/internal/shared/server/respond"
	"patent-backend/internal/workflow"
)

// registerMeRoutes attaches the /me endpoint.
func registerMeRoutes(rg *gin.RouterGroup) {
	rg.GET("/me", meHandler)
}

func meHandler(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	if userID == "" {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
		return
	}

	role := middleware.RoleFromContext(c)
	response := gin.H{
		"userId":  userID,
		"role":    role,
		"isAdmin": role.IsAdmin(),
	}
	if email := middleware.UserEmailFromContext(c); email != "" {
		response["email"] = email
	}
	if name := middleware.UserNameFromContext(c); name != "" {
		response["name"] = name
	}

	respond.JSON(c, http.StatusOK, response)
}

type devTokenRequest struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

// registerDevTokenRoutes mounts a token minting endpoint for local testing.
// Never enabled in production.
func registerDevTokenRoutes(rg *gin.RouterGroup) {
	rg.POST("/dev/token", devTokenHandler)
}

func devTokenHandler(c *gin.Context) {
	var req devTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "userId is required", nil)
		return
	}
	role := workflow.ParseRole(req.Role)
	if role == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "role must be applicant, pccAdmin or director", nil)
		return
	}

	claims := auth.Claims{Email: req.Email, Name: req.Name, Role: string(role)}
	claims.Subject = req.UserID
	token, err := auth.SignToken(claims)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to issue token", nil)
		return
	}
	respond.JSON(c, http.StatusOK, gin.H{"token": token, "role": role})
}
