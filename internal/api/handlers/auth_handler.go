// internal/api/handlers/auth_handler.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pcba-mpi-api-server/internal/logger"
	"pcba-mpi-api-server/internal/service"
)

type AuthHandler struct {
	Credentials *service.CredentialService
	Log         *logger.Logger
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req service.LoginRequest
	if !bindJSON(c, h.Log, &req) {
		return
	}
	res, err := h.Credentials.Authenticate(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Signup registers an engineer.
func (h *AuthHandler) Signup(c *gin.Context) {
	var req service.SignupRequest
	if !bindJSON(c, h.Log, &req) {
		return
	}
	res, err := h.Credentials.Register(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *AuthHandler) AdminSignup(c *gin.Context) {
	var req service.AdminSignupRequest
	if !bindJSON(c, h.Log, &req) {
		return
	}
	res, err := h.Credentials.RegisterAdmin(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *AuthHandler) Me(c *gin.Context) {
	actor, ok := currentActor(c, h.Log)
	if !ok {
		return
	}
	user, err := h.Credentials.Me(c.Request.Context(), actor)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user, "userType": actor.Role})
}

func (h *AuthHandler) ChangePassword(c *gin.Context) {
	actor, ok := currentActor(c, h.Log)
	if !ok {
		return
	}
	var req service.ChangePasswordRequest
	if !bindJSON(c, h.Log, &req) {
		return
	}
	if err := h.Credentials.ChangePassword(c.Request.Context(), actor, req); err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password updated successfully"})
}

func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	actor, ok := currentActor(c, h.Log)
	if !ok {
		return
	}
	var req service.ProfileRequest
	if !bindJSON(c, h.Log, &req) {
		return
	}
	user, err := h.Credentials.UpdateProfile(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user, "userType": actor.Role})
}
