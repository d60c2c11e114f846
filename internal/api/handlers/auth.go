package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"stepflow/pkg/auth"
	"stepflow/pkg/response"
)

type LoginRequest struct {
	Username string `json:"username" binding:"required,min=3"`
	Password string `json:"password" binding:"required,min=6"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if req.Username != h.auth.Username || h.auth.PasswordHash == "" || !auth.CheckPassword(req.Password, h.auth.PasswordHash) {
		h.log.Warnf("🔒 rejected login for %q", req.Username)
		response.Unauthorized(c, "invalid username or password")
		return
	}

	token, err := h.signer.GenerateToken(req.Username, h.jwtExpire)
	if err != nil {
		response.InternalServerError(c, "failed to generate token")
		return
	}
	response.SuccessWithMessage(c, "login successful", LoginResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(time.Duration(h.jwtExpire) * time.Second),
	})
}

func (h *Handler) HealthCheck(c *gin.Context) {
	response.Success(c, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
		"running":   h.batches.Status().Running,
	})
}
