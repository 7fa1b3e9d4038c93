package handlers

import (
	"errors"
	"log"
	"net/http"

	"taskify/internal/middleware"
	"taskify/internal/repositories"
	"taskify/internal/services"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authService services.AuthService
}

// RegisterRequest carries the length rules; the service checks the
// character set.
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Password string `json:"password" binding:"required,min=8"`
}

type CredentialsRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type UserProfileResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

func NewAuthHandler(authService services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "username must be 3-50 characters and password at least 8",
			"details": err.Error(),
		})
		return
	}

	result, err := h.authService.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		var validationErr *services.ValidationError
		switch {
		case errors.As(err, &validationErr):
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_request",
				"message": validationErr.Message,
			})
		case errors.Is(err, services.ErrUsernameTaken):
			c.JSON(http.StatusConflict, gin.H{
				"error":   "username_taken",
				"message": "Username already exists",
			})
		default:
			log.Printf("Registration failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "registration_failed",
				"message": "Failed to register user",
			})
		}
		return
	}

	c.JSON(http.StatusCreated, result)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "username and password are required",
		})
		return
	}

	result, err := h.authService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "invalid_credentials",
				"message": "Invalid username or password",
			})
			return
		}
		log.Printf("Login failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "token_generation_failed",
			"message": "Failed to generate authentication tokens",
		})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "refreshToken is required",
		})
		return
	}

	result, err := h.authService.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, services.ErrInvalidRefreshToken) {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "invalid_refresh_token",
				"message": "Refresh token is invalid or expired",
			})
			return
		}
		log.Printf("Token refresh failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "token_generation_failed",
			"message": "Failed to refresh authentication tokens",
		})
		return
	}

	c.JSON(http.StatusOK, result)
}

// Logout always succeeds from the client's point of view.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req RefreshRequest
	_ = c.ShouldBindJSON(&req)

	if err := h.authService.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		log.Printf("Logout failed to revoke refresh token: %v", err)
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	user, err := h.authService.CurrentUser(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
			return
		}
		log.Printf("Failed to load user %s: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user"})
		return
	}

	c.JSON(http.StatusOK, UserProfileResponse{ID: user.ID.String(), Username: user.Username})
}
