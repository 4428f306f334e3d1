package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cura-labs/cura/core"
	"github.com/cura-labs/cura/service"
)

const authFailed = "authentication failed"

// AuthHandlers contains HTTP handlers for auth endpoints
type AuthHandlers struct {
	authService *service.AuthService
	logger      *slog.Logger
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(authService *service.AuthService, logger *slog.Logger) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
		logger:      logger,
	}
}

// Nonce issues a challenge for a wallet
func (h *AuthHandlers) Nonce(c *gin.Context) {
	var req struct {
		WalletAddress string `json:"walletAddress" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	challenge, err := h.authService.CreateChallenge(c.Request.Context(), req.WalletAddress, c.Query("format") == "structured")
	if err != nil {
		if errors.Is(err, core.ErrInvalidAddress) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid wallet address"})
			return
		}
		h.logger.ErrorContext(c.Request.Context(), "failed to create challenge", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create challenge"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"nonce":     challenge.Nonce,
		"message":   challenge.Message,
		"expiresAt": challenge.ExpiresAt,
	})
}

// CheckNonce reports whether a nonce is still usable. The answer is advisory.
func (h *AuthHandlers) CheckNonce(c *gin.Context) {
	wallet := c.Query("walletAddress")
	if wallet == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "walletAddress is required"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"valid": h.authService.CheckNonce(c.Request.Context(), c.Param("nonce"), wallet),
	})
}

// Verify handles the signed challenge and returns session credentials
func (h *AuthHandlers) Verify(c *gin.Context) {
	var req struct {
		WalletAddress string `json:"walletAddress" binding:"required"`
		Signature     string `json:"signature" binding:"required"`
		Message       string `json:"message" binding:"required"`
		Nonce         string `json:"nonce"`
		Persistent    bool   `json:"persistent"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	result, err := h.authService.Login(c.Request.Context(), req.WalletAddress, req.Signature, req.Message, req.Nonce, req.Persistent)
	if err != nil {
		if isAuthFailure(err) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": authFailed})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
		return
	}

	resp := gin.H{
		"sessionToken":     result.AccessToken,
		"tokenType":        "Bearer",
		"expiresInSeconds": int64(result.ExpiresIn.Seconds()),
	}
	if result.PersistentToken != "" {
		resp["persistentToken"] = result.PersistentToken
	}
	c.JSON(http.StatusOK, resp)
}

// Renew exchanges a persistent token for a new session token
func (h *AuthHandlers) Renew(c *gin.Context) {
	var req struct {
		PersistentToken string `json:"persistentToken" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	result, err := h.authService.Renew(c.Request.Context(), req.PersistentToken)
	if err != nil {
		if isAuthFailure(err) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": unauthenticated})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sessionToken":     result.AccessToken,
		"tokenType":        "Bearer",
		"expiresInSeconds": int64(result.ExpiresIn.Seconds()),
	})
}

// Logout announces the end of a session. It always succeeds.
func (h *AuthHandlers) Logout(c *gin.Context) {
	if token, ok := bearerToken(c); ok {
		h.authService.Logout(c.Request.Context(), token)
	}
	c.Status(http.StatusNoContent)
}

// Me returns information about the authenticated user
func (h *AuthHandlers) Me(c *gin.Context) {
	address, exists := c.Get(userAddressKey)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "User not found in context"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"address":   address,
		"sessionId": c.GetString(sessionIDKey),
	})
}

// Authorize checks if a user is authorized
func (h *AuthHandlers) Authorize(c *gin.Context) {
	address, exists := c.Get(userAddressKey)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "User not found in context"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"authorized": true,
		"address":    address,
	})
}

// isAuthFailure reports whether err is a client-side authentication outcome
// rather than an infrastructure failure.
func isAuthFailure(err error) bool {
	if core.IsNonceError(err) {
		return true
	}
	for _, target := range []error{
		core.ErrInvalidAddress,
		core.ErrMalformedMessage,
		core.ErrMessageRejected,
		core.ErrInvalidSignature,
		core.ErrInvalidToken,
		core.ErrTokenExpired,
		core.ErrIssuerOrAudienceMismatch,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
