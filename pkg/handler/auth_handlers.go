package handler

import (
	"log/slog"
	"net/http"

	"github.com/aurachat/aurachat/pkg/auth"
	"github.com/aurachat/aurachat/pkg/config"
	"github.com/gin-gonic/gin"
)

// AuthHandler issues session credentials to trusted callers, typically the
// web frontend's own backend after it completes an OAuth exchange.
type AuthHandler struct {
	cfg    *config.AppConfig
	logger *slog.Logger
}

func NewAuthHandler(cfg *config.AppConfig, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{cfg: cfg, logger: logger}
}

// IssueToken handles POST /api/auth/token.
// When a provision key is configured the caller must present it in the
// X-Provision-Key header.
func (h *AuthHandler) IssueToken(c *gin.Context) {
	if key := h.cfg.ProvisionKey(); key != "" {
		if c.GetHeader("X-Provision-Key") != key {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid provision key"})
			return
		}
	}

	var profile auth.Profile
	if err := c.ShouldBindJSON(&profile); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid profile payload"})
		return
	}

	token, err := auth.Mint(profile, h.cfg.JWTSecret(), h.cfg.TokenTTL())
	if err != nil {
		h.logger.Error("failed to mint credential", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}
