package handler

import (
	"log/slog"
	"net/http"

	"github.com/aurachat/aurachat/pkg/upstream"
	"github.com/gin-gonic/gin"
)

// ModelsHandler exposes the upstream's model catalog, mainly so a frontend
// can sanity-check connectivity and the configured key.
type ModelsHandler struct {
	client *upstream.Client
	logger *slog.Logger
}

func NewModelsHandler(client *upstream.Client, logger *slog.Logger) *ModelsHandler {
	return &ModelsHandler{client: client, logger: logger}
}

func (h *ModelsHandler) List(c *gin.Context) {
	out, err := h.client.ListModels(c.Request.Context())
	if err != nil {
		h.logger.Error("list upstream models failed", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "could not reach upstream"})
		return
	}
	c.JSON(http.StatusOK, out)
}
