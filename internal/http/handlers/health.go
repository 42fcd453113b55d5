package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	ping func() error
}

func NewHealthHandler(ping func() error) *HealthHandler {
	return &HealthHandler{ping: ping}
}

func (h *HealthHandler) Root(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"message": "userhub API is running",
		"version": "1.0.0",
	})
}

func (h *HealthHandler) Health(ctx *gin.Context) {
	status := "OK"
	code := http.StatusOK

	if h.ping != nil {
		if err := h.ping(); err != nil {
			status = "DEGRADED"
			code = http.StatusServiceUnavailable
		}
	}

	ctx.JSON(code, gin.H{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
