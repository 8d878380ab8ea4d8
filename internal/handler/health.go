package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	httputil "chatlog/internal/pkg/http"
)

// Pinger 可探测的依赖
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler 健康检查处理器
type HealthHandler struct {
	store   Pinger
	storeID string
	timeout time.Duration
}

// NewHealthHandler 创建健康检查处理器
func NewHealthHandler(store Pinger, storeType string) *HealthHandler {
	return &HealthHandler{
		store:   store,
		storeID: storeType,
		timeout: 2 * time.Second,
	}
}

// Health 存活检查
// @Summary  存活检查
// @Tags     健康检查
// @Produce  json
// @Success  200  {object}  map[string]string
// @Router   /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Ready 就绪检查，探测存储连接
// @Summary  就绪检查
// @Tags     健康检查
// @Produce  json
// @Success  200  {object}  map[string]string
// @Failure  503  {object}  httputil.ErrorResponse
// @Router   /ready [get]
func (h *HealthHandler) Ready(c *gin.Context) {
	if h.store != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
		defer cancel()

		if err := h.store.Ping(ctx); err != nil {
			log.Warn().Err(err).Str("store", h.storeID).Msg("readiness check failed")
			c.JSON(http.StatusServiceUnavailable, httputil.NewErrorResponse(
				httputil.CodeStoreUnavailable,
				"Store not available",
			))
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"store":  h.storeID,
	})
}
