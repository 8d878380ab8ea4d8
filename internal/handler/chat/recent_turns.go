package chat

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"chatlog/internal/service"
)

// RecentTurnsRequest 最近记录请求
type RecentTurnsRequest struct {
	Hours int   `form:"hours,default=24"`
	Limit int64 `form:"limit,default=10"`
}

// RecentTurns 最近 N 小时的扁平记录
// @Summary      最近记录
// @Description  返回最近 hours 小时内的扁平记录，按时间倒序
// @Tags         聊天历史
// @Produce      json
// @Param        hours  query     int  false  "回看小时数（默认24，最大8760）"
// @Param        limit  query     int  false  "条数（默认10）"
// @Success      200    {array}   conversation.Turn
// @Failure      400    {object}  ErrorResponse  "请求参数错误"
// @Failure      500    {object}  ErrorResponse  "服务器内部错误"
// @Router       /recent-conversations [get]
func (h *Handler) RecentTurns(c *gin.Context) {
	var req RecentTurnsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		invalidQuery(c, err)
		return
	}
	if req.Hours > service.MaxRecentHours {
		invalidQuery(c, fmt.Errorf("hours must be <= %d", service.MaxRecentHours))
		return
	}

	turns, err := h.turns.RecentTurns(c.Request.Context(), req.Hours, req.Limit)
	if err != nil {
		abortWithError(c, "Failed to get recent conversations", err)
		return
	}
	c.JSON(http.StatusOK, turns)
}
