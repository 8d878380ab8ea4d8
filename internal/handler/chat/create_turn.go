package chat

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chatlog/internal/service"
)

// CreateTurnResponse 插入记录响应
type CreateTurnResponse struct {
	ID string `json:"id"`
}

// CreateTurn 插入一条扁平记录
// @Summary      插入记录
// @Description  NLU action server 写入一轮对话（用户消息、意图、置信度、实体与回复）
// @Tags         聊天历史
// @Accept       json
// @Produce      json
// @Param        request  body      service.InsertTurnInput  true  "记录"
// @Success      201      {object}  CreateTurnResponse
// @Failure      400      {object}  ErrorResponse  "请求参数错误"
// @Failure      500      {object}  ErrorResponse  "服务器内部错误"
// @Router       /turns [post]
func (h *Handler) CreateTurn(c *gin.Context) {
	var req service.InsertTurnInput
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c, err)
		return
	}

	turnID, err := h.turns.InsertTurn(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, "Failed to store turn", err)
		return
	}
	c.JSON(http.StatusCreated, CreateTurnResponse{ID: turnID.Hex()})
}
