package chat

import (
	"chatlog/internal/service"
)

// Handler 聊天模块处理器
// 对话接口走 ConversationService，旧版扁平记录接口走 TurnService
type Handler struct {
	conversations *service.ConversationService
	turns         *service.TurnService
}

// NewHandler 创建聊天模块处理器
func NewHandler(conversations *service.ConversationService, turns *service.TurnService) *Handler {
	return &Handler{
		conversations: conversations,
		turns:         turns,
	}
}
