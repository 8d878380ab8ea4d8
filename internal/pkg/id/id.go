package id

import (
	"github.com/google/uuid"
)

// New 生成对话、消息与会话使用的 UUID v4
func New() string {
	return uuid.New().String()
}
