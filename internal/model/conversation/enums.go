package conversation

// Status 对话状态
// 当前逻辑只会产生 active，closed/archived 预留
type Status string

const (
	StatusActive   Status = "active"   // 进行中
	StatusClosed   Status = "closed"   // 已关闭
	StatusArchived Status = "archived" // 已归档
)

// String 返回状态的字符串表示
func (s Status) String() string {
	return string(s)
}

// Sender 消息发送方
type Sender string

const (
	SenderUser Sender = "user" // 用户
	SenderAI   Sender = "ai"   // 助手
)

// String 返回发送方的字符串表示
func (s Sender) String() string {
	return string(s)
}

// Valid 是否为已知发送方
func (s Sender) Valid() bool {
	switch s {
	case SenderUser, SenderAI:
		return true
	}
	return false
}

// MessageStatus 消息投递状态
type MessageStatus string

const (
	MessageStatusDelivered MessageStatus = "delivered" // 已送达
	MessageStatusPending   MessageStatus = "pending"   // 预留
	MessageStatusFailed    MessageStatus = "failed"    // 预留
)

// String 返回状态的字符串表示
func (s MessageStatus) String() string {
	return string(s)
}
