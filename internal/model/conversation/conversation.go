package conversation

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Conversation 多轮对话实体（嵌套消息结构，当前的主存储格式）
// summary 是 messages 的派生视图，任何修改 messages 的操作都必须在同一个原子操作中重算 summary
type Conversation struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`                  // 存储内部ID
	ConversationID string             `bson:"conversation_id" json:"conversation_id"`   // 对话ID（UUID，创建后不可变）
	StartedAt      time.Time          `bson:"started_at" json:"started_at"`             // 开始时间
	UpdatedAt      time.Time          `bson:"updated_at" json:"updated_at"`             // 最后活跃时间，>= StartedAt
	Participants   Participants       `bson:"participants" json:"participants"`         // 参与者
	Metadata       Metadata           `bson:"metadata" json:"metadata"`                 // 会话元数据
	Messages       []Message          `bson:"messages" json:"messages"`                 // 消息列表（按时间顺序，只追加）
	Status         Status             `bson:"status" json:"status"`                     // 状态
	Summary        Summary            `bson:"summary" json:"summary"`                   // 消息摘要（派生字段）
}

// Participants 对话参与者
type Participants struct {
	User UserParticipant `bson:"user" json:"user"`
	AI   AIParticipant   `bson:"ai" json:"ai"`
}

// UserParticipant 用户信息
type UserParticipant struct {
	UserID      string `bson:"user_id" json:"user_id"`
	Username    string `bson:"username" json:"username"`
	DisplayName string `bson:"display_name" json:"display_name"`
}

// AIParticipant 助手信息
type AIParticipant struct {
	AIID    string `bson:"ai_id" json:"ai_id"`
	Name    string `bson:"name" json:"name"`
	Version string `bson:"version" json:"version"`
}

// Metadata 会话元数据
type Metadata struct {
	Platform  string  `bson:"platform" json:"platform"`
	Language  string  `bson:"language" json:"language"`
	SessionID string  `bson:"session_id" json:"session_id"`
	Context   Context `bson:"context" json:"context"`
}

// Context 会话上下文
type Context struct {
	Topic        string `bson:"topic" json:"topic"`
	UserTimezone string `bson:"user_timezone" json:"user_timezone"`
}

// Summary 消息摘要
type Summary struct {
	TotalMessages        int       `bson:"total_messages" json:"total_messages"`
	LastMessageID        string    `bson:"last_message_id" json:"last_message_id"`
	LastMessageTimestamp time.Time `bson:"last_message_timestamp" json:"last_message_timestamp"`
}

// Message 对话中的单条消息
type Message struct {
	MessageID string         `bson:"message_id" json:"message_id"`                 // 消息ID（对话内唯一）
	Sender    Sender         `bson:"sender" json:"sender"`                         // 发送方
	Content   string         `bson:"content" json:"content"`                       // 文本内容
	Timestamp time.Time      `bson:"timestamp" json:"timestamp"`                   // 追加时由存储赋值
	Status    MessageStatus  `bson:"status" json:"status"`                         // 投递状态
	Metadata  map[string]any `bson:"metadata,omitempty" json:"metadata,omitempty"` // 扩展信息（输入设备、响应耗时等）
}

// SummaryOf 对消息列表做折叠，得到摘要
func SummaryOf(messages []Message) Summary {
	if len(messages) == 0 {
		return Summary{}
	}
	last := messages[len(messages)-1]
	return Summary{
		TotalMessages:        len(messages),
		LastMessageID:        last.MessageID,
		LastMessageTimestamp: last.Timestamp,
	}
}

// Push 追加消息并同步 UpdatedAt 与 Summary
// msg.Timestamp 不得早于 UpdatedAt，调用方（存储层）负责保证
func (c *Conversation) Push(msg Message) {
	c.Messages = append(c.Messages, msg)
	if msg.Timestamp.After(c.UpdatedAt) {
		c.UpdatedAt = msg.Timestamp
	}
	c.Summary = SummaryOf(c.Messages)
}

// Clone 深拷贝，存储层返回快照时使用
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	out := *c
	out.Messages = make([]Message, len(c.Messages))
	for i, m := range c.Messages {
		out.Messages[i] = m.Clone()
	}
	return &out
}

// Clone 拷贝消息及其 metadata
func (m Message) Clone() Message {
	if m.Metadata != nil {
		md := make(map[string]any, len(m.Metadata))
		for k, v := range m.Metadata {
			md[k] = v
		}
		m.Metadata = md
	}
	return m
}

// Collection 返回集合名称
func (c *Conversation) Collection() string {
	return "conversations"
}

// EnsureIndexes 创建和维护索引
func (c *Conversation) EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection(c.Collection())
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{bson.E{Key: "conversation_id", Value: 1}},
			Options: options.Index().SetName("idx_conversation_id").SetUnique(true),
		},
		{
			Keys: bson.D{
				bson.E{Key: "participants.user.user_id", Value: 1},
				bson.E{Key: "updated_at", Value: -1},
				bson.E{Key: "_id", Value: -1},
			},
			Options: options.Index().SetName("idx_user_updated"),
		},
	}

	_, err := coll.Indexes().CreateMany(ctx, indexes)
	return err
}

// Now 存储层使用的时钟，截断到毫秒以与 BSON datetime 精度一致
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// Stamp 插入前由存储层调用：为对话与初始消息赋时间，并重算 UpdatedAt 和 Summary
// 消息时间戳按顺序单调不减
func (c *Conversation) Stamp(clock func() time.Time) {
	c.StartedAt = clock()
	c.UpdatedAt = c.StartedAt

	msgs := c.Messages
	c.Messages = make([]Message, 0, len(msgs))
	for _, m := range msgs {
		m.Timestamp = clock()
		if m.Timestamp.Before(c.UpdatedAt) {
			m.Timestamp = c.UpdatedAt
		}
		c.Push(m)
	}
	c.Summary = SummaryOf(c.Messages)
}
