package conversation

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Turn 旧版扁平对话记录：一条记录对应一次用户消息与机器人回复
// 只插入不修改，新的创建流程不再写入
type Turn struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SenderID   string             `bson:"sender_id" json:"sender_id"`
	Message    string             `bson:"message" json:"message"`
	Intent     string             `bson:"intent,omitempty" json:"intent,omitempty"`
	Confidence *float64           `bson:"confidence,omitempty" json:"confidence,omitempty"` // [0,1]
	Entities   []map[string]any   `bson:"entities" json:"entities"`
	Response   string             `bson:"response,omitempty" json:"response,omitempty"`
	Timestamp  time.Time          `bson:"timestamp" json:"timestamp"` // 插入时由存储赋值
}

// Clone 深拷贝
func (t *Turn) Clone() *Turn {
	if t == nil {
		return nil
	}
	out := *t
	if t.Confidence != nil {
		c := *t.Confidence
		out.Confidence = &c
	}
	if t.Entities != nil {
		out.Entities = make([]map[string]any, len(t.Entities))
		for i, e := range t.Entities {
			m := make(map[string]any, len(e))
			for k, v := range e {
				m[k] = v
			}
			out.Entities[i] = m
		}
	}
	return &out
}

// Collection 返回集合名称
func (t *Turn) Collection() string {
	return "turns"
}

// EnsureIndexes 创建和维护索引
func (t *Turn) EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection(t.Collection())
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{bson.E{Key: "sender_id", Value: 1}, bson.E{Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_sender_timestamp"),
		},
		{
			Keys:    bson.D{bson.E{Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_timestamp"),
		},
	}

	_, err := coll.Indexes().CreateMany(ctx, indexes)
	return err
}
