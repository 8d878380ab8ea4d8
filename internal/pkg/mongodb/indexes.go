package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"

	"chatlog/internal/model/conversation"
)

// EnsureIndexes 创建所有模型的索引
// 应用启动时调用，也可以通过 `chatlog indexes` 单独执行
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	models := []Model{
		&conversation.Conversation{},
		&conversation.Turn{},
	}

	return EnsureAllIndexes(ctx, db, models...)
}
