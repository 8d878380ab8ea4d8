package repository_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"chatlog/internal/pkg/mongodb"
	"chatlog/internal/repository"
	"chatlog/internal/repository/storetest"
)

type mongoStore struct {
	*repository.ConversationRepo
	*repository.TurnRepo
}

// 运行：MONGO_URI=mongodb://localhost:27017 go test ./internal/repository -run Mongo
func TestMongoStoreContract(t *testing.T) {
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI 未设置，跳过 MongoDB 测试")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		t.Fatalf("connect mongodb: %v", err)
	}
	defer func() { _ = client.Disconnect(context.Background()) }()

	if err := client.Ping(ctx, nil); err != nil {
		t.Skipf("MongoDB 不可用: %v", err)
	}

	seq := 0
	storetest.Run(t, func(t *testing.T) (storetest.Store, func()) {
		seq++
		db := client.Database(fmt.Sprintf("chatlog_test_%d_%d", time.Now().UnixNano(), seq))
		if err := mongodb.EnsureIndexes(context.Background(), db); err != nil {
			t.Fatalf("EnsureIndexes() error = %v", err)
		}

		store := mongoStore{
			ConversationRepo: repository.NewConversationRepo(db),
			TurnRepo:         repository.NewTurnRepo(db),
		}
		return store, func() { _ = db.Drop(context.Background()) }
	})
}
