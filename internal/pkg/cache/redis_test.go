package cache

import (
	"context"
	"os"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"chatlog/internal/config"
	"chatlog/internal/model/conversation"
)

func TestConversationCacheKey(t *testing.T) {
	Convey("对话缓存 key", t, func() {
		So(ConversationCacheKey("abc"), ShouldEqual, "conv:abc")
	})
}

// 运行：REDIS_ADDR=localhost:6379 go test ./internal/pkg/cache
func TestRedisCache_Conversation(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR 未设置，跳过 Redis 测试")
	}

	Convey("对话缓存读写与失效", t, func() {
		c, err := NewRedisCache(&config.RedisConfig{Addr: addr, DB: 15, CacheTTL: time.Minute})
		So(err, ShouldBeNil)
		defer c.Close()

		ctx := context.Background()
		id := "test-" + time.Now().Format("150405.000000")
		conv := &conversation.Conversation{ConversationID: id, Status: conversation.StatusActive}

		_, err = c.GetConversation(ctx, id)
		So(err, ShouldEqual, ErrMiss)

		So(c.SetConversation(ctx, id, conv), ShouldBeNil)
		got, err := c.GetConversation(ctx, id)
		So(err, ShouldBeNil)
		So(got.ConversationID, ShouldEqual, id)

		So(c.InvalidateConversation(ctx, id, ""), ShouldBeNil)
		_, err = c.GetConversation(ctx, id)
		So(err, ShouldEqual, ErrMiss)
	})
}
