package memory

import (
	"context"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"chatlog/internal/model/conversation"
	"chatlog/internal/repository/storetest"
)

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) (storetest.Store, func()) {
		return New(), func() {}
	})
}

func TestStore_ClockSkew(t *testing.T) {
	Convey("时钟回拨时时间戳仍单调不减", t, func() {
		ctx := context.Background()
		base := time.Date(2024, 3, 14, 10, 0, 0, 0, time.UTC)
		now := base
		store := NewWithClock(func() time.Time { return now })

		conv := storetest.NewConversation("u1", "hi")
		So(store.Create(ctx, conv), ShouldBeNil)
		So(conv.StartedAt, ShouldEqual, base)

		now = base.Add(-time.Minute)
		ok, err := store.AppendMessage(ctx, conv.ConversationID, storetest.NewMessage(conversation.SenderAI, "hello"))
		So(err, ShouldBeNil)
		So(ok, ShouldBeTrue)

		got, err := store.FindByID(ctx, conv.ConversationID)
		So(err, ShouldBeNil)
		So(got.Messages[1].Timestamp, ShouldEqual, base)
		So(got.UpdatedAt, ShouldEqual, base)

		Convey("同一发送者的扁平记录也不回退", func() {
			now = base
			first := &conversation.Turn{SenderID: "s1", Message: "one"}
			_, err := store.Insert(ctx, first)
			So(err, ShouldBeNil)

			now = base.Add(-time.Hour)
			second := &conversation.Turn{SenderID: "s1", Message: "two"}
			_, err = store.Insert(ctx, second)
			So(err, ShouldBeNil)
			So(second.Timestamp, ShouldEqual, first.Timestamp)

			other := &conversation.Turn{SenderID: "s2", Message: "three"}
			_, err = store.Insert(ctx, other)
			So(err, ShouldBeNil)
			So(other.Timestamp, ShouldEqual, base.Add(-time.Hour))
		})
	})
}

func TestStore_CanceledContext(t *testing.T) {
	Convey("context 取消后操作直接返回错误", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		store := New()
		So(store.Ping(ctx), ShouldEqual, context.Canceled)
		So(store.Create(ctx, storetest.NewConversation("u1", "hi")), ShouldEqual, context.Canceled)

		_, err := store.List(ctx, "", 10)
		So(err, ShouldEqual, context.Canceled)
	})
}
