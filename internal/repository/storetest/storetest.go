// Package storetest 存储实现的通用契约测试
// 内存、bbolt 与 MongoDB 实现共用同一套用例
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"chatlog/internal/model/conversation"
	"chatlog/internal/pkg/id"
	"chatlog/internal/repository"
)

// Store 同时实现对话与扁平记录存储
type Store interface {
	repository.ConversationStore
	repository.TurnStore
}

// Factory 创建一个空存储，返回清理函数
type Factory func(t *testing.T) (Store, func())

// NewConversation 构造一个带一条用户消息的对话
func NewConversation(userID, content string) *conversation.Conversation {
	return &conversation.Conversation{
		ConversationID: id.New(),
		Participants: conversation.Participants{
			User: conversation.UserParticipant{UserID: userID, Username: userID},
			AI:   conversation.AIParticipant{AIID: "rasa-assistant", Name: "Assistant", Version: "1.0"},
		},
		Metadata: conversation.Metadata{Platform: "mobile", Language: "en", SessionID: id.New()},
		Messages: []conversation.Message{
			NewMessage(conversation.SenderUser, content),
		},
		Status: conversation.StatusActive,
	}
}

// NewMessage 构造一条消息，时间戳由存储赋值
func NewMessage(sender conversation.Sender, content string) conversation.Message {
	return conversation.Message{
		MessageID: id.New(),
		Sender:    sender,
		Content:   content,
		Status:    conversation.MessageStatusDelivered,
		Metadata:  map[string]any{},
	}
}

// Run 执行全部契约用例
func Run(t *testing.T, newStore Factory) {
	ctx := context.Background()

	Convey("对话存储", t, func() {
		store, cleanup := newStore(t)
		Reset(cleanup)

		Convey("Create 赋值时间戳并计算摘要", func() {
			conv := NewConversation("u1", "hi")
			conv.Messages = append(conv.Messages, NewMessage(conversation.SenderAI, "hello"))
			So(store.Create(ctx, conv), ShouldBeNil)
			So(conv.ID.IsZero(), ShouldBeFalse)

			got, err := store.FindByID(ctx, conv.ConversationID)
			So(err, ShouldBeNil)
			So(got.StartedAt.IsZero(), ShouldBeFalse)
			So(got.UpdatedAt.Before(got.StartedAt), ShouldBeFalse)
			So(got.Messages, ShouldHaveLength, 2)
			So(got.Messages[1].Timestamp.Before(got.Messages[0].Timestamp), ShouldBeFalse)
			So(got.Summary.TotalMessages, ShouldEqual, 2)
			So(got.Summary.LastMessageID, ShouldEqual, conv.Messages[1].MessageID)
			So(got.Summary.LastMessageTimestamp.Equal(got.Messages[1].Timestamp), ShouldBeTrue)
		})

		Convey("重复的 conversation_id 创建失败", func() {
			conv := NewConversation("u1", "hi")
			So(store.Create(ctx, conv), ShouldBeNil)

			dup := NewConversation("u1", "again")
			dup.ConversationID = conv.ConversationID
			So(store.Create(ctx, dup), ShouldNotBeNil)
		})

		Convey("FindByID 支持内部ID回退", func() {
			conv := NewConversation("u1", "hi")
			So(store.Create(ctx, conv), ShouldBeNil)

			got, err := store.FindByID(ctx, conv.ID.Hex())
			So(err, ShouldBeNil)
			So(got.ConversationID, ShouldEqual, conv.ConversationID)

			_, err = store.FindByID(ctx, id.New())
			So(err, ShouldEqual, repository.ErrNotFound)

			_, err = store.FindByID(ctx, "not-an-object-id")
			So(err, ShouldEqual, repository.ErrNotFound)
		})

		Convey("AppendMessage 追加消息并刷新摘要", func() {
			conv := NewConversation("u1", "hi")
			So(store.Create(ctx, conv), ShouldBeNil)
			before, _ := store.FindByID(ctx, conv.ConversationID)

			msg := NewMessage(conversation.SenderUser, "$set looks like an operator")
			msg.Metadata = map[string]any{"input": "keyboard"}
			ok, err := store.AppendMessage(ctx, conv.ConversationID, msg)
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)

			got, err := store.FindByID(ctx, conv.ConversationID)
			So(err, ShouldBeNil)
			So(got.Messages, ShouldHaveLength, 2)
			So(got.Messages[1].Content, ShouldEqual, "$set looks like an operator")
			So(got.Messages[1].Metadata["input"], ShouldEqual, "keyboard")
			So(got.Summary.TotalMessages, ShouldEqual, 2)
			So(got.Summary.LastMessageID, ShouldEqual, msg.MessageID)
			So(got.UpdatedAt.Before(before.UpdatedAt), ShouldBeFalse)
			So(got.UpdatedAt.Before(got.StartedAt), ShouldBeFalse)
			So(got.Messages[1].Timestamp.Before(got.Messages[0].Timestamp), ShouldBeFalse)
		})

		Convey("AppendMessage 对不存在的对话返回 false", func() {
			ok, err := store.AppendMessage(ctx, id.New(), NewMessage(conversation.SenderUser, "x"))
			So(err, ShouldBeNil)
			So(ok, ShouldBeFalse)
		})

		Convey("并发追加不丢消息", func() {
			conv := NewConversation("u1", "hi")
			So(store.Create(ctx, conv), ShouldBeNil)

			const n = 20
			var wg sync.WaitGroup
			errs := make(chan error, n)
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					ok, err := store.AppendMessage(ctx, conv.ConversationID, NewMessage(conversation.SenderUser, fmt.Sprintf("m%d", i)))
					if err == nil && !ok {
						err = fmt.Errorf("append %d: conversation not found", i)
					}
					errs <- err
				}(i)
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				So(err, ShouldBeNil)
			}

			got, err := store.FindByID(ctx, conv.ConversationID)
			So(err, ShouldBeNil)
			So(got.Messages, ShouldHaveLength, n+1)
			So(got.Summary.TotalMessages, ShouldEqual, n+1)
			So(got.Summary.LastMessageID, ShouldEqual, got.Messages[n].MessageID)

			seen := make(map[string]bool)
			for i, m := range got.Messages {
				So(seen[m.MessageID], ShouldBeFalse)
				seen[m.MessageID] = true
				if i > 0 {
					So(m.Timestamp.Before(got.Messages[i-1].Timestamp), ShouldBeFalse)
				}
			}
		})

		Convey("ListByUserID 按活跃时间倒序分页", func() {
			created := make([]*conversation.Conversation, 0, 5)
			for i := 0; i < 5; i++ {
				conv := NewConversation("alice", fmt.Sprintf("c%d", i))
				So(store.Create(ctx, conv), ShouldBeNil)
				created = append(created, conv)
			}
			So(store.Create(ctx, NewConversation("bob", "other")), ShouldBeNil)

			all, total, err := store.ListByUserID(ctx, "alice", 1, 100)
			So(err, ShouldBeNil)
			So(total, ShouldEqual, 5)
			So(all, ShouldHaveLength, 5)
			for i := 1; i < len(all); i++ {
				So(all[i].UpdatedAt.After(all[i-1].UpdatedAt), ShouldBeFalse)
			}

			Convey("分页拼接等于完整列表", func() {
				paged := make([]string, 0, 5)
				for page := int64(1); page <= 3; page++ {
					items, total, err := store.ListByUserID(ctx, "alice", page, 2)
					So(err, ShouldBeNil)
					So(total, ShouldEqual, 5)
					for _, c := range items {
						paged = append(paged, c.ConversationID)
					}
				}
				want := make([]string, 0, 5)
				for _, c := range all {
					want = append(want, c.ConversationID)
				}
				So(paged, ShouldResemble, want)

				items, _, err := store.ListByUserID(ctx, "alice", 4, 2)
				So(err, ShouldBeNil)
				So(items, ShouldBeEmpty)
			})

			Convey("追加消息后对话排到最前", func() {
				oldest := created[0]
				time.Sleep(2 * time.Millisecond)
				ok, err := store.AppendMessage(ctx, oldest.ConversationID, NewMessage(conversation.SenderUser, "bump"))
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)

				items, _, err := store.ListByUserID(ctx, "alice", 1, 1)
				So(err, ShouldBeNil)
				So(items, ShouldHaveLength, 1)
				So(items[0].ConversationID, ShouldEqual, oldest.ConversationID)
			})

			Convey("未知用户返回空列表", func() {
				items, total, err := store.ListByUserID(ctx, "nobody", 1, 10)
				So(err, ShouldBeNil)
				So(total, ShouldEqual, 0)
				So(items, ShouldBeEmpty)
			})
		})

		Convey("返回的对话是快照", func() {
			conv := NewConversation("u1", "hi")
			So(store.Create(ctx, conv), ShouldBeNil)

			got, _ := store.FindByID(ctx, conv.ConversationID)
			got.Messages[0].Content = "mutated"

			again, _ := store.FindByID(ctx, conv.ConversationID)
			So(again.Messages[0].Content, ShouldEqual, "hi")
		})
	})

	Convey("扁平记录存储", t, func() {
		store, cleanup := newStore(t)
		Reset(cleanup)

		confidence := 0.93
		insert := func(sender, message string) *conversation.Turn {
			turn := &conversation.Turn{
				SenderID:   sender,
				Message:    message,
				Intent:     "greet",
				Confidence: &confidence,
				Response:   "Hey!",
			}
			turnID, err := store.Insert(ctx, turn)
			So(err, ShouldBeNil)
			So(turnID, ShouldEqual, turn.ID)
			return turn
		}

		Convey("Insert 赋值ID与时间戳", func() {
			turn := insert("s1", "hello")
			So(turn.ID.IsZero(), ShouldBeFalse)
			So(turn.Timestamp.IsZero(), ShouldBeFalse)
			So(turn.Entities, ShouldNotBeNil)
		})

		Convey("List 按时间倒序并按发送者过滤", func() {
			first := insert("s1", "one")
			insert("s2", "other")
			last := insert("s1", "two")

			turns, err := store.List(ctx, "s1", 10)
			So(err, ShouldBeNil)
			So(turns, ShouldHaveLength, 2)
			So(turns[0].ID, ShouldEqual, last.ID)
			So(turns[1].ID, ShouldEqual, first.ID)
			So(*turns[0].Confidence, ShouldEqual, confidence)
			So(turns[1].Timestamp.After(turns[0].Timestamp), ShouldBeFalse)

			all, err := store.List(ctx, "", 10)
			So(err, ShouldBeNil)
			So(all, ShouldHaveLength, 3)

			limited, err := store.List(ctx, "", 1)
			So(err, ShouldBeNil)
			So(limited, ShouldHaveLength, 1)
			So(limited[0].ID, ShouldEqual, last.ID)
		})

		Convey("ListSince 只返回时间窗口内的记录", func() {
			insert("s1", "one")
			insert("s1", "two")

			recent, err := store.ListSince(ctx, time.Now().Add(-time.Hour), 10)
			So(err, ShouldBeNil)
			So(recent, ShouldHaveLength, 2)

			future, err := store.ListSince(ctx, time.Now().Add(time.Hour), 10)
			So(err, ShouldBeNil)
			So(future, ShouldBeEmpty)
		})
	})
}
