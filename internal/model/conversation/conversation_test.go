package conversation

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestSummaryOf(t *testing.T) {
	Convey("SummaryOf 折叠消息列表", t, func() {
		Convey("空列表得到零值", func() {
			So(SummaryOf(nil), ShouldResemble, Summary{})
		})

		Convey("取最后一条消息", func() {
			ts := time.Date(2024, 3, 14, 10, 0, 0, 0, time.UTC)
			msgs := []Message{
				{MessageID: "m1", Timestamp: ts.Add(-time.Minute)},
				{MessageID: "m2", Timestamp: ts},
			}
			s := SummaryOf(msgs)
			So(s.TotalMessages, ShouldEqual, 2)
			So(s.LastMessageID, ShouldEqual, "m2")
			So(s.LastMessageTimestamp, ShouldEqual, ts)
		})
	})
}

func TestConversation_Stamp(t *testing.T) {
	Convey("Stamp 为对话和消息赋时间", t, func() {
		base := time.Date(2024, 3, 14, 10, 0, 0, 0, time.UTC)
		ticks := []time.Time{base, base.Add(time.Second), base.Add(-time.Second)}
		i := 0
		clock := func() time.Time {
			t := ticks[i%len(ticks)]
			i++
			return t
		}

		conv := &Conversation{
			Messages: []Message{{MessageID: "m1"}, {MessageID: "m2"}},
		}
		conv.Stamp(clock)

		So(conv.StartedAt, ShouldEqual, base)
		So(conv.Messages[0].Timestamp, ShouldEqual, base.Add(time.Second))
		// 时钟回退时不早于上一条
		So(conv.Messages[1].Timestamp, ShouldEqual, base.Add(time.Second))
		So(conv.UpdatedAt, ShouldEqual, base.Add(time.Second))
		So(conv.Summary.TotalMessages, ShouldEqual, 2)
		So(conv.Summary.LastMessageID, ShouldEqual, "m2")
	})
}

func TestConversation_Push(t *testing.T) {
	Convey("Push 同步 UpdatedAt 与 Summary", t, func() {
		base := time.Date(2024, 3, 14, 10, 0, 0, 0, time.UTC)
		conv := &Conversation{StartedAt: base, UpdatedAt: base}

		conv.Push(Message{MessageID: "m1", Timestamp: base.Add(time.Minute)})
		So(conv.UpdatedAt, ShouldEqual, base.Add(time.Minute))
		So(conv.Summary.TotalMessages, ShouldEqual, 1)

		conv.Push(Message{MessageID: "m2", Timestamp: base.Add(2 * time.Minute)})
		So(conv.Summary, ShouldResemble, Summary{
			TotalMessages:        2,
			LastMessageID:        "m2",
			LastMessageTimestamp: base.Add(2 * time.Minute),
		})
	})
}

func TestConversation_Clone(t *testing.T) {
	Convey("Clone 不共享消息与 metadata", t, func() {
		conv := &Conversation{
			ConversationID: "c1",
			Messages: []Message{
				{MessageID: "m1", Content: "hi", Metadata: map[string]any{"k": "v"}},
			},
		}
		cp := conv.Clone()
		cp.Messages[0].Content = "changed"
		cp.Messages[0].Metadata["k"] = "changed"
		cp.Messages = append(cp.Messages, Message{MessageID: "m2"})

		So(conv.Messages, ShouldHaveLength, 1)
		So(conv.Messages[0].Content, ShouldEqual, "hi")
		So(conv.Messages[0].Metadata["k"], ShouldEqual, "v")

		var nilConv *Conversation
		So(nilConv.Clone(), ShouldBeNil)
	})
}

func TestTurn_Clone(t *testing.T) {
	Convey("Turn.Clone 深拷贝置信度与实体", t, func() {
		c := 0.5
		turn := &Turn{SenderID: "s1", Confidence: &c, Entities: []map[string]any{{"entity": "city"}}}
		cp := turn.Clone()
		*cp.Confidence = 0.9
		cp.Entities[0]["entity"] = "country"

		So(*turn.Confidence, ShouldEqual, 0.5)
		So(turn.Entities[0]["entity"], ShouldEqual, "city")
	})
}

func TestSender_Valid(t *testing.T) {
	Convey("只接受 user 与 ai", t, func() {
		So(SenderUser.Valid(), ShouldBeTrue)
		So(SenderAI.Valid(), ShouldBeTrue)
		So(Sender("bot").Valid(), ShouldBeFalse)
		So(Sender("").Valid(), ShouldBeFalse)
	})
}
