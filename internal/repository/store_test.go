package repository

import (
	"math"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"chatlog/internal/model/conversation"
)

func TestPaginate(t *testing.T) {
	Convey("Paginate 截取指定页", t, func() {
		items := []int{1, 2, 3, 4, 5}

		So(Paginate(items, 1, 2), ShouldResemble, []int{1, 2})
		So(Paginate(items, 3, 2), ShouldResemble, []int{5})
		So(Paginate(items, 4, 2), ShouldBeEmpty)
		So(Paginate(items, 0, 2), ShouldBeEmpty)
		So(Paginate(items, 1, 0), ShouldBeEmpty)
		So(Paginate(items, 1, 100), ShouldResemble, items)
	})

	Convey("页码过大导致偏移溢出时返回空", t, func() {
		items := []int{1, 2, 3}

		So(Paginate(items, math.MaxInt64, 100), ShouldBeEmpty)
		So(Paginate(items, math.MaxInt64/2, 3), ShouldBeEmpty)
	})
}

func TestOffset(t *testing.T) {
	Convey("Offset 计算起始偏移", t, func() {
		off, ok := Offset(3, 10)
		So(ok, ShouldBeTrue)
		So(off, ShouldEqual, 20)

		_, ok = Offset(0, 10)
		So(ok, ShouldBeFalse)

		_, ok = Offset(1, 0)
		So(ok, ShouldBeFalse)

		off, ok = Offset(math.MaxInt64/100+1, 100)
		So(ok, ShouldBeTrue)
		So(off, ShouldEqual, math.MaxInt64/100*100)

		_, ok = Offset(math.MaxInt64, 100)
		So(ok, ShouldBeFalse)
	})
}

func TestSortByActivity(t *testing.T) {
	Convey("SortByActivity 按 updated_at 倒序，相同时按 _id 倒序", t, func() {
		base := time.Date(2024, 3, 14, 10, 0, 0, 0, time.UTC)
		older := primitive.NewObjectIDFromTimestamp(base.Add(-time.Hour))
		newer := primitive.NewObjectIDFromTimestamp(base)

		convs := []*conversation.Conversation{
			{ConversationID: "a", ID: older, UpdatedAt: base},
			{ConversationID: "b", ID: newer, UpdatedAt: base.Add(-time.Minute)},
			{ConversationID: "c", ID: newer, UpdatedAt: base},
		}
		SortByActivity(convs)

		order := []string{convs[0].ConversationID, convs[1].ConversationID, convs[2].ConversationID}
		So(order, ShouldResemble, []string{"c", "a", "b"})
	})
}

func TestSortTurnsNewestFirst(t *testing.T) {
	Convey("SortTurnsNewestFirst 按 timestamp 倒序", t, func() {
		base := time.Date(2024, 3, 14, 10, 0, 0, 0, time.UTC)
		turns := []*conversation.Turn{
			{Message: "old", Timestamp: base.Add(-time.Hour)},
			{Message: "new", Timestamp: base},
			{Message: "mid", Timestamp: base.Add(-time.Minute)},
		}
		SortTurnsNewestFirst(turns)

		So(turns[0].Message, ShouldEqual, "new")
		So(turns[1].Message, ShouldEqual, "mid")
		So(turns[2].Message, ShouldEqual, "old")
	})
}
