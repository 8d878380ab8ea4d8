package bolt

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	bolt "go.etcd.io/bbolt"

	"chatlog/internal/model/conversation"
	"chatlog/internal/repository/storetest"
)

func openTemp(t *testing.T) *Store {
	store, err := Open(filepath.Join(t.TempDir(), "data", "chatlog.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return store
}

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) (storetest.Store, func()) {
		store := openTemp(t)
		return store, func() { _ = store.Close() }
	})
}

func TestStore_Reopen(t *testing.T) {
	Convey("关闭后重新打开数据仍在", t, func() {
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "chatlog.db")

		store, err := Open(path)
		So(err, ShouldBeNil)

		conv := storetest.NewConversation("u1", "hi")
		So(store.Create(ctx, conv), ShouldBeNil)
		ok, err := store.AppendMessage(ctx, conv.ConversationID, storetest.NewMessage(conversation.SenderAI, "hello"))
		So(err, ShouldBeNil)
		So(ok, ShouldBeTrue)

		turn := &conversation.Turn{SenderID: "s1", Message: "one", Entities: []map[string]any{{"entity": "city", "value": "Berlin"}}}
		_, err = store.Insert(ctx, turn)
		So(err, ShouldBeNil)
		So(store.Close(), ShouldBeNil)

		reopened, err := Open(path)
		So(err, ShouldBeNil)
		defer reopened.Close()

		So(reopened.Ping(ctx), ShouldBeNil)

		got, err := reopened.FindByID(ctx, conv.ID.Hex())
		So(err, ShouldBeNil)
		So(got.ConversationID, ShouldEqual, conv.ConversationID)
		So(got.Summary.TotalMessages, ShouldEqual, 2)
		So(got.Messages[1].Sender, ShouldEqual, conversation.SenderAI)

		turns, err := reopened.List(ctx, "s1", 10)
		So(err, ShouldBeNil)
		So(turns, ShouldHaveLength, 1)
		So(turns[0].Entities[0]["value"], ShouldEqual, "Berlin")
	})
}

func TestStore_CorruptTurn(t *testing.T) {
	Convey("无法解码的扁平记录返回错误", t, func() {
		ctx := context.Background()
		store := openTemp(t)
		defer store.Close()

		_, err := store.Insert(ctx, &conversation.Turn{SenderID: "s1", Message: "ok"})
		So(err, ShouldBeNil)

		err = store.db.Update(func(tx *bolt.Tx) error {
			return tx.Bucket(bucketTurns).Put([]byte("broken"), []byte("{not json"))
		})
		So(err, ShouldBeNil)

		_, err = store.List(ctx, "", 10)
		So(err, ShouldNotBeNil)
		So(err.Error(), ShouldContainSubstring, "decode turn")

		_, err = store.ListSince(ctx, time.Time{}, 10)
		So(err, ShouldNotBeNil)
	})
}
