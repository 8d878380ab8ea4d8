package nlu

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestNewClient(t *testing.T) {
	Convey("NewClient 校验地址", t, func() {
		_, err := NewClient(Config{})
		So(err, ShouldNotBeNil)

		_, err = NewClient(Config{BaseURL: "not a url"})
		So(err, ShouldNotBeNil)

		c, err := NewClient(Config{BaseURL: "http://localhost:5005/"})
		So(err, ShouldBeNil)
		So(c.baseURL, ShouldEqual, "http://localhost:5005")
		So(c.httpClient.Timeout, ShouldEqual, DefaultTimeout)
	})
}

func TestClient_Reply(t *testing.T) {
	Convey("Reply 调用 REST webhook", t, func() {
		var gotPath string
		var gotBody map[string]string
		status := http.StatusOK
		payload := `[{"recipient_id":"u1","text":"Hello!"},{"recipient_id":"u1","image":"http://x/cat.png"},{"recipient_id":"u1","text":"How can I help?"}]`

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			_ = json.NewDecoder(r.Body).Decode(&gotBody)
			w.WriteHeader(status)
			_, _ = w.Write([]byte(payload))
		}))
		defer srv.Close()

		c, err := NewClient(Config{BaseURL: srv.URL})
		So(err, ShouldBeNil)
		ctx := context.Background()

		Convey("合并所有文本回复", func() {
			text, err := c.Reply(ctx, "u1", "hi")
			So(err, ShouldBeNil)
			So(text, ShouldEqual, "Hello!\nHow can I help?")
			So(gotPath, ShouldEqual, "/webhooks/rest/webhook")
			So(gotBody, ShouldResemble, map[string]string{"sender": "u1", "message": "hi"})
		})

		Convey("没有文本回复返回 ErrEmptyReply", func() {
			payload = `[]`
			_, err := c.Reply(ctx, "u1", "hi")
			So(err, ShouldEqual, ErrEmptyReply)
		})

		Convey("非2xx返回错误", func() {
			status = http.StatusInternalServerError
			payload = strings.Repeat("x", 1000)
			_, err := c.Reply(ctx, "u1", "hi")
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "status 500")
			So(len(err.Error()), ShouldBeLessThan, 400)
		})

		Convey("响应不是JSON返回错误", func() {
			payload = `<html>`
			_, err := c.Reply(ctx, "u1", "hi")
			So(err, ShouldNotBeNil)
		})
	})
}

func TestClient_Timeout(t *testing.T) {
	Convey("超时返回错误", t, func() {
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer srv.Close()
		defer close(release)

		c, err := NewClient(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
		So(err, ShouldBeNil)

		start := time.Now()
		_, err = c.Reply(context.Background(), "u1", "hi")
		So(err, ShouldNotBeNil)
		So(time.Since(start), ShouldBeLessThan, 5*time.Second)
	})
}

func TestClient_Restart(t *testing.T) {
	Convey("Restart 发送 restart 事件", t, func() {
		var gotPath string
		var gotBody map[string]string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.EscapedPath()
			_ = json.NewDecoder(r.Body).Decode(&gotBody)
			_, _ = w.Write([]byte(`{"sender_id":"user 1","events":[]}`))
		}))
		defer srv.Close()

		c, err := NewClient(Config{BaseURL: srv.URL})
		So(err, ShouldBeNil)

		So(c.Restart(context.Background(), "user 1"), ShouldBeNil)
		So(gotPath, ShouldEqual, "/conversations/user%201/tracker/events")
		So(gotBody["event"], ShouldEqual, "restart")
	})
}

func TestJoinText(t *testing.T) {
	Convey("JoinText 忽略空白文本", t, func() {
		So(JoinText(nil), ShouldEqual, "")
		So(JoinText([]BotMessage{{Text: "  "}, {Text: "a"}, {Image: "x"}, {Text: " b "}}), ShouldEqual, "a\nb")
	})
}
