package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"chatlog/internal/config"
	"chatlog/internal/model/conversation"
)

func testConfig(nluURL string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Host: "127.0.0.1", Port: 5000, Mode: "test"},
		Store:  config.StoreConfig{Type: "memory"},
		NLU: config.NLUConfig{
			BaseURL: nluURL,
			Timeout: 2 * time.Second,
			Assistant: config.AssistantConfig{
				ID:      "test-bot",
				Name:    "Test Bot",
				Version: "2.0",
			},
		},
		Session: config.SessionConfig{Gap: 30 * time.Minute, Timezone: "UTC"},
	}
}

func newNLUServer() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/webhooks/rest/webhook" {
			var req struct {
				Sender  string `json:"sender"`
				Message string `json:"message"`
			}
			_ = json.NewDecoder(r.Body).Decode(&req)
			_ = json.NewEncoder(w).Encode([]map[string]string{
				{"recipient_id": req.Sender, "text": "echo: " + req.Message},
			})
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
}

func request(h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestServer_Routes(t *testing.T) {
	Convey("服务器路由", t, func() {
		nlu := newNLUServer()
		Reset(nlu.Close)

		srv, err := New(context.Background(), testConfig(nlu.URL))
		So(err, ShouldBeNil)
		Reset(func() {
			if srv != nil {
				srv.Close(context.Background())
			}
		})
		engine := srv.Engine()

		Convey("健康检查", func() {
			w := request(engine, http.MethodGet, "/health", nil)
			So(w.Code, ShouldEqual, http.StatusOK)

			w = request(engine, http.MethodGet, "/ready", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "memory")
		})

		Convey("根路径与 /api/v1 共享同一份数据", func() {
			w := request(engine, http.MethodPost, "/conversation", map[string]string{"user_id": "u1", "message": "hi"})
			So(w.Code, ShouldEqual, http.StatusCreated)

			var conv conversation.Conversation
			So(json.Unmarshal(w.Body.Bytes(), &conv), ShouldBeNil)
			So(conv.Participants.AI.AIID, ShouldEqual, "test-bot")
			So(conv.Messages, ShouldHaveLength, 2)
			So(conv.Messages[1].Content, ShouldEqual, "echo: hi")

			w = request(engine, http.MethodPost, "/api/v1/chat/"+conv.ConversationID+"/message", map[string]string{"sender": "user", "content": "again"})
			So(w.Code, ShouldEqual, http.StatusOK)

			w = request(engine, http.MethodGet, "/chat/"+conv.ConversationID, nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(json.Unmarshal(w.Body.Bytes(), &conv), ShouldBeNil)
			So(conv.Messages, ShouldHaveLength, 4)
			So(conv.Messages[3].Content, ShouldEqual, "echo: again")

			w = request(engine, http.MethodGet, "/api/v1/recent-chats?user_id=u1", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, conv.ConversationID)
		})

		Convey("请求ID与跨域头", func() {
			w := request(engine, http.MethodGet, "/health", nil)
			So(w.Header().Get("X-Request-ID"), ShouldNotBeEmpty)

			req := httptest.NewRequest(http.MethodOptions, "/chat", nil)
			req.Header.Set("Origin", "http://localhost:8081")
			req.Header.Set("X-Request-ID", "req-1")
			w = httptest.NewRecorder()
			engine.ServeHTTP(w, req)
			So(w.Code, ShouldEqual, http.StatusNoContent)
			So(w.Header().Get("Access-Control-Allow-Origin"), ShouldEqual, "http://localhost:8081")
			So(w.Header().Get("X-Request-ID"), ShouldEqual, "req-1")
		})

		Convey("未知路由返回 404", func() {
			w := request(engine, http.MethodGet, "/nope", nil)
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestServer_BoltStore(t *testing.T) {
	Convey("使用 bolt 存储启动", t, func() {
		cfg := testConfig("")
		cfg.Store = config.StoreConfig{Type: "bolt", BoltPath: filepath.Join(t.TempDir(), "chatlog.db")}

		srv, err := New(context.Background(), cfg)
		So(err, ShouldBeNil)
		defer srv.Close(context.Background())

		w := request(srv.Engine(), http.MethodPost, "/turns", map[string]string{"sender_id": "s1", "message": "hi"})
		So(w.Code, ShouldEqual, http.StatusCreated)

		w = request(srv.Engine(), http.MethodGet, "/ready", nil)
		So(w.Code, ShouldEqual, http.StatusOK)
		So(w.Body.String(), ShouldContainSubstring, "bolt")
	})
}

func TestServer_InvalidStore(t *testing.T) {
	Convey("未知存储类型创建失败", t, func() {
		cfg := testConfig("")
		cfg.Store.Type = "cassandra"

		_, err := New(context.Background(), cfg)
		So(err, ShouldNotBeNil)
	})
}
