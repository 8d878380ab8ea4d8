package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMiddleware(t *testing.T) {
	Convey("中间件", t, func() {
		gin.SetMode(gin.TestMode)
		r := gin.New()
		r.Use(Recovery(), RequestID(), Logger(), CORS())
		r.GET("/panic", func(c *gin.Context) { panic("boom") })
		r.GET("/index", func(c *gin.Context) {
			var items []int
			idx := len(c.Query("n")) + 3
			_ = items[idx]
		})
		r.GET("/id", func(c *gin.Context) { c.String(http.StatusOK, c.GetString("request_id")) })

		Convey("panic 返回 50000", func() {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
			So(w.Body.String(), ShouldContainSubstring, `"code":50000`)
		})

		Convey("运行时 panic 的错误信息写入日志", func() {
			var buf bytes.Buffer
			prev := log.Logger
			log.Logger = zerolog.New(&buf)
			defer func() { log.Logger = prev }()

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/index", nil))
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
			So(buf.String(), ShouldContainSubstring, "index out of range")
			So(buf.String(), ShouldNotContainSubstring, `"error":{}`)
		})

		Convey("生成或沿用请求ID", func() {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/id", nil))
			So(w.Body.String(), ShouldNotBeEmpty)
			So(w.Header().Get(RequestIDHeader), ShouldEqual, w.Body.String())

			req := httptest.NewRequest(http.MethodGet, "/id", nil)
			req.Header.Set(RequestIDHeader, "abc")
			w = httptest.NewRecorder()
			r.ServeHTTP(w, req)
			So(w.Body.String(), ShouldEqual, "abc")
		})

		Convey("预检请求直接返回", func() {
			req := httptest.NewRequest(http.MethodOptions, "/id", nil)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			So(w.Code, ShouldEqual, http.StatusNoContent)
			So(w.Header().Get("Access-Control-Allow-Origin"), ShouldEqual, "*")
		})
	})
}
