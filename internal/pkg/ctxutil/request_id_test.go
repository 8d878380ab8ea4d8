package ctxutil

import (
	"context"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestRequestID(t *testing.T) {
	Convey("请求ID随 context 传递", t, func() {
		So(RequestID(context.Background()), ShouldEqual, "")

		ctx := WithRequestID(context.Background(), "req-1")
		So(RequestID(ctx), ShouldEqual, "req-1")
	})
}
