package service

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Kind 错误类别
type Kind int

const (
	KindValidation Kind = iota + 1 // 请求字段缺失或非法，不重试
	KindNotFound                   // 对话不存在
	KindStorage                    // 存储操作失败
	KindUpstream                   // NLU webhook 失败，只在内部使用
)

// String 返回类别名称
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindStorage:
		return "storage"
	case KindUpstream:
		return "upstream"
	}
	return "unknown"
}

// 用于 errors.Is 判断类别
var (
	ErrValidation = &Error{Kind: KindValidation}
	ErrNotFound   = &Error{Kind: KindNotFound}
	ErrStorage    = &Error{Kind: KindStorage}
)

// Error 服务层错误
type Error struct {
	Kind Kind
	Op   string // 操作名，如 conversation.append
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is 按类别匹配
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Msg == "" && t.Err == nil
}

func validationError(op string, err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &Error{Kind: KindValidation, Op: op, Msg: fmt.Sprintf("%s failed on '%s'", fe.Field(), fe.Tag())}
	}
	return &Error{Kind: KindValidation, Op: op, Msg: "invalid input", Err: err}
}

func invalid(op, msg string) error {
	return &Error{Kind: KindValidation, Op: op, Msg: msg}
}

func notFound(op, id string) error {
	return &Error{Kind: KindNotFound, Op: op, Msg: fmt.Sprintf("conversation %s not found", id)}
}

func storageError(op string, err error) error {
	return &Error{Kind: KindStorage, Op: op, Msg: "storage failure", Err: err}
}
