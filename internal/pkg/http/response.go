package http

// 错误码（所有API共用）
const (
	CodeInvalidBody      = 40001 // 请求体无法解析
	CodeValidationFailed = 40002 // 字段校验失败
	CodeInvalidQuery     = 40003 // 查询参数非法
	CodeNotFound         = 40401 // 对话不存在
	CodeInternal         = 50000 // panic
	CodeStorageFailure   = 50001 // 存储操作失败
	CodeStoreUnavailable = 50301 // 存储不可用
)

// ErrorResponse 错误响应（所有API共用）
type ErrorResponse struct {
	Code    int    `json:"code"`             // 错误码（非0表示错误）
	Message string `json:"message"`          // 错误消息
	Detail  string `json:"detail,omitempty"` // 错误详情（可选）
}

// MessageResponse 只带一条消息的成功响应
type MessageResponse struct {
	Message string `json:"message"`
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(code int, message string, detail ...string) *ErrorResponse {
	resp := &ErrorResponse{
		Code:    code,
		Message: message,
	}
	if len(detail) > 0 && detail[0] != "" {
		resp.Detail = detail[0]
	}
	return resp
}
