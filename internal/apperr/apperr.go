package apperr

import "errors"

// Kind 错误分类
type Kind string

const (
	KindValidation       Kind = "VALIDATION"
	KindNotFound         Kind = "NOT_FOUND"
	KindPermissionDenied Kind = "PERMISSION_DENIED"
	KindConflict         Kind = "CONFLICT"
	KindInternal         Kind = "INTERNAL"
)

// Error 业务错误
// 服务层返回该类型，处理器层统一转换为 {status:"error", message} 响应。
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New 创建业务错误
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap 包装底层错误
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Validation 参数校验错误
func Validation(message string) *Error {
	return New(KindValidation, message)
}

// NotFound 资源不存在
func NotFound(message string) *Error {
	return New(KindNotFound, message)
}

// PermissionDenied 权限不足
func PermissionDenied(message string) *Error {
	return New(KindPermissionDenied, message)
}

// Conflict 状态冲突
func Conflict(message string) *Error {
	return New(KindConflict, message)
}

// Internal 内部错误
func Internal(message string, err error) *Error {
	return Wrap(KindInternal, message, err)
}

// KindOf 提取错误分类，非业务错误一律视为 INTERNAL
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// HTTPStatus 分类对应的HTTP状态码
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return 400
	case KindNotFound:
		return 404
	case KindPermissionDenied:
		return 403
	case KindConflict:
		return 409
	default:
		return 500
	}
}
