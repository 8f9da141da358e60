// Package apperr 定义统一的错误分类
package apperr

import "errors"

// Kind 错误类别
type Kind string

const (
	KindValidation     Kind = "validation"
	KindNotFound       Kind = "not_found"
	KindConflict       Kind = "conflict"
	KindCapacity       Kind = "capacity"
	KindState          Kind = "state"
	KindInfrastructure Kind = "infrastructure"
	KindUnknown        Kind = "unknown"
)

// Error 带类别的业务错误
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is 同码即匹配哨兵错误，哨兵需不带底层错误
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Err != nil || t.Code == "" {
		return false
	}
	return e.Code == t.Code
}

// New 创建错误（通常作为包级哨兵错误）
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap 以指定类别包装底层错误
func Wrap(kind Kind, code string, err error) *Error {
	return &Error{Kind: kind, Code: code, Message: code, Err: err}
}

// KindOf 返回错误链中第一个 *Error 的类别
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnknown
}

// IsKind 判断错误链是否属于指定类别
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// CodeOf 返回错误码，非 *Error 返回空串
func CodeOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}
