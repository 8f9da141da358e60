package response

import (
	"errors"

	"github.com/couponflow/internal/apperr"
)

// AppError 统一错误包装
type AppError struct {
	Code      int
	ErrorCode string
	Message   string
	Err       error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WrapError 包装错误
func WrapError(code int, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// FromError 按错误类别映射响应码，Code/Message 取链上第一个 *apperr.Error
func FromError(err error) *AppError {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		return &AppError{Code: CodeInternal, ErrorCode: "internal_error", Message: "internal error", Err: err}
	}
	return &AppError{
		Code:      CodeForKind(appErr.Kind),
		ErrorCode: appErr.Code,
		Message:   appErr.Message,
		Err:       err,
	}
}

// CodeForKind 错误类别对应的响应码
func CodeForKind(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return CodeBadRequest
	case apperr.KindNotFound:
		return CodeNotFound
	case apperr.KindConflict, apperr.KindState:
		return CodeConflict
	case apperr.KindCapacity:
		return CodeUnprocessable
	case apperr.KindInfrastructure:
		return CodeServiceUnavailable
	default:
		return CodeInternal
	}
}
