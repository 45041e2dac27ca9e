package util

import (
	"errors"
	"fmt"
)

// 错误类别，供边界层（HTTP）映射为状态码
var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrBadRequest = errors.New("bad request")
	ErrValidation = errors.New("validation error")
)

// AppError 携带错误类别和可读原因
type AppError struct {
	Kind    error
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap 同时暴露类别和底层错误，errors.Is 对两者都生效
func (e *AppError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

func NotFoundError(format string, args ...any) *AppError {
	return &AppError{Kind: ErrNotFound, Message: fmt.Sprintf(format, args...)}
}

func ConflictError(format string, args ...any) *AppError {
	return &AppError{Kind: ErrConflict, Message: fmt.Sprintf(format, args...)}
}

func BadRequestError(format string, args ...any) *AppError {
	return &AppError{Kind: ErrBadRequest, Message: fmt.Sprintf(format, args...)}
}

func ValidationError(format string, args ...any) *AppError {
	return &AppError{Kind: ErrValidation, Message: fmt.Sprintf(format, args...)}
}

// WrapBadRequest 把持久化失败包装为 BadRequest
func WrapBadRequest(err error, message string) *AppError {
	return &AppError{Kind: ErrBadRequest, Message: message, Err: err}
}

// KindOf 返回错误类别，无法识别时返回 nil
func KindOf(err error) error {
	for _, kind := range []error{ErrNotFound, ErrConflict, ErrBadRequest, ErrValidation} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// Message 返回面向调用方的原因描述
func Message(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}
