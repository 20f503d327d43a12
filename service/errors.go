package service

import (
	"errors"
	"fmt"
)

// Kind 错误类别，对外以机器可读的错误码返回
type Kind string

const (
	KindValidation   Kind = "VALIDATION_ERROR"
	KindInvalidState Kind = "INVALID_STATE"
	KindInUse        Kind = "IN_USE"
	KindInvalidToken Kind = "INVALID_TOKEN"
	KindUnauthorized Kind = "UNAUTHORIZED"
	KindForbidden    Kind = "FORBIDDEN"
	KindNotFound     Kind = "NOT_FOUND"
	KindConflict     Kind = "CONFLICT"
	KindServer       Kind = "SERVER_ERROR"
)

// Error 业务错误，Message 可直接展示给用户
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind Kind, format string, args ...any) *Error {
	if len(args) > 0 {
		return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
	}
	return &Error{Kind: kind, Message: format}
}

func Validation(format string, args ...any) error   { return newError(KindValidation, format, args...) }
func InvalidState(format string, args ...any) error { return newError(KindInvalidState, format, args...) }
func InUse(format string, args ...any) error        { return newError(KindInUse, format, args...) }
func InvalidToken(format string, args ...any) error { return newError(KindInvalidToken, format, args...) }
func Unauthorized(format string, args ...any) error { return newError(KindUnauthorized, format, args...) }
func Forbidden(format string, args ...any) error    { return newError(KindForbidden, format, args...) }
func NotFound(format string, args ...any) error     { return newError(KindNotFound, format, args...) }
func Conflict(format string, args ...any) error     { return newError(KindConflict, format, args...) }

// KindOf 非业务错误一律视为服务器错误
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindServer
}

// IsKind 判断错误类别
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
