// Package core предоставляет систему ошибок и базовые generic типы.
package core

import (
	"fmt"
	"runtime"
	"strings"
)

// Коды ошибок
const (
	CodeNotFound        = "NOT_FOUND"
	CodeAlreadyExists   = "ALREADY_EXISTS"
	CodeInvalidArgument = "INVALID_ARGUMENT"
	CodeAmbiguousMatch  = "AMBIGUOUS_MATCH"
	CodeLimitExceeded   = "LIMIT_EXCEEDED"
	CodeInvalidConfig   = "INVALID_CONFIG"
)

// Sentinel-ошибки для сравнения через errors.Is (сравнение идет по коду)
var (
	ErrInvalidArgument = &FrameworkError{Code: CodeInvalidArgument}
	ErrNotFound        = &FrameworkError{Code: CodeNotFound}
	ErrAmbiguousMatch  = &FrameworkError{Code: CodeAmbiguousMatch}
	ErrLimitExceeded   = &FrameworkError{Code: CodeLimitExceeded}
	ErrAlreadyExists   = &FrameworkError{Code: CodeAlreadyExists}
	ErrInvalidConfig   = &FrameworkError{Code: CodeInvalidConfig}
)

// FrameworkError базовый тип ошибки
type FrameworkError struct {
	Code       string
	Message    string
	Cause      error
	StackTrace string
}

// Error реализует интерфейс error
func (e *FrameworkError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap возвращает причину ошибки
func (e *FrameworkError) Unwrap() error {
	return e.Cause
}

// Is проверяет, соответствует ли ошибка коду
func (e *FrameworkError) Is(target error) bool {
	if t, ok := target.(*FrameworkError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithContext добавляет контекст к ошибке
func (e *FrameworkError) WithContext(context string) *FrameworkError {
	return &FrameworkError{
		Code:       e.Code,
		Message:    fmt.Sprintf("%s: %s", context, e.Message),
		Cause:      e.Cause,
		StackTrace: e.StackTrace,
	}
}

// NewError создает новую ошибку
func NewError(code, message string) *FrameworkError {
	return &FrameworkError{
		Code:       code,
		Message:    message,
		StackTrace: captureStackTrace(),
	}
}

// Errorf создает ошибку с форматированным сообщением
func Errorf(code, format string, args ...interface{}) *FrameworkError {
	return NewError(code, fmt.Sprintf(format, args...))
}

// Wrap оборачивает существующую ошибку
func Wrap(err error, code, message string) *FrameworkError {
	if err == nil {
		return nil
	}
	return &FrameworkError{
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: captureStackTrace(),
	}
}

// InvalidArgument ошибка невалидного аргумента (nil item, пустой id)
func InvalidArgument(name, reason string) *FrameworkError {
	return Errorf(CodeInvalidArgument, "invalid argument %q: %s", name, reason)
}

// captureStackTrace захватывает stack trace
func captureStackTrace() string {
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	stack := string(buf[:n])

	// Убираем строки самой captureStackTrace и вызывающего конструктора
	lines := strings.Split(stack, "\n")
	if len(lines) > 4 {
		lines = lines[4:]
	}
	return strings.Join(lines, "\n")
}
