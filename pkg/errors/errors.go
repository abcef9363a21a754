// Package errors 统一错误辅助：哨兵错误与包装函数，pkg 与 internal 共用
package errors

import (
	"errors"
	"fmt"
)

// 哨兵错误
var (
	ErrNotFound    = errors.New("not found")
	ErrInvalidArg  = errors.New("invalid argument")
	ErrUnavailable = errors.New("unavailable")
)

// Wrap 包装错误并附加消息，err 为 nil 时返回 nil
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf 带格式的 Wrap
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// InvalidArgf 构造一个可用 errors.Is(err, ErrInvalidArg) 识别的参数错误
func InvalidArgf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidArg, fmt.Sprintf(format, args...))
}

// Is 透传标准库 errors.Is，调用方无需再引入标准库 errors
func Is(err, target error) bool { return errors.Is(err, target) }

// As 透传标准库 errors.As
func As(err error, target interface{}) bool { return errors.As(err, target) }
