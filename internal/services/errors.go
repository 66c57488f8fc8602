package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrAlreadyMember       = errors.New("already a member of this group")
	ErrForbidden           = errors.New("forbidden")
	ErrUsernameTaken       = errors.New("username already taken")
	ErrEmailTaken          = errors.New("email already registered")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrEmailNotConfirmed   = errors.New("email not confirmed")
	ErrInvalidConfirmToken = errors.New("invalid confirmation token")
	ErrCodeExhausted       = errors.New("could not allocate a unique group code")
	ErrNameExhausted       = errors.New("could not allocate a unique username")
)

// ValidationError 输入不合法，Field 为出错字段
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// RemoteReadError 存储读取失败，保留原始错误
type RemoteReadError struct {
	Op  string
	Err error
}

func (e *RemoteReadError) Error() string {
	return fmt.Sprintf("%s: remote read failed: %v", e.Op, e.Err)
}

func (e *RemoteReadError) Unwrap() error {
	return e.Err
}

// RemoteWriteError 存储写入失败，保留原始错误
type RemoteWriteError struct {
	Op  string
	Err error
}

func (e *RemoteWriteError) Error() string {
	return fmt.Sprintf("%s: remote write failed: %v", e.Op, e.Err)
}

func (e *RemoteWriteError) Unwrap() error {
	return e.Err
}

// readErr 记录不存在映射为 ErrNotFound，其余包装为 RemoteReadError
func readErr(op string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return &RemoteReadError{Op: op, Err: err}
}

func writeErr(op string, err error) error {
	return &RemoteWriteError{Op: op, Err: err}
}

// IsRemote 是否为存储层故障
func IsRemote(err error) bool {
	var re *RemoteReadError
	var we *RemoteWriteError
	return errors.As(err, &re) || errors.As(err, &we)
}
