package services

import (
	"fmt"
	"strings"
)

// AuthRequiredError 未登录用户尝试写操作，Action 例如 "comment"、"reply"
type AuthRequiredError struct {
	Action string
}

func (e *AuthRequiredError) Error() string {
	return "You must be logged in to " + e.Action + "."
}

// ValidationError 请求缺少必填字段，在任何网关调用之前返回
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 1 {
		return e.Fields[0] + " is required"
	}
	return strings.Join(e.Fields, ", ") + " are required"
}

// FetchError 读取失败，Error() 原样返回网关消息
type FetchError struct {
	Resource string
	Err      error
}

func (e *FetchError) Error() string { return e.Err.Error() }
func (e *FetchError) Unwrap() error { return e.Err }

// MutationError 写入失败，Error() 原样返回网关消息
type MutationError struct {
	Op  string
	Err error
}

func (e *MutationError) Error() string { return e.Err.Error() }
func (e *MutationError) Unwrap() error { return e.Err }

type NotFoundError struct {
	Resource string
	ID       int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Resource, e.ID)
}
