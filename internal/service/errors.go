package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ==================== 错误类型 ====================

// ValidationError 字段级校验错误
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add 追加字段错误，同一字段只保留第一条
func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = message
	}
}

// OrNil 没有字段错误时返回 nil
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// ConflictError 唯一性冲突
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s already in use", e.Field)
}

// NotFoundError 资源不存在
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return e.Resource + " not found"
}

// Is 同类资源的 NotFoundError 视为相等，支持 errors.Is(err, ErrOrderNotFound)
func (e *NotFoundError) Is(target error) bool {
	t, ok := target.(*NotFoundError)
	return ok && t.Resource == e.Resource
}

// IsNotFound 是否资源不存在
func IsNotFound(err error) bool {
	var ne *NotFoundError
	return errors.As(err, &ne)
}

// StoreError 存储层暂时性错误，可重试
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store error during %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	// 已分类的错误原样返回
	var (
		ve *ValidationError
		ce *ConflictError
		ne *NotFoundError
		se *StoreError
	)
	if errors.As(err, &ve) || errors.As(err, &ce) || errors.As(err, &ne) || errors.As(err, &se) ||
		errors.Is(err, ErrInvalidArgument) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

// ==================== 错误定义 ====================

var (
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidCredentials = errors.New("邮箱或 API Key 错误")

	ErrMerchantNotFound  = &NotFoundError{Resource: "merchant"}
	ErrAffiliateNotFound = &NotFoundError{Resource: "affiliate"}
	ErrOrderNotFound     = &NotFoundError{Resource: "order"}
)
