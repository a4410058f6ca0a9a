// Package failure 定义单个订阅源处理过程中可能出现的错误类型。
//
// 每个阶段返回带 Kind 标签的错误，调度器据此决定如何上报，
// 任何一种都不会中断整轮运行。
package failure

import (
	"errors"
	"fmt"
)

// Kind 错误类别。
type Kind int

const (
	// Unknown 未打标签的错误。
	Unknown Kind = iota
	// Fetch 网络传输失败或非成功状态码。
	Fetch
	// Parse 订阅源文档为空、格式错误或缺少条目列表。
	Parse
	// Persistence 游标存储读写失败。
	Persistence
	// Delivery 通知发送失败。
	Delivery
)

func (k Kind) String() string {
	switch k {
	case Fetch:
		return "fetch"
	case Parse:
		return "parse"
	case Persistence:
		return "persistence"
	case Delivery:
		return "delivery"
	default:
		return "unknown"
	}
}

// Error 带类别和订阅源地址的错误。
type Error struct {
	Kind Kind
	URL  string
	Err  error
}

func (e *Error) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("[%s]: %s error: %v", e.URL, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New 构造一个带类别的错误，err 为 nil 时返回 nil。
func New(kind Kind, url string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, URL: url, Err: err}
}

// Newf 以格式化信息构造带类别的错误。
func Newf(kind Kind, url string, format string, args ...interface{}) error {
	return &Error{Kind: kind, URL: url, Err: fmt.Errorf(format, args...)}
}

// KindOf 返回错误链中第一个 *Error 的类别。
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Unknown
}

// WithURL 为错误补充订阅源地址；已有地址的不覆盖，无标签的错误归为 defaultKind。
func WithURL(err error, url string, defaultKind Kind) error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		if fe.URL != "" {
			return err
		}
		return &Error{Kind: fe.Kind, URL: url, Err: fe.Err}
	}
	return &Error{Kind: defaultKind, URL: url, Err: err}
}
