// Package notify 将匹配到的新闻格式化并推送到各个目标。
package notify

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/iabetor/newsalert/internal/failure"
	"github.com/iabetor/newsalert/internal/logger"
	"github.com/iabetor/newsalert/internal/rss"
	"github.com/valyala/fasttemplate"
	"go.uber.org/multierr"
)

const (
	// DefaultTemplate 每条新闻一行。
	DefaultTemplate = "[{link}]: {title}"
	// DefaultSeparator 行分隔符。
	DefaultSeparator = "\r\n"
	// DefaultMaxLength Telegram 单条消息的最大长度。
	DefaultMaxLength = 4096
)

// Destination 推送目标。
type Destination interface {
	Name() string
	Send(ctx context.Context, text string) error
}

// Options 消息格式选项，零值使用默认值。
type Options struct {
	Template  string
	Separator string
	MaxLength int
}

// Notifier 将一轮结果推送到主目标和调试目标。
type Notifier struct {
	primary    []Destination
	diagnostic Destination
	template   *fasttemplate.Template
	separator  string
	maxLength  int
}

// New 创建 Notifier。diagnostic 同时接收所有消息的副本和错误信息。
func New(primary []Destination, diagnostic Destination, opts Options) (*Notifier, error) {
	if opts.Template == "" {
		opts.Template = DefaultTemplate
	}
	if opts.Separator == "" {
		opts.Separator = DefaultSeparator
	}
	if opts.MaxLength <= 0 {
		opts.MaxLength = DefaultMaxLength
	}

	tpl, err := fasttemplate.NewTemplate(opts.Template, "{", "}")
	if err != nil {
		return nil, fmt.Errorf("解析消息模板失败: %w", err)
	}

	return &Notifier{
		primary:    primary,
		diagnostic: diagnostic,
		template:   tpl,
		separator:  opts.Separator,
		maxLength:  opts.MaxLength,
	}, nil
}

// FormatLine 按模板格式化一条新闻。
func (n *Notifier) FormatLine(item rss.FeedItem) string {
	return n.template.ExecuteString(map[string]interface{}{
		"link":  item.Link,
		"title": item.Title,
	})
}

// Messages 返回本轮需要发送的消息：合并后不超过上限时为一条，否则每条新闻一条。
func (n *Notifier) Messages(items []rss.FeedItem) []string {
	if len(items) == 0 {
		return nil
	}

	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = n.FormatLine(item)
	}

	// 按字节计算长度
	joined := strings.Join(lines, n.separator)
	if len(joined) > n.maxLength {
		return lines
	}
	return []string{joined}
}

// Notify 推送一个订阅源本轮的新条目，每条消息依次发到所有主目标和调试目标。
// 某个目标失败不影响其它目标，所有错误合并后返回。
func (n *Notifier) Notify(ctx context.Context, items []rss.FeedItem) error {
	var errs error
	for _, msg := range n.Messages(items) {
		for _, dest := range n.primary {
			errs = multierr.Append(errs, n.send(ctx, dest, msg))
		}
		if n.diagnostic != nil {
			errs = multierr.Append(errs, n.send(ctx, n.diagnostic, msg))
		}
		if ctx.Err() != nil {
			break
		}
	}
	return errs
}

// Diagnose 只发送到调试目标，过长的内容会被截断。
func (n *Notifier) Diagnose(ctx context.Context, text string) error {
	if n.diagnostic == nil {
		return nil
	}
	return n.send(ctx, n.diagnostic, truncate(text, n.maxLength))
}

func (n *Notifier) send(ctx context.Context, dest Destination, text string) error {
	if err := dest.Send(ctx, text); err != nil {
		logger.Warnf("[notify] 发送到 %s 失败: %v", dest.Name(), err)
		if failure.KindOf(err) == failure.Unknown {
			err = failure.New(failure.Delivery, "", fmt.Errorf("%s: %w", dest.Name(), err))
		}
		return err
	}
	return nil
}

// truncate 截断字符串，保证结果不超过 maxBytes 字节且不切断 UTF-8 字符。
func truncate(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	const ellipsis = "..."
	cut := maxBytes - len(ellipsis)
	if cut < 0 {
		cut = 0
	}
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + ellipsis
}
