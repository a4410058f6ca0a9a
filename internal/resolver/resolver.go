// Package resolver 根据游标和关键词规则计算订阅源中需要推送的新条目。
package resolver

import (
	"fmt"
	"strings"
	"time"

	"github.com/iabetor/newsalert/internal/rss"
	"github.com/samber/lo"
)

// DefaultWindow 首次运行（或游标已滚出订阅源窗口）时只推送该时间窗口内的条目。
const DefaultWindow = 24 * time.Hour

// CursorPolicy 决定有新条目推送时游标前进到哪一条。
type CursorPolicy string

const (
	// NewestSeen 游标前进到本轮看到的最新条目，即使它没有通过关键词过滤。
	NewestSeen CursorPolicy = "newest_seen"
	// NewestDelivered 游标前进到本轮实际推送的最新条目。
	NewestDelivered CursorPolicy = "newest_delivered"
)

// ParseCursorPolicy 解析配置中的游标策略，空字符串使用 NewestSeen。
func ParseCursorPolicy(s string) (CursorPolicy, error) {
	switch CursorPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", NewestSeen:
		return NewestSeen, nil
	case NewestDelivered:
		return NewestDelivered, nil
	default:
		return "", fmt.Errorf("不支持的游标策略: %s", s)
	}
}

// Result 单个订阅源一轮处理的结果。
type Result struct {
	// Items 需要推送的条目，按时间倒序。
	Items []rss.FeedItem
	// Cursor 需要持久化的新游标，为 nil 表示保持原游标不变。
	Cursor *rss.FeedItem
	// Bootstrap 为 true 表示本轮按时间窗口而不是游标截断。
	Bootstrap bool
}

// Resolver 增量更新计算器。
type Resolver struct {
	Window time.Duration
	Policy CursorPolicy
	Now    func() time.Time
}

// New 创建使用默认窗口和当前时间的 Resolver。
func New(policy CursorPolicy) *Resolver {
	return &Resolver{
		Window: DefaultWindow,
		Policy: policy,
		Now:    time.Now,
	}
}

// Resolve 计算新条目。items 必须已按发布时间倒序排列，cursor 可以为 nil。
func (r *Resolver) Resolve(items []rss.FeedItem, rule rss.FeedRule, cursor *rss.FeedItem) Result {
	if len(items) == 0 {
		return Result{}
	}

	// 同一批次里重复的链接只保留第一条（最新的）
	items = lo.UniqBy(items, func(it rss.FeedItem) string { return it.Link })

	fresh, bootstrap := r.truncate(items, cursor)

	delivered := fresh
	if len(rule.Exclude) > 0 {
		delivered = lo.Reject(delivered, func(it rss.FeedItem, _ int) bool {
			return Matches(it.Title, rule.Exclude)
		})
	}
	if len(rule.Include) > 0 {
		delivered = lo.Filter(delivered, func(it rss.FeedItem, _ int) bool {
			return Matches(it.Title, rule.Include)
		})
	}

	if len(delivered) == 0 {
		return Result{Bootstrap: bootstrap}
	}

	next := fresh[0]
	if r.Policy == NewestDelivered {
		next = delivered[0]
	}

	return Result{
		Items:     delivered,
		Cursor:    &next,
		Bootstrap: bootstrap,
	}
}

// truncate 按游标截断，游标不存在或已不在当前批次中时按时间窗口过滤。
func (r *Resolver) truncate(items []rss.FeedItem, cursor *rss.FeedItem) ([]rss.FeedItem, bool) {
	if cursor != nil {
		_, idx, found := lo.FindIndexOf(items, func(it rss.FeedItem) bool {
			return it.Link == cursor.Link
		})
		if found {
			return items[:idx], false
		}
	}

	window := r.Window
	if window <= 0 {
		window = DefaultWindow
	}
	now := time.Now()
	if r.Now != nil {
		now = r.Now()
	}

	return lo.Filter(items, func(it rss.FeedItem, _ int) bool {
		return now.Sub(it.Published) < window
	}), true
}
