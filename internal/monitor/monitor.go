// Package monitor 按分组依次处理订阅源：抓取、去重、过滤、保存游标并推送。
package monitor

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/iabetor/newsalert/internal/config"
	"github.com/iabetor/newsalert/internal/cursor"
	"github.com/iabetor/newsalert/internal/failure"
	"github.com/iabetor/newsalert/internal/logger"
	"github.com/iabetor/newsalert/internal/resolver"
	"github.com/iabetor/newsalert/internal/rss"
	"go.uber.org/zap"
)

// Fetcher 抓取并解析订阅源。
type Fetcher interface {
	FetchItems(ctx context.Context, url string) ([]rss.FeedItem, error)
}

// Notifier 推送新条目和错误信息。
type Notifier interface {
	Notify(ctx context.Context, items []rss.FeedItem) error
	Diagnose(ctx context.Context, text string) error
}

// Report 一次运行的统计。
type Report struct {
	RunID     string
	Feeds     int
	Delivered int
	Failures  map[failure.Kind]int
	Duration  time.Duration
}

// Failed 返回失败的订阅源数量。
func (r Report) Failed() int {
	n := 0
	for _, c := range r.Failures {
		n += c
	}
	return n
}

// Monitor 串行处理所有分组。
type Monitor struct {
	groups   []config.GroupConfig
	fetcher  Fetcher
	store    cursor.Store
	resolver *resolver.Resolver
	notifier Notifier

	newRunID func() string
}

// New 创建 Monitor。
func New(groups []config.GroupConfig, fetcher Fetcher, store cursor.Store, res *resolver.Resolver, notifier Notifier) *Monitor {
	return &Monitor{
		groups:   groups,
		fetcher:  fetcher,
		store:    store,
		resolver: res,
		notifier: notifier,
		newRunID: uuid.NewString,
	}
}

// Run 按配置顺序处理每个分组的每个订阅源。单个订阅源失败只记录并上报，不影响后续订阅源。
// ctx 取消后停止处理剩余订阅源。
func (m *Monitor) Run(ctx context.Context) Report {
	start := time.Now()
	report := Report{
		RunID:    m.newRunID(),
		Failures: make(map[failure.Kind]int),
	}
	log := logger.With("run", report.RunID)
	log.Infof("[monitor] 开始运行，共 %d 个分组", len(m.groups))

loop:
	for _, g := range m.groups {
		for _, url := range g.URLs {
			if ctx.Err() != nil {
				log.Warnf("[monitor] 运行被取消: %v", ctx.Err())
				break loop
			}

			rule := rss.FeedRule{URL: url, Include: g.Keywords, Exclude: g.ExcludedKeywords}
			report.Feeds++

			n, err := m.processFeed(ctx, log, rule)
			report.Delivered += n
			if err != nil {
				report.Failures[failure.KindOf(err)]++
				m.reportFailure(ctx, log, err)
			}
		}
	}

	report.Duration = time.Since(start)
	log.Infof("[monitor] 运行结束: %d 个订阅源, 推送 %d 条, 失败 %d 个, 耗时 %v",
		report.Feeds, report.Delivered, report.Failed(), report.Duration.Round(time.Millisecond))
	return report
}

// processFeed 处理单个订阅源，返回推送的条目数。
// 游标先于推送写入，写入失败时不推送，下一轮会重新计算同一批条目。
func (m *Monitor) processFeed(ctx context.Context, log *zap.SugaredLogger, rule rss.FeedRule) (int, error) {
	items, err := m.fetcher.FetchItems(ctx, rule.URL)
	if err != nil {
		return 0, failure.WithURL(err, rule.URL, failure.Fetch)
	}

	cur, err := m.store.Get(ctx, rule.URL)
	if err != nil {
		return 0, failure.WithURL(err, rule.URL, failure.Persistence)
	}

	res := m.resolver.Resolve(items, rule, cur)
	if len(res.Items) == 0 {
		log.Debugf("[monitor] %s 没有新条目 (共 %d 条)", rule.URL, len(items))
		return 0, nil
	}
	if res.Bootstrap {
		log.Infof("[monitor] %s 没有可用游标，按时间窗口推送 %d 条", rule.URL, len(res.Items))
	}

	if res.Cursor != nil {
		if err := m.store.Upsert(ctx, rule.URL, *res.Cursor); err != nil {
			return 0, failure.WithURL(err, rule.URL, failure.Persistence)
		}
	}

	if err := m.notifier.Notify(ctx, res.Items); err != nil {
		return 0, failure.WithURL(err, rule.URL, failure.Delivery)
	}

	log.Infof("[monitor] %s 推送 %d 条新闻", rule.URL, len(res.Items))
	return len(res.Items), nil
}

func (m *Monitor) reportFailure(ctx context.Context, log *zap.SugaredLogger, err error) {
	log.Warnf("[monitor] %v", err)
	if ctx.Err() != nil {
		return
	}
	if derr := m.notifier.Diagnose(ctx, err.Error()); derr != nil {
		log.Errorf("[monitor] 发送错误信息失败: %v (原始错误: %v)", derr, err)
	}
}
