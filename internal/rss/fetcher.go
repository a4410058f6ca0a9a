package rss

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/iabetor/newsalert/internal/failure"
	"github.com/iabetor/newsalert/internal/logger"
)

const (
	defaultFetchTimeout = 10 * time.Second
	defaultUserAgent    = "newsalert/1.0 RSS Reader"
	maxFeedSize         = 10 << 20 // 10 MB
)

// Fetcher 通过 HTTP 抓取订阅源文档。
type Fetcher struct {
	client    *http.Client
	userAgent string
}

// NewFetcher 创建订阅源抓取器，timeout 为单次请求的超时时间。
func NewFetcher(timeout time.Duration, userAgent string) *Fetcher {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Fetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

// Fetch 下载订阅源原始内容。传输失败或非 2xx 状态码返回 Fetch 类错误。
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, failure.New(failure.Fetch, url, fmt.Errorf("创建请求失败: %w", err))
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml;q=0.9, */*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, failure.New(failure.Fetch, url, fmt.Errorf("请求失败: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, failure.Newf(failure.Fetch, url, "HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedSize))
	if err != nil {
		return nil, failure.New(failure.Fetch, url, fmt.Errorf("读取响应失败: %w", err))
	}
	return data, nil
}

// FetchItems 抓取并解析订阅源，返回按时间倒序排列的条目。
func (f *Fetcher) FetchItems(ctx context.Context, url string) ([]FeedItem, error) {
	data, err := f.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	items, err := Parse(data)
	if err != nil {
		return nil, failure.WithURL(err, url, failure.Parse)
	}

	logger.Debugf("[rss] %s 解析到 %d 个条目", url, len(items))
	return items, nil
}
