package cursor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/iabetor/newsalert/internal/failure"
	"github.com/iabetor/newsalert/internal/rss"
)

// RESTStore 基于 PostgREST（例如 Supabase）的游标存储。
// 表结构：url text primary key, cache jsonb。
type RESTStore struct {
	baseURL    string
	table      string
	apiKey     string
	userAgent  string
	httpClient *http.Client
}

// NewRESTStore 创建 REST 游标存储。
func NewRESTStore(baseURL, table, apiKey string, timeout time.Duration, userAgent string) *RESTStore {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RESTStore{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		table:     table,
		apiKey:    apiKey,
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// restRow 表中的一行。
type restRow struct {
	URL   string     `json:"url"`
	Cache restCursor `json:"cache"`
}

// restCursor 游标 JSON。旧版本写入的行使用 RSS 字段名 pubDate，读取时兼容。
type restCursor struct {
	Title     string     `json:"title"`
	Link      string     `json:"link"`
	Published *time.Time `json:"published,omitempty"`
	PubDate   string     `json:"pubDate,omitempty"`
}

var legacyDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
	"Mon, 2 Jan 2006 15:04:05 -0700",
}

func (c restCursor) item() rss.FeedItem {
	item := rss.FeedItem{Title: c.Title, Link: c.Link}
	if c.Published != nil {
		item.Published = *c.Published
		return item
	}
	for _, layout := range legacyDateLayouts {
		if t, err := time.Parse(layout, strings.TrimSpace(c.PubDate)); err == nil {
			item.Published = t
			break
		}
	}
	return item
}

// doRequest 执行 HTTP 请求，4xx/5xx 返回错误。
func (s *RESTStore) doRequest(ctx context.Context, method string, query url.Values, body interface{}, prefer string) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("序列化请求体失败: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	endpoint := fmt.Sprintf("%s/%s", s.baseURL, s.table)
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("apikey", s.apiKey)
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求失败: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应失败: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("API 错误 (状态码 %d): %s", resp.StatusCode, string(data))
	}
	return data, nil
}

// Get 读取游标。
func (s *RESTStore) Get(ctx context.Context, feedURL string) (*rss.FeedItem, error) {
	query := url.Values{
		"select": {"cache"},
		"url":    {"eq." + feedURL},
		"limit":  {"1"},
	}
	data, err := s.doRequest(ctx, http.MethodGet, query, nil, "")
	if err != nil {
		return nil, failure.New(failure.Persistence, feedURL, fmt.Errorf("读取游标失败: %w", err))
	}

	var rows []restRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, failure.New(failure.Persistence, feedURL, fmt.Errorf("解析游标失败: %w", err))
	}
	if len(rows) == 0 || rows[0].Cache.Link == "" {
		return nil, nil
	}

	item := rows[0].Cache.item()
	return &item, nil
}

// Upsert 写入游标，依赖 url 上的唯一约束合并重复行。
func (s *RESTStore) Upsert(ctx context.Context, feedURL string, item rss.FeedItem) error {
	published := item.Published
	row := restRow{
		URL: feedURL,
		Cache: restCursor{
			Title:     item.Title,
			Link:      item.Link,
			Published: &published,
		},
	}
	query := url.Values{"on_conflict": {"url"}}
	_, err := s.doRequest(ctx, http.MethodPost, query, []restRow{row}, "resolution=merge-duplicates,return=minimal")
	if err != nil {
		return failure.New(failure.Persistence, feedURL, fmt.Errorf("写入游标失败: %w", err))
	}
	return nil
}

// Close REST 存储无需释放资源。
func (s *RESTStore) Close() error { return nil }
