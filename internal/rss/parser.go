package rss

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/iabetor/newsalert/internal/failure"
	"github.com/mmcdole/gofeed"
)

var (
	// 部分 RSS 源在 item 中使用 Atom 的 a10:updated 作为时间字段
	atomUpdatedTag = []byte("a10:updated")
	pubDateTag     = []byte("pubDate")
)

// Parse 将原始订阅源文档解析为按发布时间倒序排列的条目列表。
// 任何一个条目缺少标题、链接或可解析的时间，整批都视为解析失败。
func Parse(data []byte) ([]FeedItem, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, failure.Newf(failure.Parse, "", "订阅源文档为空")
	}

	if bytes.Contains(data, atomUpdatedTag) {
		data = bytes.ReplaceAll(data, atomUpdatedTag, pubDateTag)
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(data))
	if err != nil {
		return nil, failure.New(failure.Parse, "", fmt.Errorf("解析订阅源失败: %w", err))
	}

	items := make([]FeedItem, 0, len(feed.Items))
	for i, gItem := range feed.Items {
		item, err := convertItem(gItem)
		if err != nil {
			return nil, failure.New(failure.Parse, "", fmt.Errorf("第 %d 个条目无效: %w", i+1, err))
		}
		items = append(items, item)
	}

	SortNewestFirst(items)
	return items, nil
}

// SortNewestFirst 按发布时间倒序排序，时间相同时保持原有顺序。
func SortNewestFirst(items []FeedItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Published.After(items[j].Published)
	})
}

func convertItem(gItem *gofeed.Item) (FeedItem, error) {
	if gItem == nil {
		return FeedItem{}, fmt.Errorf("空条目")
	}

	title := normalizeTitle(gItem.Title)
	if title == "" {
		return FeedItem{}, fmt.Errorf("缺少 title")
	}

	link := strings.TrimSpace(gItem.Link)
	if link == "" {
		return FeedItem{}, fmt.Errorf("缺少 link (%s)", title)
	}

	var published *time.Time
	if gItem.PublishedParsed != nil {
		published = gItem.PublishedParsed
	} else if gItem.UpdatedParsed != nil {
		published = gItem.UpdatedParsed
	}
	if published == nil {
		return FeedItem{}, fmt.Errorf("无法解析发布时间 %q (%s)", gItem.Published, link)
	}

	return FeedItem{
		Title:     title,
		Link:      link,
		Published: *published,
	}, nil
}

// normalizeTitle 去掉标题中的 HTML 标签和实体，并合并空白。
func normalizeTitle(s string) string {
	if strings.ContainsAny(s, "<&") {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(s)); err == nil {
			s = doc.Text()
		}
	}
	return strings.Join(strings.Fields(s), " ")
}
