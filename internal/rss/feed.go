// Package rss 负责抓取和解析 RSS/Atom 订阅源。
package rss

import "time"

// FeedItem 订阅源条目，解析后不再修改。
// Link 在同一订阅源内唯一，用作条目标识；游标也以 FeedItem 的形式持久化。
type FeedItem struct {
	Title     string    `json:"title"`
	Link      string    `json:"link"`
	Published time.Time `json:"published"`
}

// FeedRule 单个订阅源的关键词规则。
// Include 为空表示全部匹配，Exclude 为空表示不排除任何条目。
type FeedRule struct {
	URL     string
	Include []string
	Exclude []string
}
