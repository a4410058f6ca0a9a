package cursor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iabetor/newsalert/internal/database"
	"github.com/iabetor/newsalert/internal/failure"
	"github.com/iabetor/newsalert/internal/rss"
)

// SQLiteStore 基于本地 SQLite 的游标存储。
type SQLiteStore struct {
	db      *database.DB
	timeout time.Duration
}

// NewSQLiteStore 创建 SQLite 游标存储，db 需已完成迁移。
func NewSQLiteStore(db *database.DB, timeout time.Duration) *SQLiteStore {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SQLiteStore{db: db, timeout: timeout}
}

// Get 读取游标。
func (s *SQLiteStore) Get(ctx context.Context, url string) (*rss.FeedItem, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var item rss.FeedItem
	var published string
	err := s.db.QueryRowContext(ctx,
		`SELECT title, link, published_at FROM feed_cursors WHERE url = ?`, url,
	).Scan(&item.Title, &item.Link, &published)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, failure.New(failure.Persistence, url, fmt.Errorf("查询游标失败: %w", err))
	}

	item.Published, err = time.Parse(time.RFC3339Nano, published)
	if err != nil {
		return nil, failure.New(failure.Persistence, url, fmt.Errorf("游标时间格式错误 %q: %w", published, err))
	}
	return &item, nil
}

// Upsert 写入游标。
func (s *SQLiteStore) Upsert(ctx context.Context, url string, item rss.FeedItem) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO feed_cursors (url, title, link, published_at, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(url) DO UPDATE SET
			title = excluded.title,
			link = excluded.link,
			published_at = excluded.published_at,
			updated_at = CURRENT_TIMESTAMP`,
		url, item.Title, item.Link, item.Published.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return failure.New(failure.Persistence, url, fmt.Errorf("写入游标失败: %w", err))
	}
	return nil
}

// Close 关闭数据库。
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
