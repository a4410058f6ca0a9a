package cursor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iabetor/newsalert/internal/failure"
	"github.com/iabetor/newsalert/internal/rss"
	_ "github.com/lib/pq"
)

// PostgresStore 基于 PostgreSQL 的游标存储。
type PostgresStore struct {
	db      *sql.DB
	timeout time.Duration
}

// OpenPostgres 连接数据库并确保表存在。
func OpenPostgres(ctx context.Context, dsn string, timeout time.Duration) (*PostgresStore, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("打开 PostgreSQL 失败: %w", err)
	}
	db.SetMaxOpenConns(2)

	s := &PostgresStore{db: db, timeout: timeout}
	if err := s.ensure(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) ensure(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS feed_cursors (
    url TEXT PRIMARY KEY,
    title TEXT NOT NULL DEFAULT '',
    link TEXT NOT NULL,
    published_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`)
	if err != nil {
		return fmt.Errorf("创建 feed_cursors 表失败: %w", err)
	}
	return nil
}

// Get 读取游标。
func (s *PostgresStore) Get(ctx context.Context, url string) (*rss.FeedItem, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var item rss.FeedItem
	row := s.db.QueryRowContext(ctx, `SELECT title, link, published_at FROM feed_cursors WHERE url = $1`, url)
	if err := row.Scan(&item.Title, &item.Link, &item.Published); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, failure.New(failure.Persistence, url, fmt.Errorf("查询游标失败: %w", err))
	}
	return &item, nil
}

// Upsert 写入游标。
func (s *PostgresStore) Upsert(ctx context.Context, url string, item rss.FeedItem) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
INSERT INTO feed_cursors (url, title, link, published_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (url) DO UPDATE SET
    title = EXCLUDED.title,
    link = EXCLUDED.link,
    published_at = EXCLUDED.published_at,
    updated_at = now()`,
		url, item.Title, item.Link, item.Published,
	)
	if err != nil {
		return failure.New(failure.Persistence, url, fmt.Errorf("写入游标失败: %w", err))
	}
	return nil
}

// Close 关闭连接池。
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
