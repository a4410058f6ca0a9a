// Package cursor 持久化每个订阅源最近一次推送时记录的游标条目。
package cursor

import (
	"context"
	"fmt"

	"github.com/iabetor/newsalert/internal/config"
	"github.com/iabetor/newsalert/internal/database"
	"github.com/iabetor/newsalert/internal/logger"
	"github.com/iabetor/newsalert/internal/rss"
	"github.com/iabetor/newsalert/internal/throttle"
)

// Store 以订阅源 URL 为键的游标存储。
type Store interface {
	// Get 返回订阅源的游标，从未处理过的订阅源返回 nil, nil。
	Get(ctx context.Context, url string) (*rss.FeedItem, error)
	// Upsert 写入或覆盖订阅源的游标。
	Upsert(ctx context.Context, url string, item rss.FeedItem) error
	Close() error
}

// Open 根据配置创建游标存储。
func Open(ctx context.Context, cfg config.StoreConfig, userAgent string) (Store, error) {
	timeout := cfg.Timeout()

	switch cfg.Driver {
	case config.DriverREST:
		return NewRESTStore(cfg.REST.URL, cfg.REST.Table, cfg.REST.APIKey, timeout, userAgent), nil
	case config.DriverSQLite:
		db, err := database.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, err
		}
		return NewSQLiteStore(db, timeout), nil
	case config.DriverPostgres:
		s, err := OpenPostgres(ctx, cfg.Postgres.DSN, timeout)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.DriverFile:
		s, err := NewFileStore(cfg.File.Dir)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("不支持的存储类型: %s", cfg.Driver)
	}
}

// pacedStore 在每次调用底层存储前等待固定时间。
type pacedStore struct {
	Store
	pacer *throttle.Pacer
}

// Paced 包装 Store，每次 Get/Upsert 之前先调用 pacer.Wait。
func Paced(s Store, pacer *throttle.Pacer) Store {
	if pacer.Delay() <= 0 {
		return s
	}
	return &pacedStore{Store: s, pacer: pacer}
}

func (s *pacedStore) Get(ctx context.Context, url string) (*rss.FeedItem, error) {
	if err := s.pacer.Wait(ctx); err != nil {
		return nil, err
	}
	return s.Store.Get(ctx, url)
}

func (s *pacedStore) Upsert(ctx context.Context, url string, item rss.FeedItem) error {
	if err := s.pacer.Wait(ctx); err != nil {
		return err
	}
	return s.Store.Upsert(ctx, url, item)
}

// readOnlyStore 只读包装，用于 dry-run。
type readOnlyStore struct {
	Store
}

// ReadOnly 包装 Store，Upsert 只记录日志不写入。
func ReadOnly(s Store) Store {
	return &readOnlyStore{Store: s}
}

func (s *readOnlyStore) Upsert(ctx context.Context, url string, item rss.FeedItem) error {
	logger.Infof("[cursor] dry-run: 跳过写入 %s -> %s", url, item.Link)
	return nil
}
