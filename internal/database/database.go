// Package database 管理本地 SQLite 数据库（单机部署时保存订阅源游标）。
package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/iabetor/newsalert/internal/logger"
	_ "modernc.org/sqlite"
)

// DB 是 SQLite 数据库连接。
type DB struct {
	*sql.DB
	path string
}

// DefaultPath 返回默认数据库路径 ~/.newsalert/newsalert.db。
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	if home != "" {
		return filepath.Join(home, ".newsalert", "newsalert.db")
	}
	return "./newsalert.db"
}

// Open 打开或创建数据库，dbPath 为空时使用 DefaultPath。
func Open(dbPath string) (*DB, error) {
	if dbPath == "" {
		dbPath = DefaultPath()
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("创建数据库目录失败: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}
	// 调度是串行的，一个连接足够，也避免 SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("设置 WAL 模式失败: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("设置 busy_timeout 失败: %w", err)
	}

	logger.Debugf("[database] 数据库已打开: %s", dbPath)

	return &DB{DB: db, path: dbPath}, nil
}

// Path 返回数据库文件路径。
func (db *DB) Path() string {
	return db.path
}

// Migrate 创建所需的表。
func (db *DB) Migrate() error {
	migrations := []string{
		// 每个订阅源一行，保存最近一次推送时记录的游标条目
		`CREATE TABLE IF NOT EXISTS feed_cursors (
			url TEXT PRIMARY KEY,
			title TEXT NOT NULL DEFAULT '',
			link TEXT NOT NULL,
			published_at DATETIME NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("数据库迁移失败: %w", err)
		}
	}

	logger.Debugf("[database] 数据库迁移完成")
	return nil
}

// Close 关闭数据库连接。
func (db *DB) Close() error {
	if db.DB != nil {
		return db.DB.Close()
	}
	return nil
}
