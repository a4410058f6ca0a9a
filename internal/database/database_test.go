package database

import (
	"os"
	"path/filepath"
	"testing"
)

func TestOpenAndMigrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open 失败: %v", err)
	}
	defer db.Close()

	if db.Path() != path {
		t.Errorf("Path = %s, want %s", db.Path(), path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("数据库文件不存在: %v", err)
	}

	// 迁移可重复执行
	for i := 0; i < 2; i++ {
		if err := db.Migrate(); err != nil {
			t.Fatalf("第 %d 次 Migrate 失败: %v", i+1, err)
		}
	}

	var name string
	err = db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='feed_cursors'`).Scan(&name)
	if err != nil {
		t.Fatalf("feed_cursors 表不存在: %v", err)
	}
}
