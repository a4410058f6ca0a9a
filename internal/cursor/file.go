package cursor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/iabetor/newsalert/internal/failure"
	"github.com/iabetor/newsalert/internal/logger"
	"github.com/iabetor/newsalert/internal/rss"
)

// FileStore 将所有游标保存在一个 JSON 文件中，适合单机部署。
type FileStore struct {
	mu       sync.RWMutex
	filePath string
	cursors  map[string]rss.FeedItem
}

// NewFileStore 创建文件游标存储。
func NewFileStore(dataDir string) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("创建数据目录失败: %w", err)
	}
	s := &FileStore{
		filePath: filepath.Join(dataDir, "cursors.json"),
	}
	if err := s.load(); err != nil {
		return nil, fmt.Errorf("加载游标文件失败: %w", err)
	}
	return s, nil
}

func (s *FileStore) load() error {
	s.cursors = make(map[string]rss.FeedItem)
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return json.Unmarshal(data, &s.cursors)
}

// save 先写临时文件再重命名，避免进程中断时留下半个文件。
func (s *FileStore) save() error {
	data, err := json.MarshalIndent(s.cursors, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, s.filePath)
}

// Get 读取游标。
func (s *FileStore) Get(_ context.Context, url string) (*rss.FeedItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.cursors[url]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

// Upsert 写入游标并立即落盘。
func (s *FileStore) Upsert(_ context.Context, url string, item rss.FeedItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.cursors[url]
	s.cursors[url] = item
	if err := s.save(); err != nil {
		if had {
			s.cursors[url] = prev
		} else {
			delete(s.cursors, url)
		}
		return failure.New(failure.Persistence, url, fmt.Errorf("保存游标文件失败: %w", err))
	}
	logger.Debugf("[cursor] %s -> %s", url, item.Link)
	return nil
}

// Close 文件存储无需释放资源。
func (s *FileStore) Close() error { return nil }
