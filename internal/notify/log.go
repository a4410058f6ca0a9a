package notify

import (
	"context"

	"github.com/iabetor/newsalert/internal/logger"
)

// LogDestination 只把消息写入日志，dry-run 时替代真实目标。
type LogDestination struct {
	name string
}

// NewLogDestination 创建日志目标。
func NewLogDestination(name string) *LogDestination {
	return &LogDestination{name: name}
}

// Name 返回目标名称。
func (d *LogDestination) Name() string { return d.name }

// Send 记录消息。
func (d *LogDestination) Send(_ context.Context, text string) error {
	logger.Infof("[notify] %s <- %s", d.name, text)
	return nil
}
