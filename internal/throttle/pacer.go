// Package throttle 在调用外部协作服务（游标存储、通知）之前插入固定延迟。
package throttle

import (
	"context"
	"time"
)

// DefaultDelay 每次外部调用前的默认等待时间。
const DefaultDelay = time.Second

// Pacer 在每次调用前固定等待 delay。零值或 nil 不等待。
type Pacer struct {
	delay time.Duration
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPacer 创建 Pacer，delay <= 0 时不等待。
func NewPacer(delay time.Duration) *Pacer {
	return &Pacer{delay: delay, sleep: sleepContext}
}

// Delay 返回配置的等待时间。
func (p *Pacer) Delay() time.Duration {
	if p == nil {
		return 0
	}
	return p.delay
}

// Wait 阻塞 delay，ctx 取消时提前返回 ctx.Err()。
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil || p.delay <= 0 {
		return ctx.Err()
	}
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepContext
	}
	return sleep(ctx, p.delay)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
