package throttle

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPacerWaitsFixedDelay(t *testing.T) {
	p := NewPacer(30 * time.Millisecond)
	start := time.Now()
	for i := 0; i < 2; i++ {
		if err := p.Wait(context.Background()); err != nil {
			t.Fatalf("Wait 失败: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 60*time.Millisecond {
		t.Errorf("两次等待应至少 60ms, got %v", elapsed)
	}
}

func TestPacerRecordsRequestedDelay(t *testing.T) {
	var got []time.Duration
	p := NewPacer(time.Second)
	p.sleep = func(ctx context.Context, d time.Duration) error {
		got = append(got, d)
		return nil
	}
	_ = p.Wait(context.Background())
	_ = p.Wait(context.Background())
	if len(got) != 2 || got[0] != time.Second || got[1] != time.Second {
		t.Errorf("每次调用都应等待固定时间, got %v", got)
	}
}

func TestPacerCancelled(t *testing.T) {
	p := NewPacer(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("期望 context.Canceled, got %v", err)
	}
}

func TestNilAndZeroPacer(t *testing.T) {
	var p *Pacer
	if err := p.Wait(context.Background()); err != nil {
		t.Errorf("nil Pacer 不应报错: %v", err)
	}
	if p.Delay() != 0 {
		t.Error("nil Pacer 延迟应为 0")
	}
	if err := NewPacer(0).Wait(context.Background()); err != nil {
		t.Errorf("零延迟不应报错: %v", err)
	}
}
