package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want zapcore.Level
	}{
		{"", zapcore.InfoLevel},
		{"debug", zapcore.DebugLevel},
		{"INFO", zapcore.InfoLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
	}
	for _, c := range cases {
		got, err := ParseLevel(c.in)
		if err != nil {
			t.Fatalf("ParseLevel(%q) 失败: %v", c.in, err)
		}
		if got != c.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", c.in, got, c.want)
		}
	}

	if _, err := ParseLevel("verbose"); err == nil {
		t.Error("期望不支持的级别返回错误")
	}
}

func TestInitWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "newsalert.log")
	if err := Init(Config{Level: "debug", File: path}); err != nil {
		t.Fatalf("Init 失败: %v", err)
	}
	defer func() {
		Sync()
		rotator = nil
	}()

	Infof("[test] hello %s", "world")
	With("run", "abc").Info("scoped")
	Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("读取日志文件失败: %v", err)
	}
	if !strings.Contains(string(data), "hello world") {
		t.Errorf("日志文件缺少内容: %s", data)
	}
	if !strings.Contains(string(data), "abc") {
		t.Errorf("日志文件缺少 run 字段: %s", data)
	}
}

func TestInitRejectsUnknownFormat(t *testing.T) {
	if err := Init(Config{Format: "xml"}); err == nil {
		t.Fatal("期望不支持的格式返回错误")
	}
}
