package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testConfigYAML = `
log:
  level: debug
store:
  driver: rest
  rest:
    url: https://db.example.com/rest/v1/
    api_key: ${NEWSALERT_TEST_API_KEY}
telegram:
  bot_token: " 123:abc "
  chat_id: "-1001"
  debug_chat_id: "42"
groups:
  - name: ru
    urls:
      - https://www.vedomosti.ru/rss/news.xml
      - https://ria.ru/export/rss2/archive/index.xml
    keywords: [санкци, огранич]
    excluded_keywords: [футбол]
  - name: en
    urls:
      - https://www.theguardian.com/uk/rss
    keywords: [Russia, "Russia's"]
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "newsalert.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("写入配置失败: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	t.Setenv("NEWSALERT_TEST_API_KEY", "secret-key")

	cfg, err := Load(writeConfig(t, testConfigYAML))
	if err != nil {
		t.Fatalf("Load 失败: %v", err)
	}
	if err := cfg.Validate(true); err != nil {
		t.Fatalf("Validate 失败: %v", err)
	}

	if cfg.Store.REST.APIKey != "secret-key" {
		t.Errorf("环境变量未展开: %q", cfg.Store.REST.APIKey)
	}
	if cfg.Store.REST.URL != "https://db.example.com/rest/v1" {
		t.Errorf("REST URL 末尾斜杠未去除: %s", cfg.Store.REST.URL)
	}
	if cfg.Telegram.BotToken != "123:abc" {
		t.Errorf("BotToken 未去除空白: %q", cfg.Telegram.BotToken)
	}
	if cfg.Telegram.DebugBotToken != "123:abc" {
		t.Errorf("DebugBotToken 应默认使用主 bot: %q", cfg.Telegram.DebugBotToken)
	}

	if len(cfg.Groups) != 2 || cfg.Groups[0].Name != "ru" || cfg.Groups[1].Name != "en" {
		t.Fatalf("分组顺序不正确: %+v", cfg.Groups)
	}
	ru := cfg.Groups[0]
	if len(ru.URLs) != 2 || len(ru.Keywords) != 2 || ru.ExcludedKeywords[0] != "футбол" {
		t.Errorf("ru 分组解析错误: %+v", ru)
	}
	if len(cfg.Groups[1].ExcludedKeywords) != 0 {
		t.Errorf("en 分组不应有排除词: %+v", cfg.Groups[1])
	}
}

func TestSetDefaults_EmptyConfig(t *testing.T) {
	cfg := &Config{}
	setDefaults(cfg)

	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level: got %s, want info", cfg.Log.Level)
	}
	if cfg.HTTP.Timeout() != 10*time.Second {
		t.Errorf("HTTP.Timeout: got %v", cfg.HTTP.Timeout())
	}
	if cfg.Pacing.Delay() != time.Second {
		t.Errorf("Pacing.Delay: got %v", cfg.Pacing.Delay())
	}
	if cfg.Resolver.Window() != 24*time.Hour {
		t.Errorf("Resolver.Window: got %v", cfg.Resolver.Window())
	}
	if cfg.Resolver.CursorPolicy != "newest_seen" {
		t.Errorf("Resolver.CursorPolicy: got %s", cfg.Resolver.CursorPolicy)
	}
	if cfg.Store.Driver != DriverSQLite {
		t.Errorf("Store.Driver: got %s", cfg.Store.Driver)
	}
	if cfg.Notify.Template != "[{link}]: {title}" {
		t.Errorf("Notify.Template: got %s", cfg.Notify.Template)
	}
	if cfg.Notify.Separator != "\r\n" {
		t.Errorf("Notify.Separator: got %q", cfg.Notify.Separator)
	}
	if cfg.Notify.MaxLength != 4096 {
		t.Errorf("Notify.MaxLength: got %d", cfg.Notify.MaxLength)
	}
	if cfg.Telegram.APIURL != "https://api.telegram.org" {
		t.Errorf("Telegram.APIURL: got %s", cfg.Telegram.APIURL)
	}
	if home, _ := os.UserHomeDir(); home != "" && strings.HasPrefix(cfg.Store.File.Dir, "~") {
		t.Errorf("Store.File.Dir 未展开 ~: %s", cfg.Store.File.Dir)
	}
}

func TestSetDefaults_DoesNotOverride(t *testing.T) {
	cfg := &Config{
		HTTP:     HTTPConfig{TimeoutSec: 30},
		Pacing:   PacingConfig{DelayMs: 250},
		Resolver: ResolverConfig{WindowHours: 6, CursorPolicy: "newest_delivered"},
		Notify:   NotifyConfig{Template: "{title} {link}", Separator: "\n", MaxLength: 100},
	}
	setDefaults(cfg)

	if cfg.HTTP.TimeoutSec != 30 {
		t.Errorf("TimeoutSec should not be overridden: got %d", cfg.HTTP.TimeoutSec)
	}
	if cfg.Pacing.Delay() != 250*time.Millisecond {
		t.Errorf("Pacing should not be overridden: got %v", cfg.Pacing.Delay())
	}
	if cfg.Resolver.WindowHours != 6 || cfg.Resolver.CursorPolicy != "newest_delivered" {
		t.Errorf("Resolver should not be overridden: got %+v", cfg.Resolver)
	}
	if cfg.Notify.Separator != "\n" || cfg.Notify.MaxLength != 100 {
		t.Errorf("Notify should not be overridden: got %+v", cfg.Notify)
	}
}

func TestPacingDisabled(t *testing.T) {
	cfg := &Config{Pacing: PacingConfig{Disabled: true}}
	setDefaults(cfg)
	if cfg.Pacing.Delay() != 0 {
		t.Errorf("禁用后延迟应为 0, got %v", cfg.Pacing.Delay())
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{
			Telegram: TelegramConfig{BotToken: "t", ChatID: "1", DebugChatID: "2"},
			Groups:   []GroupConfig{{Name: "en", URLs: []string{"https://example.com/rss"}}},
		}
		setDefaults(cfg)
		return cfg
	}

	if err := valid().Validate(true); err != nil {
		t.Fatalf("合法配置校验失败: %v", err)
	}

	cases := map[string]func(c *Config){
		"no groups":        func(c *Config) { c.Groups = nil },
		"empty group name": func(c *Config) { c.Groups[0].Name = " " },
		"no urls":          func(c *Config) { c.Groups[0].URLs = nil },
		"duplicate group":  func(c *Config) { c.Groups = append(c.Groups, c.Groups[0]) },
		"bad driver":       func(c *Config) { c.Store.Driver = "redis" },
		"rest no key":      func(c *Config) { c.Store.Driver = DriverREST; c.Store.REST.URL = "https://x" },
		"postgres no dsn":  func(c *Config) { c.Store.Driver = DriverPostgres },
		"no chat":          func(c *Config) { c.Telegram.ChatID = "" },
		"no debug chat":    func(c *Config) { c.Telegram.DebugChatID = "" },
		"bad policy":       func(c *Config) { c.Resolver.CursorPolicy = "oldest" },
		"bad log level":    func(c *Config) { c.Log.Level = "trace" },
		"kafka no brokers": func(c *Config) { c.Kafka.Enabled = true },
	}
	for name, mutate := range cases {
		cfg := valid()
		mutate(cfg)
		if err := cfg.Validate(true); err == nil {
			t.Errorf("%s: 期望校验失败", name)
		}
	}

	dry := valid()
	dry.Telegram = TelegramConfig{}
	if err := dry.Validate(false); err != nil {
		t.Errorf("dry-run 不应要求 telegram 配置: %v", err)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("期望文件不存在返回错误")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, "groups: [unclosed")); err == nil {
		t.Fatal("期望无效 YAML 返回错误")
	}
}
