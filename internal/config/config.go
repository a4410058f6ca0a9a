// Package config 加载 newsalert 的 YAML 配置。
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/iabetor/newsalert/internal/logger"
	"gopkg.in/yaml.v3"
)

// 存储后端名称。
const (
	DriverREST     = "rest"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverFile     = "file"
)

// Config 是 newsalert 的顶层配置结构。加载后只读。
type Config struct {
	Log      logger.Config  `yaml:"log"`
	HTTP     HTTPConfig     `yaml:"http"`
	Pacing   PacingConfig   `yaml:"pacing"`
	Resolver ResolverConfig `yaml:"resolver"`
	Store    StoreConfig    `yaml:"store"`
	Telegram TelegramConfig `yaml:"telegram"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Notify   NotifyConfig   `yaml:"notify"`
	// Groups 按语言分组的订阅源，处理顺序与配置顺序一致。
	Groups []GroupConfig `yaml:"groups"`
}

// HTTPConfig 抓取订阅源和调用外部 API 的 HTTP 配置。
type HTTPConfig struct {
	TimeoutSec int    `yaml:"timeout_sec"`
	UserAgent  string `yaml:"user_agent"`
}

// Timeout 返回单次请求超时时间。
func (c HTTPConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// PacingConfig 调用存储和通知服务前的固定延迟。
type PacingConfig struct {
	DelayMs  int  `yaml:"delay_ms"`
	Disabled bool `yaml:"disabled"`
}

// Delay 返回实际等待时间，禁用时为 0。
func (c PacingConfig) Delay() time.Duration {
	if c.Disabled {
		return 0
	}
	return time.Duration(c.DelayMs) * time.Millisecond
}

// ResolverConfig 增量计算配置。
type ResolverConfig struct {
	// WindowHours 无游标时只推送最近多少小时内的条目。
	WindowHours int `yaml:"window_hours"`
	// CursorPolicy newest_seen 或 newest_delivered。
	CursorPolicy string `yaml:"cursor_policy"`
}

// Window 返回时间窗口。
func (c ResolverConfig) Window() time.Duration {
	return time.Duration(c.WindowHours) * time.Hour
}

// StoreConfig 游标存储配置。
type StoreConfig struct {
	Driver     string         `yaml:"driver"`
	TimeoutSec int            `yaml:"timeout_sec"`
	REST       RESTConfig     `yaml:"rest"`
	SQLite     SQLiteConfig   `yaml:"sqlite"`
	Postgres   PostgresConfig `yaml:"postgres"`
	File       FileConfig     `yaml:"file"`
}

// Timeout 返回单次存储调用超时时间。
func (c StoreConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// RESTConfig PostgREST / Supabase 行存储配置。
type RESTConfig struct {
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
	Table  string `yaml:"table"`
}

// SQLiteConfig 本地 SQLite 配置。
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// PostgresConfig PostgreSQL 配置。
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// FileConfig JSON 文件存储配置。
type FileConfig struct {
	Dir string `yaml:"dir"`
}

// TelegramConfig Telegram Bot 配置。
// 主 bot 推送到频道，调试 bot 接收所有消息的副本和错误信息。
type TelegramConfig struct {
	APIURL            string `yaml:"api_url"`
	BotToken          string `yaml:"bot_token"`
	ChatID            string `yaml:"chat_id"`
	DebugBotToken     string `yaml:"debug_bot_token"`
	DebugChatID       string `yaml:"debug_chat_id"`
	MessagesPerMinute int    `yaml:"messages_per_minute"`
}

// KafkaConfig 可选的 Kafka 推送目标。
type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// NotifyConfig 消息格式配置。
type NotifyConfig struct {
	// Template 每条新闻一行，支持 {link} 和 {title} 占位符。
	Template  string `yaml:"template"`
	Separator string `yaml:"separator"`
	// MaxLength 合并后的消息超过该字节数时改为逐条发送。
	MaxLength int `yaml:"max_length"`
}

// GroupConfig 一个语言分组：订阅源列表和关键词规则。
type GroupConfig struct {
	Name             string   `yaml:"name"`
	URLs             []string `yaml:"urls"`
	Keywords         []string `yaml:"keywords"`
	ExcludedKeywords []string `yaml:"excluded_keywords"`
}

// Load 读取 YAML 配置文件并返回 Config。
// 支持 ${VAR_NAME} 形式的环境变量展开。
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件 %s 失败: %w", path, err)
	}

	// 展开环境变量，如 ${TELEGRAM_BOT_TOKEN}
	expanded := os.Expand(string(data), func(key string) string {
		return os.Getenv(key)
	})

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件 %s 失败: %w", path, err)
	}

	setDefaults(cfg)
	return cfg, nil
}

// setDefaults 为未设置的配置项填充默认值。
func setDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	cfg.Log.File = expandHome(cfg.Log.File)

	if cfg.HTTP.TimeoutSec == 0 {
		cfg.HTTP.TimeoutSec = 10
	}
	if cfg.HTTP.UserAgent == "" {
		cfg.HTTP.UserAgent = "newsalert/1.0 RSS Reader"
	}
	if cfg.Pacing.DelayMs == 0 {
		cfg.Pacing.DelayMs = 1000
	}
	if cfg.Resolver.WindowHours == 0 {
		cfg.Resolver.WindowHours = 24
	}
	if cfg.Resolver.CursorPolicy == "" {
		cfg.Resolver.CursorPolicy = "newest_seen"
	}

	cfg.Store.Driver = strings.ToLower(strings.TrimSpace(cfg.Store.Driver))
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = DriverSQLite
	}
	if cfg.Store.TimeoutSec == 0 {
		cfg.Store.TimeoutSec = 10
	}
	if cfg.Store.REST.Table == "" {
		cfg.Store.REST.Table = "feed_cursors"
	}
	cfg.Store.REST.URL = strings.TrimSuffix(strings.TrimSpace(cfg.Store.REST.URL), "/")
	cfg.Store.REST.APIKey = strings.TrimSpace(cfg.Store.REST.APIKey)
	cfg.Store.SQLite.Path = expandHome(cfg.Store.SQLite.Path)
	if cfg.Store.File.Dir == "" {
		cfg.Store.File.Dir = "~/.newsalert"
	}
	cfg.Store.File.Dir = expandHome(cfg.Store.File.Dir)

	if cfg.Telegram.APIURL == "" {
		cfg.Telegram.APIURL = "https://api.telegram.org"
	}
	cfg.Telegram.APIURL = strings.TrimSuffix(cfg.Telegram.APIURL, "/")
	// 去除 token 两端可能的空白（环境变量展开后常见）
	cfg.Telegram.BotToken = strings.TrimSpace(cfg.Telegram.BotToken)
	cfg.Telegram.DebugBotToken = strings.TrimSpace(cfg.Telegram.DebugBotToken)
	if cfg.Telegram.DebugBotToken == "" {
		cfg.Telegram.DebugBotToken = cfg.Telegram.BotToken
	}
	if cfg.Telegram.MessagesPerMinute == 0 {
		cfg.Telegram.MessagesPerMinute = 20
	}

	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "newsalert"
	}

	if cfg.Notify.Template == "" {
		cfg.Notify.Template = "[{link}]: {title}"
	}
	if cfg.Notify.Separator == "" {
		cfg.Notify.Separator = "\r\n"
	}
	if cfg.Notify.MaxLength == 0 {
		cfg.Notify.MaxLength = 4096
	}
}

// Validate 检查必填项。requireTelegram 为 false 时（例如 dry-run）不检查 Telegram 配置。
func (c *Config) Validate(requireTelegram bool) error {
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return err
	}

	if len(c.Groups) == 0 {
		return fmt.Errorf("groups 不能为空")
	}
	seen := make(map[string]bool, len(c.Groups))
	for i, g := range c.Groups {
		if strings.TrimSpace(g.Name) == "" {
			return fmt.Errorf("groups[%d].name 不能为空", i)
		}
		if seen[g.Name] {
			return fmt.Errorf("分组 %s 重复", g.Name)
		}
		seen[g.Name] = true
		if len(g.URLs) == 0 {
			return fmt.Errorf("分组 %s 没有配置 urls", g.Name)
		}
		for j, u := range g.URLs {
			if strings.TrimSpace(u) == "" {
				return fmt.Errorf("分组 %s 的 urls[%d] 为空", g.Name, j)
			}
		}
	}

	switch c.Resolver.CursorPolicy {
	case "newest_seen", "newest_delivered":
	default:
		return fmt.Errorf("不支持的游标策略: %s", c.Resolver.CursorPolicy)
	}

	switch c.Store.Driver {
	case DriverREST:
		if c.Store.REST.URL == "" || c.Store.REST.APIKey == "" {
			return fmt.Errorf("store.rest 需要配置 url 和 api_key")
		}
	case DriverPostgres:
		if c.Store.Postgres.DSN == "" {
			return fmt.Errorf("store.postgres 需要配置 dsn")
		}
	case DriverSQLite, DriverFile:
	default:
		return fmt.Errorf("不支持的存储类型: %s", c.Store.Driver)
	}

	if requireTelegram {
		if c.Telegram.BotToken == "" || c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram 需要配置 bot_token 和 chat_id")
		}
		if c.Telegram.DebugChatID == "" {
			return fmt.Errorf("telegram 需要配置 debug_chat_id")
		}
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka 已启用但没有配置 brokers")
	}
	if c.Notify.MaxLength < 0 {
		return fmt.Errorf("notify.max_length 不能为负数")
	}
	return nil
}

// expandHome 将 ~/ 开头的路径替换为用户主目录。
func expandHome(p string) string {
	if !strings.HasPrefix(p, "~/") {
		return p
	}
	home, _ := os.UserHomeDir()
	if home == "" {
		return p
	}
	return home + p[1:]
}
