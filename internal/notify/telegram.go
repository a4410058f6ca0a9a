package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/iabetor/newsalert/internal/failure"
	"github.com/iabetor/newsalert/internal/throttle"
	"golang.org/x/time/rate"
)

// Telegram 通过 Bot API 的 sendMessage 推送到一个聊天。
type Telegram struct {
	name       string
	apiURL     string
	token      string
	chatID     string
	httpClient *http.Client
	pacer      *throttle.Pacer
	limiter    *rate.Limiter
}

// TelegramOptions Telegram 目标配置。
type TelegramOptions struct {
	Name   string
	APIURL string
	Token  string
	ChatID string
	// Timeout 单次请求超时。
	Timeout time.Duration
	// MessagesPerMinute 同一聊天每分钟最多发送的消息数，<= 0 不限制。
	MessagesPerMinute int
	Pacer             *throttle.Pacer
}

// NewTelegram 创建 Telegram 推送目标。
func NewTelegram(opts TelegramOptions) *Telegram {
	if opts.APIURL == "" {
		opts.APIURL = "https://api.telegram.org"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Name == "" {
		opts.Name = "telegram:" + opts.ChatID
	}

	t := &Telegram{
		name:       opts.Name,
		apiURL:     strings.TrimSuffix(opts.APIURL, "/"),
		token:      opts.Token,
		chatID:     opts.ChatID,
		httpClient: &http.Client{Timeout: opts.Timeout},
		pacer:      opts.Pacer,
	}
	// 群组和频道的限制大约是每分钟 20 条
	if opts.MessagesPerMinute > 0 {
		t.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.MessagesPerMinute)), opts.MessagesPerMinute)
	}
	return t
}

// Name 返回目标名称。
func (t *Telegram) Name() string { return t.name }

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

// Send 发送一条纯文本消息。
func (t *Telegram) Send(ctx context.Context, text string) error {
	if err := t.pacer.Wait(ctx); err != nil {
		return err
	}
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	data, err := json.Marshal(sendMessageRequest{
		ChatID:                t.chatID,
		Text:                  text,
		DisableWebPagePreview: true,
	})
	if err != nil {
		return fmt.Errorf("序列化请求体失败: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.apiURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return failure.New(failure.Delivery, "", fmt.Errorf("%s: 创建请求失败: %s", t.name, t.redact(err.Error())))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		// 错误信息里带有完整 URL，需要去掉 token
		return failure.New(failure.Delivery, "", fmt.Errorf("%s: 请求失败: %s", t.name, t.redact(err.Error())))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return failure.New(failure.Delivery, "", fmt.Errorf("%s: 读取响应失败: %w", t.name, err))
	}

	var result apiResponse
	if err := json.Unmarshal(body, &result); err != nil || resp.StatusCode >= 400 || !result.OK {
		desc := result.Description
		if desc == "" {
			desc = strings.TrimSpace(string(body))
		}
		return failure.Newf(failure.Delivery, "", "%s: API 错误 (状态码 %d): %s", t.name, resp.StatusCode, desc)
	}
	return nil
}

func (t *Telegram) redact(s string) string {
	if t.token == "" {
		return s
	}
	return strings.ReplaceAll(s, t.token, "<token>")
}
