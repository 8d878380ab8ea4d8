package nlu

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"chatlog/internal/pkg/ctxutil"
	"chatlog/internal/pkg/logger"
)

// ErrEmptyReply webhook 返回成功但没有任何文本回复
var ErrEmptyReply = errors.New("nlu returned no reply")

// DefaultTimeout 单次 webhook 调用的超时时间
const DefaultTimeout = 10 * time.Second

// Config NLU 客户端配置
type Config struct {
	BaseURL string        // webhook 基础地址，如 http://localhost:5005
	Timeout time.Duration // 请求超时，默认 10s
}

// Client Rasa REST channel 客户端
// 参考: POST {base}/webhooks/rest/webhook, POST {base}/conversations/{sender}/tracker/events
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

// BotMessage webhook 返回的单条回复
type BotMessage struct {
	RecipientID string `json:"recipient_id"`
	Text        string `json:"text,omitempty"`
	Image       string `json:"image,omitempty"`
}

// NewClient 创建 NLU 客户端
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("NLU base url is required")
	}
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid NLU base url: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: logger.Component("nlu"),
	}, nil
}

// Send 将用户消息转发给 webhook，返回全部回复
func (c *Client) Send(ctx context.Context, senderID, message string) ([]BotMessage, error) {
	body := map[string]string{
		"sender":  senderID,
		"message": message,
	}

	var replies []BotMessage
	if err := c.post(ctx, "/webhooks/rest/webhook", body, &replies); err != nil {
		return nil, err
	}
	return replies, nil
}

// Reply 转发消息并把所有文本回复按行合并
func (c *Client) Reply(ctx context.Context, senderID, message string) (string, error) {
	replies, err := c.Send(ctx, senderID, message)
	if err != nil {
		return "", err
	}

	text := JoinText(replies)
	if text == "" {
		return "", ErrEmptyReply
	}
	return text, nil
}

// Restart 重置 sender 的对话追踪器，开始新对话时调用
func (c *Client) Restart(ctx context.Context, senderID string) error {
	path := "/conversations/" + url.PathEscape(senderID) + "/tracker/events"
	return c.post(ctx, path, map[string]string{"event": "restart"}, nil)
}

// JoinText 合并回复中的文本
func JoinText(replies []BotMessage) string {
	parts := make([]string, 0, len(replies))
	for _, r := range replies {
		if t := strings.TrimSpace(r.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n")
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	reqBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	requestID := ctxutil.RequestID(ctx)
	if requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}

	c.log.Debug().Str("path", path).Str("request_id", requestID).Msg("sending NLU request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("NLU request failed: status %d, body: %s", resp.StatusCode, truncate(string(respBody), 256))
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
