package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jpillora/backoff"
	"github.com/valyala/fasttemplate"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/dushixiang/lynx/internal/config"
	"github.com/dushixiang/lynx/internal/models"
)

// Notifier 外部通知渠道。核心只负责调用，投递失败不会影响告警创建。
type Notifier interface {
	Notify(ctx context.Context, alert models.Alert) error
}

// messageTemplate 告警消息模板
const messageTemplate = "【{severity}】{type}\n时间: {time}\n详情: {detail}"

// RenderMessage 渲染告警消息正文
func RenderMessage(alert models.Alert) string {
	detail := "-"
	if len(alert.Data) > 0 {
		if data, err := json.Marshal(alert.Data); err == nil {
			detail = string(data)
		}
	}

	t := fasttemplate.New(messageTemplate, "{", "}")
	return t.ExecuteString(map[string]any{
		"severity": string(alert.Severity),
		"type":     string(alert.Type),
		"time":     alert.CreatedAt.Format("2006-01-02 15:04:05"),
		"detail":   detail,
	})
}

// EmailNotifier 邮件通知
type EmailNotifier struct {
	cfg    config.EmailConfig
	dialer *gomail.Dialer
}

// NewEmail 创建邮件通知渠道
func NewEmail(cfg config.EmailConfig) *EmailNotifier {
	return &EmailNotifier{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

// Notify 发送告警邮件
func (n *EmailNotifier) Notify(ctx context.Context, alert models.Alert) error {
	m := gomail.NewMessage()
	m.SetHeader("From", n.cfg.From)
	m.SetHeader("To", n.cfg.To...)
	m.SetHeader("Subject", fmt.Sprintf("[lynx] %s %s", alert.Severity, alert.Type))
	m.SetBody("text/plain", RenderMessage(alert))

	return n.dialer.DialAndSend(m)
}

// WebhookNotifier 通用 Webhook 通知，POST JSON 到配置地址
type WebhookNotifier struct {
	url    string
	client *http.Client
}

// NewWebhook 创建 Webhook 通知渠道
func NewWebhook(cfg config.WebhookConfig) *WebhookNotifier {
	return &WebhookNotifier{
		url:    cfg.URL,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Notify 推送告警到 Webhook
func (n *WebhookNotifier) Notify(ctx context.Context, alert models.Alert) error {
	payload, err := json.Marshal(map[string]any{
		"alert":   alert,
		"message": RenderMessage(alert),
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook 返回状态码 %d", resp.StatusCode)
	}
	return nil
}

// Retry 包装单个渠道，失败后按退避间隔重试
type Retry struct {
	next        Notifier
	maxAttempts int
}

// WithRetry 创建带重试的通知渠道
func WithRetry(next Notifier, maxAttempts int) *Retry {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Retry{next: next, maxAttempts: maxAttempts}
}

// Notify 投递告警，失败后最多重试 maxAttempts 次
func (r *Retry) Notify(ctx context.Context, alert models.Alert) error {
	b := &backoff.Backoff{
		Min:    500 * time.Millisecond,
		Max:    5 * time.Second,
		Factor: 2,
		Jitter: true,
	}

	var err error
	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		if err = r.next.Notify(ctx, alert); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.Duration()):
		}
	}
	return err
}

// Multi 多渠道通知，逐个投递并记录失败
type Multi struct {
	channels []Notifier
	logger   *zap.Logger
}

// Notify 向所有渠道投递，任一渠道成功即视为成功
func (m *Multi) Notify(ctx context.Context, alert models.Alert) error {
	var lastErr error
	delivered := false
	for _, channel := range m.channels {
		if err := channel.Notify(ctx, alert); err != nil {
			m.logger.Error("通知渠道投递失败", zap.Error(err))
			lastErr = err
		} else {
			delivered = true
		}
	}
	if delivered {
		return nil
	}
	return lastErr
}

// FromConfig 按配置构建通知器，没有启用任何渠道时返回 nil
func FromConfig(logger *zap.Logger, cfg config.NotifyConfig) Notifier {
	var channels []Notifier
	if cfg.Email != nil && cfg.Email.Enabled {
		channels = append(channels, WithRetry(NewEmail(*cfg.Email), 3))
	}
	if cfg.Webhook != nil && cfg.Webhook.Enabled {
		channels = append(channels, WithRetry(NewWebhook(*cfg.Webhook), 3))
	}
	if len(channels) == 0 {
		return nil
	}
	return &Multi{channels: channels, logger: logger}
}
