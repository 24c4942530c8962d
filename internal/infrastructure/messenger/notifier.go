package messenger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sngm3741/form-intake/api/internal/intake/domain"
	"github.com/sngm3741/form-intake/api/internal/intake/format"
)

const (
	defaultTimeout      = 5 * time.Second
	discordAttempts     = 3
	discordRetryDelay   = 200 * time.Millisecond
	maxSummaryFields    = 8
	maxSummaryValueRune = 200
)

// Config は通知先ゲートウェイの設定。
type Config struct {
	Endpoint           string
	DiscordDestination string
	SlackDestination   string
	AdminBaseURL       string
	Timeout            time.Duration
	Labels             *format.Labeler
}

// Notifier sends an admin notification for each delivered submission
// through the messenger gateway: Discord first, Slack as fallback.
type Notifier struct {
	endpoint     string
	discordDest  string
	slackDest    string
	adminBaseURL string
	labels       *format.Labeler
	httpClient   *http.Client
	sleep        func(context.Context, time.Duration) error
}

// NewNotifier returns nil when no endpoint or destination is configured.
func NewNotifier(cfg Config, client *http.Client) *Notifier {
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	discord := strings.TrimSpace(cfg.DiscordDestination)
	slack := strings.TrimSpace(cfg.SlackDestination)
	if endpoint == "" || (discord == "" && slack == "") {
		return nil
	}
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	labels := cfg.Labels
	if labels == nil {
		labels = format.NewLabeler(format.DefaultLabelOverrides)
	}
	return &Notifier{
		endpoint:     endpoint,
		discordDest:  discord,
		slackDest:    slack,
		adminBaseURL: strings.TrimRight(strings.TrimSpace(cfg.AdminBaseURL), "/"),
		labels:       labels,
		httpClient:   client,
		sleep:        sleepContext,
	}
}

// Name implements application.Sink.
func (n *Notifier) Name() string { return "messenger" }

// Deliver は Discord へ最大 3 回送信し、失敗した場合は Slack へ 1 回だけ送る。
func (n *Notifier) Deliver(ctx context.Context, record *domain.Record, rendered format.Rendered) error {
	if record == nil {
		return errors.New("submission record is nil")
	}
	identifier := strings.TrimSpace(record.ID)
	if identifier == "" {
		identifier = "admin"
	}

	var discordErr, slackErr error
	if n.discordDest != "" {
		discordErr = n.sendWithRetry(ctx, n.discordDest, identifier, BuildDiscordMessage(n.adminBaseURL, n.labels, record), discordAttempts, discordRetryDelay)
		if discordErr == nil {
			return nil
		}
		discordErr = fmt.Errorf("discord: %w", discordErr)
	}
	if n.slackDest != "" {
		slackErr = n.sendWithRetry(ctx, n.slackDest, identifier, BuildSlackMessage(n.adminBaseURL, n.labels, record), 1, 0)
		if slackErr == nil {
			return nil
		}
		slackErr = fmt.Errorf("slack: %w", slackErr)
	}
	return combineErrors(discordErr, slackErr)
}

// BuildDiscordMessage は Discord 向けの markdown サマリーを組み立てる。
func BuildDiscordMessage(adminBaseURL string, labels *format.Labeler, record *domain.Record) string {
	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("**新しいフォーム送信があります** (`%s`)\n", record.ID))
	if len(record.Services) > 0 {
		builder.WriteString(fmt.Sprintf("- サービス: %s\n", strings.Join(record.Services, " / ")))
	}
	for _, line := range summaryLines(labels, record) {
		builder.WriteString("- " + line + "\n")
	}
	if link := adminLink(adminBaseURL, record.ID); link != "" {
		builder.WriteString(fmt.Sprintf("[管理画面で確認](%s)\n", link))
	}
	return builder.String()
}

// BuildSlackMessage は Slack 向けのプレーンテキストを組み立てる。
func BuildSlackMessage(adminBaseURL string, labels *format.Labeler, record *domain.Record) string {
	var builder strings.Builder
	builder.WriteString(fmt.Sprintf(":inbox_tray: 新しいフォーム送信があります (%s)\n", record.ID))
	if len(record.Services) > 0 {
		builder.WriteString(fmt.Sprintf("サービス: %s\n", strings.Join(record.Services, " / ")))
	}
	for _, line := range summaryLines(labels, record) {
		builder.WriteString(line + "\n")
	}
	if link := adminLink(adminBaseURL, record.ID); link != "" {
		builder.WriteString(fmt.Sprintf("管理画面: %s\n", link))
	}
	return builder.String()
}

func summaryLines(labels *format.Labeler, record *domain.Record) []string {
	lines := make([]string, 0, maxSummaryFields+1)
	shown := 0
	for _, field := range record.Fields {
		text, ok := summaryValue(field.Value)
		if !ok {
			continue
		}
		if shown == maxSummaryFields {
			lines = append(lines, "…")
			break
		}
		lines = append(lines, fmt.Sprintf("%s: %s", labels.Label(field.Key), text))
		shown++
	}
	return lines
}

func summaryValue(value domain.Value) (string, bool) {
	var text string
	switch v := value.(type) {
	case domain.Text:
		text = v.Value
	case domain.Number:
		text = v.String()
	case domain.Boolean:
		text = "No"
		if v.Value {
			text = "Yes"
		}
	case domain.List:
		text = strings.Join(v.Items, ", ")
	case domain.FileRef:
		text = v.Name
	default:
		return "", false
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}
	runes := []rune(text)
	if len(runes) > maxSummaryValueRune {
		text = string(runes[:maxSummaryValueRune]) + "…"
	}
	return text, true
}

func adminLink(adminBaseURL, id string) string {
	adminBaseURL = strings.TrimRight(strings.TrimSpace(adminBaseURL), "/")
	if adminBaseURL == "" || strings.TrimSpace(id) == "" {
		return ""
	}
	return adminBaseURL + "/" + id
}

func (n *Notifier) sendWithRetry(ctx context.Context, destination, userID, text string, attempts int, delay time.Duration) error {
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		if lastErr = n.send(ctx, destination, userID, text); lastErr == nil {
			return nil
		}
		if delay > 0 && i < attempts-1 {
			if err := n.sleep(ctx, delay); err != nil {
				return lastErr
			}
		}
	}
	return lastErr
}

func (n *Notifier) send(ctx context.Context, destination, userID, text string) error {
	payload := map[string]any{
		"userId":      userID,
		"text":        text,
		"destination": destination,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("メッセンジャー送信用ペイロードの作成に失敗: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint+"/messages", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("メッセンジャー送信リクエストの作成に失敗: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("メッセンジャー送信リクエストに失敗: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode >= 400 {
		message, _ := io.ReadAll(io.LimitReader(res.Body, 1<<16))
		return fmt.Errorf("メッセンジャー送信でエラーが発生: status=%d body=%s", res.StatusCode, strings.TrimSpace(string(message)))
	}
	return nil
}

func combineErrors(errs ...error) error {
	parts := make([]string, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			parts = append(parts, err.Error())
		}
	}
	if len(parts) == 0 {
		return nil
	}
	return errors.New(strings.Join(parts, "; "))
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
