package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Telegram pushes messages through the Telegram Bot API. When the full
// message is rejected (too long, markup issues, transient failure) it falls
// back once to the reduced summary form before giving up.
type Telegram struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegram constructs a Telegram sink.
func NewTelegram(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *Telegram {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &Telegram{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "telegram_sink").Logger(),
	}
}

// Send delivers the full message, retrying once with the reduced summary on
// failure. The returned error wraps the original full-message failure when
// even the fallback could not be delivered.
func (t *Telegram) Send(ctx context.Context, msg Message) error {
	text := msg.Body
	if text == "" {
		text = msg.Summary
	}

	err := t.sendText(ctx, text)
	if err == nil {
		t.logger.Info().Str("monitor", msg.Monitor).Msg("notification sent")
		return nil
	}

	if msg.Summary == "" || msg.Summary == text {
		return err
	}

	t.logger.Warn().Err(err).Str("monitor", msg.Monitor).Msg("full message rejected; retrying with summary")
	fallback := fmt.Sprintf("[%s] %s", msg.Monitor, msg.Summary)
	if fbErr := t.sendText(ctx, fallback); fbErr != nil {
		return &DeliveryError{Channel: "telegram", Err: fmt.Errorf("full: %v; fallback: %w", err, fbErr)}
	}

	t.logger.Info().Str("monitor", msg.Monitor).Msg("fallback notification sent")
	return nil
}

func (t *Telegram) sendText(ctx context.Context, text string) error {
	payload := map[string]string{
		"chat_id": t.chatID,
		"text":    text,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return &DeliveryError{Channel: "telegram", Err: fmt.Errorf("marshal payload: %w", err)}
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return &DeliveryError{Channel: "telegram", Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return &DeliveryError{Channel: "telegram", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &DeliveryError{Channel: "telegram", Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil && !result.OK {
		return &DeliveryError{Channel: "telegram", Err: fmt.Errorf("api returned ok=false")}
	}
	return nil
}

var _ Sink = (*Telegram)(nil)
