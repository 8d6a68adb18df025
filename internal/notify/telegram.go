package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
)

// TelegramTransport delivers messages through the Telegram Bot API
// sendMessage endpoint. channelID is the chat ID as a string.
type TelegramTransport struct {
	apiBase string
	token   string
	client  *http.Client
}

// NewTelegramTransport builds a transport for the given bot token.
// apiBase is normally https://api.telegram.org; tests point it at a
// local server.
func NewTelegramTransport(apiBase, token string) *TelegramTransport {
	return &TelegramTransport{
		apiBase: apiBase,
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type sendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

// Deliver posts the message. Server-side (5xx) and network failures are
// tagged transient; 4xx responses are permanent.
func (t *TelegramTransport) Deliver(ctx context.Context, channelID, text string) error {
	body, err := json.Marshal(sendMessageRequest{ChatID: channelID, Text: text})
	if err != nil {
		return fmt.Errorf("encode sendMessage: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return Transient(fmt.Errorf("send message: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return Transient(fmt.Errorf("telegram responded %d", resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telegram rejected message: %d %s", resp.StatusCode, detail)
	}
	return nil
}
