package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/geckopulse/engine/internal/store"
)

// TelegramAPIURL is the Bot API base.
const TelegramAPIURL = "https://api.telegram.org"

// ErrNotConfigured is returned when the bot token or chat id is missing.
var ErrNotConfigured = errors.New("telegram not configured")

// Notifier delivers an enriched alert.
type Notifier interface {
	Notify(ctx context.Context, a store.Alert) error
}

// TelegramNotifier posts alerts to a Telegram chat through the Bot API.
type TelegramNotifier struct {
	token   string
	chatID  string
	gifURL  string
	baseURL string
	client  *http.Client
}

// NewTelegramNotifier creates a notifier. gifURL, when set, replaces the
// photo for alerts carrying a special tag.
func NewTelegramNotifier(token, chatID, gifURL, baseURL string, timeout time.Duration) *TelegramNotifier {
	if baseURL == "" {
		baseURL = TelegramAPIURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &TelegramNotifier{
		token:   token,
		chatID:  chatID,
		gifURL:  gifURL,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Notify formats and sends a. Alerts with a special tag go out as the
// configured animation; otherwise as a photo when an image is known, and as
// plain text last.
func (n *TelegramNotifier) Notify(ctx context.Context, a store.Alert) error {
	if n.token == "" || n.chatID == "" {
		return ErrNotConfigured
	}

	message := Format(a)
	method, payload := n.request(a, message)
	return n.call(ctx, method, payload)
}

func (n *TelegramNotifier) request(a store.Alert, message string) (string, map[string]any) {
	switch {
	case n.gifURL != "" && a.HasSpecialTag():
		return "sendAnimation", map[string]any{
			"chat_id":    n.chatID,
			"animation":  n.gifURL,
			"caption":    message,
			"parse_mode": "HTML",
		}
	case a.NFT.Image != "":
		return "sendPhoto", map[string]any{
			"chat_id":    n.chatID,
			"photo":      a.NFT.Image,
			"caption":    message,
			"parse_mode": "HTML",
		}
	default:
		return "sendMessage", map[string]any{
			"chat_id":                  n.chatID,
			"text":                     message,
			"parse_mode":               "HTML",
			"disable_web_page_preview": true,
		}
	}
}

// SendText posts a plain HTML message, used for connectivity checks.
func (n *TelegramNotifier) SendText(ctx context.Context, text string) error {
	if n.token == "" || n.chatID == "" {
		return ErrNotConfigured
	}
	return n.call(ctx, "sendMessage", map[string]any{
		"chat_id":    n.chatID,
		"text":       text,
		"parse_mode": "HTML",
	})
}

func (n *TelegramNotifier) call(ctx context.Context, method string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", method, err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/%s", n.baseURL, n.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		// The URL carries the bot token; keep it out of the error.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return fmt.Errorf("%s request failed: %w", method, err)
	}
	defer resp.Body.Close()

	var result telegramResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("%s: decode failed (status %d): %w", method, resp.StatusCode, err)
	}
	if !result.OK {
		return fmt.Errorf("%s: telegram error (status %d): %s", method, resp.StatusCode, result.Description)
	}
	return nil
}
