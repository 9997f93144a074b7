package notifications

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultAPIBase = "https://api.telegram.org"

// TelegramNotifier delivers trading events to a Telegram chat through the
// Bot API sendMessage endpoint.
type TelegramNotifier struct {
	token   string
	chatID  string
	apiBase string
	client  *http.Client
}

// NewTelegramNotifier creates a notifier for the given bot token and chat.
func NewTelegramNotifier(token, chatID string) *TelegramNotifier {
	return &TelegramNotifier{
		token:   token,
		chatID:  chatID,
		apiBase: defaultAPIBase,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *TelegramNotifier) NotifySessionStart(mode string, pairs []string) error {
	return t.send(fmt.Sprintf("🚀 *Stonkers started*\n\nMode: %s\nPairs: %s",
		mode, strings.Join(pairs, ", ")))
}

func (t *TelegramNotifier) NotifyTradeClosed(pair, direction string, pnl float64, reason string) error {
	emoji := "✅"
	if pnl < 0 {
		emoji = "🔻"
	}
	return t.send(fmt.Sprintf("%s *Trade closed*\n\nPair: %s (%s)\nP&L: $%.2f\nReason: %s",
		emoji, pair, direction, pnl, reason))
}

func (t *TelegramNotifier) NotifyHalt(reason string) error {
	return t.send("🚨 *TRADING HALTED*\n\n" + reason)
}

func (t *TelegramNotifier) send(text string) error {
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.token)

	data := url.Values{}
	data.Set("chat_id", t.chatID)
	data.Set("text", text)
	data.Set("parse_mode", "Markdown")

	resp, err := t.client.Post(endpoint, "application/x-www-form-urlencoded",
		strings.NewReader(data.Encode()))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}
	return nil
}
