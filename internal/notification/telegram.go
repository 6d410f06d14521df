package notification

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

const telegramAPI = "https://api.telegram.org"

// TelegramNotifier posts alerts to a chat through the Bot API.
type TelegramNotifier struct {
	token   string
	chatID  string
	baseURL string
	client  *http.Client
	log     *slog.Logger
}

func NewTelegramNotifier(token, chatID string, log *slog.Logger) *TelegramNotifier {
	return &TelegramNotifier{token: token, chatID: chatID, baseURL: telegramAPI, client: newHTTPClient(), log: log}
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

func (t *TelegramNotifier) Send(ctx context.Context, alert Alert) error {
	msg := telegramMessage{ChatID: t.chatID, Text: telegramText(alert), ParseMode: "MarkdownV2"}
	if err := postJSON(ctx, t.client, "telegram", t.baseURL+"/bot"+t.token+"/sendMessage", msg); err != nil {
		return err
	}
	t.log.Debug("telegram alert sent", "symbol", alert.Symbol)
	return nil
}

// telegramText renders a bold title over the message body.
func telegramText(a Alert) string {
	prefix := "🟢"
	if a.Level == AlertWarning {
		prefix = "⚠️"
	}
	return prefix + " *" + escapeMarkdown(a.Title) + "*\n\n" + escapeMarkdown(a.Message)
}

var markdownEscaper = func() *strings.Replacer {
	var pairs []string
	for _, c := range "\\_*[]()~`>#+-=|{}.!" {
		pairs = append(pairs, string(c), "\\"+string(c))
	}
	return strings.NewReplacer(pairs...)
}()

// escapeMarkdown escapes the characters MarkdownV2 reserves.
func escapeMarkdown(s string) string { return markdownEscaper.Replace(s) }
