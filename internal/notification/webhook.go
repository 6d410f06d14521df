package notification

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// WebhookNotifier POSTs alerts as JSON to an HTTP endpoint.
type WebhookNotifier struct {
	url    string
	client *http.Client
	log    *slog.Logger
}

func NewWebhookNotifier(url string, log *slog.Logger) *WebhookNotifier {
	return &WebhookNotifier{url: url, client: newHTTPClient(), log: log}
}

type webhookPayload struct {
	Alert
	SentAt time.Time `json:"sent_at"`
}

func (w *WebhookNotifier) Send(ctx context.Context, alert Alert) error {
	if err := postJSON(ctx, w.client, "webhook", w.url, webhookPayload{Alert: alert, SentAt: time.Now().UTC()}); err != nil {
		return err
	}
	w.log.Debug("webhook alert sent", "symbol", alert.Symbol)
	return nil
}
