package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// WebhookObserver POSTs each event as JSON to a push gateway (FCM relay,
// SMS bridge). A non-2xx answer counts as a failed delivery.
type WebhookObserver struct {
	Endpoint string
	Token    string
	Client   *http.Client
}

func NewWebhookObserver(endpoint, token string) *WebhookObserver {
	return &WebhookObserver{Endpoint: endpoint, Token: token, Client: &http.Client{Timeout: 3 * time.Second}}
}

func (w *WebhookObserver) Name() string { return "webhook" }

func (w *WebhookObserver) Notify(ctx context.Context, ev Event) error {
	b, err := json.Marshal(map[string]any{"event": ev})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.Endpoint, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if w.Token != "" {
		req.Header.Set("Authorization", "Bearer "+w.Token)
	}
	resp, err := w.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("webhook %s answered %d", w.Endpoint, resp.StatusCode)
	}
	return nil
}
