// Package notify delivers ranking alerts to an external webhook.
package notify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/use-agent/rankwatch/models"
)

// SignatureHeader carries "sha256=<hex>" of the body when a secret is set.
const SignatureHeader = "X-Rankwatch-Signature"

// EventAlerts is the only event type delivered today.
const EventAlerts = "alerts.emitted"

// Event is the payload sent to the webhook endpoint.
type Event struct {
	Type      string               `json:"type"`
	RunID     string               `json:"run_id"`
	Timestamp int64                `json:"timestamp"`
	Alerts    []models.AlertRecord `json:"alerts"`
}

// Webhook posts alert events. Transport failures and 5xx responses are
// retried with backoff; 4xx responses are not.
type Webhook struct {
	client *resty.Client
	url    string
	secret string
	now    func() time.Time
}

// NewWebhook creates a Webhook for url. An empty secret disables signing.
func NewWebhook(url, secret string) *Webhook {
	client := resty.New().
		SetTimeout(10*time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "Rankwatch-Webhook/1.0").
		SetRetryCount(3).
		SetRetryWaitTime(1*time.Second).
		SetRetryMaxWaitTime(30*time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || (r != nil && r.StatusCode() >= 500)
		})
	return &Webhook{client: client, url: url, secret: secret, now: time.Now}
}

// Sign returns the signature header value for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Notify delivers the alerts emitted by one run. An empty slice is a no-op.
func (w *Webhook) Notify(ctx context.Context, runID string, alerts []models.AlertRecord) error {
	if len(alerts) == 0 {
		return nil
	}
	body, err := json.Marshal(&Event{
		Type:      EventAlerts,
		RunID:     runID,
		Timestamp: w.now().Unix(),
		Alerts:    alerts,
	})
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	req := w.client.R().SetContext(ctx).SetBody(body)
	if w.secret != "" {
		req.SetHeader(SignatureHeader, Sign(w.secret, body))
	}
	resp, err := req.Post(w.url)
	if err != nil {
		return fmt.Errorf("webhook: deliver: %w", err)
	}
	if resp.StatusCode() >= 400 {
		return fmt.Errorf("webhook: endpoint returned status %d", resp.StatusCode())
	}

	slog.Info("webhook delivered",
		"run_id", runID,
		"alerts", len(alerts),
		"attempts", resp.Request.Attempt,
	)
	return nil
}
