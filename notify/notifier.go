// Package notify implements the outbound notification boundaries: alerts on
// cycle failure and escalation hand-off to the human-approval channel.
// Notification is fire-and-forget; the cycle never blocks on a human.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/autonomos/orchestrator/domain"
)

// Notifier delivers alerts and escalation notifications.
type Notifier interface {
	SendAlert(ctx context.Context, message, priority string) error
	NotifyEscalations(ctx context.Context, escalations []domain.Escalation) error
}

// Webhook posts notifications as JSON to a configured endpoint.
type Webhook struct {
	url        string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewWebhook creates a webhook notifier.
func NewWebhook(url string, logger *zap.Logger) *Webhook {
	return &Webhook{
		url:    strings.TrimSuffix(url, "/"),
		logger: logger,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type alertPayload struct {
	Type     string `json:"type"`
	Message  string `json:"message"`
	Priority string `json:"priority"`
}

type escalationPayload struct {
	Type        string              `json:"type"`
	Escalations []domain.Escalation `json:"escalations"`
}

// SendAlert posts an alert to the webhook.
func (w *Webhook) SendAlert(ctx context.Context, message, priority string) error {
	return w.post(ctx, alertPayload{Type: "alert", Message: message, Priority: priority})
}

// NotifyEscalations posts pending escalations to the webhook. No response
// is awaited beyond delivery.
func (w *Webhook) NotifyEscalations(ctx context.Context, escalations []domain.Escalation) error {
	if len(escalations) == 0 {
		return nil
	}
	return w.post(ctx, escalationPayload{Type: "escalations", Escalations: escalations})
}

func (w *Webhook) post(ctx context.Context, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to deliver notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("notification endpoint returned status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// Log is a notifier that only writes to the log. Used when no webhook is
// configured.
type Log struct {
	Logger *zap.Logger
}

func (l *Log) SendAlert(_ context.Context, message, priority string) error {
	l.Logger.Warn("alert", zap.String("priority", priority), zap.String("message", message))
	return nil
}

func (l *Log) NotifyEscalations(_ context.Context, escalations []domain.Escalation) error {
	for _, esc := range escalations {
		l.Logger.Info("escalation awaiting approval",
			zap.String("escalation_id", esc.EscalationID),
			zap.String("kind", string(esc.Event.Event.Kind)),
			zap.String("subject", esc.Event.Event.SubjectID),
			zap.String("recommended_action", esc.RecommendedAction))
	}
	return nil
}
