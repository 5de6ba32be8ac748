package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/kaneboard/kaneboard/internal/models"
)

// Notification is one event addressed to one recipient.
type Notification struct {
	Recipient string       `json:"recipient"`
	Event     models.Event `json:"event"`
}

// Sink delivers notifications to some destination.
type Sink interface {
	// Name returns the sink identifier used for concurrency limits.
	Name() string

	// Deliver sends a single notification.
	Deliver(ctx context.Context, n Notification) error
}

// LogSink writes notifications to a structured logger.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink that logs every notification at info level.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Deliver(ctx context.Context, n Notification) error {
	s.logger.InfoContext(ctx, "notification",
		"recipient", n.Recipient,
		"action", n.Event.Action,
		"project", n.Event.ProjectRef,
		"ticket", n.Event.TicketRef,
		"message", n.Event.Message,
	)
	return nil
}

// WebhookSink POSTs notifications as JSON to a URL.
type WebhookSink struct {
	url        string
	httpClient *http.Client
}

// NewWebhookSink creates a sink posting to url.
func NewWebhookSink(url string) *WebhookSink {
	return &WebhookSink{
		url: url,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (s *WebhookSink) Name() string { return "webhook" }

func (s *WebhookSink) Deliver(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook %s returned status %d", s.url, resp.StatusCode)
	}
	return nil
}
