package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"
	svix "github.com/svix/svix-webhooks/go"

	"github.com/jmylchreest/autoreach-api/internal/models"
	"github.com/jmylchreest/autoreach-api/internal/repository"
)

// Webhook delivery defaults.
const (
	DefaultWebhookAttempts = 3
	DefaultWebhookBackoff  = time.Second
	maxWebhookResponseBody = 1024
)

// Notifier announces finished analyses and audits.
type Notifier interface {
	Notify(ctx context.Context, event models.WebhookEventType, subjectID string, payload any) error
}

// WebhookPayload is the JSON body posted to the webhook URL.
type WebhookPayload struct {
	Event     models.WebhookEventType `json:"event"`
	SubjectID string                  `json:"subject_id"`
	Timestamp time.Time               `json:"timestamp"`
	Data      any                     `json:"data"`
}

// WebhookService delivers svix-signed webhooks and records every attempt.
type WebhookService struct {
	url         string
	signer      *svix.Webhook
	deliveries  repository.WebhookDeliveryRepository
	client      *http.Client
	maxAttempts int
	backoff     time.Duration
	sleep       Sleeper
	logger      *slog.Logger
}

// WebhookServiceConfig holds configuration for creating a WebhookService.
// An empty URL disables delivery. Deliveries is optional.
type WebhookServiceConfig struct {
	URL         string
	Secret      string
	Deliveries  repository.WebhookDeliveryRepository
	Client      *http.Client
	MaxAttempts int
	Backoff     time.Duration
	Logger      *slog.Logger
}

// NewWebhookService creates a new webhook service.
func NewWebhookService(cfg WebhookServiceConfig) (*WebhookService, error) {
	s := &WebhookService{
		url:         cfg.URL,
		deliveries:  cfg.Deliveries,
		client:      cfg.Client,
		maxAttempts: cfg.MaxAttempts,
		backoff:     cfg.Backoff,
		sleep:       SleepContext,
		logger:      cfg.Logger,
	}
	if s.client == nil {
		s.client = &http.Client{Timeout: 30 * time.Second}
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = DefaultWebhookAttempts
	}
	if s.backoff <= 0 {
		s.backoff = DefaultWebhookBackoff
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "webhook")

	if cfg.URL != "" {
		signer, err := svix.NewWebhook(cfg.Secret)
		if err != nil {
			return nil, fmt.Errorf("failed to create webhook signer: %w", err)
		}
		s.signer = signer
	}
	return s, nil
}

// Enabled reports whether a webhook URL is configured.
func (s *WebhookService) Enabled() bool {
	return s.url != ""
}

// Notify posts the event to the configured URL, retrying with linear backoff.
// It is a no-op when no URL is configured.
func (s *WebhookService) Notify(ctx context.Context, event models.WebhookEventType, subjectID string, payload any) error {
	if !s.Enabled() {
		return nil
	}

	body, err := json.Marshal(WebhookPayload{
		Event:     event,
		SubjectID: subjectID,
		Timestamp: time.Now().UTC(),
		Data:      payload,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	msgID := "msg_" + ulid.Make().String()
	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if attempt > 1 {
			if err := s.sleep(ctx, time.Duration(attempt-1)*s.backoff); err != nil {
				return err
			}
		}

		delivery := &models.WebhookDelivery{
			ID:            ulid.Make().String(),
			MessageID:     msgID,
			SubjectID:     subjectID,
			EventType:     string(event),
			URL:           s.url,
			PayloadJSON:   string(body),
			Status:        models.WebhookDeliveryStatusPending,
			AttemptNumber: attempt,
			MaxAttempts:   s.maxAttempts,
		}
		s.record(ctx, delivery, true)

		lastErr = s.deliver(ctx, msgID, body, delivery)
		switch {
		case lastErr == nil:
			delivery.Status = models.WebhookDeliveryStatusSuccess
		case attempt < s.maxAttempts:
			delivery.Status = models.WebhookDeliveryStatusRetrying
		default:
			delivery.Status = models.WebhookDeliveryStatusFailed
		}
		s.record(ctx, delivery, false)

		if lastErr == nil {
			s.logger.Info("webhook delivered",
				"event", event,
				"subject_id", subjectID,
				"attempt", attempt,
				"status", *delivery.StatusCode,
			)
			return nil
		}
		s.logger.Warn("webhook delivery failed", "event", event, "subject_id", subjectID, "attempt", attempt, "error", lastErr)
	}

	s.logger.Error("webhook delivery failed after retries", "event", event, "subject_id", subjectID, "error", lastErr)
	return lastErr
}

func (s *WebhookService) deliver(ctx context.Context, msgID string, body []byte, delivery *models.WebhookDelivery) error {
	ts := time.Now()
	signature, err := s.signer.Sign(msgID, ts, body)
	if err != nil {
		return fmt.Errorf("failed to sign webhook: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "AutoReach-Webhook/1.0")
	req.Header.Set("svix-id", msgID)
	req.Header.Set("svix-timestamp", fmt.Sprintf("%d", ts.Unix()))
	req.Header.Set("svix-signature", signature)

	started := time.Now()
	resp, err := s.client.Do(req)
	elapsed := int(time.Since(started).Milliseconds())
	delivery.ResponseTimeMs = &elapsed
	if err != nil {
		delivery.ErrorMessage = err.Error()
		return err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxWebhookResponseBody))
	status := resp.StatusCode
	delivery.StatusCode = &status
	delivery.ResponseBody = string(respBody)

	if status < 200 || status >= 300 {
		werr := &WebhookError{StatusCode: status}
		delivery.ErrorMessage = werr.Error()
		return werr
	}
	now := time.Now().UTC()
	delivery.DeliveredAt = &now
	return nil
}

// record persists a delivery attempt. Tracking failures never fail delivery.
func (s *WebhookService) record(ctx context.Context, delivery *models.WebhookDelivery, create bool) {
	if s.deliveries == nil {
		return
	}
	var err error
	if create {
		err = s.deliveries.Create(ctx, delivery)
	} else {
		err = s.deliveries.Update(ctx, delivery)
	}
	if err != nil {
		s.logger.Warn("failed to record webhook delivery", "delivery_id", delivery.ID, "error", err)
	}
}

// VerifyCallback checks svix signature headers against payload using the
// configured secret. Receivers of our webhooks can use the same check.
func (s *WebhookService) VerifyCallback(payload []byte, headers http.Header) error {
	if s.signer == nil {
		return fmt.Errorf("webhooks are not configured")
	}
	return s.signer.Verify(payload, headers)
}

// WebhookError represents a non-2xx webhook response.
type WebhookError struct {
	StatusCode int
}

func (e *WebhookError) Error() string {
	return fmt.Sprintf("webhook delivery failed with status %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
}
