package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/chiranSam/job-application-form/internal/models"
)

// ContactHeader carries the operator's contact address on every webhook call
const ContactHeader = "X-Candidate-Email"

// ErrNoEndpoint is returned when no webhook URL is configured
var ErrNoEndpoint = errors.New("webhook url not configured")

// DeliveryOutcome records how the receiver answered
type DeliveryOutcome struct {
	StatusCode int
	Latency    time.Duration
}

// Webhook posts notification payloads to a fixed endpoint
type Webhook struct {
	url          string
	contactEmail string
	client       *http.Client
}

// NewWebhook creates a webhook client. A nil client uses a 30 second timeout.
func NewWebhook(url, contactEmail string, client *http.Client) *Webhook {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Webhook{url: url, contactEmail: contactEmail, client: client}
}

// Post sends payload once. Any non-2xx answer is an error.
func (w *Webhook) Post(ctx context.Context, payload models.NotificationPayload) (DeliveryOutcome, error) {
	if w.url == "" {
		return DeliveryOutcome{}, ErrNoEndpoint
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return DeliveryOutcome{}, fmt.Errorf("failed to encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return DeliveryOutcome{}, fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(ContactHeader, w.contactEmail)

	start := time.Now()
	resp, err := w.client.Do(req)
	if err != nil {
		return DeliveryOutcome{}, fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	outcome := DeliveryOutcome{StatusCode: resp.StatusCode, Latency: time.Since(start)}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return outcome, fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return outcome, nil
}
