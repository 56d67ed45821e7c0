package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"golang.org/x/oauth2/clientcredentials"
)

// WebhookPublisher delivers the payload as a JSON POST to a
// per-platform endpoint. Response codes are mapped onto the outcome
// taxonomy: 2xx success, 408/429/5xx transient, other 4xx permanent.
type WebhookPublisher struct {
	platform string
	endpoint string
	client   *http.Client
}

func NewWebhookPublisher(platform, endpoint string) *WebhookPublisher {
	return &WebhookPublisher{
		platform: platform,
		endpoint: endpoint,
		client:   http.DefaultClient,
	}
}

// NewOAuthWebhookPublisher wraps the webhook with an OAuth2
// client-credentials transport for platforms that require a bearer
// token on the delivery endpoint.
func NewOAuthWebhookPublisher(platform, endpoint, tokenURL, clientID, clientSecret string) *WebhookPublisher {
	cc := clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
	}
	return &WebhookPublisher{
		platform: platform,
		endpoint: endpoint,
		client:   cc.Client(context.Background()),
	}
}

func (w *WebhookPublisher) Publish(ctx context.Context, payload *Payload) Outcome {
	body, err := json.Marshal(payload)
	if err != nil {
		return Permanent(fmt.Sprintf("encoding payload: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, bytes.NewReader(body))
	if err != nil {
		return Permanent(fmt.Sprintf("building request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")

	requestID, err := gonanoid.New()
	if err == nil {
		req.Header.Set("X-Request-ID", requestID)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		// Timeouts and connection errors are retryable.
		return Transient(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return Success()
	}

	detail := fmt.Sprintf("%s responded %d", w.platform, resp.StatusCode)
	if msg, err := io.ReadAll(io.LimitReader(resp.Body, 512)); err == nil && len(msg) > 0 {
		detail = fmt.Sprintf("%s: %s", detail, msg)
	}

	switch {
	case resp.StatusCode == http.StatusRequestTimeout,
		resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode >= 500:
		return Transient(detail)
	default:
		slog.Info(detail)
		return Permanent(detail)
	}
}
