// Package sender implements the outbound delivery capability over HTTP.
package sender

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/mlorenc/birthday-notify/internal/model"
)

// WebhookSender POSTs notification payloads to a configured endpoint.
//
// Outcome classification: 2xx is success; connection errors, timeouts,
// 408/429 and all 5xx are transient; every other 4xx means the receiver
// rejected the payload and will keep rejecting it — permanent.
type WebhookSender struct {
	client  *http.Client
	url     string
	limiter *rate.Limiter
	log     zerolog.Logger
}

// NewWebhookSender constructs a WebhookSender. Attempt timeouts come from the
// caller's context, so the client itself carries none. The limiter caps
// outbound request rate across all workers.
func NewWebhookSender(url string, ratePerSec float64, burst int, log zerolog.Logger) *WebhookSender {
	return &WebhookSender{
		client:  &http.Client{},
		url:     url,
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), burst),
		log:     log.With().Str("component", "webhook").Logger(),
	}
}

// Send delivers one payload, tagging it with the idempotency key the
// receiver dedups on.
func (s *WebhookSender) Send(ctx context.Context, idempotencyKey string, payload []byte) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return model.Transient("rate limiter wait interrupted", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return model.Permanent("build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", idempotencyKey)

	resp, err := s.client.Do(req)
	if err != nil {
		// Covers refused connections, DNS failures, and an elapsed context
		// deadline alike: we stop waiting and leave the attempt to its fate.
		return model.Transient("send request", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusRequestTimeout,
		resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode >= 500:
		return &model.DeliveryError{
			StatusCode: resp.StatusCode,
			Reason:     fmt.Sprintf("receiver returned %s", resp.Status),
		}
	default:
		return &model.DeliveryError{
			Permanent:  true,
			StatusCode: resp.StatusCode,
			Reason:     fmt.Sprintf("receiver rejected payload with %s", resp.Status),
		}
	}
}
