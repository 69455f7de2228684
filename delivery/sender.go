package delivery

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/heraldhq/herald/event"
	"github.com/heraldhq/herald/id"
	"github.com/heraldhq/herald/signature"
	"github.com/heraldhq/herald/webhook"
)

const (
	maxResponseBody = 1024 // 1KB cap on response body storage
	maxRedirects    = 5
	userAgent       = "Herald/1.0"
)

// Result holds the outcome of a single delivery attempt.
type Result struct {
	StatusCode int
	Response   string
	Error      string
	Duration   time.Duration
}

// Delivered reports whether the attempt reached the receiver and got any
// response below 500. 4xx counts as delivered: the receiver rejected the
// payload and a retry cannot change that.
func (r Result) Delivered() bool {
	return r.Error == "" && r.StatusCode < 500
}

// Sender performs HTTP webhook delivery.
type Sender struct {
	client *http.Client
}

// NewSender creates a sender with the given HTTP timeout per attempt and a
// redirect budget of 5.
func NewSender(timeout time.Duration) *Sender {
	return &Sender{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
	}
}

// Send signs and delivers an event to a webhook and returns the result.
// The request body is the event's canonical JSON; the signature covers
// those exact bytes.
func (s *Sender) Send(ctx context.Context, wh *webhook.Webhook, evt *event.Event, deliveryID id.ID) Result {
	body, err := evt.Body()
	if err != nil {
		return Result{Error: fmt.Sprintf("marshal event: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, wh.URL, bytes.NewReader(body))
	if err != nil {
		return Result{Error: fmt.Sprintf("create request: %v", err)}
	}

	// Custom webhook headers go first. Names in the X-Webhook-* namespace
	// are dropped; the standard headers below are set afterwards so they
	// always win.
	for k, v := range wh.Headers {
		if strings.HasPrefix(strings.ToLower(k), "x-webhook-") {
			continue
		}
		req.Header.Set(k, v)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Webhook-Event", evt.Type)
	req.Header.Set("X-Webhook-Signature", signature.Sign(body, wh.Secret))
	req.Header.Set("X-Webhook-Delivery", deliveryID.String())
	req.Header.Set("X-Webhook-Timestamp", evt.Timestamp.Format(time.RFC3339Nano))

	start := time.Now()
	resp, err := s.client.Do(req) //nolint:gosec // G704: the destination URL is caller-configured.
	duration := time.Since(start)

	if err != nil {
		return Result{
			Error:    err.Error(),
			Duration: duration,
		}
	}
	defer resp.Body.Close()

	respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if readErr != nil {
		return Result{
			StatusCode: resp.StatusCode,
			Error:      fmt.Sprintf("read response: %v", readErr),
			Duration:   duration,
		}
	}

	return Result{
		StatusCode: resp.StatusCode,
		Response:   string(respBody),
		Duration:   duration,
	}
}
