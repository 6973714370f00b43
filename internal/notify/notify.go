// Package notify delivers accepted discoveries to a Discord webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/research-scout/internal/pacing"
	"github.com/jonathan/research-scout/internal/types"
)

const (
	// DefaultMaxAttempts caps deliveries per message.
	DefaultMaxAttempts = 3
	// DefaultDelay is waited between attempts when the server gives no hint.
	DefaultDelay = 5 * time.Second
	// DefaultTimeout bounds a single POST.
	DefaultTimeout = 10 * time.Second

	maxRetryAfter = 60 * time.Second
)

// DeliveryError describes one failed POST.
type DeliveryError struct {
	Status  int
	Message string
	Cause   error
}

func (e *DeliveryError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("delivery failed: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("delivery failed: %s", e.Message)
}

func (e *DeliveryError) Unwrap() error {
	return e.Cause
}

// Options configures a Dispatcher.
type Options struct {
	WebhookURL  string
	MaxAttempts int
	Delay       time.Duration
	Timeout     time.Duration
	Sleep       pacing.SleepFunc
	HTTPClient  *http.Client
}

// Dispatcher posts messages with bounded retry. It is the only component
// that retries in place.
type Dispatcher struct {
	webhookURL  string
	maxAttempts int
	delay       time.Duration
	timeout     time.Duration
	sleep       pacing.SleepFunc
	httpClient  *http.Client
	logger      *zap.Logger
}

// New creates a Dispatcher. An empty WebhookURL yields a disabled dispatcher.
func New(opts Options, logger *zap.Logger) *Dispatcher {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Delay <= 0 {
		opts.Delay = DefaultDelay
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Sleep == nil {
		opts.Sleep = pacing.Sleep
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		webhookURL:  strings.TrimSpace(opts.WebhookURL),
		maxAttempts: opts.MaxAttempts,
		delay:       opts.Delay,
		timeout:     opts.Timeout,
		sleep:       opts.Sleep,
		httpClient:  opts.HTTPClient,
		logger:      logger,
	}
}

// Enabled reports whether a webhook is configured.
func (d *Dispatcher) Enabled() bool {
	return d.webhookURL != ""
}

// Send delivers message and reports whether it was accepted. Failure is
// logged and never returned; callers persist the record regardless.
func (d *Dispatcher) Send(ctx context.Context, message string) bool {
	if !d.Enabled() {
		d.logger.Debug("notification skipped, no webhook configured")
		return false
	}

	var lastErr error
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		retryAfter, err := d.post(ctx, message)
		if err == nil {
			if attempt > 1 {
				d.logger.Info("notification delivered after retry", zap.Int("attempt", attempt))
			}
			return true
		}
		lastErr = err

		if attempt == d.maxAttempts {
			break
		}
		wait := d.delay
		if retryAfter > 0 {
			wait = retryAfter
		}
		d.logger.Warn("notification attempt failed",
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", wait),
			zap.Error(err))
		if err := d.sleep(ctx, wait); err != nil {
			lastErr = err
			break
		}
	}

	d.logger.Error("notification failed", zap.Int("max_attempts", d.maxAttempts), zap.Error(lastErr))
	return false
}

type webhookPayload struct {
	Content string `json:"content"`
}

type rateLimitBody struct {
	RetryAfter float64 `json:"retry_after"`
}

// post performs one delivery. On 429 it returns the server's backoff hint, if any.
func (d *Dispatcher) post(ctx context.Context, message string) (time.Duration, error) {
	body, err := json.Marshal(webhookPayload{Content: message})
	if err != nil {
		return 0, &DeliveryError{Message: "failed to encode payload", Cause: err}
	}

	reqCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return 0, &DeliveryError{Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return 0, &DeliveryError{Message: "request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusNoContent:
		return 0, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return retryAfter(resp.Header.Get("Retry-After"), data), &DeliveryError{Status: resp.StatusCode, Message: "rate limited"}
	default:
		return 0, &DeliveryError{Status: resp.StatusCode, Message: fmt.Sprintf("HTTP %d", resp.StatusCode)}
	}
}

// retryAfter reads the backoff hint from the Retry-After header or the JSON
// retry_after field, both in (possibly fractional) seconds.
func retryAfter(header string, body []byte) time.Duration {
	secs := 0.0
	if v, err := strconv.ParseFloat(strings.TrimSpace(header), 64); err == nil {
		secs = v
	} else {
		var rl rateLimitBody
		if json.Unmarshal(body, &rl) == nil {
			secs = rl.RetryAfter
		}
	}
	if secs <= 0 {
		return 0
	}
	d := time.Duration(secs * float64(time.Second))
	if d > maxRetryAfter {
		d = maxRetryAfter
	}
	return d
}

// FormatAlert renders the alert for an accepted or upgraded discovery.
func FormatAlert(rec types.DiscoveryRecord) string {
	icon := "🟡"
	if rec.Relevance == types.RelevanceHigh {
		icon = "🟢"
	}
	heading := "🔍 **Scout Alert:**"
	if rec.Correction {
		heading = "🔁 **Scout Correction (was LOW):**"
	}
	return fmt.Sprintf("%s [%s %s]\n**Title:** %s\n**Link:** <%s>\n\n**Agent Justification:** %s",
		heading, icon, rec.Relevance, rec.Title, rec.Link, rec.Rationale)
}
