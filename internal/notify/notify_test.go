package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jonathan/research-scout/internal/pacing"
	"github.com/jonathan/research-scout/internal/types"
)

// scriptedServer answers each request with the next handler in script,
// repeating the last one once the script runs out.
func scriptedServer(t *testing.T, script ...http.HandlerFunc) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(atomic.AddInt32(&calls, 1)) - 1
		if n >= len(script) {
			n = len(script) - 1
		}
		script[n](w, r)
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func status(code int) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(code) }
}

func TestSend_Success(t *testing.T) {
	var got webhookPayload
	server, calls := scriptedServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	})

	var rec pacing.Recorder
	d := New(Options{WebhookURL: server.URL, Sleep: rec.Sleep}, nil)

	assert.True(t, d.Send(context.Background(), "hello"))
	assert.Equal(t, "hello", got.Content)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
	assert.Empty(t, rec.Delays)
}

func TestSend_RateLimitThenSuccess(t *testing.T) {
	tests := []struct {
		name      string
		limited   http.HandlerFunc
		wantDelay time.Duration
	}{
		{
			name: "retry-after header",
			limited: func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Retry-After", "2")
				w.WriteHeader(http.StatusTooManyRequests)
			},
			wantDelay: 2 * time.Second,
		},
		{
			name: "json retry_after",
			limited: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"message": "You are being rate limited.", "retry_after": 1.5, "global": false}`))
			},
			wantDelay: 1500 * time.Millisecond,
		},
		{
			name:      "no hint uses fixed delay",
			limited:   status(http.StatusTooManyRequests),
			wantDelay: 5 * time.Second,
		},
		{
			name: "hint is capped",
			limited: func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Retry-After", "3600")
				w.WriteHeader(http.StatusTooManyRequests)
			},
			wantDelay: maxRetryAfter,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, calls := scriptedServer(t, tt.limited, status(http.StatusOK))

			var rec pacing.Recorder
			d := New(Options{WebhookURL: server.URL, Delay: 5 * time.Second, Sleep: rec.Sleep}, nil)

			assert.True(t, d.Send(context.Background(), "msg"))
			assert.Equal(t, int32(2), atomic.LoadInt32(calls), "exactly one successful delivery after the rate limit")
			assert.Equal(t, []time.Duration{tt.wantDelay}, rec.Delays)
		})
	}
}

func TestSend_GivesUpAfterMaxAttempts(t *testing.T) {
	server, calls := scriptedServer(t, status(http.StatusInternalServerError))

	core, logs := observer.New(zap.WarnLevel)
	var rec pacing.Recorder
	d := New(Options{WebhookURL: server.URL, MaxAttempts: 3, Delay: time.Second, Sleep: rec.Sleep}, zap.New(core))

	assert.False(t, d.Send(context.Background(), "msg"))
	assert.Equal(t, int32(3), atomic.LoadInt32(calls))
	assert.Equal(t, []time.Duration{time.Second, time.Second}, rec.Delays, "no wait after the final attempt")
	assert.Equal(t, 1, logs.FilterMessage("notification failed").Len())
	assert.Equal(t, 2, logs.FilterMessage("notification attempt failed").Len())
}

func TestSend_CancelledDuringBackoff(t *testing.T) {
	server, calls := scriptedServer(t, status(http.StatusBadGateway))

	ctx, cancel := context.WithCancel(context.Background())
	sleep := func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	}
	d := New(Options{WebhookURL: server.URL, MaxAttempts: 5, Sleep: sleep}, nil)

	assert.False(t, d.Send(ctx, "msg"))
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestSend_Disabled(t *testing.T) {
	d := New(Options{}, nil)
	assert.False(t, d.Enabled())
	assert.False(t, d.Send(context.Background(), "msg"))
}

func TestSend_UnreachableServer(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	var rec pacing.Recorder
	d := New(Options{WebhookURL: url, MaxAttempts: 2, Sleep: rec.Sleep}, nil)
	assert.False(t, d.Send(context.Background(), "msg"))
	assert.Len(t, rec.Delays, 1)
}

func TestRetryAfter(t *testing.T) {
	assert.Equal(t, time.Duration(0), retryAfter("", nil))
	assert.Equal(t, time.Duration(0), retryAfter("soon", []byte("not json")))
	assert.Equal(t, 250*time.Millisecond, retryAfter("0.25", nil))
	assert.Equal(t, 3*time.Second, retryAfter("", []byte(`{"retry_after": 3}`)))
}

func TestFormatAlert(t *testing.T) {
	rec := types.DiscoveryRecord{
		Title:     "Fail-open valves",
		Link:      "https://example.org/p",
		Relevance: types.RelevanceHigh,
		Rationale: "Explicit override discussion.",
	}
	assert.Equal(t,
		"🔍 **Scout Alert:** [🟢 HIGH]\n**Title:** Fail-open valves\n**Link:** <https://example.org/p>\n\n**Agent Justification:** Explicit override discussion.",
		FormatAlert(rec))

	rec.Relevance = types.RelevanceMedium
	rec.Correction = true
	msg := FormatAlert(rec)
	assert.Contains(t, msg, "Scout Correction")
	assert.Contains(t, msg, "[🟡 MEDIUM]")
}
