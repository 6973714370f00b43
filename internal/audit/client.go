package audit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/research-scout/internal/llm"
)

// Recorder is the write side of Store.
type Recorder interface {
	Append(ctx context.Context, e Entry) (int64, error)
}

// Client decorates an llm.Client and appends every call to a Recorder.
// Recording failures are logged and never change the call's result.
type Client struct {
	inner    llm.Client
	recorder Recorder
	runID    string
	logger   *zap.Logger
	now      func() time.Time
}

// WrapClient returns inner unchanged when recorder is nil.
func WrapClient(inner llm.Client, recorder Recorder, runID string, logger *zap.Logger) llm.Client {
	if recorder == nil || inner == nil {
		return inner
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{inner: inner, recorder: recorder, runID: runID, logger: logger, now: time.Now}
}

func (c *Client) GenerateContent(ctx context.Context, prompt string, tier llm.ModelTier) (string, error) {
	start := c.now()
	out, err := c.inner.GenerateContent(ctx, prompt, tier)
	c.record(ctx, "content", tier, prompt, out, err, start)
	return out, err
}

func (c *Client) GenerateJSON(ctx context.Context, prompt string, tier llm.ModelTier) (string, error) {
	start := c.now()
	out, err := c.inner.GenerateJSON(ctx, prompt, tier)
	c.record(ctx, "json", tier, prompt, out, err, start)
	return out, err
}

func (c *Client) GetModel(tier llm.ModelTier) string {
	return c.inner.GetModel(tier)
}

func (c *Client) Close() error {
	return c.inner.Close()
}

func (c *Client) record(ctx context.Context, kind string, tier llm.ModelTier, prompt, response string, callErr error, start time.Time) {
	e := Entry{
		RunID:     c.runID,
		Timestamp: start,
		Tier:      string(tier),
		Model:     c.inner.GetModel(tier),
		Kind:      kind,
		Prompt:    prompt,
		Response:  response,
		Latency:   c.now().Sub(start),
	}
	if callErr != nil {
		e.Error = callErr.Error()
	}
	// the call's own deadline may already have passed
	if _, err := c.recorder.Append(context.WithoutCancel(ctx), e); err != nil {
		c.logger.Warn("audit write failed", zap.String("tier", string(tier)), zap.Error(err))
	}
}
