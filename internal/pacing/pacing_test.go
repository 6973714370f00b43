package pacing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSleep_Elapses(t *testing.T) {
	start := time.Now()
	assert.NoError(t, Sleep(context.Background(), 20*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestSleep_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
}

func TestSleep_ZeroDelay(t *testing.T) {
	assert.NoError(t, Sleep(context.Background(), 0))
}

func TestRecorder(t *testing.T) {
	var r Recorder
	_ = r.Sleep(context.Background(), time.Second)
	_ = r.Sleep(context.Background(), 3*time.Second)
	assert.Equal(t, []time.Duration{time.Second, 3 * time.Second}, r.Delays)
}
