// Package safety watches a hardware temperature at pipeline checkpoints and
// forces a clean emergency shutdown when it stays critical.
package safety

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jonathan/research-scout/internal/store"
)

// ErrEmergencyShutdown is returned by Check once the monitor has tripped. It
// is the only error that ends a run early.
var ErrEmergencyShutdown = errors.New("emergency shutdown: critical temperature")

const (
	// DefaultThreshold is the critical temperature in degrees Celsius.
	DefaultThreshold = 90.0
	// DefaultConsecutive is the number of critical samples in a row that trips the monitor.
	DefaultConsecutive = 3
)

// Closer performs the emergency flush. *session.Session satisfies it.
type Closer interface {
	CloseEmergency(reason string) (store.TallyCounts, error)
}

// Shutdowner stops the host or process after the flush.
type Shutdowner interface {
	Shutdown(ctx context.Context) error
}

// CommandShutdowner runs a configured shutdown command.
type CommandShutdowner struct {
	argv []string
	run  CommandRunner
}

// NewCommandShutdowner splits command on whitespace. An empty command yields
// a nil Shutdowner.
func NewCommandShutdowner(command string) Shutdowner {
	argv := strings.Fields(command)
	if len(argv) == 0 {
		return nil
	}
	return &CommandShutdowner{argv: argv, run: runCommand}
}

func (c *CommandShutdowner) Shutdown(ctx context.Context) error {
	_, err := c.run(ctx, c.argv[0], c.argv[1:]...)
	return err
}

// Options configures a Monitor.
type Options struct {
	Sensor      Sensor
	Threshold   float64
	Consecutive int
	Closer      Closer
	Shutdowner  Shutdowner
}

// Monitor is checked synchronously between pipeline sections.
type Monitor struct {
	sensor      Sensor
	threshold   float64
	consecutive int
	closer      Closer
	shutdowner  Shutdowner
	logger      *zap.Logger

	streak  int
	tripped bool
}

// NewMonitor creates a Monitor. A nil Sensor disables sampling.
func NewMonitor(opts Options, logger *zap.Logger) *Monitor {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.Consecutive <= 0 {
		opts.Consecutive = DefaultConsecutive
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		sensor:      opts.Sensor,
		threshold:   opts.Threshold,
		consecutive: opts.Consecutive,
		closer:      opts.Closer,
		shutdowner:  opts.Shutdowner,
		logger:      logger,
	}
}

// Check takes one sample. Sensor failures are logged and ignored. When the
// threshold has been met for the configured number of samples in a row, the
// session is closed, shutdown is requested once and ErrEmergencyShutdown is
// returned; later calls return it again without acting.
func (m *Monitor) Check(ctx context.Context) error {
	if m.tripped {
		return ErrEmergencyShutdown
	}
	if m.sensor == nil {
		return nil
	}

	temp, err := m.sensor.Read(ctx)
	if err != nil {
		m.logger.Warn("temperature sensor unavailable", zap.String("sensor", m.sensor.Name()), zap.Error(err))
		return nil
	}

	if temp < m.threshold {
		if m.streak > 0 {
			m.logger.Info("temperature back below threshold", zap.Float64("celsius", temp))
		}
		m.streak = 0
		return nil
	}

	m.streak++
	m.logger.Warn("critical temperature",
		zap.Float64("celsius", temp),
		zap.Float64("threshold", m.threshold),
		zap.Int("streak", m.streak))
	if m.streak < m.consecutive {
		return nil
	}

	m.trip(ctx, temp)
	return ErrEmergencyShutdown
}

func (m *Monitor) trip(ctx context.Context, temp float64) {
	m.tripped = true
	reason := fmt.Sprintf("[!] CRITICAL: %s reported %.1f°C >= %.1f°C for %d consecutive checks.",
		m.sensor.Name(), temp, m.threshold, m.streak)

	if m.closer != nil {
		if _, err := m.closer.CloseEmergency(reason); err != nil {
			m.logger.Error("emergency close incomplete", zap.Error(err))
		}
	}
	if m.shutdowner == nil {
		m.logger.Error("emergency shutdown: no shutdown command configured, stopping the process only")
		return
	}
	if err := m.shutdowner.Shutdown(ctx); err != nil {
		m.logger.Error("shutdown command failed", zap.Error(err))
	}
}

// Tripped reports whether the monitor has forced a shutdown.
func (m *Monitor) Tripped() bool {
	return m.tripped
}
