package safety

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v3/host"
)

// Sensor samples a temperature in degrees Celsius.
type Sensor interface {
	Name() string
	Read(ctx context.Context) (float64, error)
}

// ErrNoReading is returned when a sensor produced no usable value.
var ErrNoReading = errors.New("no temperature reading")

// HostSensor reports the hottest host sensor known to gopsutil.
type HostSensor struct {
	temperatures func(ctx context.Context) ([]host.TemperatureStat, error)
}

// NewHostSensor returns a HostSensor backed by gopsutil.
func NewHostSensor() *HostSensor {
	return &HostSensor{temperatures: host.SensorsTemperaturesWithContext}
}

func (s *HostSensor) Name() string { return "host" }

// Read returns the maximum temperature. gopsutil reports partial results
// together with warnings, so any reading at all is used.
func (s *HostSensor) Read(ctx context.Context) (float64, error) {
	stats, err := s.temperatures(ctx)
	best, ok := 0.0, false
	for _, st := range stats {
		if st.Temperature > 0 && (!ok || st.Temperature > best) {
			best, ok = st.Temperature, true
		}
	}
	if ok {
		return best, nil
	}
	if err != nil {
		return 0, fmt.Errorf("host sensors: %w", err)
	}
	return 0, ErrNoReading
}

// CommandRunner runs a command and returns its standard output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// NvidiaSMISensor reads the hottest GPU through nvidia-smi.
type NvidiaSMISensor struct {
	run CommandRunner
}

// NewNvidiaSMISensor returns a sensor using the nvidia-smi binary on PATH.
func NewNvidiaSMISensor() *NvidiaSMISensor {
	return &NvidiaSMISensor{run: runCommand}
}

func (s *NvidiaSMISensor) Name() string { return "nvidia-smi" }

func (s *NvidiaSMISensor) Read(ctx context.Context) (float64, error) {
	out, err := s.run(ctx, "nvidia-smi", "--query-gpu=temperature.gpu", "--format=csv,noheader,nounits")
	if err != nil {
		return 0, fmt.Errorf("nvidia-smi: %w", err)
	}
	return maxReading(string(out))
}

func maxReading(out string) (float64, error) {
	best, ok := 0.0, false
	for _, line := range strings.Split(out, "\n") {
		v, err := strconv.ParseFloat(strings.TrimSpace(line), 64)
		if err != nil {
			continue
		}
		if !ok || v > best {
			best, ok = v, true
		}
	}
	if !ok {
		return 0, ErrNoReading
	}
	return best, nil
}

// NewSensor returns the sensor for kind: "host", "nvidia-smi", or nil for "none" and "".
func NewSensor(kind string) (Sensor, error) {
	switch kind {
	case "", "none":
		return nil, nil
	case "host":
		return NewHostSensor(), nil
	case "nvidia-smi":
		return NewNvidiaSMISensor(), nil
	default:
		return nil, fmt.Errorf("unknown safety sensor %q", kind)
	}
}
