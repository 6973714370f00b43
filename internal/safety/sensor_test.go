package safety

import (
	"context"
	"errors"
	"testing"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostSensor_Read(t *testing.T) {
	tests := []struct {
		name    string
		stats   []host.TemperatureStat
		err     error
		want    float64
		wantErr bool
	}{
		{
			name:  "hottest sensor wins",
			stats: []host.TemperatureStat{{SensorKey: "acpitz", Temperature: 41}, {SensorKey: "coretemp_package_id_0", Temperature: 88.5}},
			want:  88.5,
		},
		{
			name:  "partial results with warnings",
			stats: []host.TemperatureStat{{SensorKey: "nvme", Temperature: 52}},
			err:   errors.New("some sensors unreadable"),
			want:  52,
		},
		{name: "no sensors", wantErr: true},
		{name: "error only", err: errors.New("not implemented"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &HostSensor{temperatures: func(context.Context) ([]host.TemperatureStat, error) {
				return tt.stats, tt.err
			}}
			got, err := s.Read(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 0.001)
		})
	}
}

func TestNvidiaSMISensor_Read(t *testing.T) {
	s := &NvidiaSMISensor{run: func(_ context.Context, name string, args ...string) ([]byte, error) {
		assert.Equal(t, "nvidia-smi", name)
		assert.Contains(t, args, "--format=csv,noheader,nounits")
		return []byte("67\n93\n"), nil
	}}
	got, err := s.Read(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 93.0, got, 0.001)

	s.run = func(context.Context, string, ...string) ([]byte, error) {
		return nil, errors.New("executable file not found")
	}
	_, err = s.Read(context.Background())
	assert.Error(t, err)

	s.run = func(context.Context, string, ...string) ([]byte, error) {
		return []byte("[N/A]\n"), nil
	}
	_, err = s.Read(context.Background())
	assert.ErrorIs(t, err, ErrNoReading)
}

func TestNewSensor(t *testing.T) {
	s, err := NewSensor("none")
	require.NoError(t, err)
	assert.Nil(t, s)

	s, err = NewSensor("host")
	require.NoError(t, err)
	assert.Equal(t, "host", s.Name())

	s, err = NewSensor("nvidia-smi")
	require.NoError(t, err)
	assert.Equal(t, "nvidia-smi", s.Name())

	_, err = NewSensor("thermocouple")
	assert.Error(t, err)
}
