package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestValidate_Defaults checks that an empty config is completed with the policy defaults.
func TestValidate_Defaults(t *testing.T) {
	t.Parallel()

	cfg := new(Config)
	require.NoError(t, Validate(cfg))

	require.Equal(t, DefaultStateFilename, cfg.StateFile)
	require.Equal(t, DefaultMarkerFilename, cfg.ShutdownMarker)
	require.Equal(t, DefaultTimeout, cfg.Timeout)
	require.Equal(t, DefaultTiming(), cfg.Timing)
	require.Equal(t, DriverGPIOCDev, cfg.Hardware.Driver)
	require.Len(t, cfg.Channels, 2)
	require.Equal(t, 23, cfg.Channel(1).SensorPin)
	require.Equal(t, "tapo2", cfg.Channel(2).Camera)
	require.Equal(t, DefaultGRPCAddress, cfg.API.GRPCAddress)
	require.Equal(t, 3, cfg.Telegram.Retries)
}

// TestValidate_Errors checks the rejected configurations.
func TestValidate_Errors(t *testing.T) {
	t.Parallel()

	require.Error(t, Validate(nil))

	cases := map[string]*Config{
		"bad driver":   {Hardware: Hardware{Driver: "serial"}},
		"bad reset":    {Timing: Timing{SuspensionReset: "25:99"}},
		"timing order": {Timing: Timing{WarnAfter: time.Hour, AutoArmAfter: time.Minute}},
		"one channel":  {Channels: []Channel{{ID: 1}}},
		"dup channel":  {Channels: []Channel{{ID: 1}, {ID: 1}}},
		"bad grpc":     {API: API{GRPCAddress: "nope"}},
		"no chat":      {Telegram: Telegram{Token: "x"}},
		"bad timezone": {Timezone: "Mars/Olympus"},
	}

	for name, cfg := range cases {
		require.Error(t, Validate(cfg), name)
	}
}

func TestTimingResetClock(t *testing.T) {
	t.Parallel()

	h, m, err := DefaultTiming().ResetClock()
	require.NoError(t, err)
	require.Equal(t, 18, h)
	require.Equal(t, 30, m)
}

// TestSaveLoadRoundtrip ensures settings are persisted and loaded back correctly.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "door-guard.yaml")

	cfg := &Config{
		StateFile: "/var/lib/door-guard/state.json",
		Hardware:  Hardware{Driver: DriverSimulated},
		MQTT:      MQTT{Broker: "tcp://localhost:1883"},
		Timing:    Timing{RealertInterval: 15 * time.Second},
	}

	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.StateFile, loaded.StateFile)
	require.Equal(t, DriverSimulated, loaded.Hardware.Driver)
	require.Equal(t, "tcp://localhost:1883", loaded.MQTT.Broker)
	require.Equal(t, 15*time.Second, loaded.Timing.RealertInterval)
	require.Equal(t, time.Hour, loaded.Timing.AutoArmAfter)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(DefaultFilePermissions), info.Mode().Perm())
}
