package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every setting of the door-guard daemon and its client.
type Config struct {
	// StateFile is the path of the persisted arm/suspension flags.
	StateFile string `yaml:"state_file"`
	// ShutdownMarker is the path of the clean-shutdown marker file.
	ShutdownMarker string `yaml:"shutdown_marker"`
	// Timezone is the IANA zone used for the daily suspension reset ("Local" by default).
	Timezone string `yaml:"timezone"`
	// Timeout bounds network operations and RPC calls.
	Timeout time.Duration `yaml:"timeout"`
	// Log configures the process logger.
	Log Log `yaml:"log"`
	// Timing holds the alarm policy intervals.
	Timing Timing `yaml:"timing"`
	// Hardware selects and configures the GPIO board.
	Hardware Hardware `yaml:"hardware"`
	// Channels describes the two monitored doors.
	Channels []Channel `yaml:"channels"`
	// MQTT configures the status broadcast. Empty broker disables it.
	MQTT MQTT `yaml:"mqtt"`
	// Telegram configures alert delivery. Empty token disables it.
	Telegram Telegram `yaml:"telegram"`
	// Frigate configures camera snapshots attached to alerts.
	Frigate Frigate `yaml:"frigate"`
	// API configures the command and status listeners.
	API API `yaml:"api"`
	// Journal configures the audit journal. Empty path disables it.
	Journal Journal `yaml:"journal"`
}

// Log configures logging.
type Log struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is "console" or "json".
	Format string `yaml:"format"`
}

// Timing holds the intervals of the alarm policy.
type Timing struct {
	TickInterval     time.Duration `yaml:"tick_interval"`
	ErrorBackoff     time.Duration `yaml:"error_backoff"`
	WarnAfter        time.Duration `yaml:"warn_after"`
	AutoArmAfter     time.Duration `yaml:"auto_arm_after"`
	RealertInterval  time.Duration `yaml:"realert_interval"`
	ScheduleInterval time.Duration `yaml:"schedule_interval"`
	ResumeGrace      time.Duration `yaml:"resume_grace"`
	HardwareTimeout  time.Duration `yaml:"hardware_timeout"`
	// SuspensionReset is the local wall-clock time ("HH:MM") that lifts a suspension.
	SuspensionReset string `yaml:"suspension_reset"`
}

// Hardware configures the GPIO board.
type Hardware struct {
	// Driver is "gpiocdev" for a real board or "simulated" for an in-memory one.
	Driver string `yaml:"driver"`
	// Chip is the GPIO character device name, e.g. gpiochip0.
	Chip string `yaml:"chip"`
	// RelayPin is the BCM line driving the siren relay.
	RelayPin int `yaml:"relay_pin"`
	// RelayActiveLow is set for relay boards that switch on a LOW level.
	RelayActiveLow bool `yaml:"relay_active_low"`
}

// Channel describes one monitored door.
type Channel struct {
	ID        int    `yaml:"id"`
	Name      string `yaml:"name"`
	SensorPin int    `yaml:"sensor_pin"`
	// Camera is the Frigate camera attached to this door's notifications.
	Camera string `yaml:"camera"`
}

// MQTT configures the status publisher.
type MQTT struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Telegram configures the alert notifier.
type Telegram struct {
	Token   string `yaml:"token"`
	ChatID  string `yaml:"chat_id"`
	BaseURL string `yaml:"base_url"`
	// Retries is the number of delivery attempts per notification.
	Retries int `yaml:"retries"`
	// RatePerSecond limits outbound messages.
	RatePerSecond float64 `yaml:"rate_per_second"`
}

// Frigate configures snapshot fetching.
type Frigate struct {
	URL    string `yaml:"url"`
	Height int    `yaml:"height"`
}

// API configures the listeners.
type API struct {
	// GRPCAddress is where the command service listens and where the client dials.
	GRPCAddress string `yaml:"grpc_addr"`
	// HTTPAddress is where the status API listens. Empty disables it.
	HTTPAddress string `yaml:"http_addr"`
}

// Journal configures the audit journal.
type Journal struct {
	Path string `yaml:"path"`
}

const (
	// DefaultConfigFilename is the default configuration path.
	DefaultConfigFilename = "door-guard.yaml"

	// DefaultStateFilename is the default path of the persisted flags.
	DefaultStateFilename = "door-guard-state.json"

	// DefaultMarkerFilename is the default path of the clean-shutdown marker.
	DefaultMarkerFilename = "door-guard-shutdown.flag"

	// DefaultTimeout is the default duration for network operations.
	DefaultTimeout = 5 * time.Second

	// DefaultFilePermissions is the permission used for config and state files.
	DefaultFilePermissions = 0o600

	// DefaultGRPCAddress is the default command service address.
	DefaultGRPCAddress = "127.0.0.1:50051"

	// DriverGPIOCDev selects the Linux GPIO character device driver.
	DriverGPIOCDev = "gpiocdev"
	// DriverSimulated selects the in-memory board.
	DriverSimulated = "simulated"

	defaultMQTTTopic     = "tankguard/system/status"
	defaultMQTTClientID  = "tank-guard"
	defaultTelegramURL   = "https://api.telegram.org"
	defaultFrigateHeight = 480
	defaultRetries       = 3
	defaultRate          = 1.0
	defaultChip          = "gpiochip0"
	defaultRelayPin      = 24
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errChannelCount is returned when the channel list is not exactly two doors.
	errChannelCount = errors.New("exactly two channels must be configured")
	// errChannelID is returned for duplicate or out-of-range channel ids.
	errChannelID = errors.New("channel ids must be 1 and 2")
	// errUnknownDriver is returned for an unsupported hardware driver.
	errUnknownDriver = errors.New("unknown hardware driver")
	// errTimingOrder is returned when the warning would fire after auto-arming.
	errTimingOrder = errors.New("warn_after must be shorter than auto_arm_after")
	// errTelegramChat is returned when a token is set without a chat id.
	errTelegramChat = errors.New("telegram chat_id must be provided with a token")
)

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := new(Config)

	// Defaults always validate.
	_ = Validate(cfg) //nolint:errcheck // Defaults are valid by construction.

	return cfg
}

// DefaultTiming returns the policy intervals of the original installation.
func DefaultTiming() Timing {
	return Timing{
		TickInterval:     100 * time.Millisecond,
		ErrorBackoff:     time.Second,
		WarnAfter:        55 * time.Minute,
		AutoArmAfter:     time.Hour,
		RealertInterval:  10 * time.Second,
		ScheduleInterval: time.Minute,
		ResumeGrace:      5 * time.Minute,
		HardwareTimeout:  500 * time.Millisecond,
		SuspensionReset:  "18:30",
	}
}

// Load reads configuration from the provided path and validates it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Tokens live in this file.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate fills defaults and checks the settings for consistency.
//
//nolint:cyclop,funlen // Flat list of defaults reads better than many helpers.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.StateFile == "" {
		cfg.StateFile = DefaultStateFilename
	}

	if cfg.ShutdownMarker == "" {
		cfg.ShutdownMarker = DefaultMarkerFilename
	}

	if cfg.Timezone == "" {
		cfg.Timezone = "Local"
	}

	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return fmt.Errorf("invalid timezone: %w", err)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}

	if err := validateTiming(&cfg.Timing); err != nil {
		return err
	}

	if err := validateHardware(&cfg.Hardware); err != nil {
		return err
	}

	if err := validateChannels(cfg); err != nil {
		return err
	}

	if cfg.MQTT.Topic == "" {
		cfg.MQTT.Topic = defaultMQTTTopic
	}

	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = defaultMQTTClientID
	}

	if cfg.MQTT.Broker != "" {
		if _, err := url.Parse(cfg.MQTT.Broker); err != nil {
			return fmt.Errorf("invalid mqtt broker: %w", err)
		}
	}

	if cfg.Telegram.BaseURL == "" {
		cfg.Telegram.BaseURL = defaultTelegramURL
	}

	if cfg.Telegram.Retries <= 0 {
		cfg.Telegram.Retries = defaultRetries
	}

	if cfg.Telegram.RatePerSecond <= 0 {
		cfg.Telegram.RatePerSecond = defaultRate
	}

	if cfg.Telegram.Token != "" && cfg.Telegram.ChatID == "" {
		return errTelegramChat
	}

	if cfg.Frigate.Height <= 0 {
		cfg.Frigate.Height = defaultFrigateHeight
	}

	if cfg.Frigate.URL != "" {
		if _, err := url.ParseRequestURI(cfg.Frigate.URL); err != nil {
			return fmt.Errorf("invalid frigate url: %w", err)
		}
	}

	if cfg.API.GRPCAddress == "" {
		cfg.API.GRPCAddress = DefaultGRPCAddress
	}

	if _, _, err := net.SplitHostPort(cfg.API.GRPCAddress); err != nil {
		return fmt.Errorf("invalid grpc address: %w", err)
	}

	if cfg.API.HTTPAddress != "" {
		if _, _, err := net.SplitHostPort(cfg.API.HTTPAddress); err != nil {
			return fmt.Errorf("invalid http address: %w", err)
		}
	}

	return nil
}

// Location returns the configured time zone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}

	return loc
}

// Channel returns the channel settings with the given id, or a zero value.
func (c *Config) Channel(id int) Channel {
	for _, ch := range c.Channels {
		if ch.ID == id {
			return ch
		}
	}

	return Channel{ID: id}
}

// ResetClock parses SuspensionReset into hour and minute.
func (t Timing) ResetClock() (hour, minute int, err error) {
	parsed, err := time.Parse("15:04", t.SuspensionReset)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid suspension_reset %q: %w", t.SuspensionReset, err)
	}

	return parsed.Hour(), parsed.Minute(), nil
}

func validateTiming(t *Timing) error {
	def := DefaultTiming()

	setDefault := func(v *time.Duration, d time.Duration) {
		if *v <= 0 {
			*v = d
		}
	}

	setDefault(&t.TickInterval, def.TickInterval)
	setDefault(&t.ErrorBackoff, def.ErrorBackoff)
	setDefault(&t.WarnAfter, def.WarnAfter)
	setDefault(&t.AutoArmAfter, def.AutoArmAfter)
	setDefault(&t.RealertInterval, def.RealertInterval)
	setDefault(&t.ScheduleInterval, def.ScheduleInterval)
	setDefault(&t.ResumeGrace, def.ResumeGrace)
	setDefault(&t.HardwareTimeout, def.HardwareTimeout)

	if t.SuspensionReset == "" {
		t.SuspensionReset = def.SuspensionReset
	}

	if _, _, err := t.ResetClock(); err != nil {
		return err
	}

	if t.WarnAfter >= t.AutoArmAfter {
		return errTimingOrder
	}

	return nil
}

func validateHardware(h *Hardware) error {
	if h.Driver == "" {
		h.Driver = DriverGPIOCDev
	}

	if h.Driver != DriverGPIOCDev && h.Driver != DriverSimulated {
		return fmt.Errorf("%w: %q", errUnknownDriver, h.Driver)
	}

	if h.Chip == "" {
		h.Chip = defaultChip
	}

	if h.RelayPin <= 0 {
		h.RelayPin = defaultRelayPin
	}

	return nil
}

func validateChannels(cfg *Config) error {
	if len(cfg.Channels) == 0 {
		cfg.Channels = []Channel{
			{ID: 1, Name: "Fuel tank 1", SensorPin: 23, Camera: "tapo"},
			{ID: 2, Name: "Fuel tank 2", SensorPin: 17, Camera: "tapo2"},
		}
	}

	if len(cfg.Channels) != 2 {
		return errChannelCount
	}

	seen := make(map[int]bool, len(cfg.Channels))

	for i := range cfg.Channels {
		ch := &cfg.Channels[i]
		if ch.ID < 1 || ch.ID > 2 || seen[ch.ID] {
			return errChannelID
		}

		seen[ch.ID] = true

		if ch.Name == "" {
			ch.Name = fmt.Sprintf("Tank %d", ch.ID)
		}
	}

	return nil
}
