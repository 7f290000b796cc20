package main

import (
	"flag"
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration
type Config struct {
	// BindAddress is the address the server listens on (e.g. "0.0.0.0:8080")
	BindAddress string
	// ConsolePort is the host UART frames are read from (e.g. "/dev/ttyS0")
	ConsolePort string
	// ConsoleBaud is the console baud rate (e.g. 115200)
	ConsoleBaud int
	// RadioPort is the serial port of the LoRaWAN module (e.g. "/dev/ttyUSB0")
	RadioPort string
	// RadioBaud is the radio module baud rate
	RadioBaud int
	// LogLevel sets the logging level (e.g. "debug", "info", "warn", "error")
	LogLevel string
	// SettingsPath is the YAML file the device settings persist to
	SettingsPath string

	// IdleTimeout is the line silence that completes a frame
	IdleTimeout time.Duration
	// FrameCapacity is the largest frame accepted from the console
	FrameCapacity int
	// JoinRetries bounds the join retries after the first request
	JoinRetries int
	// ADRStepEvery lowers the data rate only on every Nth retry
	ADRStepEvery int

	// I2CBus is the bus device of the gyro; empty disables sampling
	I2CBus string
	// GyroInterval is the gyro sample period
	GyroInterval time.Duration

	// LEDChip and LEDLine select the join LED; an empty chip disables it
	LEDChip string
	LEDLine int

	// MQTTBroker enables the MQTT bridge (e.g. "tcp://localhost:1883")
	MQTTBroker      string
	MQTTClientID    string
	MQTTUsername    string
	MQTTPassword    string
	MQTTTopicPrefix string
}

// ConfigOption is a function that modifies a Config
type ConfigOption func(*Config) error

// LoadConfig creates a new config by applying the given options in order
func LoadConfig(opts ...ConfigOption) (*Config, error) {
	config := &Config{}

	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, err
		}
	}

	return config, nil
}

// WithDefaults applies default configuration values
func WithDefaults() ConfigOption {
	return func(c *Config) error {
		c.BindAddress = "0.0.0.0:8080"
		c.ConsolePort = "/dev/ttyS0"
		c.ConsoleBaud = 115200
		c.RadioPort = "/dev/ttyUSB0"
		c.RadioBaud = 115200
		c.LogLevel = "info"
		c.SettingsPath = "/var/lib/loranode/settings.yaml"
		c.IdleTimeout = 500 * time.Millisecond
		c.FrameCapacity = 256
		c.JoinRetries = 6
		c.ADRStepEvery = 1
		c.GyroInterval = 500 * time.Millisecond
		c.LEDLine = -1
		c.MQTTClientID = "loranode"
		c.MQTTTopicPrefix = "loranode"
		return nil
	}
}

func envInt(name string, dst *int) {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envDuration(name string, dst *time.Duration) {
	if v := os.Getenv(name); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func envString(name string, dst *string) {
	if v := os.Getenv(name); v != "" {
		*dst = v
	}
}

// WithEnv loads configuration from environment variables
func WithEnv() ConfigOption {
	return func(c *Config) error {
		envString("BIND_ADDRESS", &c.BindAddress)
		envString("CONSOLE_PORT", &c.ConsolePort)
		envInt("CONSOLE_BAUD", &c.ConsoleBaud)
		envString("RADIO_PORT", &c.RadioPort)
		envInt("RADIO_BAUD", &c.RadioBaud)
		envString("LOG_LEVEL", &c.LogLevel)
		envString("SETTINGS_PATH", &c.SettingsPath)
		envDuration("IDLE_TIMEOUT", &c.IdleTimeout)
		envInt("FRAME_CAPACITY", &c.FrameCapacity)
		envInt("JOIN_RETRIES", &c.JoinRetries)
		envInt("ADR_STEP_EVERY", &c.ADRStepEvery)
		envString("I2C_BUS", &c.I2CBus)
		envDuration("GYRO_INTERVAL", &c.GyroInterval)
		envString("LED_CHIP", &c.LEDChip)
		envInt("LED_LINE", &c.LEDLine)
		envString("MQTT_BROKER", &c.MQTTBroker)
		envString("MQTT_CLIENT_ID", &c.MQTTClientID)
		envString("MQTT_USERNAME", &c.MQTTUsername)
		envString("MQTT_PASSWORD", &c.MQTTPassword)
		envString("MQTT_TOPIC_PREFIX", &c.MQTTTopicPrefix)
		return nil
	}
}

// WithFlags loads configuration from command-line flags
func WithFlags(fSet *flag.FlagSet) ConfigOption {
	return func(c *Config) error {
		fSet.Visit(func(f *flag.Flag) {
			v := f.Value.String()
			switch f.Name {
			case "bind-address":
				c.BindAddress = v
			case "console-port":
				c.ConsolePort = v
			case "console-baud":
				if n, err := strconv.Atoi(v); err == nil {
					c.ConsoleBaud = n
				}
			case "radio-port":
				c.RadioPort = v
			case "radio-baud":
				if n, err := strconv.Atoi(v); err == nil {
					c.RadioBaud = n
				}
			case "log-level":
				c.LogLevel = v
			case "settings":
				c.SettingsPath = v
			case "idle-timeout":
				if d, err := time.ParseDuration(v); err == nil {
					c.IdleTimeout = d
				}
			case "frame-capacity":
				if n, err := strconv.Atoi(v); err == nil {
					c.FrameCapacity = n
				}
			case "join-retries":
				if n, err := strconv.Atoi(v); err == nil {
					c.JoinRetries = n
				}
			case "adr-step-every":
				if n, err := strconv.Atoi(v); err == nil {
					c.ADRStepEvery = n
				}
			case "i2c-bus":
				c.I2CBus = v
			case "gyro-interval":
				if d, err := time.ParseDuration(v); err == nil {
					c.GyroInterval = d
				}
			case "led-chip":
				c.LEDChip = v
			case "led-line":
				if n, err := strconv.Atoi(v); err == nil {
					c.LEDLine = n
				}
			case "mqtt-broker":
				c.MQTTBroker = v
			case "mqtt-client-id":
				c.MQTTClientID = v
			case "mqtt-username":
				c.MQTTUsername = v
			case "mqtt-password":
				c.MQTTPassword = v
			case "mqtt-topic-prefix":
				c.MQTTTopicPrefix = v
			}
		})
		return nil
	}
}
