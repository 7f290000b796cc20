package modem

import (
	"log/slog"
	"time"
)

// Config holds the settings a Modem is created with. Use NewConfigBuilder
// to assemble one.
type Config struct {
	dialer      Dialer
	atTimeout   time.Duration
	initTimeout time.Duration
	joinTimeout time.Duration
	eventBuffer int
	logger      *slog.Logger
}

func (c *Config) validate() error {
	if c.dialer == nil {
		return ErrNoDialer
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.atTimeout == 0 {
		c.atTimeout = 5 * time.Second
	}
	if c.initTimeout == 0 {
		c.initTimeout = 10 * time.Second
	}
	if c.joinTimeout == 0 {
		c.joinTimeout = 30 * time.Second
	}
	if c.eventBuffer <= 0 {
		c.eventBuffer = 8
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
}

// ConfigBuilder assembles a Config.
type ConfigBuilder struct {
	config Config
}

func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{}
}

func (b *ConfigBuilder) WithDialer(d Dialer) *ConfigBuilder {
	b.config.dialer = d
	return b
}

// WithATTimeout sets the timeout applied to commands whose context has no
// deadline.
func (b *ConfigBuilder) WithATTimeout(d time.Duration) *ConfigBuilder {
	b.config.atTimeout = d
	return b
}

func (b *ConfigBuilder) WithInitTimeout(d time.Duration) *ConfigBuilder {
	b.config.initTimeout = d
	return b
}

// WithJoinTimeout bounds how long a single at+join may stay unanswered.
func (b *ConfigBuilder) WithJoinTimeout(d time.Duration) *ConfigBuilder {
	b.config.joinTimeout = d
	return b
}

func (b *ConfigBuilder) WithEventBuffer(n int) *ConfigBuilder {
	b.config.eventBuffer = n
	return b
}

func (b *ConfigBuilder) WithLogger(l *slog.Logger) *ConfigBuilder {
	b.config.logger = l
	return b
}

// Build validates the configuration and fills in defaults.
func (b *ConfigBuilder) Build() (Config, error) {
	c := b.config
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	c.setDefaults()
	return c, nil
}
