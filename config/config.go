package config

import "time"

// Config contains all application settings
type Config struct {
	BindPort      int    `mapstructure:"PORT" yaml:"port"`
	BindHost      string `mapstructure:"HOST" yaml:"host"`
	DatabaseURL   string `mapstructure:"DATABASE_URL" yaml:"database_url"`
	NATSServerURL string `mapstructure:"NATS_URL" yaml:"nats_url"`
	NATSSubject   string `mapstructure:"NATS_SUBJECT" yaml:"nats_subject"`

	// Liveness settings in seconds
	DeviceTimeout        int `mapstructure:"DEVICE_TIMEOUT" yaml:"device_timeout"`
	DeviceSweepInterval  int `mapstructure:"DEVICE_SWEEP_INTERVAL" yaml:"device_sweep_interval"`
	FrontendPingInterval int `mapstructure:"FRONTEND_PING_INTERVAL" yaml:"frontend_ping_interval"`

	OutboxSize     int    `mapstructure:"OUTBOX_SIZE" yaml:"outbox_size"`
	MaxMessageSize int64  `mapstructure:"MAX_MESSAGE_SIZE" yaml:"max_message_size"`
	MaxEvents      int    `mapstructure:"MAX_EVENTS" yaml:"max_events"`
	LogLevel       string `mapstructure:"LOG_LEVEL" yaml:"log_level"`

	// Version
	BuildVersion string `yaml:"-"`
	BuildHash    string `yaml:"-"`
	BuildTime    string `yaml:"-"`
}

func (c *Config) DeviceTimeoutDuration() time.Duration {
	return time.Duration(c.DeviceTimeout) * time.Second
}

func (c *Config) DeviceSweepIntervalDuration() time.Duration {
	return time.Duration(c.DeviceSweepInterval) * time.Second
}

func (c *Config) FrontendPingIntervalDuration() time.Duration {
	return time.Duration(c.FrontendPingInterval) * time.Second
}
