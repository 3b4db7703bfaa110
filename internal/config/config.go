// internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration. It is loaded once at
// startup and treated as immutable for the lifetime of every session.
type Config struct {
	Serial   SerialConfig   `mapstructure:"serial"`
	Protocol ProtocolConfig `mapstructure:"protocol"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	App      AppConfig      `mapstructure:"app"`
}

// SerialConfig represents the physical line parameters and the
// anti-reset signal targets. Weighbridge indicators are notoriously
// fragile: a DTR or RTS transition at the wrong moment restarts the
// device, so the signal levels and flow-control flags are applied as a
// unit during open and close, never individually afterwards.
type SerialConfig struct {
	Port     string `mapstructure:"port" validate:"required"`
	BaudRate int    `mapstructure:"baud_rate"`
	DataBits int    `mapstructure:"data_bits"`
	Parity   string `mapstructure:"parity"`
	StopBits int    `mapstructure:"stop_bits"`

	// Control-signal levels asserted right after open and again before
	// close. Both low is the usual anti-reset configuration.
	DTR bool `mapstructure:"dtr"`
	RTS bool `mapstructure:"rts"`

	// Flow-control flags, applied exactly as configured and never
	// defaulted to hardware flow control.
	RTSCTS bool `mapstructure:"rtscts"`
	XON    bool `mapstructure:"xon"`
	XOFF   bool `mapstructure:"xoff"`
	XAny   bool `mapstructure:"xany"`

	// Stabilization delays around the signal sequencing.
	OpenDelayMs  int `mapstructure:"open_delay_ms"`
	CloseDelayMs int `mapstructure:"close_delay_ms"`
}

// ProtocolConfig selects the framing discipline and the weight pattern.
type ProtocolConfig struct {
	// Framing is "frame" (start marker ... end marker) or "line"
	// (terminator-bounded).
	Framing string `mapstructure:"framing" validate:"required"`

	// Single-byte markers. YAML double-quoted escapes work here, e.g.
	// "\x02" for STX or "\r" for carriage return.
	FrameStart     string `mapstructure:"frame_start"`
	FrameEnd       string `mapstructure:"frame_end"`
	LineTerminator string `mapstructure:"line_terminator"`

	// Pattern extracts the integer reading from a candidate unit. Group 1
	// wins when present, otherwise the whole match.
	Pattern string `mapstructure:"pattern" validate:"required"`

	ReadTimeoutMs int    `mapstructure:"read_timeout_ms"`
	MaxBuffer     int    `mapstructure:"max_buffer"`
	WeightDivisor int64  `mapstructure:"weight_divisor"`
	Unit          string `mapstructure:"unit"`
}

// ServerConfig represents the optional HTTP mode configuration.
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           string        `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

// LoggingConfig represents logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// AppConfig represents application metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// Load loads configuration from the given file (or the default search
// path when empty) and SCALE_READER_* environment variables.
func Load(cfgFile string) (*Config, error) {
	return LoadWithOverrides(cfgFile, nil)
}

// LoadWithOverrides loads configuration like Load and applies overrides
// (typically command-line flags) before validation.
func LoadWithOverrides(cfgFile string, apply func(*Config)) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/scale-reader")
	}

	v.SetEnvPrefix("SCALE_READER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine when everything has a default or
		// comes from the environment; an explicit file must exist.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || cfgFile != "" {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if apply != nil {
		apply(&config)
	}

	if err := Validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values. Signal defaults keep
// both control lines inactive: the safe choice for reset-sensitive
// indicators.
func setDefaults(v *viper.Viper) {
	v.SetDefault("serial.baud_rate", 9600)
	v.SetDefault("serial.data_bits", 8)
	v.SetDefault("serial.parity", "none")
	v.SetDefault("serial.stop_bits", 1)
	v.SetDefault("serial.dtr", false)
	v.SetDefault("serial.rts", false)
	v.SetDefault("serial.rtscts", false)
	v.SetDefault("serial.xon", false)
	v.SetDefault("serial.xoff", false)
	v.SetDefault("serial.xany", false)
	v.SetDefault("serial.open_delay_ms", 200)
	v.SetDefault("serial.close_delay_ms", 200)

	v.SetDefault("protocol.framing", "line")
	v.SetDefault("protocol.frame_start", "\x02")
	v.SetDefault("protocol.frame_end", "\x03")
	v.SetDefault("protocol.line_terminator", "\r")
	v.SetDefault("protocol.pattern", `(\d+)`)
	v.SetDefault("protocol.read_timeout_ms", 5000)
	v.SetDefault("protocol.max_buffer", 4096)
	v.SetDefault("protocol.weight_divisor", 1)
	v.SetDefault("protocol.unit", "kg")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8094")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stderr")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", true)

	v.SetDefault("app.name", "scale-reader")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "production")
}

// Validate validates the configuration.
func Validate(config *Config) error {
	if config.Serial.Port == "" {
		return fmt.Errorf("serial.port is required")
	}
	if config.Serial.BaudRate <= 0 {
		return fmt.Errorf("serial.baud_rate must be positive")
	}
	switch config.Serial.Parity {
	case "none", "odd", "even":
	default:
		return fmt.Errorf("serial.parity must be one of: none, odd, even")
	}
	switch config.Serial.StopBits {
	case 1, 2:
	default:
		return fmt.Errorf("serial.stop_bits must be 1 or 2")
	}

	switch config.Protocol.Framing {
	case "frame":
		if _, err := config.Protocol.FrameStartByte(); err != nil {
			return err
		}
		if _, err := config.Protocol.FrameEndByte(); err != nil {
			return err
		}
	case "line":
		if _, err := config.Protocol.LineTerminatorByte(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("protocol.framing must be \"frame\" or \"line\"")
	}

	if config.Protocol.Pattern == "" {
		return fmt.Errorf("protocol.pattern is required")
	}
	if config.Protocol.ReadTimeoutMs <= 0 {
		return fmt.Errorf("protocol.read_timeout_ms must be positive")
	}

	validLevels := []string{"debug", "info", "warn", "error", "fatal"}
	isValidLevel := false
	for _, level := range validLevels {
		if config.Logging.Level == level {
			isValidLevel = true
			break
		}
	}
	if !isValidLevel {
		return fmt.Errorf("logging.level must be one of: %v", validLevels)
	}

	return nil
}

// FrameStartByte returns the frame start marker as a single byte.
func (p *ProtocolConfig) FrameStartByte() (byte, error) {
	return singleByte(p.FrameStart, "protocol.frame_start")
}

// FrameEndByte returns the frame end marker as a single byte.
func (p *ProtocolConfig) FrameEndByte() (byte, error) {
	return singleByte(p.FrameEnd, "protocol.frame_end")
}

// LineTerminatorByte returns the line terminator as a single byte.
func (p *ProtocolConfig) LineTerminatorByte() (byte, error) {
	return singleByte(p.LineTerminator, "protocol.line_terminator")
}

// ReadTimeout returns the overall read deadline for one session.
func (p *ProtocolConfig) ReadTimeout() time.Duration {
	return time.Duration(p.ReadTimeoutMs) * time.Millisecond
}

// OpenDelay returns the stabilization delay after the open sequence.
func (s *SerialConfig) OpenDelay() time.Duration {
	return time.Duration(s.OpenDelayMs) * time.Millisecond
}

// CloseDelay returns the stabilization delay before the port is closed.
func (s *SerialConfig) CloseDelay() time.Duration {
	return time.Duration(s.CloseDelayMs) * time.Millisecond
}

// FlowControlRequested reports whether any flow-control flag is set.
func (s *SerialConfig) FlowControlRequested() bool {
	return s.RTSCTS || s.XON || s.XOFF || s.XAny
}

// GetServerAddr returns the HTTP server address.
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// IsProduction checks if running in production mode.
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func singleByte(s, key string) (byte, error) {
	if len(s) != 1 {
		return 0, fmt.Errorf("%s must be exactly one byte, got %q", key, s)
	}
	return s[0], nil
}
