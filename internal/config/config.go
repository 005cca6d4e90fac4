// Package config loads node configuration from a YAML or TOML file and
// LOCKLINE_ environment variables.
//
// Precedence, lowest first: built-in defaults, the file, the environment.
// Commands apply their flags on top of the result.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/lockline/lockline-go/pkg/actuation"
	"github.com/lockline/lockline-go/pkg/lockout"
	"github.com/lockline/lockline-go/pkg/panel"
	"github.com/lockline/lockline-go/pkg/persistence"
	"github.com/lockline/lockline-go/pkg/tick"
	"github.com/lockline/lockline-go/pkg/transport"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "LOCKLINE_"

// Link kinds.
const (
	LinkSerial = "serial"
	LinkTCP    = "tcp"
)

// Store kinds.
const (
	StoreFile   = "file"
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// Configuration errors.
var (
	ErrUnknownFormat = errors.New("config: unknown file format")
	ErrInvalid       = errors.New("config: invalid")
)

// Config is the configuration of one node.
type Config struct {
	Link    LinkConfig    `yaml:"link" toml:"link" envPrefix:"LINK_"`
	Timing  TimingConfig  `yaml:"timing" toml:"timing" envPrefix:"TIMING_"`
	Store   StoreConfig   `yaml:"store" toml:"store" envPrefix:"STORE_"`
	Log     LogConfig     `yaml:"log" toml:"log" envPrefix:"LOG_"`
	Lockout LockoutConfig `yaml:"lockout" toml:"lockout" envPrefix:"LOCKOUT_"`
}

// LinkConfig selects and configures the link to the other node.
type LinkConfig struct {
	// Kind is "serial" or "tcp".
	Kind string `yaml:"kind" toml:"kind" env:"KIND"`

	// Device, Baud, DataBits, Parity and StopBits configure a serial link.
	Device   string `yaml:"device" toml:"device" env:"DEVICE"`
	Baud     int    `yaml:"baud" toml:"baud" env:"BAUD"`
	DataBits int    `yaml:"data_bits" toml:"data_bits" env:"DATA_BITS"`
	Parity   string `yaml:"parity" toml:"parity" env:"PARITY"`
	StopBits int    `yaml:"stop_bits" toml:"stop_bits" env:"STOP_BITS"`

	// Address is where the controller listens, or where the panel dials.
	// An empty panel address browses for the controller over mDNS.
	Address string `yaml:"address" toml:"address" env:"ADDRESS"`

	// Advertise publishes a TCP controller over mDNS as Instance.
	Advertise bool   `yaml:"advertise" toml:"advertise" env:"ADVERTISE"`
	Instance  string `yaml:"instance" toml:"instance" env:"INSTANCE"`
}

// TimingConfig holds the tick period, sequence offsets and display holds.
type TimingConfig struct {
	TickPeriod time.Duration `yaml:"tick_period" toml:"tick_period" env:"TICK_PERIOD"`

	actuation.Timing `yaml:",inline"`

	WrongHold time.Duration `yaml:"wrong_hold" toml:"wrong_hold" env:"WRONG_HOLD"`
	SetHold   time.Duration `yaml:"set_hold" toml:"set_hold" env:"SET_HOLD"`
}

// StoreConfig selects the non-volatile store.
type StoreConfig struct {
	// Kind is "file", "sqlite" or "memory".
	Kind string `yaml:"kind" toml:"kind" env:"KIND"`
	Path string `yaml:"path" toml:"path" env:"PATH"`
	Size int    `yaml:"size" toml:"size" env:"SIZE"`

	CredentialAddr int64 `yaml:"credential_addr" toml:"credential_addr" env:"CREDENTIAL_ADDR"`
	FlagAddr       int64 `yaml:"flag_addr" toml:"flag_addr" env:"FLAG_ADDR"`
}

// LogConfig configures operational and protocol logging.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level" toml:"level" env:"LEVEL"`

	// Format is text or json.
	Format string `yaml:"format" toml:"format" env:"FORMAT"`

	// ProtocolFile, when set, receives a CBOR protocol trace.
	ProtocolFile string `yaml:"protocol_file" toml:"protocol_file" env:"PROTOCOL_FILE"`
}

// LockoutConfig configures the attempt counter.
type LockoutConfig struct {
	Threshold int `yaml:"threshold" toml:"threshold" env:"THRESHOLD"`
}

// Default returns the appliance configuration.
func Default() Config {
	serial := transport.DefaultSerialConfig("/dev/ttyUSB0")
	return Config{
		Link: LinkConfig{
			Kind:     LinkSerial,
			Device:   serial.Device,
			Baud:     serial.BaudRate,
			DataBits: serial.DataBits,
			Parity:   serial.Parity,
			StopBits: serial.StopBits,
			Instance: "lockline",
		},
		Timing: TimingConfig{
			TickPeriod: tick.DefaultPeriod,
			Timing:     actuation.DefaultTiming(),
			WrongHold:  panel.DefaultWrongHold,
			SetHold:    panel.DefaultSetHold,
		},
		Store: StoreConfig{
			Kind:           StoreFile,
			Size:           persistence.DefaultSize,
			CredentialAddr: persistence.CredentialAddr,
			FlagAddr:       persistence.FlagAddr,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Lockout: LockoutConfig{
			Threshold: lockout.DefaultThreshold,
		},
	}
}

// Load returns the defaults overlaid with the file at path (if any) and
// the environment. The file format follows its extension. Callers apply
// their own overrides and then call Validate.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("config: decode %s: %w", path, err)
		}
	case ".toml":
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return fmt.Errorf("config: decode %s: %w", path, err)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, filepath.Ext(path))
	}
	return nil
}

// Validate checks the configuration for values no node can run with.
func (c Config) Validate() error {
	switch c.Link.Kind {
	case LinkSerial:
		if c.Link.Device == "" {
			return fmt.Errorf("%w: serial link needs a device", ErrInvalid)
		}
	case LinkTCP:
	default:
		return fmt.Errorf("%w: link kind %q", ErrInvalid, c.Link.Kind)
	}

	switch c.Store.Kind {
	case StoreFile, StoreSQLite:
		if c.Store.Path == "" {
			return fmt.Errorf("%w: %s store needs a path", ErrInvalid, c.Store.Kind)
		}
	case StoreMemory:
	default:
		return fmt.Errorf("%w: store kind %q", ErrInvalid, c.Store.Kind)
	}
	if c.Store.CredentialAddr < 0 || c.Store.CredentialAddr+persistence.SlotSize > int64(c.Store.Size) {
		return fmt.Errorf("%w: credential address %#x outside %d-byte store", ErrInvalid, c.Store.CredentialAddr, c.Store.Size)
	}
	if c.Store.FlagAddr < 0 || c.Store.FlagAddr >= int64(c.Store.Size) {
		return fmt.Errorf("%w: flag address %#x outside %d-byte store", ErrInvalid, c.Store.FlagAddr, c.Store.Size)
	}

	if c.Timing.TickPeriod <= 0 {
		return fmt.Errorf("%w: tick period %s", ErrInvalid, c.Timing.TickPeriod)
	}
	if err := c.Timing.Timing.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if c.Lockout.Threshold <= 0 {
		return fmt.Errorf("%w: lockout threshold %d", ErrInvalid, c.Lockout.Threshold)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("%w: log format %q", ErrInvalid, c.Log.Format)
	}
	return nil
}

// Serial returns the serial port settings.
func (l LinkConfig) Serial() transport.SerialConfig {
	return transport.SerialConfig{
		Device:   l.Device,
		BaudRate: l.Baud,
		DataBits: l.DataBits,
		Parity:   l.Parity,
		StopBits: l.StopBits,
	}
}
