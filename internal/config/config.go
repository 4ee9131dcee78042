// Package config provides settings loading from a settings file and environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"zone.digit.vitrine/internal/infra"
)

const (
	// DefaultIP is the default bind address.
	DefaultIP = "127.0.0.1"
	// DefaultPort is the default HTTP server port.
	DefaultPort = 3000

	// EnvPrefix prefixes every environment variable read by Load.
	EnvPrefix = "VITRINE"

	settingsName    = "settings"
	resolveTimeout  = 2 * time.Second
	maxPort         = 65535
	fallbackMessage = "failed to parse settings, defaults will be used instead"
)

// ErrInvalidSettings is returned when decoded settings do not form a usable bind address.
var ErrInvalidSettings = errors.New("invalid settings")

// Settings holds the network bind configuration.
type Settings struct {
	IP          string `mapstructure:"ip"`
	Port        int    `mapstructure:"port"`
	Compression bool   `mapstructure:"compression"`
}

// Defaults returns the settings used when nothing else can be parsed.
func Defaults() Settings {
	return Settings{
		IP:   DefaultIP,
		Port: DefaultPort,
	}
}

// Address returns the host:port pair to bind.
func (s Settings) Address() string {
	return net.JoinHostPort(s.IP, strconv.Itoa(s.Port))
}

// Validate checks that the settings combine into a bindable address.
func (s Settings) Validate() error {
	if s.Port < 1 || s.Port > maxPort {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidSettings, s.Port)
	}

	if strings.TrimSpace(s.IP) == "" {
		return fmt.Errorf("%w: empty ip", ErrInvalidSettings)
	}

	ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
	defer cancel()
	if _, err := infra.ResolveDNS(ctx, s.IP); err != nil {
		return fmt.Errorf("%w: ip %q: %v", ErrInvalidSettings, s.IP, err)
	}

	return nil
}

// NewViper returns a viper instance with defaults and environment bindings applied.
func NewViper() *viper.Viper {
	v := viper.New()

	d := Defaults()
	v.SetDefault("ip", d.IP)
	v.SetDefault("port", d.Port)
	v.SetDefault("compression", d.Compression)

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	return v
}

// Parse decodes and validates settings from v.
func Parse(v *viper.Viper) (*Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s, strictDecoding); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}

	return &s, nil
}

// strictDecoding disables mapstructure's loose conversions and rejects unknown keys.
// Strings still convert to ints and bools since environment values are always strings.
func strictDecoding(c *mapstructure.DecoderConfig) {
	c.WeaklyTypedInput = false
	c.ErrorUnused = true
	c.DecodeHook = mapstructure.ComposeDecodeHookFunc(
		mapstructure.DecodeHookFuncType(scalarHook),
	)
}

func scalarHook(from, to reflect.Type, data interface{}) (interface{}, error) {
	switch to.Kind() {
	case reflect.Int:
		switch from.Kind() {
		case reflect.String:
			n, err := strconv.Atoi(data.(string))
			if err != nil {
				return nil, fmt.Errorf("invalid integer %q", data)
			}
			return n, nil
		case reflect.Float32, reflect.Float64:
			f := reflect.ValueOf(data).Float()
			if f != math.Trunc(f) {
				return nil, fmt.Errorf("invalid integer %v", data)
			}
			return int(f), nil
		case reflect.Bool:
			return nil, fmt.Errorf("invalid integer %v", data)
		}
	case reflect.Bool:
		if from.Kind() == reflect.String {
			b, err := strconv.ParseBool(data.(string))
			if err != nil {
				return nil, fmt.Errorf("invalid boolean %q", data)
			}
			return b, nil
		}
	}
	return data, nil
}

// Load loads settings from the settings file at path (or settings.* in the
// working directory when path is empty) and the environment.
// It never fails: any parse error is logged and the defaults are returned.
func Load(logger *slog.Logger, path string) *Settings {
	s, err := load(path)
	if err != nil {
		logger.Warn(fallbackMessage, "error", err)
		d := Defaults()
		return &d
	}
	return s
}

func load(path string) (*Settings, error) {
	v := NewViper()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(settingsName)
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read settings file: %w", err)
		}
	}

	return Parse(v)
}
