package config

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	internal "github.com/nedm-daq/digaccess/dig"
	"github.com/nedm-daq/digaccess/dig/common"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// KnownKeys is the full set of recognized read-settings keys, in the order
// they are documented.
var KnownKeys = []string{
	"downsample",
	"channels_to_read",
	"start_read",
	"end_read",
	"start_time",
	"end_time",
	"max_frequency",
}

// Settings is the typed form of a user's read request. Every field is
// optional; a nil field means "use the default derived from the file
// header". The time and frequency fields are convenience variants that
// resolution converts into read indexes and a downsample factor.
type Settings struct {
	Downsample     *int     `mapstructure:"downsample"`       // keep 1 of every N reads; conflicts with max_frequency
	ChannelsToRead []int    `mapstructure:"channels_to_read"` // channel ids to materialize; scalar input is coerced
	StartRead      *int     `mapstructure:"start_read"`       // first read index; conflicts with start_time
	EndRead        *int     `mapstructure:"end_read"`         // read index past the range; conflicts with end_time
	StartTime      *float64 `mapstructure:"start_time"`       // seconds from run start, rounded up to a read
	EndTime        *float64 `mapstructure:"end_time"`         // seconds from run start, rounded up to a read
	MaxFrequency   *float64 `mapstructure:"max_frequency"`    // output rate ceiling in Hz; conflicts with downsample
}

// scalarToSliceHook lets a bare channel id stand in for a one-element list,
// a convenience coercion rather than an error.
func scalarToSliceHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if to.Kind() == reflect.Slice && from.Kind() != reflect.Slice && from.Kind() != reflect.Array {
		return []interface{}{data}, nil
	}
	return data, nil
}

// ParseSettings validates and decodes a raw settings value into Settings.
// The raw value must be a string-keyed mapping whose keys are a subset of
// KnownKeys; anything else fails with common.ErrSettings naming exactly what
// was wrong so the caller can correct the request without reading internals.
func ParseSettings(raw any) (*Settings, error) {
	s := &Settings{}
	if raw == nil {
		return s, nil
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: settings must be supplied as a mapping, got %T", common.ErrSettings, raw)
	}

	var md mapstructure.Metadata
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:     s,
		Metadata:   &md,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(scalarToSliceHook),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build settings decoder: %w", err)
	}
	if err := dec.Decode(m); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrSettings, err)
	}
	if len(md.Unused) > 0 {
		unknown := append([]string(nil), md.Unused...)
		sort.Strings(unknown)
		return nil, fmt.Errorf("%w: keys [%s] are not known, available settings are [%s]",
			common.ErrSettings, strings.Join(unknown, ", "), strings.Join(KnownKeys, ", "))
	}
	return s, nil
}

// LoadSettings reads read settings from a config file or environment
// variables. An empty configPath falls back to the default search locations.
func LoadSettings(configPath string) (*Settings, error) {
	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath(internal.DefaultConfigPath)
		v.SetConfigName("settings")
		v.SetConfigType("toml")
	}

	v.SetEnvPrefix(strings.ToUpper(internal.DefaultAppName))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read settings file: %w", err)
		}
		// Settings file not found; defaults derived from the header apply.
	}

	return ParseSettings(v.AllSettings())
}
