package engine

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config is the engine's static, host-supplied configuration, loaded the
// way the teacher's internal/config.go loaded NovaSqlConfig: a single YAML
// document unmarshaled with viper/mapstructure.
type Config struct {
	Wire struct {
		LayoutCacheSize int `mapstructure:"layout_cache_size"`
	} `mapstructure:"wire"`
	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
}

// DefaultConfig is used whenever no config file is supplied to New.
func DefaultConfig() Config {
	var c Config
	c.Wire.LayoutCacheSize = 256
	c.Log.Level = "info"
	return c
}

// LoadConfig reads and unmarshals a YAML config file.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("engine: read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("engine: unmarshal config: %w", err)
	}
	return cfg, nil
}
