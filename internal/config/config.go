package config

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type Option func(v *viper.Viper)

// WithEnvPrefix only lets environment variables starting with prefix override the config,
// e.g. QUIZBATTLE_HTTP_PORT for http.port.
func WithEnvPrefix(prefix string) Option {
	return func(v *viper.Viper) {
		v.SetEnvPrefix(prefix)
	}
}

// Load config from file into the config struct, config must be a pointer to the config struct.
// The values already set in config act as defaults, so every key is also reachable from
// the environment. An empty file loads defaults and environment only.
func Load(file string, config any, opts ...Option) error {
	v := viper.New()
	m := make(map[string]any)

	if err := mapstructure.Decode(config, &m); err != nil {
		return fmt.Errorf("mapstructure: %v", err)
	}

	if err := v.MergeConfigMap(m); err != nil {
		return fmt.Errorf("merge config map: %v", err)
	}

	for _, opt := range opts {
		opt(v)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.MergeInConfig(); err != nil {
			return fmt.Errorf("read config from file %s: %v", file, err)
		}
	}

	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("unmarshal config: %v", err)
	}

	return nil
}
