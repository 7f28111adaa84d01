package config

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Load config from file into the config struct, config must be a pointer to the config struct.
// The values already in config are the defaults, every key can be overridden by its env var,
// e.g. REDIS_PUBSUB_PREFIX for redis.pubsub.prefix. An empty file loads defaults and env only.
func Load(file string, config any) error {
	v := viper.New()

	if err := setDefaults(v, config); err != nil {
		return err
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config from file %s: %v", file, err)
		}
	}

	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("unmarshal config: %v", err)
	}

	return nil
}

// setDefaults registers every leaf of the struct, so that env vars of nested keys are looked up too.
func setDefaults(v *viper.Viper, config any) error {
	m := make(map[string]any)
	if err := mapstructure.Decode(config, &m); err != nil {
		return fmt.Errorf("mapstructure: %v", err)
	}

	walk(v, "", m)
	return nil
}

func walk(v *viper.Viper, prefix string, m map[string]any) {
	for k, val := range m {
		key := strings.ToLower(k)
		if prefix != "" {
			key = prefix + "." + key
		}

		if nested, ok := val.(map[string]any); ok {
			walk(v, key, nested)
			continue
		}

		v.SetDefault(key, val)
	}
}
