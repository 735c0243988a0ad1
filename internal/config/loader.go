package config

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config from [Default] overlaid with every environment
// variable named by an env tag, then validates it. Variables without a
// mapping are ignored.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	envToPath := envMappings()

	if err := k.Load(env.Provider(".", env.Opt{
		TransformFunc: func(key, value string) (string, any) {
			path, ok := envToPath[key]
			if !ok {
				return "", nil
			}

			return path, value
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config

	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &cfg,
			TagName:          "koanf",
			DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks field constraints and the settings the selected store
// needs.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("configuration cannot be nil")
	}

	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	switch cfg.Store {
	case StoreDynamoDB:
		if cfg.DynamoDB.Table == "" {
			return errors.New("configuration validation failed: DYNAMODB_TABLE is required for the dynamodb store")
		}
	case StorePostgres:
		if cfg.Postgres.Host == "" || cfg.Postgres.Database == "" || cfg.Postgres.Table == "" {
			return errors.New("configuration validation failed: postgres host, database, and table are required for the postgres store")
		}
	case StoreRedis:
		if cfg.Redis.Addr == "" || cfg.Redis.Prefix == "" {
			return errors.New("configuration validation failed: redis addr and prefix are required for the redis store")
		}
	}

	return nil
}

// envMappings maps each env tag to its koanf path.
func envMappings() map[string]string {
	out := map[string]string{}
	collectEnv(reflect.TypeOf(Config{}), "", out)

	return out
}

func collectEnv(t reflect.Type, prefix string, out map[string]string) {
	for i := range t.NumField() {
		field := t.Field(i)

		tag := field.Tag.Get("koanf")
		if tag == "" || tag == "-" {
			continue
		}

		path := tag
		if prefix != "" {
			path = prefix + "." + tag
		}

		if envVar := field.Tag.Get("env"); envVar != "" {
			out[envVar] = path
		}

		if field.Type.Kind() == reflect.Struct && field.Type.PkgPath() != "time" {
			collectEnv(field.Type, path, out)
		}
	}
}
