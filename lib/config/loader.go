package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader builds a Config from defaults, a YAML file and the environment.
type Loader struct {
	configPath string
	envPrefix  string
	lookupEnv  func(string) (string, bool)
	validators []func(*Config) error
}

// NewLoader creates a loader reading HXSTREAM_* variables.
func NewLoader() *Loader {
	return &Loader{
		envPrefix: "HXSTREAM",
		lookupEnv: os.LookupEnv,
	}
}

// WithConfigPath sets the YAML file. A missing file is not an error.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix sets the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator adds a check run after Validate.
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load returns the merged and validated configuration.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFile(cfg); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", l.configPath, err)
		}
	}
	if err := l.loadEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix); err != nil {
		return nil, fmt.Errorf("config: load env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config: validation: %w", err)
		}
	}
	return cfg, nil
}

func (l *Loader) loadFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func (l *Loader) loadEnv(v reflect.Value, prefix string) error {
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		tag := t.Field(i).Tag.Get("env")
		if tag == "" || tag == "-" {
			continue
		}
		key := prefix + "_" + tag

		if field.Kind() == reflect.Struct {
			if err := l.loadEnv(field, key); err != nil {
				return err
			}
			continue
		}

		value, ok := l.lookupEnv(key)
		if !ok || value == "" {
			continue
		}
		if err := setField(field, value); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	return nil
}

var durationType = reflect.TypeOf(time.Duration(0))

func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int64:
		if field.Type() == durationType {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
			return nil
		}
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(n)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}
	return nil
}
