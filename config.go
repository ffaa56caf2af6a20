package authfront

import (
	"fmt"
	"os"
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/nubauth/authfront/gate"
	"github.com/nubauth/authfront/provider"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// Address the server listens on.
	Address string `yaml:"address" validate:"required"`
	// BaseURL is the public origin of this service.
	BaseURL string `yaml:"base_url" validate:"required,url"`
	// Upstream is the application served behind the gate.
	Upstream string `yaml:"upstream" validate:"required,url"`
	Provider provider.Config         `yaml:"provider"`
	Cookies  provider.CookieSettings `yaml:"cookies"`
	Gate     gate.Config             `yaml:"gate"`
}

// LoadConfigFile reads and validates a yaml config. The provider URL
// and key may come from the environment instead of the file; either
// way their absence is a startup-fatal misconfiguration, never a
// per-request error.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unmarshal config file: %w", err)
	}

	if v := os.Getenv("AUTHFRONT_PROVIDER_URL"); v != "" {
		config.Provider.BaseURL = v
	}
	if v := os.Getenv("AUTHFRONT_PROVIDER_ANON_KEY"); v != "" {
		config.Provider.AnonKey = v
	}

	if err := ValidateConfig(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

func ValidateConfig(config *Config) error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return fld.Tag.Get("yaml")
	})
	if err := validate.Struct(config); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	return nil
}
