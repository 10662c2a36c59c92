package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultAPIHost         = "http://localhost:8080"
	DefaultCallbackURI     = "http://localhost:3000/api/aggie_auth"
	BootstrapDescription   = "Key verification from aggie-auth."
	defaultMailSubjectIcon = "🐧"
)

type ExpirationConfig struct {
	MinSeconds       int `koanf:"min_seconds" mapstructure:"min_seconds"`
	MaxSeconds       int `koanf:"max_seconds" mapstructure:"max_seconds"`
	BootstrapSeconds int `koanf:"bootstrap_seconds" mapstructure:"bootstrap_seconds"`
}

type DeliveryConfig struct {
	MaxAttempts int     `koanf:"max_attempts" mapstructure:"max_attempts"`
	BaseDelayMS int     `koanf:"base_delay_ms" mapstructure:"base_delay_ms"`
	Exponent    float64 `koanf:"exponent" mapstructure:"exponent"`
	Factor      float64 `koanf:"factor" mapstructure:"factor"`
	JitterMaxMS int     `koanf:"jitter_max_ms" mapstructure:"jitter_max_ms"`
}

func (d DeliveryConfig) BaseDelay() time.Duration {
	return time.Duration(d.BaseDelayMS) * time.Millisecond
}

func (d DeliveryConfig) JitterMax() time.Duration {
	return time.Duration(d.JitterMaxMS) * time.Millisecond
}

type MailConfig struct {
	Domain        string `koanf:"domain" mapstructure:"domain"`
	SubjectPrefix string `koanf:"subject_prefix" mapstructure:"subject_prefix"`
}

type Config struct {
	ServiceName     string           `koanf:"service_name" mapstructure:"service_name"`
	APIHost         string           `koanf:"api_host" mapstructure:"api_host"`
	DefaultCallback string           `koanf:"default_callback" mapstructure:"default_callback"`
	Expiration      ExpirationConfig `koanf:"expiration" mapstructure:"expiration"`
	Delivery        DeliveryConfig   `koanf:"delivery" mapstructure:"delivery"`
	Mail            MailConfig       `koanf:"mail" mapstructure:"mail"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName:     "aggie-auth",
		APIHost:         DefaultAPIHost,
		DefaultCallback: DefaultCallbackURI,
		Expiration: ExpirationConfig{
			MinSeconds:       300,
			MaxSeconds:       86400,
			BootstrapSeconds: 3600,
		},
		Delivery: DeliveryConfig{
			MaxAttempts: 5,
			BaseDelayMS: 1000,
			Exponent:    2,
			Factor:      1.1,
			JitterMaxMS: 3000,
		},
		Mail: MailConfig{
			Domain:        "example.edu",
			SubjectPrefix: defaultMailSubjectIcon,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if !callbackSchemePattern.MatchString(strings.TrimSpace(c.APIHost)) {
		return fmt.Errorf("core: api_host must be an http(s) url")
	}
	if !callbackSchemePattern.MatchString(strings.TrimSpace(c.DefaultCallback)) {
		return fmt.Errorf("core: default_callback must be an http(s) url")
	}
	if c.Expiration.MinSeconds <= 0 || c.Expiration.MaxSeconds < c.Expiration.MinSeconds {
		return fmt.Errorf("core: expiration window is invalid")
	}
	if c.Expiration.BootstrapSeconds < c.Expiration.MinSeconds ||
		c.Expiration.BootstrapSeconds > c.Expiration.MaxSeconds {
		return fmt.Errorf("core: expiration.bootstrap_seconds must be within the expiration window")
	}
	if c.Delivery.MaxAttempts <= 0 {
		return fmt.Errorf("core: delivery.max_attempts must be positive")
	}
	if c.Delivery.BaseDelayMS < 0 || c.Delivery.JitterMaxMS < 0 {
		return fmt.Errorf("core: delivery delays must not be negative")
	}
	if c.Delivery.Exponent < 1 || c.Delivery.Factor < 0 {
		return fmt.Errorf("core: delivery backoff exponent must be >= 1 and factor >= 0")
	}
	if strings.TrimSpace(c.Mail.Domain) == "" {
		return fmt.Errorf("core: mail.domain is required")
	}
	return nil
}
